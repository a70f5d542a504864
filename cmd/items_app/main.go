package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	crud "github.com/gen64/go-recordstore"
	"github.com/sirupsen/logrus"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintf(os.Stderr, "Syntax: items_app <config file>\n")
		os.Exit(1)
	}

	cfg, err := NewConfig(os.Args[1])
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		os.Exit(1)
	}

	log, err := NewLogger(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		os.Exit(1)
	}

	if err := run(cfg, log); err != nil {
		log.WithError(err).Fatal("items_app failed")
	}
}

// NewLogger returns logrus logger with level and format taken from config
func NewLogger(cfg *Config) (*logrus.Logger, error) {
	log := logrus.New()
	lvl, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	log.SetLevel(lvl)
	if cfg.LogFormat == "json" {
		log.SetFormatter(&logrus.JSONFormatter{})
	}
	return log, nil
}

func run(cfg *Config, log *logrus.Logger) error {
	exit := make(chan os.Signal, 2)
	signal.Notify(exit, os.Interrupt, syscall.SIGTERM)

	ctx := context.Background()

	d, err := NewDB(cfg, log)
	if err != nil {
		return err
	}
	if _, err := d.GetConn(ctx); err != nil {
		return err
	}
	defer d.Close()

	defs := []crud.Table{}
	for _, n := range cfg.Tables {
		defs = append(defs, crud.Table{Name: n})
	}
	tables, err := crud.NewTables(d.dialect, cfg.TablePrefix, defs...)
	if err != nil {
		return err
	}
	if err := d.CreateTables(ctx, tables); err != nil {
		return err
	}

	store := crud.NewStore(d.GetConnector(), tables, crud.WithLogger(log))

	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	for _, n := range tables.Names() {
		uri := "/" + n + "/"
		mux.HandleFunc(uri, store.GetHTTPHandler(n, uri))
	}
	mux.HandleFunc("/ws", store.GetWSHandler())

	s := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: crud.LogRequests(mux, log),
	}

	errs := make(chan error, 1)
	go func() {
		if err := s.ListenAndServe(); err != http.ErrServerClosed {
			errs <- err
		}
	}()

	log.WithFields(logrus.Fields{"addr": cfg.HTTPAddr, "driver": cfg.DBDriver, "tables": tables.Names()}).Info("items_app listening")
	select {
	case err := <-errs:
		return err
	case <-exit:
	}

	log.Debug("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return s.Shutdown(shutdownCtx)
}
