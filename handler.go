package crud

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const maxBodySize = 1 << 20

var idRegexp = regexp.MustCompile(`^[0-9]+$`)

// updateRequest is the body of PUT request sent to the table endpoint
type updateRequest struct {
	Fields  Fields `json:"fields"`
	Filters Fields `json:"filters"`
}

// GetHTTPHandler returns a CRUD HTTP handler for a single allowed table that
// can be attached to HTTP server.
//
//	POST   uri      creates a record from JSON object in the body
//	GET    uri      lists records, filter_<column>=value query params filter them
//	GET    uri<id>  returns record with id
//	PUT    uri      updates records, body is {"fields": {...}, "filters": {...}}
//	PUT    uri<id>  updates record with id, body is JSON object with fields
//	DELETE uri      deletes records matching filter_<column> query params or body
//	DELETE uri<id>  deletes record with id
//
// It's important to pass "uri" argument same as the one that the handler is
// attached to.
func (s *Store) GetHTTPHandler(table string, uri string) func(http.ResponseWriter, *http.Request) {
	fn := func(w http.ResponseWriter, r *http.Request) {
		h, ok := s.tables.Get(table)
		if !ok {
			writeError(w, http.StatusInternalServerError, ErrTableNotAllowed.Error())
			return
		}

		id, b := s.getIDFromURI(strings.TrimPrefix(r.URL.Path, uri), w)
		if !b {
			return
		}

		switch r.Method {
		case http.MethodPost:
			if id != "" {
				writeError(w, http.StatusBadRequest, "id not allowed")
				return
			}
			s.handleHTTPPost(w, r, h, table)
		case http.MethodGet:
			s.handleHTTPGet(w, r, h, table, id)
		case http.MethodPut:
			s.handleHTTPPut(w, r, h, table, id)
		case http.MethodDelete:
			s.handleHTTPDelete(w, r, h, table, id)
		default:
			w.Header().Set("Allow", "GET, POST, PUT, DELETE")
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		}
	}
	return fn
}

func (s *Store) handleHTTPPost(w http.ResponseWriter, r *http.Request, h *Helper, table string) {
	body, err := readBody(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	fields, err := ParseFields(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	id, err := s.Create(r.Context(), table, fields)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	rec := Record{{Column: h.GetIDColumn(), Value: IntValue(id)}}
	for _, f := range fields {
		if f.Column != h.GetIDColumn() {
			rec = append(rec, f)
		}
	}
	writeJSON(w, http.StatusCreated, NewHTTPDataResponse(rec))
}

func (s *Store) handleHTTPGet(w http.ResponseWriter, r *http.Request, h *Helper, table string, id string) {
	if id != "" {
		records, err := s.Read(r.Context(), table, s.idFilter(h, id))
		if err != nil {
			writeStoreError(w, err)
			return
		}
		if len(records) == 0 {
			writeError(w, http.StatusNotFound, "not found")
			return
		}
		writeJSON(w, http.StatusOK, NewHTTPDataResponse(records[0]))
		return
	}

	filters, err := s.getFilters(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	page, err := s.getPageFromURI(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	records, err := s.ReadPage(r.Context(), table, filters, page)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, NewHTTPDataResponse(map[string]interface{}{"items": records}))
}

func (s *Store) handleHTTPPut(w http.ResponseWriter, r *http.Request, h *Helper, table string, id string) {
	body, err := readBody(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req updateRequest
	if id != "" {
		req.Fields, err = ParseFields(body)
		req.Filters = s.idFilter(h, id)
	} else {
		err = json.Unmarshal(body, &req)
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	updated, err := s.Update(r.Context(), table, req.Fields, req.Filters)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	if !updated {
		writeError(w, http.StatusNotFound, "no matching records")
		return
	}
	writeJSON(w, http.StatusOK, NewHTTPResponse(true, ""))
}

func (s *Store) handleHTTPDelete(w http.ResponseWriter, r *http.Request, h *Helper, table string, id string) {
	var filters Fields
	var err error
	if id != "" {
		filters = s.idFilter(h, id)
	} else {
		filters, err = s.getFilters(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	deleted, err := s.Delete(r.Context(), table, filters)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	if !deleted {
		writeError(w, http.StatusNotFound, "no matching records")
		return
	}
	writeJSON(w, http.StatusOK, NewHTTPResponse(true, ""))
}

// idFilter matches the id column. id has passed getIDFromURI.
func (s *Store) idFilter(h *Helper, id string) Fields {
	i, _ := strconv.ParseInt(id, 10, 64)
	return Fields{{Column: h.GetIDColumn(), Value: IntValue(i)}}
}

// getFilters takes filters from filter_<column> query params or, when there
// are none, from a JSON object in the request body. Query param values are
// always text and the database converts them to column type.
func (s *Store) getFilters(r *http.Request) (Fields, error) {
	params := r.URL.Query()
	keys := []string{}
	for k := range params {
		if strings.HasPrefix(k, "filter_") && len(k) > len("filter_") {
			keys = append(keys, k)
		}
	}
	if len(keys) > 0 {
		sort.Strings(keys)
		filters := Fields{}
		for _, k := range keys {
			filters = append(filters, Field{Column: k[len("filter_"):], Value: TextValue(params.Get(k))})
		}
		return filters, nil
	}

	body, err := readBody(r)
	if err != nil {
		return nil, err
	}
	return ParseFields(body)
}

func (s *Store) getPageFromURI(r *http.Request) (Page, error) {
	params := r.URL.Query()
	page := Page{}

	var err error
	if v := params.Get("limit"); v != "" {
		if page.Limit, err = strconv.Atoi(v); err != nil || page.Limit < 0 {
			return page, fmt.Errorf("%w: limit", ErrInvalidValue)
		}
	}
	if v := params.Get("offset"); v != "" {
		if page.Offset, err = strconv.Atoi(v); err != nil || page.Offset < 0 {
			return page, fmt.Errorf("%w: offset", ErrInvalidValue)
		}
	}
	if v := params.Get("order"); v != "" {
		page.Order = []Order{{
			Column: v,
			Desc:   strings.ToLower(params.Get("order_direction")) == "desc",
		}}
	}
	return page, nil
}

func (s *Store) getIDFromURI(uri string, w http.ResponseWriter) (string, bool) {
	uri = strings.TrimSuffix(uri, "/")
	if uri == "" {
		return "", true
	}
	if _, err := strconv.ParseInt(uri, 10, 64); err != nil || !idRegexp.MatchString(uri) {
		writeError(w, http.StatusBadRequest, "invalid id")
		return "", false
	}
	return uri, true
}

func readBody(r *http.Request) ([]byte, error) {
	if r.Body == nil {
		return nil, nil
	}
	defer r.Body.Close()
	return io.ReadAll(io.LimitReader(r.Body, maxBodySize))
}

// StatusForError maps a store error to HTTP status code. Errors that are not
// classified otherwise are statement faults.
func StatusForError(err error) int {
	switch FaultOf(err) {
	case FaultNone:
		return http.StatusOK
	case FaultInput:
		return http.StatusBadRequest
	case FaultConnectivity:
		return http.StatusServiceUnavailable
	default:
		return http.StatusUnprocessableEntity
	}
}

// LogRequests wraps handler with logging of every request. Each request gets
// an id taken from X-Request-ID header or generated, which is sent back in the
// response headers.
func LogRequests(next http.Handler, log logrus.FieldLogger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get("X-Request-ID")
		if reqID == "" {
			reqID = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", reqID)

		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(sw, r)

		log.WithFields(logrus.Fields{
			"request_id": reqID,
			"method":     r.Method,
			"path":       r.URL.Path,
			"status":     sw.status,
			"duration":   time.Since(start).String(),
		}).Info("request")
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// Hijack lets websocket upgrades pass through LogRequests
func (w *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	w.status = http.StatusSwitchingProtocols
	return hj.Hijack()
}
