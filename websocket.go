package crud

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// WSAction is the store operation requested over websocket
type WSAction string

const (
	WSActionCreate WSAction = "create"
	WSActionRead   WSAction = "read"
	WSActionUpdate WSAction = "update"
	WSActionDelete WSAction = "delete"
)

// WSRequest is a single message sent by a websocket client. Data holds fields
// for create and update, Where holds filters for read, update and delete.
type WSRequest struct {
	Action WSAction `json:"action"`
	Table  string   `json:"table"`
	Data   Fields   `json:"data"`
	Where  Fields   `json:"where"`
	ReqID  int      `json:"req_id"`
}

// WSResponse is sent back for every WSRequest, with the same ReqID
type WSResponse struct {
	Status  int         `json:"status"`
	Message string      `json:"message"`
	Data    interface{} `json:"data"`
	ReqID   int         `json:"req_id"`
}

// Upgrader is used by GetWSHandler to upgrade HTTP connections
var Upgrader = websocket.Upgrader{
	ReadBufferSize:  1024 * 10,
	WriteBufferSize: 1024 * 10,
}

// GetWSHandler returns HTTP handler that upgrades connection to websocket and
// runs store operations for JSON requests sent over it. Table is named in each
// request, so only tables on the allow-list can be reached.
func (s *Store) GetWSHandler() func(http.ResponseWriter, *http.Request) {
	fn := func(w http.ResponseWriter, r *http.Request) {
		conn, err := Upgrader.Upgrade(w, r, nil)
		if err != nil {
			s.log.WithError(err).Warn("websocket upgrade failed")
			return
		}
		defer conn.Close()

		for {
			_, buf, err := conn.ReadMessage()
			if err != nil {
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					s.log.WithError(err).Warn("websocket read failed")
				}
				return
			}

			var req WSRequest
			var res WSResponse
			if err := json.Unmarshal(buf, &req); err != nil {
				res = WSResponse{Status: http.StatusBadRequest, Message: err.Error()}
			} else {
				res = s.handleWSRequest(r.Context(), req)
			}
			res.ReqID = req.ReqID

			if err := conn.WriteJSON(res); err != nil {
				s.log.WithError(err).Warn("websocket write failed")
				return
			}
		}
	}
	return fn
}

func (s *Store) handleWSRequest(ctx context.Context, req WSRequest) WSResponse {
	switch req.Action {
	case WSActionCreate:
		id, err := s.Create(ctx, req.Table, req.Data)
		if err != nil {
			return wsErrorResponse(err)
		}
		return WSResponse{Status: http.StatusCreated, Message: "created", Data: map[string]int64{"id": id}}
	case WSActionRead:
		records, err := s.Read(ctx, req.Table, req.Where)
		if err != nil {
			return wsErrorResponse(err)
		}
		return WSResponse{Status: http.StatusOK, Message: "ok", Data: records}
	case WSActionUpdate:
		updated, err := s.Update(ctx, req.Table, req.Data, req.Where)
		if err != nil {
			return wsErrorResponse(err)
		}
		if !updated {
			return WSResponse{Status: http.StatusNotFound, Message: "no matching records"}
		}
		return WSResponse{Status: http.StatusOK, Message: "updated"}
	case WSActionDelete:
		deleted, err := s.Delete(ctx, req.Table, req.Where)
		if err != nil {
			return wsErrorResponse(err)
		}
		if !deleted {
			return WSResponse{Status: http.StatusNotFound, Message: "no matching records"}
		}
		return WSResponse{Status: http.StatusOK, Message: "deleted"}
	default:
		s.log.WithFields(logrus.Fields{"action": req.Action}).Warn("unknown websocket action")
		return WSResponse{Status: http.StatusBadRequest, Message: "unknown action: " + string(req.Action)}
	}
}

func wsErrorResponse(err error) WSResponse {
	return WSResponse{Status: StatusForError(err), Message: err.Error()}
}
