package crud

import (
	"encoding/json"
	"net/http"
)

// HTTPResponse is the body of every response written by the HTTP handler
type HTTPResponse struct {
	OK      bool        `json:"ok"`
	ErrText string      `json:"err_text"`
	Data    interface{} `json:"data"`
}

func NewHTTPResponse(ok bool, errText string) HTTPResponse {
	return HTTPResponse{
		OK:      ok,
		ErrText: errText,
	}
}

// NewHTTPDataResponse returns successful response carrying data
func NewHTTPDataResponse(data interface{}) HTTPResponse {
	return HTTPResponse{
		OK:   true,
		Data: data,
	}
}

// writeJSON sends 500 with the encoding error when res cannot be encoded
func writeJSON(w http.ResponseWriter, status int, res HTTPResponse) {
	b, err := json.Marshal(res)
	if err != nil {
		status = http.StatusInternalServerError
		b, _ = json.Marshal(NewHTTPResponse(false, err.Error()))
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(b)
}

func writeError(w http.ResponseWriter, status int, errText string) {
	writeJSON(w, status, NewHTTPResponse(false, errText))
}

// writeStoreError writes store error with status matching its fault
func writeStoreError(w http.ResponseWriter, err error) {
	writeError(w, StatusForError(err), err.Error())
}
