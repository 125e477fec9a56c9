package httpx

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"github.com/tarifflane/corpuslane/pkg/corpuserr"
)

func NewRequestID() string { return "req_" + uuid.NewString() }

func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("content-type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteRaw serves pre-serialized bytes untouched. Evidence bundles must be
// byte-stable for external signature verification, so they bypass re-encoding.
func WriteRaw(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("content-type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

func ReadJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func WriteError(w http.ResponseWriter, status int, code, message string, details any) {
	resp := map[string]any{
		"request_id": NewRequestID(),
		"error": map[string]any{
			"code": code, "message": message, "details": details,
		},
	}
	WriteJSON(w, status, resp)
}

// WriteErr maps a taxonomy error to its wire code and status.
func WriteErr(w http.ResponseWriter, err error) {
	WriteError(w, corpuserr.HTTPStatus(err), corpuserr.Code(err), err.Error(), nil)
}
