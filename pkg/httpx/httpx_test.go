package httpx

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/tarifflane/corpuslane/pkg/corpuserr"
)

func TestNewRequestIDPrefix(t *testing.T) {
	id := NewRequestID()
	if !strings.HasPrefix(id, "req_") {
		t.Fatalf("unexpected request id: %s", id)
	}
}

func TestWriteErrMapsTaxonomy(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteErr(rec, corpuserr.NotFoundf("run %s not found", "run-1"))
	if rec.Code != 404 {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"NOT_FOUND"`) {
		t.Fatalf("expected NOT_FOUND code in body: %s", rec.Body.String())
	}
}

func TestWriteRawIsByteStable(t *testing.T) {
	body := []byte(`{"payload":"eyJhIjoxfQ","signature":"abc"}`)
	rec := httptest.NewRecorder()
	WriteRaw(rec, 200, body)
	if rec.Body.String() != string(body) {
		t.Fatalf("body was re-encoded: %s", rec.Body.String())
	}
}

func TestReadJSONRejectsUnknownFields(t *testing.T) {
	req := httptest.NewRequest("POST", "/", strings.NewReader(`{"tenant_id":"t1","bogus":1}`))
	var dst struct {
		TenantID string `json:"tenant_id"`
	}
	if err := ReadJSON(req, &dst); err == nil {
		t.Fatal("expected unknown field rejection")
	}
}
