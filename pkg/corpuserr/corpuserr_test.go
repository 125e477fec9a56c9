package corpuserr

import (
	"errors"
	"fmt"
	"testing"
)

func TestKindSurvivesWrapping(t *testing.T) {
	base := NotFoundf("chunk %s not found", "c-1")
	wrapped := fmt.Errorf("retrieval: %w", base)
	if !IsNotFound(wrapped) {
		t.Fatal("expected NotFound through wrapping")
	}
	if Code(wrapped) != "NOT_FOUND" {
		t.Fatalf("unexpected code: %s", Code(wrapped))
	}
}

func TestWrapKeepsCause(t *testing.T) {
	cause := errors.New("dial tcp: connection refused")
	err := Wrap(Unavailable, "search backend", cause)
	if !errors.Is(err, cause) {
		t.Fatal("expected cause to be reachable")
	}
	if HTTPStatus(err) != 503 {
		t.Fatalf("unexpected status: %d", HTTPStatus(err))
	}
}

func TestUntypedErrorMapsToDBError(t *testing.T) {
	err := errors.New("boom")
	if Code(err) != "DB_ERROR" {
		t.Fatalf("unexpected code: %s", Code(err))
	}
	if HTTPStatus(err) != 500 {
		t.Fatalf("unexpected status: %d", HTTPStatus(err))
	}
}

func TestCodes(t *testing.T) {
	cases := []struct {
		err  error
		code string
	}{
		{Conflictf("bundle spans corpus versions"), "CONFLICT"},
		{Validationf("locator has no sub-field"), "VALIDATION_FAILED"},
		{Unavailablef("timeout"), "UNAVAILABLE"},
	}
	for _, tc := range cases {
		if Code(tc.err) != tc.code {
			t.Fatalf("expected %s, got %s", tc.code, Code(tc.err))
		}
	}
}
