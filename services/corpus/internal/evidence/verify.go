package evidence

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/tarifflane/corpuslane/pkg/domain"
	"github.com/tarifflane/corpuslane/pkg/jws"
)

type Result struct {
	Status  string         `json:"status"`
	Details map[string]any `json:"details,omitempty"`
}

const (
	StatusVerified         = "VERIFIED"
	StatusMalformedBundle  = "MALFORMED_BUNDLE"
	StatusInvalidPayload   = "INVALID_PAYLOAD"
	StatusInvalidSignature = "INVALID_SIGNATURE"
	StatusUnsupportedSigner = "UNSUPPORTED_SIGNER"
	StatusInvalidHash      = "INVALID_HASH"
)

// VerifyBundle re-checks a fetched bundle offline: the signed payload must
// reproduce the bundle's own columns exactly and the envelope signature must
// hold. The bundle bytes are served byte-stable, so the payload decodes to
// the very bytes that were signed.
func VerifyBundle(b domain.EvidenceBundle) Result {
	raw, err := jws.DecodePayload(b.JWS)
	if err != nil {
		return Result{Status: StatusMalformedBundle, Details: map[string]any{"reason": "payload_not_base64url"}}
	}
	var payload BundlePayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return Result{Status: StatusMalformedBundle, Details: map[string]any{"reason": "payload_not_json"}}
	}

	if payload.InputHashSHA256 != b.InputHashSHA256 ||
		payload.CorpusVersion != b.CorpusVersion ||
		!equalStrings(payload.CitationIDs, b.CitationIDs) {
		return Result{Status: StatusInvalidPayload, Details: map[string]any{
			"payload_corpus_version": payload.CorpusVersion,
			"bundle_corpus_version":  b.CorpusVersion,
		}}
	}
	if payload.CreatedAt != b.CreatedAt.UTC().Format(time.RFC3339Nano) {
		return Result{Status: StatusInvalidPayload, Details: map[string]any{"reason": "created_at_mismatch"}}
	}

	switch err := jws.Verify(b.JWS, raw); {
	case err == nil:
		return Result{Status: StatusVerified, Details: map[string]any{"hsm_stub": !b.JWS.HSMStub.Enabled}}
	case errors.Is(err, jws.ErrUnsupportedAlg):
		// Real HSM signatures need the production verifier; offline tooling
		// reports them distinctly rather than claiming verification.
		return Result{Status: StatusUnsupportedSigner}
	case errors.Is(err, jws.ErrMalformedEnvelope):
		return Result{Status: StatusMalformedBundle, Details: map[string]any{"reason": "malformed_envelope"}}
	default:
		return Result{Status: StatusInvalidSignature}
	}
}

// VerifyDecision recomputes the decision hash and compares with the stamp.
func VerifyDecision(d domain.Decision) Result {
	want, err := DecisionHash(d)
	if err != nil {
		return Result{Status: StatusMalformedBundle, Details: map[string]any{"reason": "unserializable_decision"}}
	}
	if want != d.DecisionHashSHA256 {
		return Result{Status: StatusInvalidHash, Details: map[string]any{"expected": want, "stored": d.DecisionHashSHA256}}
	}
	return Result{Status: StatusVerified}
}
