package evidence

import (
	"context"
	"encoding/base64"
	"testing"

	"github.com/tarifflane/corpuslane/pkg/domain"
)

func builtBundle(t *testing.T) domain.EvidenceBundle {
	t.Helper()
	f := newFakeStore()
	f.citations["cit-1"] = citation("cit-1", "1.0.0", "snap://a")
	b, err := newBuilder(f).Build(context.Background(), "t1", "rq-1", "inhash", []string{"cit-1"})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	return b
}

func TestVerifyBundleDetectsTamperedCitations(t *testing.T) {
	b := builtBundle(t)
	b.CitationIDs = []string{"cit-2"}
	if got := VerifyBundle(b); got.Status != StatusInvalidPayload {
		t.Fatalf("expected INVALID_PAYLOAD, got %+v", got)
	}
}

func TestVerifyBundleDetectsTamperedSignature(t *testing.T) {
	b := builtBundle(t)
	b.JWS.Signature = base64.RawURLEncoding.EncodeToString([]byte("forged"))
	if got := VerifyBundle(b); got.Status != StatusInvalidSignature {
		t.Fatalf("expected INVALID_SIGNATURE, got %+v", got)
	}
}

func TestVerifyBundleMalformedPayload(t *testing.T) {
	b := builtBundle(t)
	b.JWS.Payload = "%%%not-base64%%%"
	if got := VerifyBundle(b); got.Status != StatusMalformedBundle {
		t.Fatalf("expected MALFORMED_BUNDLE, got %+v", got)
	}
}

func TestVerifyBundleReportsHSMSignaturesDistinctly(t *testing.T) {
	b := builtBundle(t)
	b.JWS.HSMStub.Enabled = true
	if got := VerifyBundle(b); got.Status != StatusUnsupportedSigner {
		t.Fatalf("expected UNSUPPORTED_SIGNER, got %+v", got)
	}
}

func TestVerifyDecisionDetectsAlteredRecord(t *testing.T) {
	f := newFakeStore()
	f.citations["cit-1"] = citation("cit-1", "1.0.0", "snap://a")
	bld := newBuilder(f)
	bundle, _ := bld.Build(context.Background(), "t1", "rq-1", "inhash", []string{"cit-1"})
	d, err := bld.Finalize(context.Background(), DecisionInput{
		TenantID: "t1", RequestID: "rq-1", Status: domain.DecisionFinal,
		HSCandidate: "7013.33", CitationIDs: []string{"cit-1"}, EvidenceBundleID: bundle.BundleID,
	})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	d.HSCandidate = "1234.56"
	if got := VerifyDecision(d); got.Status != StatusInvalidHash {
		t.Fatalf("expected INVALID_HASH after alteration, got %+v", got)
	}
}
