package domain

import (
	"strings"
	"time"

	"github.com/tarifflane/corpuslane/pkg/corpuserr"
	"github.com/tarifflane/corpuslane/pkg/jws"
)

// EvidenceBundle is the tamper-evident provenance artifact behind one
// classification decision. Immutable once created; re-requesting a bundle for
// the same (tenant, request_id) returns the existing one.
type EvidenceBundle struct {
	BundleID        string       `json:"bundle_id"`
	TenantID        string       `json:"tenant_id"`
	RequestID       string       `json:"request_id"`
	CorpusVersion   string       `json:"corpus_version"`
	InputHashSHA256 string       `json:"input_hash_sha256"`
	SnapshotPointer string       `json:"snapshot_pointer"`
	CitationIDs     []string     `json:"citation_ids"`
	JWS             jws.Envelope `json:"jws"`
	CreatedAt       time.Time    `json:"created_at"`
}

type DecisionStatus string

const (
	DecisionFinal DecisionStatus = "FINAL"
	DecisionStop  DecisionStatus = "STOP"
)

// Decision is the terminal, hash-stamped outcome of a classification.
// STOP records a refusal to decide and is a first-class auditable outcome.
type Decision struct {
	RequestID          string         `json:"request_id"`
	TenantID           string         `json:"tenant_id"`
	Status             DecisionStatus `json:"status"`
	HSCandidate        string         `json:"hs_candidate,omitempty"`
	Confidence         float64        `json:"confidence"`
	GIRPath            []string       `json:"gir_path"`
	CitationIDs        []string       `json:"citation_ids"`
	EvidenceBundleID   string         `json:"evidence_bundle_id,omitempty"`
	Reason             string         `json:"reason,omitempty"`
	DecisionHashSHA256 string         `json:"decision_hash_sha256"`
	CreatedAt          time.Time      `json:"created_at"`
}

func (d Decision) Validate() error {
	if strings.TrimSpace(d.RequestID) == "" {
		return corpuserr.Validationf("decision requires request_id")
	}
	switch d.Status {
	case DecisionFinal:
		if len(d.CitationIDs) == 0 {
			return corpuserr.Conflictf("decision %s: FINAL requires citations", d.RequestID)
		}
		if strings.TrimSpace(d.EvidenceBundleID) == "" {
			return corpuserr.Conflictf("decision %s: FINAL requires an evidence bundle", d.RequestID)
		}
	case DecisionStop:
		if strings.TrimSpace(d.Reason) == "" {
			return corpuserr.Conflictf("decision %s: STOP requires a reason", d.RequestID)
		}
	default:
		return corpuserr.Validationf("decision %s: unknown status %q", d.RequestID, d.Status)
	}
	return nil
}
