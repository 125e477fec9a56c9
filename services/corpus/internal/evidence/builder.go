// Package evidence assembles the citation set behind a classification into a
// signed, hash-addressed bundle and finalizes the hash-stamped decision
// record that references it.
package evidence

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tarifflane/corpuslane/pkg/canonhash"
	"github.com/tarifflane/corpuslane/pkg/corpuserr"
	"github.com/tarifflane/corpuslane/pkg/domain"
	"github.com/tarifflane/corpuslane/pkg/jws"
)

type Store interface {
	GetCitations(ctx context.Context, tenantID string, ids []string) ([]domain.Citation, error)
	GetEvidenceBundleByRequest(ctx context.Context, tenantID, requestID string) (domain.EvidenceBundle, bool, error)
	GetEvidenceBundle(ctx context.Context, tenantID, bundleID string) (domain.EvidenceBundle, error)
	InsertEvidenceBundle(ctx context.Context, b domain.EvidenceBundle) error
	GetDecision(ctx context.Context, tenantID, requestID string) (domain.Decision, bool, error)
	InsertDecision(ctx context.Context, d domain.Decision) error
}

type Builder struct {
	store  Store
	signer jws.Signer
	log    *zap.Logger
	// now is injectable so signed payloads are reproducible in tests.
	now func() time.Time
}

func NewBuilder(store Store, signer jws.Signer, log *zap.Logger) *Builder {
	return &Builder{store: store, signer: signer, log: log, now: time.Now}
}

// WithClock fixes the timestamp source. Test hook.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

// BundlePayload is the canonical signed payload. Field order is fixed;
// identical inputs produce byte-identical payloads.
type BundlePayload struct {
	CitationIDs     []string `json:"citation_ids"`
	InputHashSHA256 string   `json:"input_hash_sha256"`
	CorpusVersion   string   `json:"corpus_version"`
	CreatedAt       string   `json:"created_at"`
}

// Build produces exactly one immutable bundle per (tenant, request_id).
// Re-requesting returns the existing bundle; citations spanning more than one
// corpus version or snapshot are rejected with Conflict.
func (b *Builder) Build(ctx context.Context, tenantID, requestID, inputHash string, citationIDs []string) (domain.EvidenceBundle, error) {
	if tenantID == "" || requestID == "" || inputHash == "" {
		return domain.EvidenceBundle{}, corpuserr.Validationf("bundle requires tenant_id, request_id and input_hash_sha256")
	}
	if len(citationIDs) == 0 {
		return domain.EvidenceBundle{}, corpuserr.Validationf("bundle requires at least one citation")
	}

	if existing, ok, err := b.store.GetEvidenceBundleByRequest(ctx, tenantID, requestID); err != nil {
		return domain.EvidenceBundle{}, err
	} else if ok {
		return existing, nil
	}

	citations, err := b.store.GetCitations(ctx, tenantID, citationIDs)
	if err != nil {
		return domain.EvidenceBundle{}, err
	}
	corpusVersion := citations[0].CorpusVersion
	snapshotPointer := citations[0].SnapshotPointer
	for _, c := range citations[1:] {
		if c.CorpusVersion != corpusVersion {
			return domain.EvidenceBundle{}, corpuserr.Conflictf(
				"bundle spans corpus versions %s and %s", corpusVersion, c.CorpusVersion)
		}
		if c.SnapshotPointer != snapshotPointer {
			return domain.EvidenceBundle{}, corpuserr.Conflictf(
				"bundle spans snapshots %s and %s", snapshotPointer, c.SnapshotPointer)
		}
	}

	createdAt := b.now().UTC()
	payload := BundlePayload{
		CitationIDs:     citationIDs,
		InputHashSHA256: inputHash,
		CorpusVersion:   corpusVersion,
		CreatedAt:       createdAt.Format(time.RFC3339Nano),
	}
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return domain.EvidenceBundle{}, err
	}
	env, err := b.signer.Sign(payloadBytes)
	if err != nil {
		return domain.EvidenceBundle{}, err
	}

	bundle := domain.EvidenceBundle{
		BundleID:        "bun_" + uuid.NewString(),
		TenantID:        tenantID,
		RequestID:       requestID,
		CorpusVersion:   corpusVersion,
		InputHashSHA256: inputHash,
		SnapshotPointer: snapshotPointer,
		CitationIDs:     citationIDs,
		JWS:             env,
		CreatedAt:       createdAt,
	}
	if err := b.store.InsertEvidenceBundle(ctx, bundle); err != nil {
		// A concurrent build for the same request can win the insert; the
		// bundle it minted is the provenance record, so return that one.
		if corpuserr.IsConflict(err) {
			if existing, ok, gerr := b.store.GetEvidenceBundleByRequest(ctx, tenantID, requestID); gerr == nil && ok {
				return existing, nil
			}
		}
		return domain.EvidenceBundle{}, err
	}
	b.log.Info("evidence bundle created",
		zap.String("tenant_id", tenantID),
		zap.String("bundle_id", bundle.BundleID),
		zap.String("corpus_version", corpusVersion),
		zap.Int("citations", len(citationIDs)),
		zap.Bool("hsm", env.HSMStub.Enabled))
	return bundle, nil
}

type DecisionInput struct {
	TenantID         string
	RequestID        string
	Status           domain.DecisionStatus
	HSCandidate      string
	Confidence       float64
	GIRPath          []string
	CitationIDs      []string
	EvidenceBundleID string
	Reason           string
}

// Finalize writes exactly one decision per (tenant, request_id). Replaying an
// identical finalize returns the stored record; a divergent replay conflicts.
func (b *Builder) Finalize(ctx context.Context, in DecisionInput) (domain.Decision, error) {
	d := domain.Decision{
		RequestID:        in.RequestID,
		TenantID:         in.TenantID,
		Status:           in.Status,
		HSCandidate:      in.HSCandidate,
		Confidence:       in.Confidence,
		GIRPath:          in.GIRPath,
		CitationIDs:      in.CitationIDs,
		EvidenceBundleID: in.EvidenceBundleID,
		Reason:           in.Reason,
		CreatedAt:        b.now().UTC(),
	}
	if err := d.Validate(); err != nil {
		return domain.Decision{}, err
	}
	if d.Status == domain.DecisionFinal {
		bundle, err := b.store.GetEvidenceBundle(ctx, in.TenantID, in.EvidenceBundleID)
		if err != nil {
			return domain.Decision{}, err
		}
		if bundle.RequestID != in.RequestID {
			return domain.Decision{}, corpuserr.Conflictf(
				"evidence bundle %s belongs to request %s, not %s", in.EvidenceBundleID, bundle.RequestID, in.RequestID)
		}
	}

	hash, err := DecisionHash(d)
	if err != nil {
		return domain.Decision{}, err
	}
	d.DecisionHashSHA256 = hash

	if existing, ok, err := b.store.GetDecision(ctx, in.TenantID, in.RequestID); err != nil {
		return domain.Decision{}, err
	} else if ok {
		if sameDecision(existing, d) {
			return existing, nil
		}
		return domain.Decision{}, corpuserr.Conflictf("decision already finalized for request %s", in.RequestID)
	}

	if err := b.store.InsertDecision(ctx, d); err != nil {
		// Lost a concurrent finalize race; identical replays still converge.
		if corpuserr.IsConflict(err) {
			if existing, ok, gerr := b.store.GetDecision(ctx, in.TenantID, in.RequestID); gerr == nil && ok {
				if sameDecision(existing, d) {
					return existing, nil
				}
				return domain.Decision{}, corpuserr.Conflictf("decision already finalized for request %s", in.RequestID)
			}
		}
		return domain.Decision{}, err
	}
	b.log.Info("decision finalized",
		zap.String("tenant_id", in.TenantID),
		zap.String("request_id", in.RequestID),
		zap.String("status", string(d.Status)))
	return d, nil
}

// sameDecision compares everything a replay controls; timestamps and the
// derived hash are excluded.
func sameDecision(a, b domain.Decision) bool {
	if a.Status != b.Status || a.HSCandidate != b.HSCandidate || a.Confidence != b.Confidence ||
		a.EvidenceBundleID != b.EvidenceBundleID || a.Reason != b.Reason {
		return false
	}
	return equalStrings(a.GIRPath, b.GIRPath) && equalStrings(a.CitationIDs, b.CitationIDs)
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// decisionHashPayload serializes every decision field except the hash itself,
// so any later party can recompute and compare.
type decisionHashPayload struct {
	RequestID        string   `json:"request_id"`
	TenantID         string   `json:"tenant_id"`
	Status           string   `json:"status"`
	HSCandidate      string   `json:"hs_candidate"`
	Confidence       float64  `json:"confidence"`
	GIRPath          []string `json:"gir_path"`
	CitationIDs      []string `json:"citation_ids"`
	EvidenceBundleID string   `json:"evidence_bundle_id"`
	Reason           string   `json:"reason"`
	CreatedAt        string   `json:"created_at"`
}

func DecisionHash(d domain.Decision) (string, error) {
	hash, _, err := canonhash.CanonicalSHA256(decisionHashPayload{
		RequestID:        d.RequestID,
		TenantID:         d.TenantID,
		Status:           string(d.Status),
		HSCandidate:      d.HSCandidate,
		Confidence:       d.Confidence,
		GIRPath:          d.GIRPath,
		CitationIDs:      d.CitationIDs,
		EvidenceBundleID: d.EvidenceBundleID,
		Reason:           d.Reason,
		CreatedAt:        d.CreatedAt.UTC().Format(time.RFC3339Nano),
	})
	return hash, err
}
