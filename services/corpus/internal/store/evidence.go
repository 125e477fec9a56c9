package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/tarifflane/corpuslane/pkg/domain"
)

const bundleColumns = `tenant_id,bundle_id,request_id,corpus_version,input_hash_sha256,snapshot_pointer,citation_ids,
  jws_protected,jws_payload,jws_signature,hsm_stub_enabled,created_at`

func (s *Store) InsertEvidenceBundle(ctx context.Context, b domain.EvidenceBundle) error {
	_, err := s.DB.Exec(ctx, `
INSERT INTO evidence_bundles(tenant_id,bundle_id,request_id,corpus_version,input_hash_sha256,snapshot_pointer,citation_ids,
  jws_protected,jws_payload,jws_signature,hsm_stub_enabled,created_at)
VALUES($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
		b.TenantID, b.BundleID, b.RequestID, b.CorpusVersion, b.InputHashSHA256, b.SnapshotPointer,
		b.CitationIDs, b.JWS.Protected, b.JWS.Payload, b.JWS.Signature, b.JWS.HSMStub.Enabled, b.CreatedAt)
	return conflictIfDuplicate(err, "evidence bundle already exists for request %s", b.RequestID)
}

func scanBundle(row interface{ Scan(...any) error }) (domain.EvidenceBundle, error) {
	var b domain.EvidenceBundle
	err := row.Scan(&b.TenantID, &b.BundleID, &b.RequestID, &b.CorpusVersion, &b.InputHashSHA256,
		&b.SnapshotPointer, &b.CitationIDs,
		&b.JWS.Protected, &b.JWS.Payload, &b.JWS.Signature, &b.JWS.HSMStub.Enabled, &b.CreatedAt)
	return b, err
}

func (s *Store) GetEvidenceBundle(ctx context.Context, tenantID, bundleID string) (domain.EvidenceBundle, error) {
	row := s.DB.QueryRow(ctx, `SELECT `+bundleColumns+` FROM evidence_bundles WHERE tenant_id=$1 AND bundle_id=$2`,
		tenantID, bundleID)
	b, err := scanBundle(row)
	return b, notFoundIfNoRows(err, "evidence bundle %s not found for tenant %s", bundleID, tenantID)
}

// GetEvidenceBundleByRequest returns the existing bundle for a request id,
// or ok=false when none exists. Bundles are a provenance record, never
// re-minted for the same request.
func (s *Store) GetEvidenceBundleByRequest(ctx context.Context, tenantID, requestID string) (domain.EvidenceBundle, bool, error) {
	row := s.DB.QueryRow(ctx, `SELECT `+bundleColumns+` FROM evidence_bundles WHERE tenant_id=$1 AND request_id=$2`,
		tenantID, requestID)
	b, err := scanBundle(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.EvidenceBundle{}, false, nil
	}
	return b, err == nil, err
}

func (s *Store) InsertDecision(ctx context.Context, d domain.Decision) error {
	_, err := s.DB.Exec(ctx, `
INSERT INTO decisions(tenant_id,request_id,status,hs_candidate,confidence,gir_path,citation_ids,evidence_bundle_id,reason,decision_hash_sha256,created_at)
VALUES($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		d.TenantID, d.RequestID, d.Status, d.HSCandidate, d.Confidence, d.GIRPath,
		d.CitationIDs, d.EvidenceBundleID, d.Reason, d.DecisionHashSHA256, d.CreatedAt)
	return conflictIfDuplicate(err, "decision already exists for request %s", d.RequestID)
}

func (s *Store) GetDecision(ctx context.Context, tenantID, requestID string) (domain.Decision, bool, error) {
	var d domain.Decision
	err := s.DB.QueryRow(ctx, `SELECT tenant_id,request_id,status,hs_candidate,confidence,gir_path,citation_ids,evidence_bundle_id,reason,decision_hash_sha256,created_at
FROM decisions WHERE tenant_id=$1 AND request_id=$2`, tenantID, requestID).
		Scan(&d.TenantID, &d.RequestID, &d.Status, &d.HSCandidate, &d.Confidence, &d.GIRPath,
			&d.CitationIDs, &d.EvidenceBundleID, &d.Reason, &d.DecisionHashSHA256, &d.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Decision{}, false, nil
	}
	return d, err == nil, err
}
