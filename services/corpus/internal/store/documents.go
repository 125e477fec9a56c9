package store

import (
	"context"

	"github.com/tarifflane/corpuslane/pkg/corpuserr"
	"github.com/tarifflane/corpuslane/pkg/domain"
)

// UpsertDocument replaces every field on conflict of (tenant_id, document_id).
// Last write wins on updated_at; replaying an identical batch converges.
// Returns true when the row was newly inserted.
func (s *Store) UpsertDocument(ctx context.Context, d domain.Document) (bool, error) {
	if err := d.Validate(); err != nil {
		return false, err
	}
	var inserted bool
	err := s.DB.QueryRow(ctx, `
INSERT INTO documents(tenant_id,document_id,source_id,jurisdiction,instrument_type,language,
  effective_from,effective_to,content_hash_sha256,snapshot_pointer,status,supersedes_document_id,corpus_version,updated_at)
VALUES($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,now())
ON CONFLICT (tenant_id,document_id) DO UPDATE SET
  source_id=EXCLUDED.source_id,
  jurisdiction=EXCLUDED.jurisdiction,
  instrument_type=EXCLUDED.instrument_type,
  language=EXCLUDED.language,
  effective_from=EXCLUDED.effective_from,
  effective_to=EXCLUDED.effective_to,
  content_hash_sha256=EXCLUDED.content_hash_sha256,
  snapshot_pointer=EXCLUDED.snapshot_pointer,
  status=EXCLUDED.status,
  supersedes_document_id=EXCLUDED.supersedes_document_id,
  updated_at=now()
RETURNING (xmax = 0)`,
		d.TenantID, d.DocumentID, d.SourceID, d.Jurisdiction, d.InstrumentType, d.Language,
		d.EffectiveFrom, d.EffectiveTo, d.ContentHashSHA256, d.SnapshotPointer, d.Status,
		d.SupersedesDocumentID, d.CorpusVersion).Scan(&inserted)
	return inserted, err
}

func (s *Store) GetDocument(ctx context.Context, tenantID, documentID string) (domain.Document, error) {
	var d domain.Document
	err := s.DB.QueryRow(ctx, `
SELECT tenant_id,document_id,source_id,jurisdiction,instrument_type,language,effective_from,effective_to,
  content_hash_sha256,snapshot_pointer,status,supersedes_document_id,corpus_version,updated_at
FROM documents WHERE tenant_id=$1 AND document_id=$2`, tenantID, documentID).
		Scan(&d.TenantID, &d.DocumentID, &d.SourceID, &d.Jurisdiction, &d.InstrumentType, &d.Language,
			&d.EffectiveFrom, &d.EffectiveTo, &d.ContentHashSHA256, &d.SnapshotPointer, &d.Status,
			&d.SupersedesDocumentID, &d.CorpusVersion, &d.UpdatedAt)
	return d, notFoundIfNoRows(err, "document %s not found for tenant %s", documentID, tenantID)
}

// SupersedeDocument inserts the replacement row active and flips the old row
// to superseded, refreshing the denormalized doc_status on the old document's
// chunks in the same transaction. The old row's corpus_version is untouched;
// history is never mutated.
func (s *Store) SupersedeDocument(ctx context.Context, tenantID, oldID string, replacement domain.Document) error {
	if err := replacement.Validate(); err != nil {
		return err
	}
	tx, err := s.DB.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `UPDATE documents SET status='superseded', updated_at=now()
WHERE tenant_id=$1 AND document_id=$2`, tenantID, oldID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return corpuserr.NotFoundf("document %s not found for tenant %s", oldID, tenantID)
	}
	_, err = tx.Exec(ctx, `UPDATE chunks SET doc_status='superseded', updated_at=now()
WHERE tenant_id=$1 AND document_id=$2`, tenantID, oldID)
	if err != nil {
		return err
	}

	replacement.Status = domain.DocActive
	replacement.SupersedesDocumentID = &oldID
	_, err = tx.Exec(ctx, `
INSERT INTO documents(tenant_id,document_id,source_id,jurisdiction,instrument_type,language,
  effective_from,effective_to,content_hash_sha256,snapshot_pointer,status,supersedes_document_id,corpus_version,updated_at)
VALUES($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,now())`,
		tenantID, replacement.DocumentID, replacement.SourceID, replacement.Jurisdiction,
		replacement.InstrumentType, replacement.Language, replacement.EffectiveFrom, replacement.EffectiveTo,
		replacement.ContentHashSHA256, replacement.SnapshotPointer, replacement.Status,
		replacement.SupersedesDocumentID, replacement.CorpusVersion)
	if err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// VersionCounts returns authoritative document/chunk/citation totals for one
// corpus version. Feeds ingestion report recomputation and diagnostics.
func (s *Store) VersionCounts(ctx context.Context, tenantID, corpusVersion string) (docs, chunks, citations int, _ error) {
	err := s.DB.QueryRow(ctx, `
SELECT
  (SELECT count(*) FROM documents WHERE tenant_id=$1 AND corpus_version=$2),
  (SELECT count(*) FROM chunks WHERE tenant_id=$1 AND corpus_version=$2),
  (SELECT count(*) FROM citations WHERE tenant_id=$1 AND corpus_version=$2)`,
		tenantID, corpusVersion).Scan(&docs, &chunks, &citations)
	return docs, chunks, citations, err
}
