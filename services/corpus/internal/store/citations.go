package store

import (
	"context"
	"encoding/json"

	"github.com/tarifflane/corpuslane/pkg/corpuserr"
	"github.com/tarifflane/corpuslane/pkg/domain"
)

// UpsertCitation writes one citation keyed by (tenant_id, citation_id).
// A replay replaces the row with identical content; a correction is a new
// citation_id, so the replace never rewrites legal history.
func (s *Store) UpsertCitation(ctx context.Context, c domain.Citation) error {
	if err := c.Validate(); err != nil {
		return err
	}
	loc, err := json.Marshal(c.Locator)
	if err != nil {
		return err
	}
	_, err = s.DB.Exec(ctx, `
INSERT INTO citations(tenant_id,citation_id,document_id,chunk_id,corpus_version,snapshot_pointer,locator,snapshot_hash_sha256,updated_at)
VALUES($1,$2,$3,$4,$5,$6,$7::jsonb,$8,now())
ON CONFLICT (tenant_id,citation_id) DO UPDATE SET
  document_id=EXCLUDED.document_id,
  chunk_id=EXCLUDED.chunk_id,
  corpus_version=EXCLUDED.corpus_version,
  snapshot_pointer=EXCLUDED.snapshot_pointer,
  locator=EXCLUDED.locator,
  snapshot_hash_sha256=EXCLUDED.snapshot_hash_sha256,
  updated_at=now()`,
		c.TenantID, c.CitationID, c.DocumentID, c.ChunkID, c.CorpusVersion,
		c.SnapshotPointer, string(loc), c.SnapshotHashSHA256)
	return err
}

func scanCitation(row interface{ Scan(...any) error }) (domain.Citation, error) {
	var c domain.Citation
	var loc []byte
	err := row.Scan(&c.TenantID, &c.CitationID, &c.DocumentID, &c.ChunkID, &c.CorpusVersion,
		&c.SnapshotPointer, &loc, &c.SnapshotHashSHA256, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return c, err
	}
	err = json.Unmarshal(loc, &c.Locator)
	return c, err
}

const citationColumns = `tenant_id,citation_id,document_id,chunk_id,corpus_version,snapshot_pointer,locator,snapshot_hash_sha256,created_at,updated_at`

func (s *Store) GetCitation(ctx context.Context, tenantID, citationID string) (domain.Citation, error) {
	row := s.DB.QueryRow(ctx, `SELECT `+citationColumns+` FROM citations WHERE tenant_id=$1 AND citation_id=$2`,
		tenantID, citationID)
	c, err := scanCitation(row)
	return c, notFoundIfNoRows(err, "citation %s not found for tenant %s", citationID, tenantID)
}

// GetCitations loads the given ids preserving the caller's order. NotFound
// when any id is absent for the tenant; the evidence builder treats a partial
// citation set as unusable.
func (s *Store) GetCitations(ctx context.Context, tenantID string, ids []string) ([]domain.Citation, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := s.DB.Query(ctx, `SELECT `+citationColumns+` FROM citations WHERE tenant_id=$1 AND citation_id = ANY($2)`,
		tenantID, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	byID := make(map[string]domain.Citation, len(ids))
	for rows.Next() {
		c, err := scanCitation(rows)
		if err != nil {
			return nil, err
		}
		byID[c.CitationID] = c
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	out := make([]domain.Citation, 0, len(ids))
	for _, id := range ids {
		c, ok := byID[id]
		if !ok {
			return nil, corpuserr.NotFoundf("citation %s not found for tenant %s", id, tenantID)
		}
		out = append(out, c)
	}
	return out, nil
}
