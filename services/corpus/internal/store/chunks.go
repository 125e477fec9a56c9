package store

import (
	"context"
	"time"

	"github.com/tarifflane/corpuslane/pkg/corpuserr"
	"github.com/tarifflane/corpuslane/pkg/domain"
)

// subBatchSize keeps one transaction from spanning an arbitrarily large
// ingestion batch; a failed run releases its locks at the sub-batch boundary.
const subBatchSize = 500

// WriteChunksBatch upserts chunks in sub-batches, one transaction each.
// Upsert key is (tenant_id, chunk_id) with a full-field replace, so replays
// converge. Returns the number of rows written.
func (s *Store) WriteChunksBatch(ctx context.Context, tenantID string, chunks []domain.Chunk) (int, error) {
	for _, c := range chunks {
		if err := c.Validate(); err != nil {
			return 0, err
		}
	}
	written := 0
	for start := 0; start < len(chunks); start += subBatchSize {
		end := start + subBatchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		if err := s.writeChunkSubBatch(ctx, tenantID, chunks[start:end]); err != nil {
			return written, err
		}
		written += end - start
	}
	return written, nil
}

func (s *Store) writeChunkSubBatch(ctx context.Context, tenantID string, chunks []domain.Chunk) error {
	tx, err := s.DB.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for _, c := range chunks {
		_, err := tx.Exec(ctx, `
INSERT INTO chunks(tenant_id,chunk_id,document_id,parent_chunk_id,ordinal,article_no,paragraph_no,point_no,table_id,
  body,text_hash_sha256,trust_level,doc_status,effective_from,effective_to,citation_id,corpus_version,index_pending,indexed_at,updated_at)
VALUES($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,now())
ON CONFLICT (tenant_id,chunk_id) DO UPDATE SET
  document_id=EXCLUDED.document_id,
  parent_chunk_id=EXCLUDED.parent_chunk_id,
  ordinal=EXCLUDED.ordinal,
  article_no=EXCLUDED.article_no,
  paragraph_no=EXCLUDED.paragraph_no,
  point_no=EXCLUDED.point_no,
  table_id=EXCLUDED.table_id,
  body=EXCLUDED.body,
  text_hash_sha256=EXCLUDED.text_hash_sha256,
  trust_level=EXCLUDED.trust_level,
  doc_status=EXCLUDED.doc_status,
  effective_from=EXCLUDED.effective_from,
  effective_to=EXCLUDED.effective_to,
  citation_id=EXCLUDED.citation_id,
  index_pending=EXCLUDED.index_pending,
  indexed_at=EXCLUDED.indexed_at,
  updated_at=now()`,
			tenantID, c.ChunkID, c.DocumentID, c.ParentChunkID, c.Ordinal,
			c.ArticleNo, c.ParagraphNo, c.PointNo, c.TableID,
			c.Text, c.TextHashSHA256, c.TrustLevel, c.DocStatus,
			c.EffectiveFrom, c.EffectiveTo, c.CitationID, c.CorpusVersion,
			c.IndexPending, c.IndexedAt)
		if err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

const chunkColumns = `tenant_id,chunk_id,document_id,parent_chunk_id,ordinal,article_no,paragraph_no,point_no,table_id,
  body,text_hash_sha256,trust_level,doc_status,effective_from,effective_to,citation_id,corpus_version,index_pending,indexed_at,updated_at`

func scanChunk(row interface{ Scan(...any) error }) (domain.Chunk, error) {
	var c domain.Chunk
	err := row.Scan(&c.TenantID, &c.ChunkID, &c.DocumentID, &c.ParentChunkID, &c.Ordinal,
		&c.ArticleNo, &c.ParagraphNo, &c.PointNo, &c.TableID,
		&c.Text, &c.TextHashSHA256, &c.TrustLevel, &c.DocStatus,
		&c.EffectiveFrom, &c.EffectiveTo, &c.CitationID, &c.CorpusVersion,
		&c.IndexPending, &c.IndexedAt, &c.UpdatedAt)
	return c, err
}

func (s *Store) GetChunk(ctx context.Context, tenantID, chunkID string) (domain.Chunk, error) {
	row := s.DB.QueryRow(ctx, `SELECT `+chunkColumns+` FROM chunks WHERE tenant_id=$1 AND chunk_id=$2`,
		tenantID, chunkID)
	c, err := scanChunk(row)
	return c, notFoundIfNoRows(err, "chunk %s not found for tenant %s", chunkID, tenantID)
}

// MarkChunkIndexed flags that the downstream full-text index has caught up
// with this chunk. Idempotent; NotFound when the chunk does not exist for the
// tenant.
func (s *Store) MarkChunkIndexed(ctx context.Context, tenantID, chunkID string, at time.Time) error {
	tag, err := s.DB.Exec(ctx, `UPDATE chunks SET index_pending=false, indexed_at=$3, updated_at=now()
WHERE tenant_id=$1 AND chunk_id=$2`, tenantID, chunkID, at.UTC())
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return corpuserr.NotFoundf("chunk %s not found for tenant %s", chunkID, tenantID)
	}
	return nil
}

// ListPendingIndex returns chunk ids still awaiting downstream indexing.
func (s *Store) ListPendingIndex(ctx context.Context, tenantID string, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.DB.Query(ctx, `SELECT chunk_id FROM chunks WHERE tenant_id=$1 AND index_pending ORDER BY updated_at LIMIT $2`,
		tenantID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}
