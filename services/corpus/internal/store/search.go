package store

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/tarifflane/corpuslane/pkg/corpuserr"
	"github.com/tarifflane/corpuslane/pkg/domain"
)

// buildSearchSQL assembles the ranked retrieval query. Relevance is Postgres
// ts_rank over the chunk body; ties break by document effective_from
// descending (newer legal text first) then ordinal ascending for stability.
func buildSearchSQL(tenantID, corpusVersion, query string, f domain.SearchFilters, limit int) (string, []any) {
	args := []any{tenantID, corpusVersion, query}
	var cond strings.Builder

	add := func(column, value string) {
		if value == "" {
			return
		}
		args = append(args, value)
		fmt.Fprintf(&cond, " AND %s=$%d", column, len(args))
	}
	add("d.jurisdiction", f.Jurisdiction)
	add("d.instrument_type", f.InstrumentType)
	add("d.language", f.Language)
	add("c.trust_level", f.TrustLevel)
	add("c.document_id", f.DocumentID)

	args = append(args, limit)
	sql := fmt.Sprintf(`
SELECT c.tenant_id,c.chunk_id,c.document_id,c.parent_chunk_id,c.ordinal,c.article_no,c.paragraph_no,c.point_no,c.table_id,
  c.body,c.text_hash_sha256,c.trust_level,c.doc_status,c.effective_from,c.effective_to,c.citation_id,c.corpus_version,
  c.index_pending,c.indexed_at,c.updated_at,
  ct.tenant_id,ct.citation_id,ct.document_id,ct.chunk_id,ct.corpus_version,ct.snapshot_pointer,ct.locator,ct.snapshot_hash_sha256,ct.created_at,ct.updated_at,
  d.tenant_id,d.document_id,d.source_id,d.jurisdiction,d.instrument_type,d.language,d.effective_from,d.effective_to,
  d.content_hash_sha256,d.snapshot_pointer,d.status,d.supersedes_document_id,d.corpus_version,d.updated_at,
  ts_rank(c.body_tsv, q) AS rank
FROM chunks c
JOIN citations ct ON ct.tenant_id=c.tenant_id AND ct.citation_id=c.citation_id
JOIN documents d ON d.tenant_id=c.tenant_id AND d.document_id=c.document_id,
  plainto_tsquery('english', $3) q
WHERE c.tenant_id=$1 AND c.corpus_version=$2 AND c.body_tsv @@ q%s
ORDER BY rank DESC, d.effective_from DESC NULLS LAST, c.ordinal ASC
LIMIT $%d`, cond.String(), len(args))
	return sql, args
}

// SearchChunks runs ranked full-text retrieval scoped to one tenant and
// exactly one corpus version, hydrating citation and document per hit.
func (s *Store) SearchChunks(ctx context.Context, tenantID, corpusVersion, query string, f domain.SearchFilters, limit int) ([]domain.SearchHit, error) {
	if limit <= 0 {
		limit = 10
	}
	sql, args := buildSearchSQL(tenantID, corpusVersion, query, f, limit)
	rows, err := s.DB.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.SearchHit
	for rows.Next() {
		var h domain.SearchHit
		var loc []byte
		c := &h.Chunk
		ct := &h.Citation
		d := &h.Document
		err := rows.Scan(
			&c.TenantID, &c.ChunkID, &c.DocumentID, &c.ParentChunkID, &c.Ordinal,
			&c.ArticleNo, &c.ParagraphNo, &c.PointNo, &c.TableID,
			&c.Text, &c.TextHashSHA256, &c.TrustLevel, &c.DocStatus,
			&c.EffectiveFrom, &c.EffectiveTo, &c.CitationID, &c.CorpusVersion,
			&c.IndexPending, &c.IndexedAt, &c.UpdatedAt,
			&ct.TenantID, &ct.CitationID, &ct.DocumentID, &ct.ChunkID, &ct.CorpusVersion,
			&ct.SnapshotPointer, &loc, &ct.SnapshotHashSHA256, &ct.CreatedAt, &ct.UpdatedAt,
			&d.TenantID, &d.DocumentID, &d.SourceID, &d.Jurisdiction, &d.InstrumentType, &d.Language,
			&d.EffectiveFrom, &d.EffectiveTo, &d.ContentHashSHA256, &d.SnapshotPointer, &d.Status,
			&d.SupersedesDocumentID, &d.CorpusVersion, &d.UpdatedAt,
			&h.Rank)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(loc, &ct.Locator); err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

// dottedNumeric is the comparable corpus version shape. Versions outside it
// (pre-release tags and the like) are skipped during fallback rather than
// blowing up the int[] cast.
var dottedNumeric = regexp.MustCompile(`^[0-9]+(\.[0-9]+)*$`)

// LatestOlderCorpusVersion finds the newest corpus version strictly older
// than before that actually has chunks for the tenant. Corpus versions are
// dotted numerics ("0.1.0", "1.2.0"), compared component-wise.
func (s *Store) LatestOlderCorpusVersion(ctx context.Context, tenantID, before string) (string, error) {
	if !dottedNumeric.MatchString(before) {
		return "", corpuserr.NotFoundf("corpus version %s is not comparable for fallback", before)
	}
	var version string
	err := s.DB.QueryRow(ctx, `
SELECT corpus_version FROM chunks
WHERE tenant_id=$1 AND corpus_version ~ '^[0-9]+(\.[0-9]+)*$'
GROUP BY corpus_version
HAVING string_to_array(corpus_version,'.')::int[] < string_to_array($2,'.')::int[]
ORDER BY string_to_array(corpus_version,'.')::int[] DESC
LIMIT 1`, tenantID, before).Scan(&version)
	return version, notFoundIfNoRows(err, "no older corpus version with data for tenant %s", tenantID)
}
