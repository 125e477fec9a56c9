package domain

import (
	"strings"
	"time"

	"github.com/tarifflane/corpuslane/pkg/corpuserr"
)

// Chunk is the smallest citable unit inside a document. parent_chunk_id forms
// a tree for section nesting; (document_id, ordinal) is unique per tenant.
// TrustLevel, DocStatus and the effective dates are denormalized from the
// parent Document/Source at ingest time and refreshed whenever the document's
// status changes.
type Chunk struct {
	ChunkID       string     `json:"chunk_id"`
	TenantID      string     `json:"tenant_id"`
	DocumentID    string     `json:"document_id"`
	ParentChunkID *string    `json:"parent_chunk_id,omitempty"`
	Ordinal       int        `json:"ordinal"`
	ArticleNo     *string    `json:"article_no,omitempty"`
	ParagraphNo   *string    `json:"paragraph_no,omitempty"`
	PointNo       *string    `json:"point_no,omitempty"`
	TableID       *string    `json:"table_id,omitempty"`
	Text          string     `json:"text"`
	TextHashSHA256 string    `json:"text_hash_sha256"`
	TrustLevel    TrustLevel `json:"trust_level"`
	DocStatus     DocStatus  `json:"doc_status"`
	EffectiveFrom *time.Time `json:"effective_from,omitempty"`
	EffectiveTo   *time.Time `json:"effective_to,omitempty"`
	CitationID    string     `json:"citation_id"`
	CorpusVersion string     `json:"corpus_version"`
	IndexPending  bool       `json:"index_pending"`
	IndexedAt     *time.Time `json:"indexed_at,omitempty"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

func (c Chunk) Validate() error {
	if strings.TrimSpace(c.ChunkID) == "" || strings.TrimSpace(c.DocumentID) == "" {
		return corpuserr.Validationf("chunk requires chunk_id and document_id")
	}
	if c.Ordinal < 0 {
		return corpuserr.Validationf("chunk %s: ordinal must be >= 0", c.ChunkID)
	}
	if strings.TrimSpace(c.Text) == "" {
		return corpuserr.Validationf("chunk %s: text is required", c.ChunkID)
	}
	if strings.TrimSpace(c.CitationID) == "" {
		return corpuserr.Validationf("chunk %s: citation_id is required", c.ChunkID)
	}
	if strings.TrimSpace(c.CorpusVersion) == "" {
		return corpuserr.Validationf("chunk %s: corpus_version is required", c.ChunkID)
	}
	if c.ParentChunkID != nil && *c.ParentChunkID == c.ChunkID {
		return corpuserr.Validationf("chunk %s: parent_chunk_id points at itself", c.ChunkID)
	}
	return nil
}

// Locator pins a citation to the exact place inside the stored snapshot.
// At least one sub-field must be present.
type Locator struct {
	PageFrom *int    `json:"page_from,omitempty"`
	PageTo   *int    `json:"page_to,omitempty"`
	CharFrom *int    `json:"char_from,omitempty"`
	CharTo   *int    `json:"char_to,omitempty"`
	Selector *string `json:"selector,omitempty"`
}

func (l Locator) Empty() bool {
	return l.PageFrom == nil && l.PageTo == nil && l.CharFrom == nil && l.CharTo == nil &&
		(l.Selector == nil || strings.TrimSpace(*l.Selector) == "")
}

// Citation is the provable pointer for a chunk, 1:1 with it. Immutable once
// created; a correction is a new citation_id, never an in-place edit.
type Citation struct {
	CitationID         string    `json:"citation_id"`
	TenantID           string    `json:"tenant_id"`
	DocumentID         string    `json:"document_id"`
	ChunkID            string    `json:"chunk_id"`
	CorpusVersion      string    `json:"corpus_version"`
	SnapshotPointer    string    `json:"snapshot_pointer"`
	Locator            Locator   `json:"locator"`
	SnapshotHashSHA256 string    `json:"snapshot_hash_sha256"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

func (c Citation) Validate() error {
	if strings.TrimSpace(c.CitationID) == "" || strings.TrimSpace(c.ChunkID) == "" || strings.TrimSpace(c.DocumentID) == "" {
		return corpuserr.Validationf("citation requires citation_id, chunk_id and document_id")
	}
	if strings.TrimSpace(c.CorpusVersion) == "" {
		return corpuserr.Validationf("citation %s: corpus_version is required", c.CitationID)
	}
	if c.Locator.Empty() {
		return corpuserr.Conflictf("citation %s: locator has no sub-field set", c.CitationID)
	}
	if strings.TrimSpace(c.SnapshotHashSHA256) == "" {
		return corpuserr.Validationf("citation %s: snapshot_hash_sha256 is required", c.CitationID)
	}
	return nil
}
