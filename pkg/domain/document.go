// Package domain holds the corpus entities shared by the store, the
// retrieval engine and the evidence builder. Every entity is scoped by
// tenant_id; uniqueness and queries always include it.
package domain

import (
	"strings"
	"time"

	"github.com/tarifflane/corpuslane/pkg/corpuserr"
)

type TrustLevel string

const (
	TrustState     TrustLevel = "state"
	TrustOfficial  TrustLevel = "official"
	TrustSecondary TrustLevel = "secondary"
	TrustInternal  TrustLevel = "internal"
)

func (t TrustLevel) Valid() bool {
	switch t {
	case TrustState, TrustOfficial, TrustSecondary, TrustInternal:
		return true
	}
	return false
}

type DocStatus string

const (
	DocActive     DocStatus = "active"
	DocSuperseded DocStatus = "superseded"
	DocRevoked    DocStatus = "revoked"
)

type Tenant struct {
	TenantID  string    `json:"tenant_id"`
	Plan      string    `json:"plan"`
	Locales   []string  `json:"locales"`
	CreatedAt time.Time `json:"created_at"`
}

// Source is a whitelisted origin for documents. Governance object,
// administrator-mutated only.
type Source struct {
	SourceID     string     `json:"source_id"`
	TenantID     string     `json:"tenant_id"`
	URL          string     `json:"url"`
	TrustLevel   TrustLevel `json:"trust_level"`
	Jurisdiction string     `json:"jurisdiction"`
	Enabled      bool       `json:"enabled"`
	FetchCadence string     `json:"fetch_cadence,omitempty"`
}

func (s Source) Validate() error {
	if strings.TrimSpace(s.SourceID) == "" || strings.TrimSpace(s.URL) == "" {
		return corpuserr.Validationf("source requires source_id and url")
	}
	if !s.TrustLevel.Valid() {
		return corpuserr.Validationf("source %s: unknown trust_level %q", s.SourceID, s.TrustLevel)
	}
	return nil
}

// Document is one ingested legal instrument. CorpusVersion never changes
// after creation; superseding inserts a new row and flips the old one to
// superseded, history is never mutated.
type Document struct {
	DocumentID           string     `json:"document_id"`
	TenantID             string     `json:"tenant_id"`
	SourceID             string     `json:"source_id,omitempty"`
	Jurisdiction         string     `json:"jurisdiction"`
	InstrumentType       string     `json:"instrument_type"`
	Language             string     `json:"language"`
	EffectiveFrom        *time.Time `json:"effective_from,omitempty"`
	EffectiveTo          *time.Time `json:"effective_to,omitempty"`
	ContentHashSHA256    string     `json:"content_hash_sha256"`
	SnapshotPointer      string     `json:"snapshot_pointer"`
	Status               DocStatus  `json:"status"`
	SupersedesDocumentID *string    `json:"supersedes_document_id,omitempty"`
	CorpusVersion        string     `json:"corpus_version"`
	UpdatedAt            time.Time  `json:"updated_at"`
}

func (d Document) Validate() error {
	if strings.TrimSpace(d.DocumentID) == "" {
		return corpuserr.Validationf("document requires document_id")
	}
	if strings.TrimSpace(d.CorpusVersion) == "" {
		return corpuserr.Validationf("document %s: corpus_version is required", d.DocumentID)
	}
	if strings.TrimSpace(d.ContentHashSHA256) == "" {
		return corpuserr.Validationf("document %s: content_hash_sha256 is required", d.DocumentID)
	}
	switch d.Status {
	case DocActive, DocSuperseded, DocRevoked:
	default:
		return corpuserr.Validationf("document %s: unknown status %q", d.DocumentID, d.Status)
	}
	return nil
}
