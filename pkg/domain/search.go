package domain

// SearchFilters narrow a retrieval conjunctively with the tenant and corpus
// version scope. Zero values mean "no filter".
type SearchFilters struct {
	Jurisdiction   string `json:"jurisdiction,omitempty"`
	InstrumentType string `json:"instrument_type,omitempty"`
	Language       string `json:"language,omitempty"`
	TrustLevel     string `json:"trust_level,omitempty"`
	DocumentID     string `json:"document_id,omitempty"`
}

// SearchHit is one ranked chunk hydrated with its owning citation and parent
// document.
type SearchHit struct {
	Chunk    Chunk    `json:"chunk"`
	Citation Citation `json:"citation"`
	Document Document `json:"document"`
	Rank     float64  `json:"rank"`
}
