package domain

import "time"

type RunStatus string

const (
	RunRunning RunStatus = "running"
	RunSuccess RunStatus = "success"
	RunFailed  RunStatus = "failed"
)

type RunStats struct {
	DocumentsNew     int `json:"documents_new"`
	DocumentsUpdated int `json:"documents_updated"`
	ChunksWritten    int `json:"chunks_written"`
	CitationsWritten int `json:"citations_written"`
}

// IngestionRun is the audit record of one ingestion attempt. It opens in
// running and transitions exactly once to success or failed; a run left in
// running after a crash is inconclusive, not successful.
type IngestionRun struct {
	RunID         string     `json:"run_id"`
	TenantID      string     `json:"tenant_id"`
	SourceID      string     `json:"source_id"`
	CorpusVersion string     `json:"corpus_version"`
	Status        RunStatus  `json:"status"`
	StartedAt     time.Time  `json:"started_at"`
	FinishedAt    *time.Time `json:"finished_at,omitempty"`
	Stats         RunStats   `json:"stats"`
	Error         *string    `json:"error,omitempty"`
}

// IngestionReport holds current totals for one (tenant, corpus_version).
// Upserted from authoritative counts, never incremented.
type IngestionReport struct {
	TenantID      string    `json:"tenant_id"`
	CorpusVersion string    `json:"corpus_version"`
	Documents     int       `json:"documents"`
	Chunks        int       `json:"chunks"`
	Citations     int       `json:"citations"`
	SourceZip     string    `json:"source_zip,omitempty"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// DefaultCorpusVersion applies when a tenant has no settings row. Absence is
// a valid state, not an error.
const DefaultCorpusVersion = "0.1.0"

type TenantSettings struct {
	TenantID            string `json:"tenant_id"`
	ActiveCorpusVersion string `json:"active_corpus_version"`
	AllowFallbackToOlder bool  `json:"allow_fallback_to_older"`
}

func DefaultTenantSettings(tenantID string) TenantSettings {
	return TenantSettings{
		TenantID:            tenantID,
		ActiveCorpusVersion: DefaultCorpusVersion,
		AllowFallbackToOlder: false,
	}
}
