// Package store is the pgx-backed corpus store. Every table is keyed by
// tenant_id plus the entity's natural id; upserts are full-field replaces so
// replaying an ingestion batch converges instead of duplicating.
package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tarifflane/corpuslane/pkg/corpuserr"
)

type Store struct{ DB *pgxpool.Pool }

func New(db *pgxpool.Pool) *Store { return &Store{DB: db} }

// notFoundIfNoRows converts pgx.ErrNoRows into the taxonomy's NotFound so
// handlers map it to 404 instead of 500.
func notFoundIfNoRows(err error, format string, args ...any) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return corpuserr.NotFoundf(format, args...)
	}
	return err
}

// conflictIfDuplicate converts a unique-constraint violation into the
// taxonomy's Conflict so writers racing on the same natural key can recover
// instead of surfacing a raw pg error.
func conflictIfDuplicate(err error, format string, args ...any) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return corpuserr.Conflictf(format, args...)
	}
	return err
}

const schema = `
CREATE TABLE IF NOT EXISTS tenants (
  tenant_id TEXT PRIMARY KEY,
  plan TEXT NOT NULL DEFAULT 'standard',
  locales TEXT[] NOT NULL DEFAULT '{}',
  created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS sources (
  tenant_id TEXT NOT NULL,
  source_id TEXT NOT NULL,
  url TEXT NOT NULL,
  trust_level TEXT NOT NULL,
  jurisdiction TEXT NOT NULL DEFAULT '',
  enabled BOOLEAN NOT NULL DEFAULT true,
  fetch_cadence TEXT NOT NULL DEFAULT '',
  PRIMARY KEY (tenant_id, source_id)
);

CREATE TABLE IF NOT EXISTS documents (
  tenant_id TEXT NOT NULL,
  document_id TEXT NOT NULL,
  source_id TEXT NOT NULL DEFAULT '',
  jurisdiction TEXT NOT NULL DEFAULT '',
  instrument_type TEXT NOT NULL DEFAULT '',
  language TEXT NOT NULL DEFAULT '',
  effective_from TIMESTAMPTZ,
  effective_to TIMESTAMPTZ,
  content_hash_sha256 TEXT NOT NULL,
  snapshot_pointer TEXT NOT NULL DEFAULT '',
  status TEXT NOT NULL DEFAULT 'active',
  supersedes_document_id TEXT,
  corpus_version TEXT NOT NULL,
  updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
  PRIMARY KEY (tenant_id, document_id)
);
CREATE INDEX IF NOT EXISTS documents_by_version ON documents(tenant_id, corpus_version);
CREATE INDEX IF NOT EXISTS documents_by_jurisdiction ON documents(tenant_id, jurisdiction, effective_from DESC);

CREATE TABLE IF NOT EXISTS chunks (
  tenant_id TEXT NOT NULL,
  chunk_id TEXT NOT NULL,
  document_id TEXT NOT NULL,
  parent_chunk_id TEXT,
  ordinal INTEGER NOT NULL,
  article_no TEXT,
  paragraph_no TEXT,
  point_no TEXT,
  table_id TEXT,
  body TEXT NOT NULL,
  text_hash_sha256 TEXT NOT NULL,
  trust_level TEXT NOT NULL DEFAULT 'secondary',
  doc_status TEXT NOT NULL DEFAULT 'active',
  effective_from TIMESTAMPTZ,
  effective_to TIMESTAMPTZ,
  citation_id TEXT NOT NULL,
  corpus_version TEXT NOT NULL,
  index_pending BOOLEAN NOT NULL DEFAULT true,
  indexed_at TIMESTAMPTZ,
  updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
  body_tsv tsvector GENERATED ALWAYS AS (to_tsvector('english', body)) STORED,
  PRIMARY KEY (tenant_id, chunk_id),
  UNIQUE (tenant_id, document_id, ordinal)
);
CREATE INDEX IF NOT EXISTS chunks_fts ON chunks USING GIN(body_tsv);
CREATE INDEX IF NOT EXISTS chunks_by_version ON chunks(tenant_id, corpus_version);
CREATE INDEX IF NOT EXISTS chunks_pending ON chunks(tenant_id, index_pending) WHERE index_pending;

CREATE TABLE IF NOT EXISTS citations (
  tenant_id TEXT NOT NULL,
  citation_id TEXT NOT NULL,
  document_id TEXT NOT NULL,
  chunk_id TEXT NOT NULL,
  corpus_version TEXT NOT NULL,
  snapshot_pointer TEXT NOT NULL DEFAULT '',
  locator JSONB NOT NULL,
  snapshot_hash_sha256 TEXT NOT NULL,
  created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
  updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
  PRIMARY KEY (tenant_id, citation_id)
);
CREATE INDEX IF NOT EXISTS citations_by_version ON citations(tenant_id, corpus_version);

CREATE TABLE IF NOT EXISTS ingestion_runs (
  tenant_id TEXT NOT NULL,
  run_id TEXT NOT NULL,
  source_id TEXT NOT NULL DEFAULT '',
  corpus_version TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'running',
  started_at TIMESTAMPTZ NOT NULL DEFAULT now(),
  finished_at TIMESTAMPTZ,
  stats JSONB NOT NULL DEFAULT '{}'::jsonb,
  error TEXT,
  PRIMARY KEY (tenant_id, run_id)
);
CREATE INDEX IF NOT EXISTS runs_by_version ON ingestion_runs(tenant_id, corpus_version, started_at DESC);

CREATE TABLE IF NOT EXISTS ingestion_reports (
  tenant_id TEXT NOT NULL,
  corpus_version TEXT NOT NULL,
  documents INTEGER NOT NULL DEFAULT 0,
  chunks INTEGER NOT NULL DEFAULT 0,
  citations INTEGER NOT NULL DEFAULT 0,
  source_zip TEXT NOT NULL DEFAULT '',
  updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
  PRIMARY KEY (tenant_id, corpus_version)
);

CREATE TABLE IF NOT EXISTS tenant_settings (
  tenant_id TEXT PRIMARY KEY,
  active_corpus_version TEXT NOT NULL,
  allow_fallback_to_older BOOLEAN NOT NULL DEFAULT false,
  updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS evidence_bundles (
  tenant_id TEXT NOT NULL,
  bundle_id TEXT NOT NULL,
  request_id TEXT NOT NULL,
  corpus_version TEXT NOT NULL,
  input_hash_sha256 TEXT NOT NULL,
  snapshot_pointer TEXT NOT NULL DEFAULT '',
  citation_ids TEXT[] NOT NULL,
  jws_protected TEXT NOT NULL,
  jws_payload TEXT NOT NULL,
  jws_signature TEXT NOT NULL,
  hsm_stub_enabled BOOLEAN NOT NULL DEFAULT false,
  created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
  PRIMARY KEY (tenant_id, bundle_id),
  UNIQUE (tenant_id, request_id)
);

CREATE TABLE IF NOT EXISTS decisions (
  tenant_id TEXT NOT NULL,
  request_id TEXT NOT NULL,
  status TEXT NOT NULL,
  hs_candidate TEXT NOT NULL DEFAULT '',
  confidence DOUBLE PRECISION NOT NULL DEFAULT 0,
  gir_path TEXT[] NOT NULL DEFAULT '{}',
  citation_ids TEXT[] NOT NULL DEFAULT '{}',
  evidence_bundle_id TEXT NOT NULL DEFAULT '',
  reason TEXT NOT NULL DEFAULT '',
  decision_hash_sha256 TEXT NOT NULL,
  created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
  PRIMARY KEY (tenant_id, request_id)
);

CREATE TABLE IF NOT EXISTS audit_log (
  id BIGSERIAL PRIMARY KEY,
  tenant_id TEXT NOT NULL,
  actor TEXT NOT NULL DEFAULT '',
  action TEXT NOT NULL,
  details JSONB NOT NULL DEFAULT '{}'::jsonb,
  at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS audit_by_tenant ON audit_log(tenant_id, at DESC);
`

// EnsureSchema creates all corpus tables and indexes.
func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := s.DB.Exec(ctx, schema)
	return err
}

// Ping probes the pool; diagnostics reports Unavailable on failure.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.DB.Ping(ctx); err != nil {
		return corpuserr.Wrap(corpuserr.Unavailable, "corpus store unreachable", err)
	}
	return nil
}
