package store

import (
	"context"
	"encoding/json"

	"github.com/tarifflane/corpuslane/pkg/corpuserr"
	"github.com/tarifflane/corpuslane/pkg/domain"
)

// StartIngestionRun opens a run in running state before any corpus rows are
// written. A crash leaves the run running, which callers must treat as
// inconclusive.
func (s *Store) StartIngestionRun(ctx context.Context, r domain.IngestionRun) error {
	if r.RunID == "" || r.CorpusVersion == "" {
		return corpuserr.Validationf("ingestion run requires run_id and corpus_version")
	}
	_, err := s.DB.Exec(ctx, `INSERT INTO ingestion_runs(tenant_id,run_id,source_id,corpus_version,status) VALUES($1,$2,$3,$4,'running')`,
		r.TenantID, r.RunID, r.SourceID, r.CorpusVersion)
	return err
}

// FinishIngestionRun closes a running run to success with its final stats.
// NotFound when the run was never started; Conflict when already closed.
func (s *Store) FinishIngestionRun(ctx context.Context, tenantID, runID string, stats domain.RunStats) error {
	return s.closeRun(ctx, tenantID, runID, domain.RunSuccess, &stats, nil)
}

// FailIngestionRun closes a running run to failed preserving the error text
// for audit.
func (s *Store) FailIngestionRun(ctx context.Context, tenantID, runID, errText string) error {
	return s.closeRun(ctx, tenantID, runID, domain.RunFailed, nil, &errText)
}

func (s *Store) closeRun(ctx context.Context, tenantID, runID string, to domain.RunStatus, stats *domain.RunStats, errText *string) error {
	statsJSON := "{}"
	if stats != nil {
		b, err := json.Marshal(stats)
		if err != nil {
			return err
		}
		statsJSON = string(b)
	}
	tag, err := s.DB.Exec(ctx, `UPDATE ingestion_runs
SET status=$3, finished_at=now(), stats=CASE WHEN $4::jsonb='{}'::jsonb THEN stats ELSE $4::jsonb END, error=COALESCE($5,error)
WHERE tenant_id=$1 AND run_id=$2 AND status='running'`,
		tenantID, runID, to, statsJSON, errText)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		// Distinguish "never started" from "already closed".
		var status string
		err := s.DB.QueryRow(ctx, `SELECT status FROM ingestion_runs WHERE tenant_id=$1 AND run_id=$2`,
			tenantID, runID).Scan(&status)
		if err != nil {
			return notFoundIfNoRows(err, "ingestion run %s not found for tenant %s", runID, tenantID)
		}
		return corpuserr.Conflictf("ingestion run %s already closed with status %s", runID, status)
	}
	return nil
}

func (s *Store) GetIngestionRun(ctx context.Context, tenantID, runID string) (domain.IngestionRun, error) {
	var r domain.IngestionRun
	var stats []byte
	err := s.DB.QueryRow(ctx, `SELECT tenant_id,run_id,source_id,corpus_version,status,started_at,finished_at,stats,error
FROM ingestion_runs WHERE tenant_id=$1 AND run_id=$2`, tenantID, runID).
		Scan(&r.TenantID, &r.RunID, &r.SourceID, &r.CorpusVersion, &r.Status, &r.StartedAt, &r.FinishedAt, &stats, &r.Error)
	if err != nil {
		return r, notFoundIfNoRows(err, "ingestion run %s not found for tenant %s", runID, tenantID)
	}
	err = json.Unmarshal(stats, &r.Stats)
	return r, err
}

// LatestRunStatus returns the status of the newest run for a corpus version.
// Promotion gating: a version is only promotable when this is success.
func (s *Store) LatestRunStatus(ctx context.Context, tenantID, corpusVersion string) (domain.RunStatus, error) {
	var status domain.RunStatus
	err := s.DB.QueryRow(ctx, `SELECT status FROM ingestion_runs WHERE tenant_id=$1 AND corpus_version=$2
ORDER BY started_at DESC LIMIT 1`, tenantID, corpusVersion).Scan(&status)
	return status, notFoundIfNoRows(err, "no ingestion runs for tenant %s version %s", tenantID, corpusVersion)
}

// RecomputeIngestionReport rewrites the report for (tenant, corpus_version)
// from authoritative counts. Upserted, never incremented.
func (s *Store) RecomputeIngestionReport(ctx context.Context, tenantID, corpusVersion, sourceZip string) (domain.IngestionReport, error) {
	docs, chunks, citations, err := s.VersionCounts(ctx, tenantID, corpusVersion)
	if err != nil {
		return domain.IngestionReport{}, err
	}
	rep := domain.IngestionReport{
		TenantID:      tenantID,
		CorpusVersion: corpusVersion,
		Documents:     docs,
		Chunks:        chunks,
		Citations:     citations,
		SourceZip:     sourceZip,
	}
	err = s.DB.QueryRow(ctx, `
INSERT INTO ingestion_reports(tenant_id,corpus_version,documents,chunks,citations,source_zip,updated_at)
VALUES($1,$2,$3,$4,$5,$6,now())
ON CONFLICT (tenant_id,corpus_version) DO UPDATE SET
  documents=EXCLUDED.documents,
  chunks=EXCLUDED.chunks,
  citations=EXCLUDED.citations,
  source_zip=CASE WHEN EXCLUDED.source_zip='' THEN ingestion_reports.source_zip ELSE EXCLUDED.source_zip END,
  updated_at=now()
RETURNING updated_at`,
		tenantID, corpusVersion, docs, chunks, citations, sourceZip).Scan(&rep.UpdatedAt)
	return rep, err
}

func (s *Store) ListIngestionReports(ctx context.Context, tenantID string, limit int) ([]domain.IngestionReport, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.DB.Query(ctx, `SELECT tenant_id,corpus_version,documents,chunks,citations,source_zip,updated_at
FROM ingestion_reports WHERE tenant_id=$1 ORDER BY updated_at DESC LIMIT $2`, tenantID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.IngestionReport
	for rows.Next() {
		var r domain.IngestionReport
		if err := rows.Scan(&r.TenantID, &r.CorpusVersion, &r.Documents, &r.Chunks, &r.Citations, &r.SourceZip, &r.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
