package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/tarifflane/corpuslane/pkg/corpuserr"
	"github.com/tarifflane/corpuslane/pkg/domain"
)

// GetTenantSettings returns the stored row or the documented defaults when
// no row exists. Absence is a valid state, not an error.
func (s *Store) GetTenantSettings(ctx context.Context, tenantID string) (domain.TenantSettings, error) {
	var out domain.TenantSettings
	err := s.DB.QueryRow(ctx, `SELECT tenant_id,active_corpus_version,allow_fallback_to_older
FROM tenant_settings WHERE tenant_id=$1`, tenantID).
		Scan(&out.TenantID, &out.ActiveCorpusVersion, &out.AllowFallbackToOlder)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.DefaultTenantSettings(tenantID), nil
	}
	return out, err
}

// SetActiveCorpusVersion promotes a corpus version for default (unpinned)
// retrievals. Promotion is refused unless the newest ingestion run for that
// version succeeded; data committed and data promoted are deliberately
// separate steps.
func (s *Store) SetActiveCorpusVersion(ctx context.Context, tenantID, version string, allowFallback bool) (domain.TenantSettings, error) {
	if version == "" {
		return domain.TenantSettings{}, corpuserr.Validationf("active_corpus_version is required")
	}
	status, err := s.LatestRunStatus(ctx, tenantID, version)
	if err != nil {
		return domain.TenantSettings{}, err
	}
	if status != domain.RunSuccess {
		return domain.TenantSettings{}, corpuserr.Conflictf("corpus version %s not promotable: latest ingestion run is %s", version, status)
	}
	_, err = s.DB.Exec(ctx, `
INSERT INTO tenant_settings(tenant_id,active_corpus_version,allow_fallback_to_older,updated_at)
VALUES($1,$2,$3,now())
ON CONFLICT (tenant_id) DO UPDATE SET
  active_corpus_version=EXCLUDED.active_corpus_version,
  allow_fallback_to_older=EXCLUDED.allow_fallback_to_older,
  updated_at=now()`, tenantID, version, allowFallback)
	if err != nil {
		return domain.TenantSettings{}, err
	}
	return domain.TenantSettings{TenantID: tenantID, ActiveCorpusVersion: version, AllowFallbackToOlder: allowFallback}, nil
}
