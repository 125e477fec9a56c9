package store

import (
	"context"

	"github.com/tarifflane/corpuslane/pkg/domain"
)

// UpsertSource writes one whitelisted origin. Administrator-only surface.
func (s *Store) UpsertSource(ctx context.Context, src domain.Source) error {
	if err := src.Validate(); err != nil {
		return err
	}
	_, err := s.DB.Exec(ctx, `
INSERT INTO sources(tenant_id,source_id,url,trust_level,jurisdiction,enabled,fetch_cadence)
VALUES($1,$2,$3,$4,$5,$6,$7)
ON CONFLICT (tenant_id,source_id) DO UPDATE SET
  url=EXCLUDED.url,
  trust_level=EXCLUDED.trust_level,
  jurisdiction=EXCLUDED.jurisdiction,
  enabled=EXCLUDED.enabled,
  fetch_cadence=EXCLUDED.fetch_cadence`,
		src.TenantID, src.SourceID, src.URL, src.TrustLevel, src.Jurisdiction, src.Enabled, src.FetchCadence)
	return err
}

func (s *Store) ListSources(ctx context.Context, tenantID string) ([]domain.Source, error) {
	rows, err := s.DB.Query(ctx, `SELECT tenant_id,source_id,url,trust_level,jurisdiction,enabled,fetch_cadence
FROM sources WHERE tenant_id=$1 ORDER BY source_id`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.Source
	for rows.Next() {
		var src domain.Source
		if err := rows.Scan(&src.TenantID, &src.SourceID, &src.URL, &src.TrustLevel, &src.Jurisdiction, &src.Enabled, &src.FetchCadence); err != nil {
			return nil, err
		}
		out = append(out, src)
	}
	return out, rows.Err()
}
