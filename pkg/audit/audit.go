// Package audit provides the injectable audit sink used by every mutation
// path. Retention is bounded by the storage layer, not by an in-process
// buffer, so a long-lived service never accumulates unbounded entries.
package audit

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

type Entry struct {
	TenantID string         `json:"tenant_id"`
	Actor    string         `json:"actor"`
	Action   string         `json:"action"`
	Details  map[string]any `json:"details,omitempty"`
	At       time.Time      `json:"at"`
}

type Sink interface {
	Record(ctx context.Context, e Entry) error
}

type NopSink struct{}

func (NopSink) Record(context.Context, Entry) error { return nil }

// PGSink appends to the audit_log table and trims rows beyond Retention per
// tenant on each write.
type PGSink struct {
	DB        *pgxpool.Pool
	Retention int
}

func (s *PGSink) Record(ctx context.Context, e Entry) error {
	if e.At.IsZero() {
		e.At = time.Now().UTC()
	}
	details, err := json.Marshal(e.Details)
	if err != nil {
		return err
	}
	_, err = s.DB.Exec(ctx, `INSERT INTO audit_log(tenant_id,actor,action,details,at) VALUES($1,$2,$3,$4::jsonb,$5)`,
		e.TenantID, e.Actor, e.Action, string(details), e.At)
	if err != nil {
		return err
	}
	if s.Retention > 0 {
		_, err = s.DB.Exec(ctx, `DELETE FROM audit_log WHERE tenant_id=$1 AND id NOT IN (
SELECT id FROM audit_log WHERE tenant_id=$1 ORDER BY at DESC, id DESC LIMIT $2)`,
			e.TenantID, s.Retention)
	}
	return err
}

// LoggedSink wraps a sink so a failed append is never silent. The error is
// still returned for callers that want to act on it.
type LoggedSink struct {
	Next Sink
	Log  *zap.Logger
}

func (s LoggedSink) Record(ctx context.Context, e Entry) error {
	err := s.Next.Record(ctx, e)
	if err != nil {
		s.Log.Warn("audit append failed",
			zap.String("tenant_id", e.TenantID),
			zap.String("action", e.Action),
			zap.Error(err))
	}
	return err
}

// MemSink retains the most recent entries in memory. Test double and default
// for store-less wiring; same bounded-retention contract as PGSink.
type MemSink struct {
	Retention int

	mu      sync.Mutex
	entries []Entry
}

func (s *MemSink) Record(_ context.Context, e Entry) error {
	if e.At.IsZero() {
		e.At = time.Now().UTC()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, e)
	if s.Retention > 0 && len(s.entries) > s.Retention {
		s.entries = s.entries[len(s.entries)-s.Retention:]
	}
	return nil
}

func (s *MemSink) Entries() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Entry, len(s.entries))
	copy(out, s.entries)
	return out
}
