// Package retrieval implements citation-pinned evidence retrieval: scope
// resolution against tenant settings, ranked full-text search over exactly
// one corpus version, and hydration of chunk, citation and document.
package retrieval

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/tarifflane/corpuslane/pkg/canonhash"
	"github.com/tarifflane/corpuslane/pkg/corpuserr"
	"github.com/tarifflane/corpuslane/pkg/domain"
)

// Store is the slice of the corpus store the engine needs.
type Store interface {
	GetTenantSettings(ctx context.Context, tenantID string) (domain.TenantSettings, error)
	SearchChunks(ctx context.Context, tenantID, corpusVersion, query string, f domain.SearchFilters, limit int) ([]domain.SearchHit, error)
	GetChunk(ctx context.Context, tenantID, chunkID string) (domain.Chunk, error)
	LatestOlderCorpusVersion(ctx context.Context, tenantID, before string) (string, error)
}

type Query struct {
	TenantID string               `json:"tenant_id"`
	Text     string               `json:"q"`
	Limit    int                  `json:"limit,omitempty"`
	// CorpusVersion pins retrieval explicitly; empty resolves the tenant's
	// active version.
	CorpusVersion string               `json:"corpus_version,omitempty"`
	Filters       domain.SearchFilters `json:"filters,omitempty"`
	IncludeParent bool                 `json:"include_parent,omitempty"`
}

type Result struct {
	Chunk    domain.Chunk   `json:"chunk"`
	Citation domain.Citation `json:"citation"`
	Document domain.Document `json:"document"`
	Parent   *domain.Chunk  `json:"parent,omitempty"`
	Rank     float64        `json:"rank"`
}

const (
	ReasonNoHits      = "no_hits"
	ReasonUnavailable = "unavailable"
)

// Outcome distinguishes "executed, nothing matched" from failure so callers
// can degrade to a STOP decision only on the former.
type Outcome struct {
	OK            bool     `json:"ok"`
	Reason        string   `json:"reason,omitempty"`
	CorpusVersion string   `json:"corpus_version,omitempty"`
	Results       []Result `json:"results,omitempty"`
}

type Engine struct {
	store   Store
	cache   *redis.Client
	log     *zap.Logger
	timeout time.Duration
	cacheTTL time.Duration
}

// New builds an engine. cache may be nil to disable result caching.
func New(store Store, cache *redis.Client, log *zap.Logger, timeout time.Duration) *Engine {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Engine{store: store, cache: cache, log: log, timeout: timeout, cacheTTL: 30 * time.Second}
}

// Retrieve executes one retrieval. The returned error is non-nil only for
// caller faults (empty query); backend failures surface as the unavailable
// outcome, never as no_hits.
func (e *Engine) Retrieve(ctx context.Context, q Query) (Outcome, error) {
	if q.TenantID == "" || q.Text == "" {
		return Outcome{}, corpuserr.Validationf("retrieval requires tenant_id and q")
	}
	if q.Limit <= 0 {
		q.Limit = 10
	}

	version := q.CorpusVersion
	pinned := version != ""
	allowFallback := false
	if !pinned {
		settings, err := e.store.GetTenantSettings(ctx, q.TenantID)
		if err != nil {
			e.log.Warn("tenant settings unavailable", zap.String("tenant_id", q.TenantID), zap.Error(err))
			return Outcome{Reason: ReasonUnavailable}, nil
		}
		version = settings.ActiveCorpusVersion
		allowFallback = settings.AllowFallbackToOlder
	}

	if out, ok := e.cacheGet(ctx, q, version); ok {
		return out, nil
	}

	sctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	hits, err := e.store.SearchChunks(sctx, q.TenantID, version, q.Text, q.Filters, q.Limit)
	if err != nil {
		e.log.Warn("search failed", zap.String("tenant_id", q.TenantID), zap.String("corpus_version", version), zap.Error(err))
		return Outcome{Reason: ReasonUnavailable}, nil
	}

	// Single-version fallback: when the active version has no data and the
	// tenant opted in, retry once against the newest older version that has
	// chunks. Versions are never mixed within one result.
	if len(hits) == 0 && allowFallback {
		older, err := e.store.LatestOlderCorpusVersion(sctx, q.TenantID, version)
		if err == nil && older != "" {
			hits, err = e.store.SearchChunks(sctx, q.TenantID, older, q.Text, q.Filters, q.Limit)
			if err != nil {
				e.log.Warn("fallback search failed", zap.String("tenant_id", q.TenantID), zap.String("corpus_version", older), zap.Error(err))
				return Outcome{Reason: ReasonUnavailable}, nil
			}
			version = older
		} else if err != nil && !corpuserr.IsNotFound(err) {
			return Outcome{Reason: ReasonUnavailable}, nil
		}
	}

	if len(hits) == 0 {
		out := Outcome{Reason: ReasonNoHits, CorpusVersion: version}
		e.cachePut(ctx, q, version, out)
		return out, nil
	}

	results := make([]Result, 0, len(hits))
	for _, h := range hits {
		r := Result{Chunk: h.Chunk, Citation: h.Citation, Document: h.Document, Rank: h.Rank}
		if q.IncludeParent && h.Chunk.ParentChunkID != nil {
			parent, err := e.store.GetChunk(sctx, q.TenantID, *h.Chunk.ParentChunkID)
			if err == nil {
				r.Parent = &parent
			} else if !corpuserr.IsNotFound(err) {
				return Outcome{Reason: ReasonUnavailable}, nil
			}
		}
		results = append(results, r)
	}

	out := Outcome{OK: true, CorpusVersion: version, Results: results}
	e.cachePut(ctx, q, version, out)
	return out, nil
}

func (e *Engine) cacheKey(q Query, version string) string {
	h, _, _ := canonhash.CanonicalSHA256(struct {
		Query   Query  `json:"query"`
		Version string `json:"version"`
	}{q, version})
	return "retrieval:" + q.TenantID + ":" + h
}

func (e *Engine) cacheGet(ctx context.Context, q Query, version string) (Outcome, bool) {
	if e.cache == nil {
		return Outcome{}, false
	}
	raw, err := e.cache.Get(ctx, e.cacheKey(q, version)).Bytes()
	if err != nil {
		return Outcome{}, false
	}
	var out Outcome
	if err := json.Unmarshal(raw, &out); err != nil {
		return Outcome{}, false
	}
	return out, true
}

func (e *Engine) cachePut(ctx context.Context, q Query, version string, out Outcome) {
	if e.cache == nil {
		return
	}
	raw, err := json.Marshal(out)
	if err != nil {
		return
	}
	if err := e.cache.Set(ctx, e.cacheKey(q, version), raw, e.cacheTTL).Err(); err != nil {
		e.log.Debug("retrieval cache write failed", zap.Error(err))
	}
}
