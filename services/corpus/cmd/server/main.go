package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/tarifflane/corpuslane/pkg/audit"
	"github.com/tarifflane/corpuslane/pkg/config"
	"github.com/tarifflane/corpuslane/pkg/db"
	"github.com/tarifflane/corpuslane/pkg/domain"
	"github.com/tarifflane/corpuslane/pkg/httpx"
	"github.com/tarifflane/corpuslane/pkg/jws"
	"github.com/tarifflane/corpuslane/services/corpus/internal/evidence"
	"github.com/tarifflane/corpuslane/services/corpus/internal/retrieval"
	"github.com/tarifflane/corpuslane/services/corpus/internal/store"
)

func main() {
	log, _ := zap.NewProduction()
	defer log.Sync()

	cfg, err := config.Load(os.Getenv("CORPUS_CONFIG"))
	if err != nil {
		log.Fatal("config", zap.Error(err))
	}

	ctx := context.Background()
	pool := db.MustConnect(ctx, cfg.DatabaseURL)
	st := store.New(pool)
	if err := st.EnsureSchema(ctx); err != nil {
		log.Fatal("schema", zap.Error(err))
	}

	var cache *redis.Client
	if cfg.RedisAddr != "" {
		cache = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	}

	sink := audit.LoggedSink{Next: &audit.PGSink{DB: pool, Retention: cfg.AuditRetention}, Log: log}
	engine := retrieval.New(st, cache, log, cfg.RetrievalTimeout)
	builder := evidence.NewBuilder(st, jws.StubSigner{KeyID: "hsm-stub-dev"}, log)

	r := chi.NewRouter()
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200) })

	r.Route("/corpus/tenants/{tenant_id}", func(api chi.Router) {
		mountIngestion(api, st, sink, log)
		mountSettings(api, st, sink)
		mountSources(api, st, sink)
		mountRetrieval(api, engine)
		mountEvidence(api, st, builder, sink)
		mountDiagnostics(api, st)
	})

	log.Info("corpus service listening", zap.String("addr", cfg.ListenAddr))
	if err := http.ListenAndServe(cfg.ListenAddr, r); err != nil {
		log.Fatal("listen", zap.Error(err))
	}
}

func tenantID(r *http.Request) string { return chi.URLParam(r, "tenant_id") }

func record(sink audit.Sink, r *http.Request, action string, details map[string]any) {
	_ = sink.Record(r.Context(), audit.Entry{
		TenantID: tenantID(r),
		Actor:    r.Header.Get("x-actor-id"),
		Action:   action,
		Details:  details,
	})
}

func mountIngestion(api chi.Router, st *store.Store, sink audit.Sink, log *zap.Logger) {
	api.Post("/documents", func(w http.ResponseWriter, r *http.Request) {
		var doc domain.Document
		if err := httpx.ReadJSON(r, &doc); err != nil {
			httpx.WriteError(w, 400, "BAD_JSON", err.Error(), nil)
			return
		}
		doc.TenantID = tenantID(r)
		inserted, err := st.UpsertDocument(r.Context(), doc)
		if err != nil {
			httpx.WriteErr(w, err)
			return
		}
		record(sink, r, "DOCUMENT_UPSERTED", map[string]any{"document_id": doc.DocumentID, "inserted": inserted})
		httpx.WriteJSON(w, 200, map[string]any{"request_id": httpx.NewRequestID(), "document_id": doc.DocumentID, "inserted": inserted})
	})

	api.Post("/documents/{document_id}:supersede", func(w http.ResponseWriter, r *http.Request) {
		oldID := chi.URLParam(r, "document_id")
		var replacement domain.Document
		if err := httpx.ReadJSON(r, &replacement); err != nil {
			httpx.WriteError(w, 400, "BAD_JSON", err.Error(), nil)
			return
		}
		replacement.TenantID = tenantID(r)
		if err := st.SupersedeDocument(r.Context(), tenantID(r), oldID, replacement); err != nil {
			httpx.WriteErr(w, err)
			return
		}
		record(sink, r, "DOCUMENT_SUPERSEDED", map[string]any{"old": oldID, "new": replacement.DocumentID})
		httpx.WriteJSON(w, 200, map[string]any{"request_id": httpx.NewRequestID(), "superseded": oldID, "document_id": replacement.DocumentID})
	})

	api.Post("/chunks:batchWrite", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Chunks []domain.Chunk `json:"chunks"`
		}
		if err := httpx.ReadJSON(r, &req); err != nil {
			httpx.WriteError(w, 400, "BAD_JSON", err.Error(), nil)
			return
		}
		for i := range req.Chunks {
			req.Chunks[i].TenantID = tenantID(r)
		}
		written, err := st.WriteChunksBatch(r.Context(), tenantID(r), req.Chunks)
		if err != nil {
			log.Warn("chunk batch failed", zap.String("tenant_id", tenantID(r)), zap.Int("written", written), zap.Error(err))
			httpx.WriteErr(w, err)
			return
		}
		record(sink, r, "CHUNKS_WRITTEN", map[string]any{"count": written})
		httpx.WriteJSON(w, 200, map[string]any{"request_id": httpx.NewRequestID(), "written": written})
	})

	api.Post("/citations", func(w http.ResponseWriter, r *http.Request) {
		var c domain.Citation
		if err := httpx.ReadJSON(r, &c); err != nil {
			httpx.WriteError(w, 400, "BAD_JSON", err.Error(), nil)
			return
		}
		c.TenantID = tenantID(r)
		if err := st.UpsertCitation(r.Context(), c); err != nil {
			httpx.WriteErr(w, err)
			return
		}
		record(sink, r, "CITATION_UPSERTED", map[string]any{"citation_id": c.CitationID})
		httpx.WriteJSON(w, 200, map[string]any{"request_id": httpx.NewRequestID(), "citation_id": c.CitationID})
	})

	api.Post("/ingestion-runs", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			SourceID      string `json:"source_id"`
			CorpusVersion string `json:"corpus_version"`
		}
		if err := httpx.ReadJSON(r, &req); err != nil {
			httpx.WriteError(w, 400, "BAD_JSON", err.Error(), nil)
			return
		}
		run := domain.IngestionRun{
			RunID:         "run_" + uuid.NewString(),
			TenantID:      tenantID(r),
			SourceID:      req.SourceID,
			CorpusVersion: req.CorpusVersion,
			Status:        domain.RunRunning,
		}
		if err := st.StartIngestionRun(r.Context(), run); err != nil {
			httpx.WriteErr(w, err)
			return
		}
		record(sink, r, "INGESTION_RUN_STARTED", map[string]any{"run_id": run.RunID, "corpus_version": run.CorpusVersion})
		httpx.WriteJSON(w, 201, map[string]any{"request_id": httpx.NewRequestID(), "run_id": run.RunID, "status": run.Status})
	})

	api.Post("/ingestion-runs/{run_id}:finish", func(w http.ResponseWriter, r *http.Request) {
		runID := chi.URLParam(r, "run_id")
		var req struct {
			Stats     domain.RunStats `json:"stats"`
			SourceZip string          `json:"source_zip"`
		}
		if err := httpx.ReadJSON(r, &req); err != nil {
			httpx.WriteError(w, 400, "BAD_JSON", err.Error(), nil)
			return
		}
		if err := st.FinishIngestionRun(r.Context(), tenantID(r), runID, req.Stats); err != nil {
			httpx.WriteErr(w, err)
			return
		}
		run, err := st.GetIngestionRun(r.Context(), tenantID(r), runID)
		if err != nil {
			httpx.WriteErr(w, err)
			return
		}
		rep, err := st.RecomputeIngestionReport(r.Context(), tenantID(r), run.CorpusVersion, req.SourceZip)
		if err != nil {
			httpx.WriteErr(w, err)
			return
		}
		record(sink, r, "INGESTION_RUN_FINISHED", map[string]any{"run_id": runID, "corpus_version": run.CorpusVersion})
		httpx.WriteJSON(w, 200, map[string]any{"request_id": httpx.NewRequestID(), "run": run, "report": rep})
	})

	api.Post("/ingestion-runs/{run_id}:fail", func(w http.ResponseWriter, r *http.Request) {
		runID := chi.URLParam(r, "run_id")
		var req struct {
			Error string `json:"error"`
		}
		if err := httpx.ReadJSON(r, &req); err != nil {
			httpx.WriteError(w, 400, "BAD_JSON", err.Error(), nil)
			return
		}
		if err := st.FailIngestionRun(r.Context(), tenantID(r), runID, req.Error); err != nil {
			httpx.WriteErr(w, err)
			return
		}
		record(sink, r, "INGESTION_RUN_FAILED", map[string]any{"run_id": runID, "error": req.Error})
		httpx.WriteJSON(w, 200, map[string]any{"request_id": httpx.NewRequestID(), "run_id": runID, "status": domain.RunFailed})
	})

	api.Get("/ingestion-runs/{run_id}", func(w http.ResponseWriter, r *http.Request) {
		run, err := st.GetIngestionRun(r.Context(), tenantID(r), chi.URLParam(r, "run_id"))
		if err != nil {
			httpx.WriteErr(w, err)
			return
		}
		httpx.WriteJSON(w, 200, map[string]any{"request_id": httpx.NewRequestID(), "run": run})
	})

	api.Post("/chunks/{chunk_id}:markIndexed", func(w http.ResponseWriter, r *http.Request) {
		chunkID := chi.URLParam(r, "chunk_id")
		if err := st.MarkChunkIndexed(r.Context(), tenantID(r), chunkID, time.Now()); err != nil {
			httpx.WriteErr(w, err)
			return
		}
		httpx.WriteJSON(w, 200, map[string]any{"request_id": httpx.NewRequestID(), "chunk_id": chunkID, "index_pending": false})
	})

	api.Get("/chunks:pendingIndex", func(w http.ResponseWriter, r *http.Request) {
		ids, err := st.ListPendingIndex(r.Context(), tenantID(r), 100)
		if err != nil {
			httpx.WriteErr(w, err)
			return
		}
		httpx.WriteJSON(w, 200, map[string]any{"request_id": httpx.NewRequestID(), "chunk_ids": ids})
	})
}

func mountSettings(api chi.Router, st *store.Store, sink audit.Sink) {
	api.Get("/settings", func(w http.ResponseWriter, r *http.Request) {
		settings, err := st.GetTenantSettings(r.Context(), tenantID(r))
		if err != nil {
			httpx.WriteErr(w, err)
			return
		}
		httpx.WriteJSON(w, 200, map[string]any{"request_id": httpx.NewRequestID(), "settings": settings})
	})

	api.Put("/settings", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ActiveCorpusVersion  string `json:"active_corpus_version"`
			AllowFallbackToOlder bool   `json:"allow_fallback_to_older"`
		}
		if err := httpx.ReadJSON(r, &req); err != nil {
			httpx.WriteError(w, 400, "BAD_JSON", err.Error(), nil)
			return
		}
		settings, err := st.SetActiveCorpusVersion(r.Context(), tenantID(r), req.ActiveCorpusVersion, req.AllowFallbackToOlder)
		if err != nil {
			httpx.WriteErr(w, err)
			return
		}
		record(sink, r, "CORPUS_VERSION_PROMOTED", map[string]any{"corpus_version": req.ActiveCorpusVersion})
		httpx.WriteJSON(w, 200, map[string]any{"request_id": httpx.NewRequestID(), "settings": settings})
	})
}

func mountSources(api chi.Router, st *store.Store, sink audit.Sink) {
	api.Post("/sources", func(w http.ResponseWriter, r *http.Request) {
		var src domain.Source
		if err := httpx.ReadJSON(r, &src); err != nil {
			httpx.WriteError(w, 400, "BAD_JSON", err.Error(), nil)
			return
		}
		src.TenantID = tenantID(r)
		if err := st.UpsertSource(r.Context(), src); err != nil {
			httpx.WriteErr(w, err)
			return
		}
		record(sink, r, "SOURCE_UPSERTED", map[string]any{"source_id": src.SourceID})
		httpx.WriteJSON(w, 200, map[string]any{"request_id": httpx.NewRequestID(), "source_id": src.SourceID})
	})

	api.Get("/sources", func(w http.ResponseWriter, r *http.Request) {
		sources, err := st.ListSources(r.Context(), tenantID(r))
		if err != nil {
			httpx.WriteErr(w, err)
			return
		}
		httpx.WriteJSON(w, 200, map[string]any{"request_id": httpx.NewRequestID(), "sources": sources})
	})
}

func mountDiagnostics(api chi.Router, st *store.Store) {
	api.Get("/diagnostics", func(w http.ResponseWriter, r *http.Request) {
		if err := st.Ping(r.Context()); err != nil {
			httpx.WriteErr(w, err)
			return
		}
		settings, err := st.GetTenantSettings(r.Context(), tenantID(r))
		if err != nil {
			httpx.WriteErr(w, err)
			return
		}
		docs, chunks, citations, err := st.VersionCounts(r.Context(), tenantID(r), settings.ActiveCorpusVersion)
		if err != nil {
			httpx.WriteErr(w, err)
			return
		}
		reports, err := st.ListIngestionReports(r.Context(), tenantID(r), 5)
		if err != nil {
			httpx.WriteErr(w, err)
			return
		}
		httpx.WriteJSON(w, 200, map[string]any{
			"request_id":            httpx.NewRequestID(),
			"active_corpus_version": settings.ActiveCorpusVersion,
			"counts":                map[string]int{"documents": docs, "chunks": chunks, "citations": citations},
			"recent_reports":        reports,
		})
	})
}
