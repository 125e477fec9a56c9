package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tarifflane/corpuslane/pkg/audit"
	"github.com/tarifflane/corpuslane/pkg/domain"
	"github.com/tarifflane/corpuslane/pkg/httpx"
	"github.com/tarifflane/corpuslane/pkg/jws"
	"github.com/tarifflane/corpuslane/services/corpus/internal/evidence"
	"github.com/tarifflane/corpuslane/services/corpus/internal/retrieval"
	"github.com/tarifflane/corpuslane/services/corpus/internal/store"
)

func mountRetrieval(api chi.Router, engine *retrieval.Engine) {
	api.Post("/retrieve", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Q             string               `json:"q"`
			Limit         int                  `json:"limit"`
			CorpusVersion string               `json:"corpus_version"`
			Filters       domain.SearchFilters `json:"filters"`
			IncludeParent bool                 `json:"include_parent"`
		}
		if err := httpx.ReadJSON(r, &req); err != nil {
			httpx.WriteError(w, 400, "BAD_JSON", err.Error(), nil)
			return
		}
		out, err := engine.Retrieve(r.Context(), retrieval.Query{
			TenantID:      tenantID(r),
			Text:          req.Q,
			Limit:         req.Limit,
			CorpusVersion: req.CorpusVersion,
			Filters:       req.Filters,
			IncludeParent: req.IncludeParent,
		})
		if err != nil {
			httpx.WriteErr(w, err)
			return
		}
		resp := map[string]any{"request_id": httpx.NewRequestID(), "ok": out.OK}
		if out.OK {
			resp["corpus_version"] = out.CorpusVersion
			resp["results"] = out.Results
		} else {
			resp["reason"] = out.Reason
		}
		httpx.WriteJSON(w, 200, resp)
	})
}

func mountEvidence(api chi.Router, st *store.Store, builder *evidence.Builder, sink audit.Sink) {
	api.Post("/evidence-bundles", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			RequestID       string   `json:"request_id"`
			InputHashSHA256 string   `json:"input_hash_sha256"`
			CitationIDs     []string `json:"citation_ids"`
		}
		if err := httpx.ReadJSON(r, &req); err != nil {
			httpx.WriteError(w, 400, "BAD_JSON", err.Error(), nil)
			return
		}
		bundle, err := builder.Build(r.Context(), tenantID(r), req.RequestID, req.InputHashSHA256, req.CitationIDs)
		if err != nil {
			httpx.WriteErr(w, err)
			return
		}
		record(sink, r, "EVIDENCE_BUNDLE_CREATED", map[string]any{"bundle_id": bundle.BundleID, "request_id": req.RequestID})
		httpx.WriteJSON(w, 201, map[string]any{"request_id": httpx.NewRequestID(), "bundle": bundle})
	})

	api.Get("/evidence-bundles/{bundle_id}", func(w http.ResponseWriter, r *http.Request) {
		bundle, err := st.GetEvidenceBundle(r.Context(), tenantID(r), chi.URLParam(r, "bundle_id"))
		if err != nil {
			httpx.WriteErr(w, err)
			return
		}
		httpx.WriteJSON(w, 200, map[string]any{"request_id": httpx.NewRequestID(), "bundle": bundle})
	})

	// The decoded signed payload is served untouched; re-encoding it would
	// break external signature verification.
	api.Get("/evidence-bundles/{bundle_id}:payload", func(w http.ResponseWriter, r *http.Request) {
		bundle, err := st.GetEvidenceBundle(r.Context(), tenantID(r), chi.URLParam(r, "bundle_id"))
		if err != nil {
			httpx.WriteErr(w, err)
			return
		}
		raw, err := jws.DecodePayload(bundle.JWS)
		if err != nil {
			httpx.WriteError(w, 500, "MALFORMED_BUNDLE", err.Error(), nil)
			return
		}
		httpx.WriteRaw(w, 200, raw)
	})

	api.Get("/evidence-bundles/{bundle_id}:verify", func(w http.ResponseWriter, r *http.Request) {
		bundle, err := st.GetEvidenceBundle(r.Context(), tenantID(r), chi.URLParam(r, "bundle_id"))
		if err != nil {
			httpx.WriteErr(w, err)
			return
		}
		httpx.WriteJSON(w, 200, map[string]any{"request_id": httpx.NewRequestID(), "verification": evidence.VerifyBundle(bundle)})
	})

	api.Post("/decisions", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			RequestID        string   `json:"request_id"`
			Status           string   `json:"status"`
			HSCandidate      string   `json:"hs_candidate"`
			Confidence       float64  `json:"confidence"`
			GIRPath          []string `json:"gir_path"`
			CitationIDs      []string `json:"citation_ids"`
			EvidenceBundleID string   `json:"evidence_bundle_id"`
			Reason           string   `json:"reason"`
		}
		if err := httpx.ReadJSON(r, &req); err != nil {
			httpx.WriteError(w, 400, "BAD_JSON", err.Error(), nil)
			return
		}
		d, err := builder.Finalize(r.Context(), evidence.DecisionInput{
			TenantID:         tenantID(r),
			RequestID:        req.RequestID,
			Status:           domain.DecisionStatus(req.Status),
			HSCandidate:      req.HSCandidate,
			Confidence:       req.Confidence,
			GIRPath:          req.GIRPath,
			CitationIDs:      req.CitationIDs,
			EvidenceBundleID: req.EvidenceBundleID,
			Reason:           req.Reason,
		})
		if err != nil {
			httpx.WriteErr(w, err)
			return
		}
		record(sink, r, "DECISION_FINALIZED", map[string]any{"request_id": req.RequestID, "status": d.Status})
		httpx.WriteJSON(w, 201, map[string]any{"request_id": httpx.NewRequestID(), "decision": d})
	})

	api.Get("/decisions/{request_id}", func(w http.ResponseWriter, r *http.Request) {
		d, ok, err := st.GetDecision(r.Context(), tenantID(r), chi.URLParam(r, "request_id"))
		if err != nil {
			httpx.WriteErr(w, err)
			return
		}
		if !ok {
			httpx.WriteError(w, 404, "NOT_FOUND", "decision not found", nil)
			return
		}
		httpx.WriteJSON(w, 200, map[string]any{"request_id": httpx.NewRequestID(), "decision": d})
	})
}
