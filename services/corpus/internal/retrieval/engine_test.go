package retrieval

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/tarifflane/corpuslane/pkg/corpuserr"
	"github.com/tarifflane/corpuslane/pkg/domain"
)

type fakeStore struct {
	settings    domain.TenantSettings
	settingsErr error
	// hits keyed by corpus version
	hits      map[string][]domain.SearchHit
	searchErr error
	chunks    map[string]domain.Chunk
	older     string

	searchedVersions []string
}

func (f *fakeStore) GetTenantSettings(_ context.Context, tenantID string) (domain.TenantSettings, error) {
	if f.settingsErr != nil {
		return domain.TenantSettings{}, f.settingsErr
	}
	if f.settings.TenantID == "" {
		return domain.DefaultTenantSettings(tenantID), nil
	}
	return f.settings, nil
}

func (f *fakeStore) SearchChunks(_ context.Context, _, corpusVersion, _ string, _ domain.SearchFilters, _ int) ([]domain.SearchHit, error) {
	f.searchedVersions = append(f.searchedVersions, corpusVersion)
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	return f.hits[corpusVersion], nil
}

func (f *fakeStore) GetChunk(_ context.Context, tenantID, chunkID string) (domain.Chunk, error) {
	c, ok := f.chunks[chunkID]
	if !ok {
		return domain.Chunk{}, corpuserr.NotFoundf("chunk %s not found for tenant %s", chunkID, tenantID)
	}
	return c, nil
}

func (f *fakeStore) LatestOlderCorpusVersion(_ context.Context, tenantID, _ string) (string, error) {
	if f.older == "" {
		return "", corpuserr.NotFoundf("no older corpus version with data for tenant %s", tenantID)
	}
	return f.older, nil
}

func hit(chunkID, citationID, version string) domain.SearchHit {
	return domain.SearchHit{
		Chunk:    domain.Chunk{ChunkID: chunkID, CitationID: citationID, CorpusVersion: version, Text: "crystal glassware of lead crystal"},
		Citation: domain.Citation{CitationID: citationID, ChunkID: chunkID, CorpusVersion: version},
		Document: domain.Document{DocumentID: "doc-1", CorpusVersion: version},
		Rank:     0.5,
	}
}

func newEngine(f *fakeStore) *Engine {
	return New(f, nil, zap.NewNop(), time.Second)
}

func TestRetrieveUsesActiveVersionWhenUnpinned(t *testing.T) {
	f := &fakeStore{
		settings: domain.TenantSettings{TenantID: "t1", ActiveCorpusVersion: "1.0.0"},
		hits:     map[string][]domain.SearchHit{"1.0.0": {hit("c-1", "cit-1", "1.0.0")}},
	}
	out, err := newEngine(f).Retrieve(context.Background(), Query{TenantID: "t1", Text: "crystal"})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if !out.OK || len(out.Results) != 1 {
		t.Fatalf("unexpected outcome: %+v", out)
	}
	if out.Results[0].Citation.CitationID != "cit-1" {
		t.Fatalf("unexpected citation: %s", out.Results[0].Citation.CitationID)
	}
	if out.CorpusVersion != "1.0.0" {
		t.Fatalf("unexpected version: %s", out.CorpusVersion)
	}
}

func TestRetrievePinnedVersionIgnoresSettings(t *testing.T) {
	f := &fakeStore{
		settings: domain.TenantSettings{TenantID: "t1", ActiveCorpusVersion: "2.0.0"},
		hits:     map[string][]domain.SearchHit{"1.0.0": {hit("c-1", "cit-1", "1.0.0")}},
	}
	out, err := newEngine(f).Retrieve(context.Background(), Query{TenantID: "t1", Text: "crystal", CorpusVersion: "1.0.0"})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if !out.OK || out.CorpusVersion != "1.0.0" {
		t.Fatalf("expected pinned 1.0.0, got %+v", out)
	}
	if len(f.searchedVersions) != 1 || f.searchedVersions[0] != "1.0.0" {
		t.Fatalf("expected exactly one search against 1.0.0, got %v", f.searchedVersions)
	}
}

func TestRetrieveDefaultsWhenNoSettingsRow(t *testing.T) {
	f := &fakeStore{hits: map[string][]domain.SearchHit{}}
	out, err := newEngine(f).Retrieve(context.Background(), Query{TenantID: "t1", Text: "crystal"})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if out.OK || out.Reason != ReasonNoHits {
		t.Fatalf("expected no_hits, got %+v", out)
	}
	if f.searchedVersions[0] != domain.DefaultCorpusVersion {
		t.Fatalf("expected default version search, got %v", f.searchedVersions)
	}
}

func TestRetrieveNoHitsIsNotFailure(t *testing.T) {
	f := &fakeStore{hits: map[string][]domain.SearchHit{}}
	out, err := newEngine(f).Retrieve(context.Background(), Query{TenantID: "t1", Text: "nothing matches"})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if out.OK || out.Reason != ReasonNoHits {
		t.Fatalf("expected no_hits, got %+v", out)
	}
}

func TestRetrieveBackendErrorIsUnavailable(t *testing.T) {
	f := &fakeStore{searchErr: errors.New("dial tcp: connection refused")}
	out, err := newEngine(f).Retrieve(context.Background(), Query{TenantID: "t1", Text: "crystal"})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if out.OK || out.Reason != ReasonUnavailable {
		t.Fatalf("backend error must be unavailable, got %+v", out)
	}
}

func TestRetrieveTimeoutIsUnavailable(t *testing.T) {
	f := &fakeStore{searchErr: context.DeadlineExceeded}
	out, _ := newEngine(f).Retrieve(context.Background(), Query{TenantID: "t1", Text: "crystal"})
	if out.Reason != ReasonUnavailable {
		t.Fatalf("timeout must be unavailable, got %+v", out)
	}
}

func TestRetrieveSingleVersionFallback(t *testing.T) {
	f := &fakeStore{
		settings: domain.TenantSettings{TenantID: "t1", ActiveCorpusVersion: "2.0.0", AllowFallbackToOlder: true},
		hits:     map[string][]domain.SearchHit{"1.0.0": {hit("c-1", "cit-1", "1.0.0")}},
		older:    "1.0.0",
	}
	out, err := newEngine(f).Retrieve(context.Background(), Query{TenantID: "t1", Text: "crystal"})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if !out.OK || out.CorpusVersion != "1.0.0" {
		t.Fatalf("expected fallback to 1.0.0, got %+v", out)
	}
	for _, r := range out.Results {
		if r.Chunk.CorpusVersion != "1.0.0" {
			t.Fatal("fallback must never mix corpus versions")
		}
	}
}

func TestRetrieveNoFallbackWhenDisallowed(t *testing.T) {
	f := &fakeStore{
		settings: domain.TenantSettings{TenantID: "t1", ActiveCorpusVersion: "2.0.0"},
		hits:     map[string][]domain.SearchHit{"1.0.0": {hit("c-1", "cit-1", "1.0.0")}},
		older:    "1.0.0",
	}
	out, _ := newEngine(f).Retrieve(context.Background(), Query{TenantID: "t1", Text: "crystal"})
	if out.OK || out.Reason != ReasonNoHits {
		t.Fatalf("expected no_hits without fallback, got %+v", out)
	}
	if len(f.searchedVersions) != 1 {
		t.Fatalf("expected a single search, got %v", f.searchedVersions)
	}
}

func TestRetrieveIncludeParent(t *testing.T) {
	parentID := "c-parent"
	h := hit("c-1", "cit-1", "1.0.0")
	h.Chunk.ParentChunkID = &parentID
	f := &fakeStore{
		settings: domain.TenantSettings{TenantID: "t1", ActiveCorpusVersion: "1.0.0"},
		hits:     map[string][]domain.SearchHit{"1.0.0": {h}},
		chunks:   map[string]domain.Chunk{parentID: {ChunkID: parentID, CorpusVersion: "1.0.0"}},
	}
	out, err := newEngine(f).Retrieve(context.Background(), Query{TenantID: "t1", Text: "crystal", IncludeParent: true})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if out.Results[0].Parent == nil || out.Results[0].Parent.ChunkID != parentID {
		t.Fatalf("expected hydrated parent, got %+v", out.Results[0].Parent)
	}
}

func TestRetrieveValidatesInput(t *testing.T) {
	_, err := newEngine(&fakeStore{}).Retrieve(context.Background(), Query{TenantID: "t1"})
	if corpuserr.KindOf(err) != corpuserr.ValidationFailed {
		t.Fatalf("expected validation failure, got %v", err)
	}
}

func TestRetrieveSettingsErrorIsUnavailable(t *testing.T) {
	f := &fakeStore{settingsErr: errors.New("pool closed")}
	out, _ := newEngine(f).Retrieve(context.Background(), Query{TenantID: "t1", Text: "crystal"})
	if out.Reason != ReasonUnavailable {
		t.Fatalf("expected unavailable, got %+v", out)
	}
}
