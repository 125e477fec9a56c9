package domain

import (
	"testing"

	"github.com/tarifflane/corpuslane/pkg/corpuserr"
)

func intp(v int) *int       { return &v }
func strp(v string) *string { return &v }

func TestLocatorRequiresOneSubField(t *testing.T) {
	c := Citation{
		CitationID:         "cit-1",
		ChunkID:            "c-1",
		DocumentID:         "doc-1",
		CorpusVersion:      "1.0.0",
		SnapshotHashSHA256: "ab",
	}
	if err := c.Validate(); !corpuserr.IsConflict(err) {
		t.Fatalf("expected conflict for empty locator, got %v", err)
	}
	c.Locator = Locator{PageFrom: intp(1), PageTo: intp(1)}
	if err := c.Validate(); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	empty := " "
	c.Locator = Locator{Selector: &empty}
	if err := c.Validate(); !corpuserr.IsConflict(err) {
		t.Fatalf("blank selector should not count, got %v", err)
	}
}

func TestChunkValidate(t *testing.T) {
	c := Chunk{ChunkID: "c-1", DocumentID: "doc-1", Text: "Article 1", CitationID: "cit-1", CorpusVersion: "1.0.0"}
	if err := c.Validate(); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	c.ParentChunkID = strp("c-1")
	if err := c.Validate(); err == nil {
		t.Fatal("expected self-parent rejection")
	}
	c.ParentChunkID = nil
	c.Text = ""
	if err := c.Validate(); err == nil {
		t.Fatal("expected missing text rejection")
	}
}

func TestDocumentValidate(t *testing.T) {
	d := Document{DocumentID: "doc-1", CorpusVersion: "1.0.0", ContentHashSHA256: "ab", Status: DocActive}
	if err := d.Validate(); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	d.Status = "archived"
	if err := d.Validate(); err == nil {
		t.Fatal("expected unknown status rejection")
	}
	d.Status = DocActive
	d.CorpusVersion = ""
	if err := d.Validate(); err == nil {
		t.Fatal("expected missing corpus_version rejection")
	}
}

func TestDefaultTenantSettings(t *testing.T) {
	s := DefaultTenantSettings("t1")
	if s.ActiveCorpusVersion != "0.1.0" {
		t.Fatalf("unexpected default version: %s", s.ActiveCorpusVersion)
	}
	if s.AllowFallbackToOlder {
		t.Fatal("fallback must default to false")
	}
}

func TestDecisionValidate(t *testing.T) {
	d := Decision{RequestID: "rq-1", Status: DecisionFinal}
	if err := d.Validate(); !corpuserr.IsConflict(err) {
		t.Fatalf("FINAL without citations must conflict, got %v", err)
	}
	d.CitationIDs = []string{"cit-1"}
	if err := d.Validate(); !corpuserr.IsConflict(err) {
		t.Fatalf("FINAL without bundle must conflict, got %v", err)
	}
	d.EvidenceBundleID = "bun-1"
	if err := d.Validate(); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	stop := Decision{RequestID: "rq-2", Status: DecisionStop}
	if err := stop.Validate(); !corpuserr.IsConflict(err) {
		t.Fatalf("STOP without reason must conflict, got %v", err)
	}
	stop.Reason = "no qualifying citations"
	if err := stop.Validate(); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
}

func TestTrustLevelValid(t *testing.T) {
	for _, lvl := range []TrustLevel{TrustState, TrustOfficial, TrustSecondary, TrustInternal} {
		if !lvl.Valid() {
			t.Fatalf("expected %s valid", lvl)
		}
	}
	if TrustLevel("rumor").Valid() {
		t.Fatal("unexpected trust level accepted")
	}
}
