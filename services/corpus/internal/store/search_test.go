package store

import (
	"context"
	"strings"
	"testing"

	"github.com/tarifflane/corpuslane/pkg/corpuserr"
	"github.com/tarifflane/corpuslane/pkg/domain"
)

func TestBuildSearchSQLNoFilters(t *testing.T) {
	sql, args := buildSearchSQL("t1", "1.0.0", "crystal glassware", domain.SearchFilters{}, 10)
	if len(args) != 4 {
		t.Fatalf("expected 4 args, got %d", len(args))
	}
	if args[3] != 10 {
		t.Fatalf("limit must be last arg, got %v", args[3])
	}
	if !strings.Contains(sql, "LIMIT $4") {
		t.Fatalf("unexpected limit placeholder:\n%s", sql)
	}
	if strings.Contains(sql, "d.jurisdiction=") {
		t.Fatal("unexpected filter clause without filters")
	}
}

func TestBuildSearchSQLFilterPlaceholders(t *testing.T) {
	f := domain.SearchFilters{
		Jurisdiction: "EU",
		TrustLevel:   "official",
		DocumentID:   "doc-1",
	}
	sql, args := buildSearchSQL("t1", "1.0.0", "q", f, 5)
	if len(args) != 7 {
		t.Fatalf("expected 7 args, got %d", len(args))
	}
	for _, want := range []string{"d.jurisdiction=$4", "c.trust_level=$5", "c.document_id=$6", "LIMIT $7"} {
		if !strings.Contains(sql, want) {
			t.Fatalf("missing %s in:\n%s", want, sql)
		}
	}
	if strings.Contains(sql, "d.instrument_type=") || strings.Contains(sql, "d.language=") {
		t.Fatal("unset filters must not emit clauses")
	}
}

func TestBuildSearchSQLTieBreakOrdering(t *testing.T) {
	sql, _ := buildSearchSQL("t1", "1.0.0", "q", domain.SearchFilters{}, 10)
	idx := strings.Index(sql, "ORDER BY rank DESC, d.effective_from DESC NULLS LAST, c.ordinal ASC")
	if idx < 0 {
		t.Fatalf("tie-break ordering missing:\n%s", sql)
	}
}

func TestBuildSearchSQLScopesTenantAndVersion(t *testing.T) {
	sql, _ := buildSearchSQL("t1", "1.0.0", "q", domain.SearchFilters{}, 10)
	if !strings.Contains(sql, "c.tenant_id=$1 AND c.corpus_version=$2") {
		t.Fatalf("tenant/version scope missing:\n%s", sql)
	}
}

func TestDottedNumericShape(t *testing.T) {
	for _, v := range []string{"0.1.0", "1.2.0", "10.0.300", "2"} {
		if !dottedNumeric.MatchString(v) {
			t.Fatalf("%s must be comparable", v)
		}
	}
	for _, v := range []string{"1.0.0-rc1", "v1.0.0", "1..0", "", "1.0."} {
		if dottedNumeric.MatchString(v) {
			t.Fatalf("%s must not be comparable", v)
		}
	}
}

func TestLatestOlderCorpusVersionRejectsNonNumericPin(t *testing.T) {
	s := New(nil)
	_, err := s.LatestOlderCorpusVersion(context.Background(), "t1", "1.0.0-rc1")
	if !corpuserr.IsNotFound(err) {
		t.Fatalf("non-comparable pin must be NotFound before any query, got %v", err)
	}
}
