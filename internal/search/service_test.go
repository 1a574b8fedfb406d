package search

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/hyperjump/pama/internal/keyword"
	"github.com/hyperjump/pama/internal/metrics"
	"github.com/hyperjump/pama/internal/models"
	"github.com/hyperjump/pama/internal/terminology"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

// staticSearcher matches codings whose display contains the query (case-insensitive),
// in list order.
type staticSearcher struct {
	codings []models.Coding
	err     error
}

func (s staticSearcher) Search(query string) ([]models.Coding, error) {
	if s.err != nil {
		return nil, s.err
	}
	q := strings.ToLower(strings.TrimSpace(query))
	out := []models.Coding{}
	if q == "" {
		return out, nil
	}
	for _, c := range s.codings {
		if strings.Contains(strings.ToLower(c.Display), q) {
			out = append(out, c)
		}
	}
	return out, nil
}

func manyCodings(n int) []models.Coding {
	out := make([]models.Coding, n)
	for i := range out {
		out[i] = models.Coding{Code: fmt.Sprintf("c%03d", i), Display: fmt.Sprintf("Chest study %d", i)}
	}
	return out
}

func await(t *testing.T, ch <-chan []models.SelectOption) ([]models.SelectOption, bool) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return Await(ctx, ch)
}

func TestService_ResultCap(t *testing.T) {
	svc := NewService(staticSearcher{codings: manyCodings(120)}, WithDelay(5*time.Millisecond))
	opts, ok := await(t, svc.Search(context.Background(), "chest"))
	if !ok {
		t.Fatal("search did not deliver")
	}
	if len(opts) != DefaultMaxResults {
		t.Fatalf("len = %d, want %d", len(opts), DefaultMaxResults)
	}
	for i, o := range opts {
		want := fmt.Sprintf("c%03d", i)
		if o.Value != want || o.Label != o.Data.Display || o.Data.Code != want {
			t.Errorf("option %d = %+v, want ranked coding %s", i, o, want)
		}
	}
}

func TestService_CustomMaxResults(t *testing.T) {
	svc := NewService(staticSearcher{codings: manyCodings(30)}, WithDelay(time.Millisecond), WithMaxResults(7))
	opts, ok := await(t, svc.Search(context.Background(), "chest"))
	if !ok || len(opts) != 7 {
		t.Fatalf("got %d options (ok=%v), want 7", len(opts), ok)
	}
}

func TestService_DebounceCollapsing(t *testing.T) {
	codings := []models.Coding{
		{Code: "1", Display: "a only"},
		{Code: "2", Display: "ab both"},
	}
	m := metrics.NewCollector()
	svc := NewService(staticSearcher{codings: codings}, WithDelay(50*time.Millisecond), WithName("procedures"), WithMetrics(m))
	ctx := context.Background()

	chA := svc.Search(ctx, "a")
	chAB := svc.Search(ctx, "ab")

	if opts, ok := await(t, chA); ok {
		t.Errorf("superseded query delivered %+v", opts)
	}
	opts, ok := await(t, chAB)
	if !ok {
		t.Fatal("latest query did not deliver")
	}
	if len(opts) != 1 || opts[0].Value != "2" {
		t.Errorf("options = %+v, want only code 2", opts)
	}
	if got := testutil.ToFloat64(m.SearchQueriesTotal.WithLabelValues("procedures")); got != 1 {
		t.Errorf("queries_total = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.SearchSupersededTotal.WithLabelValues("procedures")); got != 1 {
		t.Errorf("superseded_total = %v, want 1", got)
	}
}

func TestService_EmptyResultsResolve(t *testing.T) {
	svc := NewService(staticSearcher{codings: manyCodings(3)}, WithDelay(time.Millisecond))
	for _, q := range []string{"", "no such thing"} {
		opts, ok := await(t, svc.Search(context.Background(), q))
		if !ok {
			t.Fatalf("query %q did not deliver", q)
		}
		if opts == nil || len(opts) != 0 {
			t.Errorf("query %q = %+v, want empty non-nil", q, opts)
		}
	}
}

func TestService_SearcherErrorDeliversEmpty(t *testing.T) {
	svc := NewService(staticSearcher{err: errors.New("boom")}, WithDelay(time.Millisecond))
	opts, ok := await(t, svc.Search(context.Background(), "chest"))
	if !ok {
		t.Fatal("failed search should still deliver")
	}
	if len(opts) != 0 {
		t.Errorf("got %+v, want empty", opts)
	}
}

func TestService_CallerAbort(t *testing.T) {
	svc := NewService(staticSearcher{codings: manyCodings(3)}, WithDelay(time.Hour))
	ctx, cancel := context.WithCancel(context.Background())
	ch := svc.Search(ctx, "chest")
	cancel()
	if _, ok := await(t, ch); ok {
		t.Error("aborted call should not deliver")
	}
}

func TestService_WithCatalog(t *testing.T) {
	cat, err := NewCatalog(terminology.NewLoader("", ""), nil)
	if err != nil {
		t.Fatalf("NewCatalog: %v", err)
	}
	defer cat.Close()

	svc := NewService(cat.Searcher(terminology.Procedures), WithDelay(time.Millisecond))
	opts, ok := await(t, svc.Search(context.Background(), "CT chest"))
	if !ok || len(opts) == 0 {
		t.Fatalf("CT chest: ok=%v len=%d", ok, len(opts))
	}
	chestCT := map[string]bool{"71250": true, "71260": true, "71270": true, "71275": true}
	if !chestCT[opts[0].Value] {
		t.Errorf("first option = %+v, want a chest CT", opts[0])
	}

	reasons := NewService(cat.Searcher(terminology.Reasons), WithDelay(time.Millisecond))
	opts, ok = await(t, reasons.Search(context.Background(), "headache"))
	if !ok || len(opts) == 0 || opts[0].Value != "R51.9" {
		t.Errorf("headache = %+v (ok=%v), want R51.9 first", opts, ok)
	}
}

func TestCatalog_Suggest(t *testing.T) {
	cat, err := NewCatalog(terminology.NewLoader("", ""), nil)
	if err != nil {
		t.Fatal(err)
	}
	defer cat.Close()
	if got := cat.Suggest(terminology.Procedures, "cehst"); got != "chest" {
		t.Errorf("Suggest(cehst) = %q, want chest", got)
	}
	if got := cat.Suggest(terminology.Reasons, "headache"); got != "" {
		t.Errorf("Suggest(headache) = %q, want no correction", got)
	}
	if got := cat.Suggest(terminology.Kind("nope"), "cehst"); got != "" {
		t.Errorf("unknown kind Suggest = %q", got)
	}
}

func TestCatalog_ReloadSwapsIndex(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "procedures.json")
	write := func(display string) {
		t.Helper()
		content := fmt.Sprintf(`{"resourceType":"ValueSet","expansion":{"contains":[{"code":"X1","display":%q}]}}`, display)
		if err := os.WriteFile(path, []byte(content), 0600); err != nil {
			t.Fatal(err)
		}
	}
	write("Ultrasound of abdomen")
	m := metrics.NewCollector()
	cat, err := NewCatalog(terminology.NewLoader(path, ""), nil, WithCatalogMetrics(m))
	if err != nil {
		t.Fatal(err)
	}
	defer cat.Close()

	searcher := cat.Searcher(terminology.Procedures)
	if got, _ := searcher.Search("ultrasound"); len(got) != 1 {
		t.Fatalf("before reload: %v", got)
	}

	write("Fluoroscopy of swallowing")
	if !cat.ReloadPath(path) {
		t.Fatal("ReloadPath did not match the procedures file")
	}
	if got, _ := searcher.Search("ultrasound"); len(got) != 0 {
		t.Errorf("after reload, old term still matches: %v", got)
	}
	if got, _ := searcher.Search("fluoroscopy"); len(got) != 1 {
		t.Errorf("after reload, new term missing: %v", got)
	}

	// A broken file keeps the previous index.
	if err := os.WriteFile(path, []byte("{"), 0600); err != nil {
		t.Fatal(err)
	}
	if err := cat.Reload(terminology.Procedures); err == nil {
		t.Fatal("expected reload error for broken file")
	}
	if got, _ := searcher.Search("fluoroscopy"); len(got) != 1 {
		t.Errorf("failed reload dropped the active index: %v", got)
	}
	if got := testutil.ToFloat64(m.TerminologyRebuildsTotal.WithLabelValues("procedures", "error")); got != 1 {
		t.Errorf("error rebuilds = %v, want 1", got)
	}
	if cat.ReloadPath(filepath.Join(dir, "other.json")) {
		t.Error("unrelated path should not match")
	}
	if paths := cat.Paths(); len(paths) != 1 || paths[0] != path {
		t.Errorf("Paths = %v", paths)
	}
}

func TestNewCatalog_DuplicateCodesFail(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reasons.json")
	content := `{"resourceType":"ValueSet","expansion":{"contains":[{"code":"R1","display":"One"},{"code":"R1","display":"Uno"}]}}`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	_, err := NewCatalog(terminology.NewLoader("", path), nil)
	if !errors.Is(err, keyword.ErrDuplicateCode) {
		t.Fatalf("NewCatalog error = %v, want ErrDuplicateCode", err)
	}
}

func TestCatalog_Defaults(t *testing.T) {
	cat, err := NewCatalog(terminology.NewLoader("", ""), nil)
	if err != nil {
		t.Fatal(err)
	}
	defer cat.Close()
	if got := cat.Defaults(terminology.Procedures, 10); len(got) != 10 {
		t.Errorf("Defaults = %d, want 10", len(got))
	}
	if got := cat.Defaults(terminology.Kind("nope"), 10); len(got) != 0 {
		t.Errorf("unknown kind defaults = %v", got)
	}
}

func TestSessionCache(t *testing.T) {
	created := 0
	cache := NewSessionCache(2, func() *Service {
		created++
		return NewService(staticSearcher{}, WithDelay(time.Hour))
	})
	a := cache.Get("a")
	if cache.Get("a") != a {
		t.Error("same key should return the same service")
	}
	pending := a.Search(context.Background(), "x")
	cache.Get("b")
	cache.Get("c") // evicts a
	if cache.Len() != 2 {
		t.Errorf("Len = %d, want 2", cache.Len())
	}
	if _, ok := await(t, pending); ok {
		t.Error("evicted session's pending search should be discarded")
	}
	if cache.Get("a") == a {
		t.Error("evicted session should be recreated")
	}
	if created != 4 {
		t.Errorf("created = %d, want 4", created)
	}
}
