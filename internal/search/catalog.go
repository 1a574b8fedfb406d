package search

import (
	"fmt"
	"path/filepath"
	"sync/atomic"

	"github.com/hyperjump/pama/internal/keyword"
	"github.com/hyperjump/pama/internal/metrics"
	"github.com/hyperjump/pama/internal/models"
	"github.com/hyperjump/pama/internal/terminology"
	"go.uber.org/zap"
)

// Searcher answers ranked free-text queries over one terminology set.
type Searcher interface {
	Search(query string) ([]models.Coding, error)
}

type catalogEntry struct {
	index   *keyword.CodeIndex
	speller *keyword.SpellChecker
	codings []models.Coding
}

// Catalog holds one code index per terminology kind. Indexes are never mutated: Reload builds
// a complete replacement and swaps it in, so searches see either the old or the new set.
type Catalog struct {
	loader  *terminology.Loader
	opts    *keyword.Options
	logger  *zap.Logger
	metrics *metrics.Collector
	entries map[terminology.Kind]*atomic.Pointer[catalogEntry]
}

// CatalogOption configures a Catalog.
type CatalogOption func(*Catalog)

// WithCatalogLogger sets the logger.
func WithCatalogLogger(l *zap.Logger) CatalogOption {
	return func(c *Catalog) { c.logger = l }
}

// WithCatalogMetrics records index builds on m.
func WithCatalogMetrics(m *metrics.Collector) CatalogOption {
	return func(c *Catalog) { c.metrics = m }
}

// NewCatalog loads and indexes every terminology kind. Any failure is returned: the search
// feature cannot start without all of its indexes.
func NewCatalog(loader *terminology.Loader, opts *keyword.Options, catalogOpts ...CatalogOption) (*Catalog, error) {
	c := &Catalog{
		loader:  loader,
		opts:    opts,
		logger:  zap.NewNop(),
		entries: make(map[terminology.Kind]*atomic.Pointer[catalogEntry], len(terminology.Kinds)),
	}
	for _, o := range catalogOpts {
		o(c)
	}
	for _, kind := range terminology.Kinds {
		entry, err := c.build(kind)
		if err != nil {
			c.Close()
			return nil, err
		}
		p := &atomic.Pointer[catalogEntry]{}
		p.Store(entry)
		c.entries[kind] = p
	}
	return c, nil
}

func (c *Catalog) build(kind terminology.Kind) (*catalogEntry, error) {
	codings, err := c.loader.Load(kind)
	if err == nil {
		var idx *keyword.CodeIndex
		idx, err = keyword.Build(codings, c.opts)
		var speller *keyword.SpellChecker
		if err == nil {
			speller, err = keyword.NewSpellChecker(idx)
			if err != nil {
				_ = idx.Close()
			}
		}
		if err == nil {
			c.recordBuild(kind, "ok", idx.Len())
			c.logger.Info("terminology indexed",
				zap.String("kind", string(kind)),
				zap.Int("codings", idx.Len()),
				zap.String("source", c.source(kind)))
			return &catalogEntry{index: idx, speller: speller, codings: codings}, nil
		}
	}
	c.recordBuild(kind, "error", -1)
	return nil, fmt.Errorf("failed to build %s index: %w", kind, err)
}

func (c *Catalog) source(kind terminology.Kind) string {
	if p := c.loader.Path(kind); p != "" {
		return p
	}
	return "embedded"
}

func (c *Catalog) recordBuild(kind terminology.Kind, outcome string, size int) {
	if c.metrics == nil {
		return
	}
	c.metrics.TerminologyRebuildsTotal.WithLabelValues(string(kind), outcome).Inc()
	if size >= 0 {
		c.metrics.TerminologyCodings.WithLabelValues(string(kind)).Set(float64(size))
	}
}

// Reload rebuilds the index of kind from its source. On failure the current index stays active.
func (c *Catalog) Reload(kind terminology.Kind) error {
	p, ok := c.entries[kind]
	if !ok {
		return fmt.Errorf("unknown terminology kind %q", kind)
	}
	entry, err := c.build(kind)
	if err != nil {
		c.logger.Error("terminology reload failed, keeping previous index",
			zap.String("kind", string(kind)), zap.Error(err))
		return err
	}
	// The previous index is left to the garbage collector: in-flight searches may still hold it.
	p.Store(entry)
	return nil
}

// ReloadPath reloads every kind backed by path and reports whether any matched.
func (c *Catalog) ReloadPath(path string) bool {
	matched := false
	path = filepath.Clean(path)
	for _, kind := range terminology.Kinds {
		if p := c.loader.Path(kind); p != "" && filepath.Clean(p) == path {
			matched = true
			_ = c.Reload(kind)
		}
	}
	return matched
}

// Paths returns the files backing the catalog; embedded kinds are omitted.
func (c *Catalog) Paths() []string {
	var paths []string
	for _, kind := range terminology.Kinds {
		if p := c.loader.Path(kind); p != "" {
			paths = append(paths, p)
		}
	}
	return paths
}

func (c *Catalog) entry(kind terminology.Kind) *catalogEntry {
	if p, ok := c.entries[kind]; ok {
		return p.Load()
	}
	return nil
}

// Index returns the active index of kind, or nil for an unknown kind.
func (c *Catalog) Index(kind terminology.Kind) *keyword.CodeIndex {
	if e := c.entry(kind); e != nil {
		return e.index
	}
	return nil
}

// Searcher returns a Searcher that always queries the active index of kind.
func (c *Catalog) Searcher(kind terminology.Kind) Searcher {
	return catalogSearcher{catalog: c, kind: kind}
}

// Lookup returns the coding of kind with code from the active index.
func (c *Catalog) Lookup(kind terminology.Kind, code string) (models.Coding, bool) {
	if idx := c.Index(kind); idx != nil {
		return idx.Lookup(code)
	}
	return models.Coding{}, false
}

// Suggest returns a spelling-corrected version of query against the vocabulary of kind,
// or "" when no term needed correcting.
func (c *Catalog) Suggest(kind terminology.Kind, query string) string {
	if e := c.entry(kind); e != nil {
		return e.speller.GetSuggestedQuery(query)
	}
	return ""
}

// Defaults returns the first n codings of kind in terminology order.
func (c *Catalog) Defaults(kind terminology.Kind, n int) []models.Coding {
	e := c.entry(kind)
	if e == nil {
		return []models.Coding{}
	}
	return terminology.Defaults(e.codings, n)
}

// Close releases every active index.
func (c *Catalog) Close() {
	for _, p := range c.entries {
		if e := p.Load(); e != nil {
			_ = e.index.Close()
		}
	}
}

type catalogSearcher struct {
	catalog *Catalog
	kind    terminology.Kind
}

func (s catalogSearcher) Search(query string) ([]models.Coding, error) {
	idx := s.catalog.Index(s.kind)
	if idx == nil {
		return nil, fmt.Errorf("no index for terminology kind %q", s.kind)
	}
	return idx.Search(query)
}
