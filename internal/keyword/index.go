// Package keyword provides the full-text code index over a fixed terminology set.
package keyword

import (
	"errors"
	"fmt"
	"sort"
	"unicode/utf8"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"
	blevequery "github.com/blevesearch/bleve/v2/search/query"
	"github.com/hyperjump/pama/internal/models"
)

const (
	fieldSearch = "search"
	fieldCode   = "code"

	// minFuzzyTermLen keeps very short terms (e.g. "ct") from fuzzy-matching most of the index.
	minFuzzyTermLen = 4
)

// ErrDuplicateCode is returned by Build when one code is listed with two different displays.
var ErrDuplicateCode = errors.New("duplicate terminology code")

// Options weights the ranking of a CodeIndex. Nil means use defaults.
type Options struct {
	// SearchBoost weights matches in the normalized display text.
	SearchBoost float64
	// CodeBoost weights matches in the raw code.
	CodeBoost float64
	// PrefixBoost scales a field's boost for prefix matches (e.g. "tomo" -> "tomography").
	PrefixBoost float64
	// FuzzyBoost scales a field's boost for fuzzy matches; keep it below PrefixBoost so
	// exact and prefix hits always outrank typo-tolerant ones.
	FuzzyBoost float64
	// Fuzziness is the maximum Levenshtein edit distance for fuzzy matches (0 disables them).
	Fuzziness int
}

// DefaultOptions returns the ranking used when no options are given.
func DefaultOptions() *Options {
	return &Options{
		SearchBoost: 3.0,
		CodeBoost:   2.0,
		PrefixBoost: 0.5,
		FuzzyBoost:  0.1,
		Fuzziness:   1,
	}
}

func (o *Options) withDefaults() Options {
	d := *DefaultOptions()
	if o == nil {
		return d
	}
	out := *o
	if out.SearchBoost <= 0 {
		out.SearchBoost = d.SearchBoost
	}
	if out.CodeBoost <= 0 {
		out.CodeBoost = d.CodeBoost
	}
	if out.PrefixBoost <= 0 {
		out.PrefixBoost = d.PrefixBoost
	}
	if out.FuzzyBoost <= 0 {
		out.FuzzyBoost = d.FuzzyBoost
	}
	if out.Fuzziness < 0 {
		out.Fuzziness = 0
	}
	return out
}

// CodeIndex is an immutable in-memory Bleve index over a list of codings.
// It is safe for concurrent searches.
type CodeIndex struct {
	index   bleve.Index
	mapping *mapping.IndexMappingImpl
	codings []models.IndexedCoding
	ordinal map[string]int
	vocab   map[string]int
	opts    Options
}

// Build indexes codings. Identical duplicates are collapsed and codings without a code are
// skipped; a code listed with two different displays fails with ErrDuplicateCode.
func Build(codings []models.Coding, opts *Options) (*CodeIndex, error) {
	im := bleve.NewIndexMapping()
	docMapping := bleve.NewDocumentMapping()
	// Standard analyzer (lowercase + tokenize, no stemming) for both fields so a query is
	// analyzed exactly like the text it is matched against.
	textFieldMapping := bleve.NewTextFieldMapping()
	textFieldMapping.Analyzer = standard.Name
	textFieldMapping.Store = false
	docMapping.AddFieldMappingsAt(fieldSearch, textFieldMapping)
	docMapping.AddFieldMappingsAt(fieldCode, textFieldMapping)
	im.AddDocumentMapping("coding", docMapping)
	im.DefaultType = "coding"
	im.DefaultMapping = docMapping

	ci := &CodeIndex{
		mapping: im,
		codings: make([]models.IndexedCoding, 0, len(codings)),
		ordinal: make(map[string]int, len(codings)),
		vocab:   make(map[string]int),
		opts:    opts.withDefaults(),
	}
	for _, c := range codings {
		if c.Code == "" {
			continue
		}
		if i, ok := ci.ordinal[c.Code]; ok {
			if ci.codings[i].Display != c.Display {
				return nil, fmt.Errorf("%w: %s (%q vs %q)", ErrDuplicateCode, c.Code, ci.codings[i].Display, c.Display)
			}
			continue
		}
		ci.ordinal[c.Code] = len(ci.codings)
		ci.codings = append(ci.codings, models.IndexedCoding{Coding: c, Search: Normalize(c.Display)})
	}

	for _, c := range ci.codings {
		terms, err := ci.analyze(c.Search)
		if err != nil {
			return nil, err
		}
		for _, t := range terms {
			ci.vocab[t]++
		}
	}

	index, err := bleve.NewMemOnly(im)
	if err != nil {
		return nil, fmt.Errorf("failed to create Bleve index: %w", err)
	}
	batch := index.NewBatch()
	for _, c := range ci.codings {
		doc := map[string]interface{}{
			fieldSearch: c.Search,
			fieldCode:   c.Code,
		}
		if err := batch.Index(c.Code, doc); err != nil {
			_ = index.Close()
			return nil, fmt.Errorf("failed to index code %s: %w", c.Code, err)
		}
	}
	if batch.Size() == 0 {
		ci.index = index
		return ci, nil
	}
	if err := index.Batch(batch); err != nil {
		_ = index.Close()
		return nil, fmt.Errorf("failed to commit Bleve batch: %w", err)
	}
	ci.index = index
	return ci, nil
}

// Search returns the codings matching query, best first. Equal scores keep the order the
// codings were given to Build. An empty or whitespace-only query returns no codings.
func (c *CodeIndex) Search(query string) ([]models.Coding, error) {
	terms, err := c.analyze(query)
	if err != nil {
		return nil, err
	}
	if len(terms) == 0 || len(c.codings) == 0 {
		return []models.Coding{}, nil
	}

	req := bleve.NewSearchRequest(c.buildQuery(terms))
	req.Size = len(c.codings)
	results, err := c.index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("Bleve search failed: %w", err)
	}

	type scored struct {
		ordinal int
		score   float64
	}
	hits := make([]scored, 0, len(results.Hits))
	for _, hit := range results.Hits {
		i, ok := c.ordinal[hit.ID]
		if !ok {
			continue
		}
		hits = append(hits, scored{ordinal: i, score: hit.Score})
	}
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].score != hits[j].score {
			return hits[i].score > hits[j].score
		}
		return hits[i].ordinal < hits[j].ordinal
	})

	out := make([]models.Coding, len(hits))
	for i, h := range hits {
		out[i] = c.codings[h.ordinal].Coding
	}
	return out, nil
}

// analyze runs query through the analyzer used at index time.
func (c *CodeIndex) analyze(query string) ([]string, error) {
	tokens, err := c.mapping.AnalyzeText(standard.Name, []byte(query))
	if err != nil {
		return nil, fmt.Errorf("failed to analyze query: %w", err)
	}
	terms := make([]string, 0, len(tokens))
	seen := make(map[string]struct{}, len(tokens))
	for _, tok := range tokens {
		term := string(tok.Term)
		if term == "" {
			continue
		}
		if _, ok := seen[term]; ok {
			continue
		}
		seen[term] = struct{}{}
		terms = append(terms, term)
	}
	return terms, nil
}

// buildQuery ORs, per term and per field, an exact term query, a prefix query and
// (for long enough terms) a fuzzy query. Documents matching more terms score higher
// through the disjunction's coordination factor.
func (c *CodeIndex) buildQuery(terms []string) blevequery.Query {
	fields := []struct {
		name  string
		boost float64
	}{
		{fieldSearch, c.opts.SearchBoost},
		{fieldCode, c.opts.CodeBoost},
	}
	perTerm := make([]blevequery.Query, 0, len(terms))
	for _, term := range terms {
		clauses := make([]blevequery.Query, 0, 3*len(fields))
		for _, f := range fields {
			tq := bleve.NewTermQuery(term)
			tq.SetField(f.name)
			tq.SetBoost(f.boost)
			clauses = append(clauses, tq)

			pq := bleve.NewPrefixQuery(term)
			pq.SetField(f.name)
			pq.SetBoost(f.boost * c.opts.PrefixBoost)
			clauses = append(clauses, pq)

			if c.opts.Fuzziness > 0 && utf8.RuneCountInString(term) >= minFuzzyTermLen {
				fq := bleve.NewFuzzyQuery(term)
				fq.SetField(f.name)
				fq.SetFuzziness(c.opts.Fuzziness)
				fq.SetBoost(f.boost * c.opts.FuzzyBoost)
				clauses = append(clauses, fq)
			}
		}
		perTerm = append(perTerm, bleve.NewDisjunctionQuery(clauses...))
	}
	if len(perTerm) == 1 {
		return perTerm[0]
	}
	return bleve.NewDisjunctionQuery(perTerm...)
}

// Lookup returns the coding with code.
func (c *CodeIndex) Lookup(code string) (models.Coding, bool) {
	i, ok := c.ordinal[code]
	if !ok {
		return models.Coding{}, false
	}
	return c.codings[i].Coding, true
}

// Len returns the number of indexed codings.
func (c *CodeIndex) Len() int {
	return len(c.codings)
}

// GetAllTerms returns the analyzed terms of every searchable display, sorted.
func (c *CodeIndex) GetAllTerms() ([]string, error) {
	terms := make([]string, 0, len(c.vocab))
	for t := range c.vocab {
		terms = append(terms, t)
	}
	sort.Strings(terms)
	return terms, nil
}

// GetTermFrequency returns how many codings contain term.
func (c *CodeIndex) GetTermFrequency(term string) (int, error) {
	return c.vocab[term], nil
}

// Close releases the Bleve index.
func (c *CodeIndex) Close() error {
	return c.index.Close()
}
