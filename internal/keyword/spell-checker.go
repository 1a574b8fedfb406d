package keyword

import (
	"sort"
	"strings"
	"unicode/utf8"
)

// minCheckedTermLen leaves abbreviations such as "ct" or "mr" alone.
const minCheckedTermLen = 3

// TermDictionary exposes the vocabulary a SpellChecker corrects against.
type TermDictionary interface {
	GetAllTerms() ([]string, error)
	GetTermFrequency(term string) (int, error)
}

// Suggestion represents a spelling suggestion with its score.
type Suggestion struct {
	Term      string  // The suggested term
	Distance  int     // Edit distance from the original term
	Frequency int     // Number of codings containing the term
	Score     float64 // Combined score for ranking
}

// SpellCheckResult contains the result of spell checking a query.
type SpellCheckResult struct {
	OriginalQuery   string
	CorrectedQuery  string
	Suggestions     []Suggestion
	HasCorrections  bool
	MisspelledTerms []string
}

// SpellChecker proposes corrections for query terms missing from a dictionary.
type SpellChecker struct {
	dictionary     TermDictionary
	analyze        func(string) ([]string, error)
	maxDistance    int
	maxSuggestions int

	terms   []string
	termSet map[string]struct{}
}

// SpellCheckerOption is a functional option for configuring SpellChecker.
type SpellCheckerOption func(*SpellChecker)

// WithMaxDistance sets the maximum edit distance for suggestions.
func WithMaxDistance(d int) SpellCheckerOption {
	return func(s *SpellChecker) {
		if d > 0 {
			s.maxDistance = d
		}
	}
}

// WithMaxSuggestions sets the maximum number of suggestions to return per term.
func WithMaxSuggestions(n int) SpellCheckerOption {
	return func(s *SpellChecker) {
		if n > 0 {
			s.maxSuggestions = n
		}
	}
}

// NewSpellChecker creates a SpellChecker over the vocabulary of idx. Queries are analyzed
// the same way idx analyzes them.
func NewSpellChecker(idx *CodeIndex, opts ...SpellCheckerOption) (*SpellChecker, error) {
	return newSpellChecker(idx, idx.analyze, opts...)
}

func newSpellChecker(dict TermDictionary, analyze func(string) ([]string, error), opts ...SpellCheckerOption) (*SpellChecker, error) {
	s := &SpellChecker{
		dictionary:     dict,
		analyze:        analyze,
		maxDistance:    2,
		maxSuggestions: 5,
	}
	for _, opt := range opts {
		opt(s)
	}
	terms, err := dict.GetAllTerms()
	if err != nil {
		return nil, err
	}
	s.terms = terms
	s.termSet = make(map[string]struct{}, len(terms))
	for _, t := range terms {
		s.termSet[t] = struct{}{}
	}
	return s, nil
}

// Check checks a query for spelling errors and returns suggestions.
func (s *SpellChecker) Check(query string) (*SpellCheckResult, error) {
	terms, err := s.analyze(query)
	if err != nil {
		return nil, err
	}
	result := &SpellCheckResult{
		OriginalQuery:   query,
		Suggestions:     make([]Suggestion, 0),
		MisspelledTerms: make([]string, 0),
	}
	corrected := make([]string, 0, len(terms))
	for _, term := range terms {
		if !s.IsMisspelled(term) {
			corrected = append(corrected, term)
			continue
		}
		suggestions := s.Suggest(term)
		if len(suggestions) == 0 {
			corrected = append(corrected, term)
			continue
		}
		result.HasCorrections = true
		result.MisspelledTerms = append(result.MisspelledTerms, term)
		result.Suggestions = append(result.Suggestions, suggestions...)
		corrected = append(corrected, suggestions[0].Term)
	}
	result.CorrectedQuery = strings.Join(corrected, " ")
	return result, nil
}

// Suggest returns dictionary terms within the edit distance of term, best first.
func (s *SpellChecker) Suggest(term string) []Suggestion {
	term = strings.ToLower(term)
	n := utf8.RuneCountInString(term)
	suggestions := make([]Suggestion, 0)
	for _, candidate := range s.terms {
		if candidate == term {
			continue
		}
		// Quick length check: a larger length difference cannot be within distance.
		diff := utf8.RuneCountInString(candidate) - n
		if diff < 0 {
			diff = -diff
		}
		if diff > s.maxDistance {
			continue
		}
		distance := DamerauLevenshteinDistance(term, candidate)
		if distance > s.maxDistance {
			continue
		}
		freq, err := s.dictionary.GetTermFrequency(candidate)
		if err != nil || freq < 1 {
			continue
		}
		suggestions = append(suggestions, Suggestion{
			Term:      candidate,
			Distance:  distance,
			Frequency: freq,
			Score:     float64(freq) / float64(distance+1),
		})
	}
	sort.Slice(suggestions, func(i, j int) bool {
		if suggestions[i].Score != suggestions[j].Score {
			return suggestions[i].Score > suggestions[j].Score
		}
		return suggestions[i].Term < suggestions[j].Term
	})
	if len(suggestions) > s.maxSuggestions {
		suggestions = suggestions[:s.maxSuggestions]
	}
	return suggestions
}

// IsMisspelled reports whether term is long enough to check and absent from the dictionary.
func (s *SpellChecker) IsMisspelled(term string) bool {
	term = strings.ToLower(term)
	if utf8.RuneCountInString(term) < minCheckedTermLen {
		return false
	}
	_, exists := s.termSet[term]
	return !exists
}

// GetSuggestedQuery returns the corrected query, or "" when nothing was corrected.
func (s *SpellChecker) GetSuggestedQuery(query string) string {
	result, err := s.Check(query)
	if err != nil || !result.HasCorrections {
		return ""
	}
	return result.CorrectedQuery
}
