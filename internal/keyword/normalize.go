package keyword

import (
	"regexp"
	"strings"
)

var parenthetical = regexp.MustCompile(`\(.*?\)`)

// modalitySynonyms append a clinical abbreviation after the first occurrence of the modality name.
var modalitySynonyms = []struct {
	pattern *regexp.Regexp
	token   string
}{
	{regexp.MustCompile(`(?i)computed tomography`), "CT"},
	{regexp.MustCompile(`(?i)magnetic resonance`), "MRI"},
}

// Normalize derives the searchable text of a display string: the first parenthetical
// qualifier is removed and the CT / MRI abbreviations are injected next to their modality.
//
//	"Computed tomography of chest (procedure)" -> "Computed tomography CT of chest"
func Normalize(display string) string {
	s := display
	if loc := parenthetical.FindStringIndex(s); loc != nil {
		s = s[:loc[0]] + s[loc[1]:]
	}
	for _, syn := range modalitySynonyms {
		if loc := syn.pattern.FindStringIndex(s); loc != nil {
			s = s[:loc[1]] + " " + syn.token + s[loc[1]:]
		}
	}
	return strings.Join(strings.Fields(s), " ")
}
