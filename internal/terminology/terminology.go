// Package terminology loads the fixed procedure and reason code lists from FHIR ValueSet expansions.
package terminology

import (
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/hyperjump/pama/internal/models"
)

// The embedded ValueSets are a small sample for development and tests. Production
// deployments point terminology.procedures_path and reasons_path at the full expansions.
//
//go:embed data/*.json
var embedded embed.FS

// Kind selects one of the two terminology sets.
type Kind string

const (
	Procedures Kind = "procedures"
	Reasons    Kind = "reasons"
)

// Kinds lists every terminology set in load order.
var Kinds = []Kind{Procedures, Reasons}

// ErrEmptyValueSet is returned when a ValueSet expansion has no codings.
var ErrEmptyValueSet = errors.New("value set expansion contains no codings")

// ParseKind validates a kind name from user input.
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case Procedures, Reasons:
		return Kind(s), nil
	default:
		return "", fmt.Errorf("unknown terminology kind %q (use procedures or reasons)", s)
	}
}

func (k Kind) embeddedFile() string {
	if k == Reasons {
		return "data/pama-reason-codes.json"
	}
	return "data/pama-procedure-codes.json"
}

type valueSet struct {
	ResourceType string `json:"resourceType"`
	Expansion    struct {
		Contains []models.Coding `json:"contains"`
	} `json:"expansion"`
}

// Loader reads terminology sets from configured files, falling back to the embedded reference data.
type Loader struct {
	paths map[Kind]string
}

// NewLoader creates a loader. Empty paths use the embedded data.
func NewLoader(proceduresPath, reasonsPath string) *Loader {
	return &Loader{paths: map[Kind]string{Procedures: proceduresPath, Reasons: reasonsPath}}
}

// Path returns the file backing kind, or "" when the embedded data is used.
func (l *Loader) Path(kind Kind) string {
	return l.paths[kind]
}

// Load returns the codings of kind in ValueSet order.
func (l *Loader) Load(kind Kind) ([]models.Coding, error) {
	var (
		data []byte
		err  error
	)
	if path := l.paths[kind]; path != "" {
		data, err = os.ReadFile(path)
	} else {
		data, err = embedded.ReadFile(kind.embeddedFile())
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s value set: %w", kind, err)
	}
	codings, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s value set: %w", kind, err)
	}
	return codings, nil
}

// Parse decodes a ValueSet and returns its expansion.contains entries.
func Parse(data []byte) ([]models.Coding, error) {
	var vs valueSet
	if err := json.Unmarshal(data, &vs); err != nil {
		return nil, err
	}
	if vs.ResourceType != "" && vs.ResourceType != "ValueSet" {
		return nil, fmt.Errorf("unexpected resourceType %q", vs.ResourceType)
	}
	if len(vs.Expansion.Contains) == 0 {
		return nil, ErrEmptyValueSet
	}
	return vs.Expansion.Contains, nil
}

// Defaults returns the first n codings, used as options before the user has typed anything.
func Defaults(codings []models.Coding, n int) []models.Coding {
	if n < 0 || n > len(codings) {
		n = len(codings)
	}
	return codings[:n]
}
