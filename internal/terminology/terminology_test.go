package terminology

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestLoader_Embedded(t *testing.T) {
	l := NewLoader("", "")
	for _, kind := range Kinds {
		codings, err := l.Load(kind)
		if err != nil {
			t.Fatalf("Load(%s): %v", kind, err)
		}
		if len(codings) == 0 {
			t.Fatalf("Load(%s): no codings", kind)
		}
		seen := make(map[string]bool)
		for _, c := range codings {
			if c.Code == "" || c.Display == "" {
				t.Errorf("%s: incomplete coding %+v", kind, c)
			}
			if seen[c.Code] {
				t.Errorf("%s: duplicate code %s", kind, c.Code)
			}
			seen[c.Code] = true
		}
	}
}

func TestLoader_FileOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "reasons.json")
	content := `{"resourceType":"ValueSet","expansion":{"contains":[{"code":"R51.9","display":"Headache, unspecified"}]}}`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	l := NewLoader("", path)
	codings, err := l.Load(Reasons)
	if err != nil {
		t.Fatal(err)
	}
	if len(codings) != 1 || codings[0].Code != "R51.9" {
		t.Errorf("got %+v", codings)
	}
	if l.Path(Reasons) != path || l.Path(Procedures) != "" {
		t.Errorf("Path: got %q / %q", l.Path(Reasons), l.Path(Procedures))
	}
}

func TestLoader_MissingFile(t *testing.T) {
	l := NewLoader(filepath.Join(t.TempDir(), "missing.json"), "")
	if _, err := l.Load(Procedures); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantLen int
		wantErr error
	}{
		{"valid", `{"resourceType":"ValueSet","expansion":{"contains":[{"code":"a","display":"A"},{"code":"b","display":"B"}]}}`, 2, nil},
		{"empty contains", `{"resourceType":"ValueSet","expansion":{"contains":[]}}`, 0, ErrEmptyValueSet},
		{"no expansion", `{"resourceType":"ValueSet"}`, 0, ErrEmptyValueSet},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse([]byte(tt.input))
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Parse error = %v, want %v", err, tt.wantErr)
			}
			if len(got) != tt.wantLen {
				t.Errorf("len = %d, want %d", len(got), tt.wantLen)
			}
		})
	}
	if _, err := Parse([]byte(`{"resourceType":"Bundle"}`)); err == nil {
		t.Error("expected error for non-ValueSet resource")
	}
	if _, err := Parse([]byte(`not json`)); err == nil {
		t.Error("expected error for invalid JSON")
	}
}

func TestParseKind(t *testing.T) {
	if k, err := ParseKind("procedures"); err != nil || k != Procedures {
		t.Errorf("ParseKind(procedures) = %q, %v", k, err)
	}
	if k, err := ParseKind("reasons"); err != nil || k != Reasons {
		t.Errorf("ParseKind(reasons) = %q, %v", k, err)
	}
	if _, err := ParseKind("drugs"); err == nil {
		t.Error("expected error for unknown kind")
	}
}

func TestDefaults(t *testing.T) {
	codings, err := NewLoader("", "").Load(Procedures)
	if err != nil {
		t.Fatal(err)
	}
	if got := Defaults(codings, 10); len(got) != 10 || got[0] != codings[0] {
		t.Errorf("Defaults(10) len = %d", len(got))
	}
	if got := Defaults(codings, 10000); len(got) != len(codings) {
		t.Errorf("Defaults over length = %d, want %d", len(got), len(codings))
	}
	if got := Defaults(codings, -1); len(got) != len(codings) {
		t.Errorf("Defaults(-1) = %d, want all", len(got))
	}
}
