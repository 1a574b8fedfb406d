package cli

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"strings"
	"testing"

	"github.com/hyperjump/pama/internal/cds"
	"github.com/hyperjump/pama/internal/models"
)

func sampleResult() *SearchResult {
	return &SearchResult{
		Kind:      "procedures",
		Query:     "ct chest",
		QueryTime: 12,
		Options: models.ToSelectOptions([]models.Coding{
			{Code: "71250", Display: "CT chest without contrast"},
			{Code: "71260", Display: "CT chest with contrast"},
		}),
	}
}

func TestWriteSearchResults_JSON(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteSearchResults(&buf, sampleResult(), OutputJSON); err != nil {
		t.Fatalf("WriteSearchResults(json): %v", err)
	}
	var decoded SearchResult
	if err := json.NewDecoder(&buf).Decode(&decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if decoded.Query != "ct chest" || decoded.QueryTime != 12 || decoded.Kind != "procedures" {
		t.Errorf("decoded header = %+v", decoded)
	}
	if len(decoded.Options) != 2 || decoded.Options[0].Value != "71250" || decoded.Options[0].Data.Display != "CT chest without contrast" {
		t.Errorf("decoded options = %+v", decoded.Options)
	}
}

func TestWriteSearchResults_JSON_empty(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteSearchResults(&buf, &SearchResult{Kind: "reasons", Query: "zzz"}, OutputJSON); err != nil {
		t.Fatalf("WriteSearchResults(json): %v", err)
	}
	if !strings.Contains(buf.String(), `"options": []`) {
		t.Errorf("empty results should encode as []:\n%s", buf.String())
	}
}

func TestWriteSearchResults_text(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteSearchResults(&buf, sampleResult(), OutputText); err != nil {
		t.Fatalf("WriteSearchResults(text): %v", err)
	}
	out := buf.String()
	for _, sub := range []string{"Found 2 procedures", `"ct chest"`, "12ms", "1. 71250", "CT chest with contrast"} {
		if !strings.Contains(out, sub) {
			t.Errorf("text output missing %q:\n%s", sub, out)
		}
	}
}

func TestWriteSearchResults_textSuggestion(t *testing.T) {
	var buf bytes.Buffer
	result := &SearchResult{Kind: "procedures", Query: "cehst", Suggestion: "chest"}
	if err := WriteSearchResults(&buf, result, OutputText); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), `Did you mean "chest"?`) {
		t.Errorf("missing suggestion:\n%s", buf.String())
	}
}

func TestWriteSearchResults_compact(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteSearchResults(&buf, sampleResult(), OutputCompact); err != nil {
		t.Fatalf("WriteSearchResults(compact): %v", err)
	}
	want := "71250\tCT chest without contrast\n71260\tCT chest with contrast\n"
	if buf.String() != want {
		t.Errorf("compact output = %q, want %q", buf.String(), want)
	}
}

func TestWriteSearchResults_unknownFormatTreatedAsText(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteSearchResults(&buf, &SearchResult{Kind: "reasons", Query: "x"}, SearchOutputFormat("unknown")); err != nil {
		t.Fatalf("WriteSearchResults(unknown): %v", err)
	}
	if !strings.Contains(buf.String(), "Found 0 reasons") {
		t.Errorf("unknown format should fall back to text; got %q", buf.String())
	}
}

func TestParseFormat(t *testing.T) {
	for _, s := range []string{"text", "compact", "json"} {
		if f, err := ParseFormat(s); err != nil || string(f) != s {
			t.Errorf("ParseFormat(%q) = %q, %v", s, f, err)
		}
	}
	if _, err := ParseFormat("xml"); err == nil {
		t.Error("ParseFormat(xml) should fail")
	}
}

func TestWriteContext(t *testing.T) {
	h := cds.PamaHandler{}
	hctx := h.GenerateContext(cds.State{
		DraftID: "d1",
		Patient: models.Patient{ID: "p1"},
		ServiceRequest: models.ServiceRequestDraft{
			StudyCoding:   &models.Coding{Code: "70551", Display: "MRI brain"},
			ReasonCodings: []models.Coding{{Code: "R51.9", Display: "Headache, unspecified"}},
		},
	})
	var buf bytes.Buffer
	if err := WriteContext(&buf, hctx); err != nil {
		t.Fatalf("WriteContext: %v", err)
	}
	out := buf.String()
	for _, sub := range []string{`"ServiceRequest/d1"`, `"resourceType": "Bundle"`, `"Patient/p1"`, `"70551"`, `"R51.9"`} {
		if !strings.Contains(out, sub) {
			t.Errorf("context output missing %s:\n%s", sub, out)
		}
	}
}

func TestJoinArgs(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"single word", []string{"headache"}, "headache"},
		{"multiple words", []string{"ct", "chest"}, "ct chest"},
		{"quoted phrase", []string{"ct chest"}, "ct chest"},
		{"empty", nil, ""},
		{"whitespace", []string{"  ", " "}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := JoinArgs(tt.args); got != tt.want {
				t.Errorf("JoinArgs(%q) = %q, want %q", tt.args, got, tt.want)
			}
		})
	}
}

func TestPrintSearchResults(t *testing.T) {
	oldStdout := os.Stdout
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("pipe: %v", err)
	}
	os.Stdout = w
	defer func() {
		os.Stdout = oldStdout
		_ = w.Close()
	}()
	PrintSearchResults(&SearchResult{Kind: "reasons", Query: "print test"})
	_ = w.Close()
	var buf bytes.Buffer
	_, _ = io.Copy(&buf, r)
	if !strings.Contains(buf.String(), "Found 0 reasons") {
		t.Errorf("PrintSearchResults should write to stdout; got %q", buf.String())
	}
}
