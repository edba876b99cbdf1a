package toolset

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/Iron-Ham/dossier/internal/errors"
)

func TestSelect(t *testing.T) {
	tests := []struct {
		name     string
		patterns []string
		want     []string
		wantErr  bool
	}{
		{name: "nil selects nothing", patterns: nil, want: nil},
		{name: "exact", patterns: []string{"web_search"}, want: []string{"web_search"}},
		{name: "glob", patterns: []string{"rag_*"}, want: []string{"rag_hybrid", "rag_naive"}},
		{
			name:     "catalog order and dedupe",
			patterns: []string{"web_search", "*search", "rag_hybrid"},
			want:     []string{"rag_hybrid", "paper_search", "web_search"},
		},
		{name: "alternation", patterns: []string{"{run_code,query_item}"}, want: []string{"query_item", "run_code"}},
		{name: "blank patterns ignored", patterns: []string{" ", "run_code"}, want: []string{"run_code"}},
		{name: "no match", patterns: []string{"nope*"}, wantErr: true},
		{name: "bad pattern", patterns: []string{"[unclosed"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Default().Select(tt.patterns)
			if tt.wantErr {
				if !errors.Is(err, errors.ErrInvalidInput) {
					t.Fatalf("Select() error = %v, want validation error", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Select() error = %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Select() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestFromNames(t *testing.T) {
	c := FromNames([]string{"web_search", "custom_tool", "web_search", ""})
	if diff := cmp.Diff([]string{"web_search", "custom_tool"}, c.Names()); diff != "" {
		t.Errorf("Names() mismatch (-want +got):\n%s", diff)
	}
	if tool, _ := c.Lookup("web_search"); tool.Description == "" {
		t.Error("known tool lost its description")
	}
	if len(FromNames(nil)) != len(Default()) {
		t.Error("empty names should give the default catalog")
	}
}

func TestDefaultIsACopy(t *testing.T) {
	c := Default()
	c[0].Name = "changed"
	if Default()[0].Name == "changed" {
		t.Error("Default() must not share its backing array")
	}
}

func TestUnknown(t *testing.T) {
	got := Default().Unknown([]string{"web_search", "zeta", "alpha", "zeta"})
	if diff := cmp.Diff([]string{"alpha", "zeta"}, got); diff != "" {
		t.Errorf("Unknown() mismatch (-want +got):\n%s", diff)
	}
}
