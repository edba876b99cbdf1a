// Package toolset names the research tools a run may enable and expands
// glob patterns such as "rag_*" into concrete tool names.
package toolset

import (
	"slices"
	"sort"
	"strings"

	"github.com/gobwas/glob"

	"github.com/Iron-Ham/dossier/internal/errors"
)

// Tool is one tool the research service can call.
type Tool struct {
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
}

// Catalog is an ordered set of tools.
type Catalog []Tool

var defaultTools = Catalog{
	{Name: "rag_hybrid", Description: "Hybrid retrieval over the knowledge base"},
	{Name: "rag_naive", Description: "Vector retrieval over the knowledge base"},
	{Name: "query_item", Description: "Look up a numbered item in the knowledge base"},
	{Name: "paper_search", Description: "Search academic papers"},
	{Name: "web_search", Description: "Search the web"},
	{Name: "run_code", Description: "Execute code in a sandbox"},
}

// Default returns the built-in catalog.
func Default() Catalog {
	return slices.Clone(defaultTools)
}

// FromNames builds a catalog from configured names, keeping descriptions
// of known tools. Blank and duplicate names are skipped. An empty list
// yields the default catalog.
func FromNames(names []string) Catalog {
	if len(names) == 0 {
		return Default()
	}
	known := Default()
	var c Catalog
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" || c.Has(n) {
			continue
		}
		if t, ok := known.Lookup(n); ok {
			c = append(c, t)
			continue
		}
		c = append(c, Tool{Name: n})
	}
	return c
}

// Names returns tool names in catalog order.
func (c Catalog) Names() []string {
	names := make([]string, len(c))
	for i, t := range c {
		names[i] = t.Name
	}
	return names
}

// Lookup finds a tool by exact name.
func (c Catalog) Lookup(name string) (Tool, bool) {
	i := slices.IndexFunc(c, func(t Tool) bool { return t.Name == name })
	if i < 0 {
		return Tool{}, false
	}
	return c[i], true
}

// Has reports whether name is in the catalog.
func (c Catalog) Has(name string) bool {
	_, ok := c.Lookup(name)
	return ok
}

// Select expands patterns against the catalog. The result follows catalog
// order without duplicates. A nil or empty pattern list selects nothing, so
// the service applies its own default. A pattern that does not compile or
// matches no tool is an error.
func (c Catalog) Select(patterns []string) ([]string, error) {
	if len(patterns) == 0 {
		return nil, nil
	}

	selected := make(map[string]bool)
	for _, p := range patterns {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		g, err := glob.Compile(p)
		if err != nil {
			return nil, errors.NewValidationError("invalid tool pattern").
				WithField("enabled_tools").WithValue(p).WithCause(err)
		}
		matched := false
		for _, t := range c {
			if g.Match(t.Name) {
				selected[t.Name] = true
				matched = true
			}
		}
		if !matched {
			return nil, errors.NewValidationError("no tool matches pattern").
				WithField("enabled_tools").WithValue(p)
		}
	}

	var out []string
	for _, t := range c {
		if selected[t.Name] {
			out = append(out, t.Name)
		}
	}
	return out, nil
}

// Unknown returns the names not in the catalog, sorted.
func (c Catalog) Unknown(names []string) []string {
	var out []string
	for _, n := range names {
		if !c.Has(n) && !slices.Contains(out, n) {
			out = append(out, n)
		}
	}
	sort.Strings(out)
	return out
}
