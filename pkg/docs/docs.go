// Package docs generates glucose-pulse reference documentation: the
// configuration reference, template tokens, and status bar integration.
package docs

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Section is one Markdown document. Sections sort by Order and may nest.
type Section struct {
	Title       string
	Slug        string
	Content     string
	Order       int
	SubSections []Section
}

// DocGenerator renders a set of sections either as one file per section or
// as a single combined document.
type DocGenerator struct {
	OutputDir string
	Sections  []Section
}

func New(outputDir string) *DocGenerator {
	return &DocGenerator{OutputDir: outputDir}
}

func (g *DocGenerator) Add(title, slug, content string, order int) {
	g.AddSection(Section{Title: title, Slug: slug, Content: content, Order: order})
}

func (g *DocGenerator) AddSection(s Section) {
	g.Sections = append(g.Sections, s)
}

// Generate writes <slug>.md for every top-level section.
func (g *DocGenerator) Generate() error {
	if err := os.MkdirAll(g.OutputDir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	for _, s := range ordered(g.Sections) {
		var b strings.Builder
		render(&b, s, 1)
		path := filepath.Join(g.OutputDir, s.Slug+".md")
		if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
	}
	return nil
}

// GenerateSingle returns every section in one document with a table of
// contents.
func (g *DocGenerator) GenerateSingle() (string, error) {
	sections := ordered(g.Sections)

	var b strings.Builder
	b.WriteString("# glucose-pulse Documentation\n\n## Table of Contents\n\n")
	for i, s := range sections {
		fmt.Fprintf(&b, "%d. [%s](#%s)\n", i+1, s.Title, s.Slug)
	}
	for _, s := range sections {
		b.WriteString("\n---\n\n")
		render(&b, s, 2)
	}
	return b.String(), nil
}

func ordered(sections []Section) []Section {
	out := append([]Section(nil), sections...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Order < out[j].Order })
	return out
}

func render(b *strings.Builder, s Section, level int) {
	fmt.Fprintf(b, "%s %s\n\n", strings.Repeat("#", level), s.Title)
	if body := strings.TrimRight(s.Content, "\n"); body != "" {
		b.WriteString(body)
		b.WriteString("\n\n")
	}
	for _, sub := range ordered(s.SubSections) {
		render(b, sub, level+1)
	}
}

// Default holds every built-in document.
func Default(outputDir string) *DocGenerator {
	g := New(outputDir)
	g.Add("Configuration Reference", "configuration", stripTitle(ConfigMarkdown()), 10)
	g.Add("Template Tokens", "tokens", stripTitle(TokenMarkdown()), 20)
	g.Add("Status Bar Integration", "hosts", stripTitle(HostMarkdown()), 30)
	return g
}

// stripTitle drops a leading "# Title" line; the section heading replaces
// it.
func stripTitle(doc string) string {
	if !strings.HasPrefix(doc, "# ") {
		return doc
	}
	_, rest, ok := strings.Cut(doc, "\n")
	if !ok {
		return ""
	}
	return strings.TrimLeft(rest, "\n")
}
