// Package templates implements the template store (C3): a static catalog of
// named system-prompt templates with literal {name}-placeholder substitution
// and required/optional variable validation.
package templates

import (
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/haasonsaas/docassist/internal/errkind"
)

var titleCaser = cases.Title(language.Und)

// TitleCase renders s in title case, e.g. for turning a git service
// identifier like "github" into display text ("Github") inside a rendered
// template. Kept as a package-level helper rather than a template function
// since this store resolves {name} placeholders literally, not through
// text/template.
func TitleCase(s string) string {
	return titleCaser.String(s)
}

// Template is a named prompt template. Text uses {name} placeholders
// resolved against a string-keyed variable bag; RequiredVariables must all
// be present at render time, OptionalVariables may be absent.
type Template struct {
	ID                 string   `json:"id"`
	Text               string   `json:"text"`
	RequiredVariables  []string `json:"required_variables"`
	OptionalVariables  []string `json:"optional_variables"`
	PathSuffixMatch    string   `json:"-"` // e.g. "README" selects this template by current_path suffix
}

// RenderError reports a template rendering failure, always classified
// template_error per spec.md §7.
type RenderError struct {
	TemplateID string
	Kind       errkind.Kind
	Msg        string
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("render template %q: %s", e.TemplateID, e.Msg)
}

var placeholderPattern = regexp.MustCompile(`\{([a-zA-Z_][a-zA-Z0-9_.]*)\}`)

// Store is a static, in-memory catalog of templates. It is safe for
// concurrent read-only use once built; Store's only mutation API beyond
// construction is SetDefault, which is not synchronized, mirroring the teacher's registry which separates
// read-heavy lookup from write-heavy import/export concerns we do not need
// here.
type Store struct {
	templates map[string]Template
	// order preserves catalog iteration order for List, independent of Go's
	// randomized map iteration.
	order []string
	// defaultID is returned by Default when no path-suffix rule matches.
	defaultID string
}

// NewStore builds a Store from a fixed set of templates. The first template
// is used as the fallback default unless a later call to SetDefault
// overrides it.
func NewStore(tmpls []Template) (*Store, error) {
	s := &Store{templates: make(map[string]Template, len(tmpls))}
	for _, t := range tmpls {
		if _, exists := s.templates[t.ID]; exists {
			return nil, fmt.Errorf("duplicate template id %q", t.ID)
		}
		s.templates[t.ID] = t
		s.order = append(s.order, t.ID)
	}
	if len(s.order) > 0 {
		s.defaultID = s.order[0]
	}
	return s, nil
}

// SetDefault overrides which template ID Default/SelectForPath fall back to.
func (s *Store) SetDefault(id string) error {
	if _, ok := s.templates[id]; !ok {
		return fmt.Errorf("unknown template id %q", id)
	}
	s.defaultID = id
	return nil
}

// Get returns the template for id.
func (s *Store) Get(id string) (Template, bool) {
	t, ok := s.templates[id]
	return t, ok
}

// List returns the catalog in registration order.
func (s *Store) List() []Template {
	out := make([]Template, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.templates[id])
	}
	return out
}

// SelectForPath picks a template by current_path suffix match (e.g. a path
// ending in "README" or "README.md" selects a documentation-specialist
// template), falling back to the catalog default when nothing matches.
func (s *Store) SelectForPath(currentPath string) (Template, bool) {
	for _, id := range s.order {
		t := s.templates[id]
		if t.PathSuffixMatch != "" && (strings.HasSuffix(currentPath, t.PathSuffixMatch) ||
			strings.HasSuffix(strings.TrimSuffix(currentPath, ".md"), t.PathSuffixMatch)) {
			return t, true
		}
	}
	return s.Default()
}

// Default returns the fallback template, if the catalog is non-empty.
func (s *Store) Default() (Template, bool) {
	if s.defaultID == "" {
		return Template{}, false
	}
	t, ok := s.templates[s.defaultID]
	return t, ok
}

// Render substitutes {key} placeholders in the named template's Text with
// vars[key]. Every required variable must be present and non-empty in vars;
// a missing one fails with RenderError wrapping errkind.TemplateError.
// Unknown placeholders in Text that are not declared as required or
// optional are substituted if present in vars and left verbatim otherwise.
func (s *Store) Render(id string, vars map[string]string) (string, error) {
	t, ok := s.templates[id]
	if !ok {
		return "", &RenderError{TemplateID: id, Kind: errkind.TemplateError, Msg: "unknown template id"}
	}
	return t.Render(vars)
}

// Render substitutes {key} placeholders in t.Text with vars[key], failing
// if any RequiredVariables entry is missing or empty.
func (t Template) Render(vars map[string]string) (string, error) {
	for _, req := range t.RequiredVariables {
		v, ok := vars[req]
		if !ok || v == "" {
			return "", &RenderError{
				TemplateID: t.ID,
				Kind:       errkind.TemplateError,
				Msg:        fmt.Sprintf("missing required variable %q", req),
			}
		}
	}
	return placeholderPattern.ReplaceAllStringFunc(t.Text, func(match string) string {
		name := match[1 : len(match)-1]
		if v, ok := vars[name]; ok {
			return v
		}
		return match
	}), nil
}

// ExtractVariables returns the distinct {name} placeholders referenced in
// text, in first-seen order.
func ExtractVariables(text string) []string {
	matches := placeholderPattern.FindAllStringSubmatch(text, -1)
	seen := make(map[string]bool, len(matches))
	var out []string
	for _, m := range matches {
		name := m[1]
		if !seen[name] {
			seen[name] = true
			out = append(out, name)
		}
	}
	return out
}
