// Package tools implements the MCP tool suite (C9): the concrete handlers
// registered into the function registry (C6) at startup. Document-analysis
// and feedback tools here are pure; git.go's tools are side-effecting and
// delegate to the Git tool adapter (C10).
package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"sort"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	gmtext "github.com/yuin/goldmark/text"
)

var md = goldmark.New()

type heading struct {
	level int
	text  string
}

// parseHeadings walks source's Markdown AST and returns every heading in
// document order, grounding document-structure analysis in a real parser
// rather than a regex scan of "^#+ " lines.
func parseHeadings(source []byte) []heading {
	doc := md.Parser().Parse(gmtext.NewReader(source))
	var out []heading
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		h, ok := n.(*ast.Heading)
		if !ok {
			return ast.WalkContinue, nil
		}
		out = append(out, heading{level: h.Level, text: nodeText(h, source)})
		return ast.WalkSkipChildren, nil
	})
	return out
}

// nodeText concatenates the text segments under n, skipping inline markup
// nodes (emphasis, links) down to their literal runes.
func nodeText(n ast.Node, source []byte) string {
	var buf bytes.Buffer
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		if t, ok := c.(*ast.Text); ok {
			buf.Write(t.Segment.Value(source))
			continue
		}
		buf.WriteString(nodeText(c, source))
	}
	return buf.String()
}

func countCodeBlocks(source []byte) int {
	doc := md.Parser().Parse(gmtext.NewReader(source))
	count := 0
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch n.(type) {
		case *ast.FencedCodeBlock, *ast.CodeBlock:
			count++
		}
		return ast.WalkContinue, nil
	})
	return count
}

func countLinks(source []byte) int {
	doc := md.Parser().Parse(gmtext.NewReader(source))
	count := 0
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		if _, ok := n.(*ast.Link); ok {
			count++
		}
		return ast.WalkContinue, nil
	})
	return count
}

// documentQualityArgs is analyze_document_quality's argument shape.
type documentQualityArgs struct {
	Content string   `json:"content"`
	Metrics []string `json:"metrics,omitempty"`
}

// documentQualityResult is what the handler returns; it is marshaled by the
// registry into the tool-result message content.
type documentQualityResult struct {
	WordCount     int      `json:"word_count"`
	HeadingCount  int      `json:"heading_count"`
	CodeBlocks    int      `json:"code_blocks"`
	Links         int      `json:"links"`
	HasTitle      bool     `json:"has_title"`
	Grade         string   `json:"grade"`
	Issues        []string `json:"issues,omitempty"`
}

// AnalyzeDocumentQuality implements analyze_document_quality: a heuristic
// grade (A-F) plus the raw counts it was derived from.
func AnalyzeDocumentQuality(ctx context.Context, args json.RawMessage) (any, error) {
	var in documentQualityArgs
	if err := json.Unmarshal(args, &in); err != nil {
		return nil, err
	}

	source := []byte(in.Content)
	headings := parseHeadings(source)
	words := len(strings.Fields(in.Content))
	codeBlocks := countCodeBlocks(source)
	links := countLinks(source)
	hasTitle := len(headings) > 0 && headings[0].level == 1

	var issues []string
	if !hasTitle {
		issues = append(issues, "missing a top-level (H1) title")
	}
	if words < 50 {
		issues = append(issues, "document is very short (under 50 words)")
	}
	if len(headings) < 2 && words > 200 {
		issues = append(issues, "long document with little section structure")
	}

	grade := gradeDocument(hasTitle, words, len(headings), len(issues))

	return documentQualityResult{
		WordCount:    words,
		HeadingCount: len(headings),
		CodeBlocks:   codeBlocks,
		Links:        links,
		HasTitle:     hasTitle,
		Grade:        grade,
		Issues:       issues,
	}, nil
}

func gradeDocument(hasTitle bool, words, headingCount, issueCount int) string {
	score := 0
	if hasTitle {
		score++
	}
	if words >= 50 {
		score++
	}
	if words >= 200 {
		score++
	}
	if headingCount >= 2 {
		score++
	}
	score -= issueCount

	switch {
	case score >= 4:
		return "A"
	case score == 3:
		return "B"
	case score == 2:
		return "C"
	case score == 1:
		return "D"
	default:
		return "F"
	}
}

// documentTopicsArgs is extract_document_topics's argument shape.
type documentTopicsArgs struct {
	Content string `json:"content"`
	N       int    `json:"n,omitempty"`
}

type documentTopicsResult struct {
	Topics []string `json:"topics"`
}

// ExtractDocumentTopics implements extract_document_topics: headings are
// the strongest topic signal a Markdown document offers, so they're
// preferred; a document with no heading structure falls back to the most
// frequent significant words.
func ExtractDocumentTopics(ctx context.Context, args json.RawMessage) (any, error) {
	var in documentTopicsArgs
	if err := json.Unmarshal(args, &in); err != nil {
		return nil, err
	}
	n := in.N
	if n <= 0 {
		n = 5
	}

	headings := parseHeadings([]byte(in.Content))
	var topics []string
	for _, h := range headings {
		text := strings.TrimSpace(h.text)
		if text == "" {
			continue
		}
		topics = append(topics, text)
		if len(topics) >= n {
			break
		}
	}
	if len(topics) == 0 {
		topics = topWords(in.Content, n)
	}

	return documentTopicsResult{Topics: topics}, nil
}

var stopWords = map[string]bool{
	"the": true, "a": true, "an": true, "and": true, "or": true, "of": true,
	"to": true, "in": true, "is": true, "it": true, "for": true, "on": true,
	"with": true, "as": true, "this": true, "that": true, "be": true,
	"are": true, "was": true, "by": true,
}

func topWords(content string, n int) []string {
	counts := map[string]int{}
	for _, raw := range strings.Fields(content) {
		w := strings.ToLower(strings.Trim(raw, ".,!?;:()[]{}\"'`#*_"))
		if len(w) < 3 || stopWords[w] {
			continue
		}
		counts[w]++
	}
	type wc struct {
		word  string
		count int
	}
	ranked := make([]wc, 0, len(counts))
	for w, c := range counts {
		ranked = append(ranked, wc{w, c})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].count != ranked[j].count {
			return ranked[i].count > ranked[j].count
		}
		return ranked[i].word < ranked[j].word
	})
	if len(ranked) > n {
		ranked = ranked[:n]
	}
	out := make([]string, len(ranked))
	for i, r := range ranked {
		out[i] = r.word
	}
	return out
}

// completenessRequirements maps a template_type to the heading keywords a
// complete document of that type is expected to contain, matched
// case-insensitively as a substring of the heading text.
var completenessRequirements = map[string][]string{
	"readme":        {"install", "usage", "license"},
	"api_reference": {"request", "response", "error"},
	"adr":           {"context", "decision", "consequence"},
	"generic":       {},
}

type documentCompletenessArgs struct {
	Content      string `json:"content"`
	TemplateType string `json:"template_type,omitempty"`
}

type documentCompletenessResult struct {
	TemplateType string   `json:"template_type"`
	Complete     bool     `json:"complete"`
	Missing      []string `json:"missing,omitempty"`
}

// CheckDocumentCompleteness implements check_document_completeness: for a
// known template_type, reports which expected sections have no matching
// heading.
func CheckDocumentCompleteness(ctx context.Context, args json.RawMessage) (any, error) {
	var in documentCompletenessArgs
	if err := json.Unmarshal(args, &in); err != nil {
		return nil, err
	}
	templateType := in.TemplateType
	if templateType == "" {
		templateType = "generic"
	}
	required, ok := completenessRequirements[templateType]
	if !ok {
		required = completenessRequirements["generic"]
	}

	headings := parseHeadings([]byte(in.Content))
	var missing []string
	for _, want := range required {
		if !anyHeadingContains(headings, want) {
			missing = append(missing, want)
		}
	}

	return documentCompletenessResult{
		TemplateType: templateType,
		Complete:     len(missing) == 0,
		Missing:      missing,
	}, nil
}

func anyHeadingContains(headings []heading, substr string) bool {
	for _, h := range headings {
		if strings.Contains(strings.ToLower(h.text), substr) {
			return true
		}
	}
	return false
}
