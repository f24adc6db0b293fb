package tools

import (
	"encoding/json"

	"github.com/haasonsaas/docassist/internal/registry"
)

// RegisterAll registers every tool in the MCP tool suite into reg. gitTools
// may be nil, in which case the three Git-write tools are skipped entirely
// (a deployment with the Git-write tools disabled simply never offers
// them, rather than registering them disabled).
func RegisterAll(reg *registry.Registry, gitTools *GitTools) error {
	return RegisterSelected(reg, gitTools, nil)
}

// RegisterSelected registers only the tools named in enabled (MCP_TOOLS_ENABLED),
// or every tool when enabled is empty — the MCP_TOOLS_ENABLED restriction
// spec.md §6 names.
func RegisterSelected(reg *registry.Registry, gitTools *GitTools, enabled []string) error {
	allow := func(string) bool { return true }
	if len(enabled) > 0 {
		names := make(map[string]struct{}, len(enabled))
		for _, n := range enabled {
			names[n] = struct{}{}
		}
		allow = func(name string) bool {
			_, ok := names[name]
			return ok
		}
	}

	for _, def := range documentAndFeedbackTools() {
		if !allow(def.Name) {
			continue
		}
		if err := reg.Register(def); err != nil {
			return err
		}
	}
	if gitTools == nil {
		return nil
	}
	for _, def := range gitWriteTools(gitTools) {
		if !allow(def.Name) {
			continue
		}
		if err := reg.Register(def); err != nil {
			return err
		}
	}
	return nil
}

func documentAndFeedbackTools() []registry.FunctionDefinition {
	return []registry.FunctionDefinition{
		{
			Name:        "analyze_document_quality",
			Description: "Scores a document's structure and length and returns a letter grade with the issues behind it.",
			ParametersSchema: json.RawMessage(`{
				"type": "object",
				"required": ["content"],
				"properties": {
					"content": {"type": "string"},
					"metrics": {"type": "array", "items": {"type": "string"}}
				}
			}`),
			Handler: AnalyzeDocumentQuality,
		},
		{
			Name:        "extract_document_topics",
			Description: "Extracts up to n topics from a document, preferring its heading structure.",
			ParametersSchema: json.RawMessage(`{
				"type": "object",
				"required": ["content"],
				"properties": {
					"content": {"type": "string"},
					"n": {"type": "integer", "minimum": 1}
				}
			}`),
			Handler: ExtractDocumentTopics,
		},
		{
			Name:        "check_document_completeness",
			Description: "Checks a document against the expected sections for its template_type and reports what's missing.",
			ParametersSchema: json.RawMessage(`{
				"type": "object",
				"required": ["content"],
				"properties": {
					"content": {"type": "string"},
					"template_type": {"type": "string", "enum": ["readme", "api_reference", "adr", "generic"]}
				}
			}`),
			Handler: CheckDocumentCompleteness,
		},
		{
			Name:        "summarize_conversation",
			Description: "Produces a short extractive summary of a conversation's first question and latest answer.",
			ParametersSchema: json.RawMessage(`{
				"type": "object",
				"required": ["messages"],
				"properties": {
					"messages": {
						"type": "array",
						"items": {
							"type": "object",
							"required": ["role", "content"],
							"properties": {
								"role": {"type": "string"},
								"content": {"type": "string"}
							}
						}
					}
				}
			}`),
			Handler: SummarizeConversation,
		},
		{
			Name:        "sentiment_snapshot",
			Description: "Returns a lexicon-based sentiment polarity score for a block of text.",
			ParametersSchema: json.RawMessage(`{
				"type": "object",
				"required": ["text"],
				"properties": {
					"text": {"type": "string"}
				}
			}`),
			Handler: SentimentSnapshot,
		},
		{
			Name:        "suggest_improvements",
			Description: "Turns a document's quality issues into actionable remediation suggestions.",
			ParametersSchema: json.RawMessage(`{
				"type": "object",
				"properties": {
					"content": {"type": "string"},
					"issues": {"type": "array", "items": {"type": "string"}}
				}
			}`),
			Handler: SuggestImprovements,
		},
	}
}

func gitWriteTools(g *GitTools) []registry.FunctionDefinition {
	repoSchemaProps := `
		"service_type": {"type": "string", "enum": ["github", "forgejo"]},
		"owner": {"type": "string"},
		"repo": {"type": "string"},
		"credential": {"type": "string", "description": "Request-scoped Git token; overrides ambient configuration for this call."}
	`
	return []registry.FunctionDefinition{
		{
			Name:        "create_git_issue",
			Description: "Opens an issue on the configured Git host.",
			ParametersSchema: json.RawMessage(`{
				"type": "object",
				"required": ["title"],
				"properties": {` + repoSchemaProps + `,
					"title": {"type": "string"},
					"body": {"type": "string"},
					"labels": {"type": "array", "items": {"type": "string"}}
				}
			}`),
			Handler:       g.CreateGitIssue,
			SideEffecting: true,
			Available:     g.Available,
		},
		{
			Name:        "create_git_pull_request",
			Description: "Opens a pull request on the configured Git host.",
			ParametersSchema: json.RawMessage(`{
				"type": "object",
				"required": ["title", "head"],
				"properties": {` + repoSchemaProps + `,
					"title": {"type": "string"},
					"body": {"type": "string"},
					"head": {"type": "string"},
					"base": {"type": "string"}
				}
			}`),
			Handler:       g.CreateGitPullRequest,
			SideEffecting: true,
			Available:     g.Available,
		},
		{
			Name:        "check_git_repository_permissions",
			Description: "Reports the configured credential's read/write/admin access to a repository.",
			ParametersSchema: json.RawMessage(`{
				"type": "object",
				"properties": {` + repoSchemaProps + `}
			}`),
			Handler: g.CheckGitRepositoryPermissions,
			// No write effect of its own, but grouped with the other Git
			// tools: any turn that can reach a live Git host isn't cacheable.
			SideEffecting: true,
			Available:     g.Available,
		},
	}
}
