package templates

// Defaults returns the built-in template catalog cmd/docassist seeds a
// Store with at startup: a documentation-specialist template selected by
// README path suffix, one each for API references and architecture
// decision records, and a generic fallback. Deployments that need a
// different catalog build their own Store directly — Defaults exists to
// give the CLI something runnable out of the box.
func Defaults() []Template {
	return []Template{
		{
			ID: "generic",
			Text: "You are a documentation assistant for {repository_context.owner}/{repository_context.repo} " +
				"on {repository_context.service}. The current file is {repository_context.current_path}.\n\n" +
				"{document_content_section}",
			RequiredVariables: nil,
			OptionalVariables: []string{
				"repository_context.owner", "repository_context.repo",
				"repository_context.service", "repository_context.current_path",
			},
		},
		{
			ID: "readme",
			Text: "You are a documentation specialist maintaining the README for " +
				"{repository_context.owner}/{repository_context.repo}. Keep the tone consistent with the " +
				"rest of the repository and prefer concrete examples over abstract description.\n\n" +
				"{document_content_section}",
			RequiredVariables: []string{"repository_context.owner", "repository_context.repo"},
			PathSuffixMatch:   "README",
		},
		{
			ID: "api_reference",
			Text: "You are documenting the API surface of {repository_context.owner}/{repository_context.repo}. " +
				"Every public function, type, and endpoint you touch needs its signature, parameters, return " +
				"value, and error cases spelled out.\n\n{document_content_section}",
			RequiredVariables: []string{"repository_context.owner", "repository_context.repo"},
		},
		{
			ID: "adr",
			Text: "You are drafting or revising an architecture decision record for " +
				"{repository_context.owner}/{repository_context.repo}. Structure the response around context, " +
				"the decision itself, and its consequences.\n\n{document_content_section}",
			RequiredVariables: []string{"repository_context.owner", "repository_context.repo"},
		},
	}
}
