// Package promptbuilder implements the system-prompt builder (C5): it
// composes a single system message from a selected template, repository
// context, and document metadata/content.
package promptbuilder

import (
	"fmt"

	"github.com/haasonsaas/docassist/internal/templates"
	"github.com/haasonsaas/docassist/pkg/models"
)

// DefaultEmbedCapBytes is the size above which document content is replaced
// by a pointer string instead of being embedded verbatim.
const DefaultEmbedCapBytes = 16 * 1024

// Input carries everything the builder needs to render a system message.
type Input struct {
	TemplateID        string
	RepositoryContext *models.RepositoryContext
	DocumentMetadata  *models.DocumentMetadata
	DocumentContent   string
	IncludeContent    bool
}

// Builder composes system messages from a template store.
type Builder struct {
	store         *templates.Store
	embedCapBytes int
}

// New creates a Builder backed by store. embedCapBytes <= 0 uses
// DefaultEmbedCapBytes.
func New(store *templates.Store, embedCapBytes int) *Builder {
	if embedCapBytes <= 0 {
		embedCapBytes = DefaultEmbedCapBytes
	}
	return &Builder{store: store, embedCapBytes: embedCapBytes}
}

// Build renders the chosen template into a system Message. If in has
// neither a TemplateID nor a RepositoryContext, Build returns (nil, nil) —
// no system message is prepended, per spec.md §4.5.
func (b *Builder) Build(in Input) (*models.Message, error) {
	if in.TemplateID == "" && in.RepositoryContext == nil {
		return nil, nil
	}

	tmpl, ok := b.resolveTemplate(in)
	if !ok {
		return nil, fmt.Errorf("system prompt: no template available")
	}

	vars := b.variableBag(in)

	text, err := tmpl.Render(vars)
	if err != nil {
		return nil, err
	}

	return &models.Message{Role: models.RoleSystem, Content: text}, nil
}

func (b *Builder) resolveTemplate(in Input) (templates.Template, bool) {
	if in.TemplateID != "" {
		return b.store.Get(in.TemplateID)
	}
	path := ""
	if in.RepositoryContext != nil {
		path = in.RepositoryContext.CurrentPath
	}
	return b.store.SelectForPath(path)
}

func (b *Builder) variableBag(in Input) map[string]string {
	vars := make(map[string]string)

	if rc := in.RepositoryContext; rc != nil {
		vars["repository_context.service"] = templates.TitleCase(string(rc.Service))
		vars["repository_context.owner"] = rc.Owner
		vars["repository_context.repo"] = rc.Repo
		vars["repository_context.ref"] = rc.Ref
		vars["repository_context.current_path"] = rc.CurrentPath
		// legacy/short aliases commonly referenced by terse templates
		vars["repo_name"] = rc.Repo
		vars["current_path"] = rc.CurrentPath
	}

	if dm := in.DocumentMetadata; dm != nil {
		vars["document_metadata.type"] = string(dm.Type)
		vars["document_metadata.title"] = dm.Title
		vars["document_metadata.last_modified"] = dm.LastModified
	}

	vars["document_content_section"] = b.documentContentSection(in)

	return vars
}

// documentContentSection embeds the document delimited by a fenced block
// when IncludeContent is set and the content fits the configured cap;
// otherwise it returns a short pointer string naming where the content
// lives instead.
func (b *Builder) documentContentSection(in Input) string {
	if !in.IncludeContent || in.DocumentContent == "" {
		return b.pointerString(in)
	}
	if len(in.DocumentContent) > b.embedCapBytes {
		return b.pointerString(in)
	}
	return fmt.Sprintf("```\n%s\n```", in.DocumentContent)
}

func (b *Builder) pointerString(in Input) string {
	path := "the current document"
	if in.RepositoryContext != nil && in.RepositoryContext.CurrentPath != "" {
		path = in.RepositoryContext.CurrentPath
	}
	return fmt.Sprintf("[content of %s not included inline; request it via a tool call if needed]", path)
}
