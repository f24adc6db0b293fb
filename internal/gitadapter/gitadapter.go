// Package gitadapter implements the Git tool adapter (C10): a
// backend-neutral interface over GitHub-style and Forgejo-style (Gitea
// compatible) REST hosts, normalizing both success and failure shapes so
// the MCP tool suite (C9) never branches on which backend answered a call.
package gitadapter

import (
	"context"

	"github.com/haasonsaas/docassist/internal/errkind"
	"github.com/haasonsaas/docassist/pkg/models"
)

// IssueRequest describes a create_git_issue call.
type IssueRequest struct {
	Owner  string
	Repo   string
	Title  string
	Body   string
	Labels []string
}

// PullRequestRequest describes a create_git_pull_request call.
type PullRequestRequest struct {
	Owner string
	Repo  string
	Title string
	Body  string
	Head  string
	Base  string
}

// PermissionsRequest describes a check_git_repository_permissions call.
type PermissionsRequest struct {
	Owner string
	Repo  string
}

// Result is the normalized success shape spec.md §4.10 requires:
// {service, owner, repo, number, url}.
type Result struct {
	Service models.GitService `json:"service"`
	Owner   string            `json:"owner"`
	Repo    string            `json:"repo"`
	Number  int               `json:"number,omitempty"`
	URL     string            `json:"url,omitempty"`
}

// Permissions reports what the configured credential can do against a
// repository.
type Permissions struct {
	Service  models.GitService `json:"service"`
	Owner    string            `json:"owner"`
	Repo     string            `json:"repo"`
	Read     bool              `json:"read"`
	Write    bool              `json:"write"`
	Admin    bool              `json:"admin"`
}

// Error is the normalized failure shape: {ok:false, error_kind, message}.
// Kind is always one of errkind.Auth, errkind.NotFound, errkind.Conflict,
// errkind.RateLimited, errkind.Network, or errkind.Unknown, per spec.md
// §4.10.
type Error struct {
	Kind    errkind.Kind
	Message string
}

func (e *Error) Error() string { return string(e.Kind) + ": " + e.Message }

// Client is the backend-neutral interface C9's Git-write tools call
// through. A Client is already bound to one backend and one credential;
// callers select which Client to use based on QueryRequest's
// repository_context.service.
type Client interface {
	CreateIssue(ctx context.Context, req IssueRequest) (Result, error)
	CreatePullRequest(ctx context.Context, req PullRequestRequest) (Result, error)
	CheckPermissions(ctx context.Context, req PermissionsRequest) (Permissions, error)
}

// Registry resolves a models.GitService to the Client configured for it.
// Only services with a registered Client are usable; a docassist deployment
// that never sets a Forgejo token, for instance, simply omits it.
type Registry struct {
	clients map[models.GitService]Client
}

// NewRegistry builds a Registry from the given service-to-client bindings.
func NewRegistry(clients map[models.GitService]Client) *Registry {
	if clients == nil {
		clients = map[models.GitService]Client{}
	}
	return &Registry{clients: clients}
}

// Client returns the Client bound to service, if any.
func (r *Registry) Client(service models.GitService) (Client, bool) {
	if r == nil {
		return nil, false
	}
	c, ok := r.clients[service]
	return c, ok
}

// Available reports whether service has a configured Client, for use as a
// registry.FunctionDefinition.Available gate.
func (r *Registry) Available(service models.GitService) bool {
	_, ok := r.Client(service)
	return ok
}
