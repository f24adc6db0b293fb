package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/haasonsaas/docassist/internal/errkind"
	"github.com/haasonsaas/docassist/internal/gitadapter"
	"github.com/haasonsaas/docassist/internal/toolctx"
	"github.com/haasonsaas/docassist/pkg/models"
)

// gitCredentialOption is the QueryRequest.ToolOptions / toolctx.TurnData.Options
// key a caller uses to supply an ambient, request-scoped Git credential
// without putting it in a tool call's own arguments (e.g. a credential
// minted per-session by the caller rather than known to the model).
const gitCredentialOption = "git_credential"

// GitTools binds the side-effecting Git-write tools (C9) to a configured
// gitadapter.Registry (C10). Each handler resolves its backend and
// owner/repo from the call's own arguments, falling back to the per-turn
// toolctx.TurnData the orchestrator attaches. A credential supplied in a call's
// own arguments, or in the turn's ambient tool options, overrides the
// registry's pre-configured client for that one call — per spec.md §9's
// credential-precedence decision — by building a one-off Client against
// githubBaseURL/forgejoBaseURL instead of looking the service up in adapters.
type GitTools struct {
	adapters       *gitadapter.Registry
	githubBaseURL  string
	forgejoBaseURL string
}

// NewGitTools builds GitTools bound to adapters.
func NewGitTools(adapters *gitadapter.Registry) *GitTools {
	return &GitTools{adapters: adapters}
}

// WithBaseURLs sets the backend base URLs used to build a request-scoped
// Client when a call supplies its own credential rather than relying on
// adapters' ambient one. Returns g for chaining at construction time.
func (g *GitTools) WithBaseURLs(githubBaseURL, forgejoBaseURL string) *GitTools {
	g.githubBaseURL = githubBaseURL
	g.forgejoBaseURL = forgejoBaseURL
	return g
}

// Available reports whether a call could reach a Git backend: either a
// backend is configured ambiently, or options carries a request-scoped
// credential a handler would use instead (spec.md §4: "registry snapshot
// filtered by... capability flags declared per tool (e.g., Git tools require
// a credential presence check against options)").
func (g *GitTools) Available(options map[string]any) bool {
	if _, ok := options[gitCredentialOption].(string); ok {
		return true
	}
	if g.adapters == nil {
		return false
	}
	return g.adapters.Available(models.GitServiceGitHub) || g.adapters.Available(models.GitServiceForgejo) ||
		g.adapters.Available(models.GitServiceMock)
}

type gitRepoArgs struct {
	ServiceType string `json:"service_type,omitempty"`
	Owner       string `json:"owner,omitempty"`
	Repo        string `json:"repo,omitempty"`
	// Credential is a request-scoped Git token supplied directly in the tool
	// call, overriding both the turn's ambient tool options and the
	// ambiently-configured registry client for this one call.
	Credential string `json:"credential,omitempty"`
}

// resolveRepo fills in service/owner/repo from explicit arguments, falling
// back to the turn's repository_context for whichever fields the caller
// omitted, per spec.md §4.9 ("the caller's repository_context supplies
// default owner/repo").
func resolveRepo(ctx context.Context, args gitRepoArgs) (models.GitService, string, string) {
	service := models.GitService(args.ServiceType)
	owner := args.Owner
	repo := args.Repo

	if data, ok := toolctx.FromContext(ctx); ok && data.RepositoryContext != nil {
		rc := data.RepositoryContext
		if service == "" {
			service = rc.Service
		}
		if owner == "" {
			owner = rc.Owner
		}
		if repo == "" {
			repo = rc.Repo
		}
	}
	return service, owner, repo
}

// resolveCredential returns the request-scoped credential to use, if any:
// the call's own argument first, then the turn's ambient tool options, per
// spec.md §9's precedence decision that an explicit request-scoped
// credential always wins over ambient configuration.
func resolveCredential(ctx context.Context, explicit string) string {
	if explicit != "" {
		return explicit
	}
	if data, ok := toolctx.FromContext(ctx); ok {
		if v, ok := data.Options[gitCredentialOption].(string); ok {
			return v
		}
	}
	return ""
}

func (g *GitTools) client(service models.GitService, credential string) (gitadapter.Client, error) {
	if credential != "" {
		switch service {
		case models.GitServiceGitHub:
			return gitadapter.NewGitHub(gitadapter.GitHubConfig{Token: credential, BaseURL: g.githubBaseURL})
		case models.GitServiceForgejo:
			return gitadapter.NewForgejo(gitadapter.ForgejoConfig{Token: credential, BaseURL: g.forgejoBaseURL})
		}
	}
	client, ok := g.adapters.Client(service)
	if !ok {
		return nil, &gitadapter.Error{Kind: errkind.Unknown, Message: fmt.Sprintf("no Git adapter configured for service %q", service)}
	}
	return client, nil
}

type createGitIssueArgs struct {
	gitRepoArgs
	Title  string   `json:"title"`
	Body   string   `json:"body,omitempty"`
	Labels []string `json:"labels,omitempty"`
}

// CreateGitIssue implements create_git_issue.
func (g *GitTools) CreateGitIssue(ctx context.Context, args json.RawMessage) (any, error) {
	var in createGitIssueArgs
	if err := json.Unmarshal(args, &in); err != nil {
		return nil, err
	}
	service, owner, repo := resolveRepo(ctx, in.gitRepoArgs)
	client, err := g.client(service, resolveCredential(ctx, in.Credential))
	if err != nil {
		return nil, err
	}
	return client.CreateIssue(ctx, gitadapter.IssueRequest{Owner: owner, Repo: repo, Title: in.Title, Body: in.Body, Labels: in.Labels})
}

type createGitPullRequestArgs struct {
	gitRepoArgs
	Title string `json:"title"`
	Body  string `json:"body,omitempty"`
	Head  string `json:"head"`
	Base  string `json:"base,omitempty"`
}

// CreateGitPullRequest implements create_git_pull_request.
func (g *GitTools) CreateGitPullRequest(ctx context.Context, args json.RawMessage) (any, error) {
	var in createGitPullRequestArgs
	if err := json.Unmarshal(args, &in); err != nil {
		return nil, err
	}
	service, owner, repo := resolveRepo(ctx, in.gitRepoArgs)
	client, err := g.client(service, resolveCredential(ctx, in.Credential))
	if err != nil {
		return nil, err
	}
	base := in.Base
	if base == "" {
		base = "main"
	}
	return client.CreatePullRequest(ctx, gitadapter.PullRequestRequest{Owner: owner, Repo: repo, Title: in.Title, Body: in.Body, Head: in.Head, Base: base})
}

// CheckGitRepositoryPermissions implements check_git_repository_permissions.
func (g *GitTools) CheckGitRepositoryPermissions(ctx context.Context, args json.RawMessage) (any, error) {
	var in gitRepoArgs
	if err := json.Unmarshal(args, &in); err != nil {
		return nil, err
	}
	service, owner, repo := resolveRepo(ctx, in)
	client, err := g.client(service, resolveCredential(ctx, in.Credential))
	if err != nil {
		return nil, err
	}
	return client.CheckPermissions(ctx, gitadapter.PermissionsRequest{Owner: owner, Repo: repo})
}
