package gitadapter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/haasonsaas/docassist/internal/errkind"
	"github.com/haasonsaas/docassist/pkg/models"
)

const defaultGitHubBaseURL = "https://api.github.com"

// GitHubConfig configures a GitHub backend.
type GitHubConfig struct {
	Token      string // bearer token, required
	BaseURL    string // overridable for GitHub Enterprise
	HTTPClient *http.Client
	Timeout    time.Duration // default 15s
}

// GitHub implements Client against the GitHub REST v3 API, authenticating
// with a bearer token via oauth2.StaticTokenSource the same way the OAuth
// login flow's GenericOAuthProvider authenticates outbound user-info
// lookups — a static, non-refreshing token source here since Git write
// credentials are configured, not exchanged.
type GitHub struct {
	client  *http.Client
	baseURL string
	timeout time.Duration
}

// NewGitHub builds a GitHub backend. Returns an error if cfg.Token is empty.
func NewGitHub(cfg GitHubConfig) (*GitHub, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, fmt.Errorf("gitadapter: github token is required")
	}
	baseURL := strings.TrimSuffix(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultGitHubBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.Token, TokenType: "Bearer"})
	base := cfg.HTTPClient
	if base == nil {
		base = http.DefaultClient
	}
	authed := oauth2.NewClient(context.WithValue(context.Background(), oauth2.HTTPClient, base), ts)
	authed.Timeout = timeout

	return &GitHub{client: authed, baseURL: baseURL, timeout: timeout}, nil
}

func (g *GitHub) CreateIssue(ctx context.Context, req IssueRequest) (Result, error) {
	body := map[string]any{"title": req.Title, "body": req.Body}
	if len(req.Labels) > 0 {
		body["labels"] = req.Labels
	}
	var out struct {
		Number  int    `json:"number"`
		HTMLURL string `json:"html_url"`
	}
	path := fmt.Sprintf("/repos/%s/%s/issues", req.Owner, req.Repo)
	if err := g.doJSON(ctx, http.MethodPost, path, body, &out); err != nil {
		return Result{}, err
	}
	return Result{Service: models.GitServiceGitHub, Owner: req.Owner, Repo: req.Repo, Number: out.Number, URL: out.HTMLURL}, nil
}

func (g *GitHub) CreatePullRequest(ctx context.Context, req PullRequestRequest) (Result, error) {
	body := map[string]any{"title": req.Title, "body": req.Body, "head": req.Head, "base": req.Base}
	var out struct {
		Number  int    `json:"number"`
		HTMLURL string `json:"html_url"`
	}
	path := fmt.Sprintf("/repos/%s/%s/pulls", req.Owner, req.Repo)
	if err := g.doJSON(ctx, http.MethodPost, path, body, &out); err != nil {
		return Result{}, err
	}
	return Result{Service: models.GitServiceGitHub, Owner: req.Owner, Repo: req.Repo, Number: out.Number, URL: out.HTMLURL}, nil
}

func (g *GitHub) CheckPermissions(ctx context.Context, req PermissionsRequest) (Permissions, error) {
	var out struct {
		Permissions struct {
			Admin bool `json:"admin"`
			Push  bool `json:"push"`
			Pull  bool `json:"pull"`
		} `json:"permissions"`
	}
	path := fmt.Sprintf("/repos/%s/%s", req.Owner, req.Repo)
	if err := g.doJSON(ctx, http.MethodGet, path, nil, &out); err != nil {
		return Permissions{}, err
	}
	return Permissions{
		Service: models.GitServiceGitHub, Owner: req.Owner, Repo: req.Repo,
		Read: out.Permissions.Pull, Write: out.Permissions.Push, Admin: out.Permissions.Admin,
	}, nil
}

func (g *GitHub) doJSON(ctx context.Context, method, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return &Error{Kind: errkind.Unknown, Message: err.Error()}
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, g.baseURL+path, reader)
	if err != nil {
		return &Error{Kind: errkind.Unknown, Message: err.Error()}
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return &Error{Kind: errkind.Network, Message: err.Error()}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return &Error{Kind: errkind.Network, Message: err.Error()}
	}

	if resp.StatusCode >= 300 {
		return &Error{Kind: classifyGitHubStatus(resp.StatusCode), Message: strings.TrimSpace(string(data))}
	}
	if out != nil && len(data) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return &Error{Kind: errkind.Unknown, Message: "decoding response: " + err.Error()}
		}
	}
	return nil
}

func classifyGitHubStatus(status int) errkind.Kind {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return errkind.Auth
	case status == http.StatusNotFound:
		return errkind.NotFound
	case status == http.StatusConflict || status == http.StatusUnprocessableEntity:
		return errkind.Conflict
	case status == http.StatusTooManyRequests:
		return errkind.RateLimited
	case status >= 500:
		return errkind.Network
	default:
		return errkind.Unknown
	}
}
