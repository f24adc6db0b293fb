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

	"github.com/golang-jwt/jwt/v5"

	"github.com/haasonsaas/docassist/internal/errkind"
	"github.com/haasonsaas/docassist/pkg/models"
)

// ForgejoConfig configures a Forgejo/Gitea-compatible backend. At least one
// of Token or Username+Password must be set; Token is used when both are.
type ForgejoConfig struct {
	BaseURL    string // e.g. https://forgejo.example.com/api/v1
	Token      string
	Username   string
	Password   string
	HTTPClient *http.Client
	Timeout    time.Duration
}

// Forgejo implements Client against a Gitea-compatible REST API (token or
// basic auth), identical request/response surface to GitHub at the adapter
// boundary per spec.md §4.10.
type Forgejo struct {
	client   *http.Client
	baseURL  string
	token    string
	username string
	password string
}

// NewForgejo builds a Forgejo backend. If cfg.Token looks like a JWT (three
// dot-separated segments, as issued by a Forgejo OAuth2 application rather
// than a classic personal access token), its expiry claim is checked
// up front so an already-expired credential fails fast with errkind.Auth
// instead of surfacing as a confusing 401 from the first real call.
func NewForgejo(cfg ForgejoConfig) (*Forgejo, error) {
	baseURL := strings.TrimSuffix(cfg.BaseURL, "/")
	if baseURL == "" {
		return nil, fmt.Errorf("gitadapter: forgejo base_url is required")
	}
	hasToken := strings.TrimSpace(cfg.Token) != ""
	hasBasic := strings.TrimSpace(cfg.Username) != "" && strings.TrimSpace(cfg.Password) != ""
	if !hasToken && !hasBasic {
		return nil, fmt.Errorf("gitadapter: forgejo requires a token or username+password")
	}

	if hasToken && looksLikeJWT(cfg.Token) {
		if err := checkJWTNotExpired(cfg.Token); err != nil {
			return nil, err
		}
	}

	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{}
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	client.Timeout = timeout

	return &Forgejo{client: client, baseURL: baseURL, token: cfg.Token, username: cfg.Username, password: cfg.Password}, nil
}

func looksLikeJWT(token string) bool {
	return strings.Count(token, ".") == 2
}

// checkJWTNotExpired parses token's claims without verifying its signature
// (the adapter doesn't hold the issuing Forgejo instance's signing key) and
// fails if an exp claim is present and already in the past.
func checkJWTNotExpired(token string) error {
	parser := jwt.NewParser()
	claims := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return &Error{Kind: errkind.Auth, Message: "forgejo token is not a valid JWT: " + err.Error()}
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return nil
	}
	if time.Now().After(exp.Time) {
		return &Error{Kind: errkind.Auth, Message: "forgejo token expired at " + exp.Time.String()}
	}
	return nil
}

func (f *Forgejo) CreateIssue(ctx context.Context, req IssueRequest) (Result, error) {
	body := map[string]any{"title": req.Title, "body": req.Body}
	if len(req.Labels) > 0 {
		body["labels"] = req.Labels
	}
	var out struct {
		Number int    `json:"number"`
		URL    string `json:"html_url"`
	}
	path := fmt.Sprintf("/repos/%s/%s/issues", req.Owner, req.Repo)
	if err := f.doJSON(ctx, http.MethodPost, path, body, &out); err != nil {
		return Result{}, err
	}
	return Result{Service: models.GitServiceForgejo, Owner: req.Owner, Repo: req.Repo, Number: out.Number, URL: out.URL}, nil
}

func (f *Forgejo) CreatePullRequest(ctx context.Context, req PullRequestRequest) (Result, error) {
	body := map[string]any{"title": req.Title, "body": req.Body, "head": req.Head, "base": req.Base}
	var out struct {
		Number int    `json:"number"`
		URL    string `json:"html_url"`
	}
	path := fmt.Sprintf("/repos/%s/%s/pulls", req.Owner, req.Repo)
	if err := f.doJSON(ctx, http.MethodPost, path, body, &out); err != nil {
		return Result{}, err
	}
	return Result{Service: models.GitServiceForgejo, Owner: req.Owner, Repo: req.Repo, Number: out.Number, URL: out.URL}, nil
}

func (f *Forgejo) CheckPermissions(ctx context.Context, req PermissionsRequest) (Permissions, error) {
	var out struct {
		Permissions struct {
			Admin bool `json:"admin"`
			Push  bool `json:"push"`
			Pull  bool `json:"pull"`
		} `json:"permissions"`
	}
	path := fmt.Sprintf("/repos/%s/%s", req.Owner, req.Repo)
	if err := f.doJSON(ctx, http.MethodGet, path, nil, &out); err != nil {
		return Permissions{}, err
	}
	return Permissions{
		Service: models.GitServiceForgejo, Owner: req.Owner, Repo: req.Repo,
		Read: out.Permissions.Pull, Write: out.Permissions.Push, Admin: out.Permissions.Admin,
	}, nil
}

func (f *Forgejo) doJSON(ctx context.Context, method, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return &Error{Kind: errkind.Unknown, Message: err.Error()}
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, f.baseURL+path, reader)
	if err != nil {
		return &Error{Kind: errkind.Unknown, Message: err.Error()}
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if f.token != "" {
		req.Header.Set("Authorization", "token "+f.token)
	} else {
		req.SetBasicAuth(f.username, f.password)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return &Error{Kind: errkind.Network, Message: err.Error()}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return &Error{Kind: errkind.Network, Message: err.Error()}
	}

	if resp.StatusCode >= 300 {
		return &Error{Kind: classifyForgejoStatus(resp.StatusCode), Message: strings.TrimSpace(string(data))}
	}
	if out != nil && len(data) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return &Error{Kind: errkind.Unknown, Message: "decoding response: " + err.Error()}
		}
	}
	return nil
}

func classifyForgejoStatus(status int) errkind.Kind {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return errkind.Auth
	case status == http.StatusNotFound:
		return errkind.NotFound
	case status == http.StatusConflict:
		return errkind.Conflict
	case status == http.StatusTooManyRequests:
		return errkind.RateLimited
	case status >= 500:
		return errkind.Network
	default:
		return errkind.Unknown
	}
}
