// Package httpapi implements spec.md §6's HTTP surface: POST /llm/query,
// POST /llm/stream, GET /llm/templates, GET /llm/capabilities. It is a thin
// transport layer — all orchestration logic lives in internal/orchestrator
// (C8) and internal/streaming (C11); this package only decodes requests,
// maps errors to status codes, and encodes responses.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/haasonsaas/docassist/internal/errkind"
	"github.com/haasonsaas/docassist/internal/orchestrator"
	"github.com/haasonsaas/docassist/internal/providers"
	"github.com/haasonsaas/docassist/internal/registry"
	"github.com/haasonsaas/docassist/internal/streaming"
	"github.com/haasonsaas/docassist/internal/templates"
	"github.com/haasonsaas/docassist/pkg/models"
)

// Server wires the orchestrator, registry, and template store into
// net/http handlers.
type Server struct {
	orch   *orchestrator.Orchestrator
	reg    *registry.Registry
	store  *templates.Store
	prov   providers.LLMProvider
	logger *slog.Logger
}

// New creates a Server. logger defaults to slog.Default() when nil.
func New(orch *orchestrator.Orchestrator, reg *registry.Registry, store *templates.Store, prov providers.LLMProvider, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{orch: orch, reg: reg, store: store, prov: prov, logger: logger}
}

// Mux builds the routed handler spec.md §6 names.
func (s *Server) Mux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /llm/query", s.handleQuery)
	mux.HandleFunc("POST /llm/stream", s.handleStream)
	mux.HandleFunc("GET /llm/templates", s.handleTemplates)
	mux.HandleFunc("GET /llm/capabilities", s.handleCapabilities)
	return mux
}

// queryRequestBody mirrors spec.md §6's POST /llm/query body.
type queryRequestBody struct {
	Prompt             string                     `json:"prompt"`
	History            []models.Message           `json:"history,omitempty"`
	RepositoryContext  *models.RepositoryContext  `json:"repository_context,omitempty"`
	DocumentMetadata   *models.DocumentMetadata   `json:"document_metadata,omitempty"`
	DocumentContent    string                     `json:"document_content,omitempty"`
	IncludeContent     bool                       `json:"include_content,omitempty"`
	TemplateID         string                     `json:"template_id,omitempty"`
	ToolsEnabled       bool                       `json:"tools_enabled,omitempty"`
	Options            *queryOptionsBody          `json:"options,omitempty"`
	MaxToolIterations  int                        `json:"max_tool_iterations,omitempty"`
	ToolOptions        map[string]any             `json:"tool_options,omitempty"`
}

type queryOptionsBody struct {
	Model       string   `json:"model,omitempty"`
	Temperature *float64 `json:"temperature,omitempty"`
	MaxTokens   int      `json:"max_tokens,omitempty"`
	TopP        *float64 `json:"top_p,omitempty"`
}

// errorBody is the non-2xx envelope spec.md §6 requires:
// {error_kind, message, details?}.
type errorBody struct {
	ErrorKind string `json:"error_kind"`
	Message   string `json:"message"`
	Details   string `json:"details,omitempty"`
}

func (s *Server) decodeQueryRequest(r *http.Request) (orchestrator.QueryRequest, error) {
	var body queryRequestBody
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&body); err != nil {
		return orchestrator.QueryRequest{}, err
	}
	if body.Prompt == "" {
		return orchestrator.QueryRequest{}, errors.New("prompt is required")
	}

	req := orchestrator.QueryRequest{
		Prompt:            body.Prompt,
		History:           body.History,
		RepositoryContext: body.RepositoryContext,
		DocumentMetadata:  body.DocumentMetadata,
		DocumentContent:   body.DocumentContent,
		IncludeContent:    body.IncludeContent,
		TemplateID:        body.TemplateID,
		ToolsEnabled:      body.ToolsEnabled,
		MaxToolIterations: body.MaxToolIterations,
		ToolOptions:       body.ToolOptions,
	}
	if body.Options != nil {
		req.Options = providers.Options{
			Model:       body.Options.Model,
			Temperature: body.Options.Temperature,
			MaxTokens:   body.Options.MaxTokens,
			TopP:        body.Options.TopP,
		}
	}
	return req, nil
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	req, err := s.decodeQueryRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, errkind.InvalidRequest, err.Error())
		return
	}

	resp, err := s.orch.Query(r.Context(), req)
	if err != nil {
		writeQueryError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	req, err := s.decodeQueryRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, errkind.InvalidRequest, err.Error())
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	events, err := s.orch.Stream(ctx, req)
	if err != nil {
		writeQueryError(w, err)
		return
	}

	sw, err := streaming.NewWriter(w, 30*time.Second)
	if err != nil {
		writeError(w, http.StatusInternalServerError, errkind.Unknown, err.Error())
		return
	}
	if err := sw.Pump(ctx, events, cancel); err != nil {
		s.logger.Warn("stream pump ended with error", "error", err)
	}
}

func (s *Server) handleTemplates(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"templates": s.store.List()})
}

func (s *Server) handleCapabilities(w http.ResponseWriter, r *http.Request) {
	caps := s.prov.Capabilities()
	writeJSON(w, http.StatusOK, map[string]any{
		"provider":           s.prov.Name(),
		"max_context":        caps.MaxContext,
		"supports_tools":     caps.SupportsTools,
		"supports_streaming": caps.SupportsStreaming,
		"supported_models":   caps.SupportedModels,
	})
}

func writeQueryError(w http.ResponseWriter, err error) {
	var qe *orchestrator.QueryError
	if errors.As(err, &qe) {
		writeError(w, statusFor(qe.Kind), qe.Kind, qe.Msg)
		return
	}
	writeError(w, http.StatusInternalServerError, errkind.Unknown, err.Error())
}

// statusFor maps a caller-facing error kind to the HTTP status spec.md §6/§7
// implies for it. This mapping is an HTTP-transport concern, not part of
// the error-kind taxonomy itself, so it lives here rather than in errkind.
func statusFor(kind errkind.Kind) int {
	switch kind {
	case errkind.InvalidRequest, errkind.InvalidArguments, errkind.TemplateError:
		return http.StatusBadRequest
	case errkind.Auth:
		return http.StatusUnauthorized
	case errkind.NotFound, errkind.ToolNotFound:
		return http.StatusNotFound
	case errkind.Conflict:
		return http.StatusConflict
	case errkind.ProviderRateLimited, errkind.RateLimited:
		return http.StatusTooManyRequests
	case errkind.ProviderTimeout, errkind.ToolTimeout:
		return http.StatusGatewayTimeout
	case errkind.ProviderUnavailable, errkind.Network:
		return http.StatusBadGateway
	case errkind.ContextOverflow:
		return http.StatusRequestEntityTooLarge
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, status int, kind errkind.Kind, message string) {
	writeJSON(w, status, errorBody{ErrorKind: string(kind), Message: message})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
