// Package toolctx threads per-turn data that a registered tool's Handler
// needs but that registry.Registry.Call's signature doesn't carry directly
// (arguments only): the caller's repository context and the ambient
// options/credentials consulted by capability gates. The orchestrator
// attaches this once per turn; a handler that needs it reads it back out of
// ctx rather than receiving it as a parameter, since the registry itself is
// a process-wide singleton with no notion of "the current turn".
package toolctx

import (
	"context"

	"github.com/haasonsaas/docassist/pkg/models"
)

type turnDataKey struct{}

// TurnData is the per-turn context a tool handler may consult.
type TurnData struct {
	// RepositoryContext supplies default owner/repo/service for Git tools
	// whose arguments omit them.
	RepositoryContext *models.RepositoryContext
	// Options mirrors orchestrator.QueryRequest.ToolOptions: credentials and
	// other ambient configuration a handler may need (e.g. a Git token).
	Options map[string]any
}

// WithTurnData returns a context carrying data, replacing any previously
// attached TurnData.
func WithTurnData(ctx context.Context, data TurnData) context.Context {
	return context.WithValue(ctx, turnDataKey{}, data)
}

// FromContext retrieves the TurnData attached by WithTurnData, if any.
func FromContext(ctx context.Context) (TurnData, bool) {
	data, ok := ctx.Value(turnDataKey{}).(TurnData)
	return data, ok
}
