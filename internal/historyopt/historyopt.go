// Package historyopt implements the history optimizer (C4): it trims a
// conversation to a token budget while preserving the first system message,
// the most recent N messages, and tool-call/tool-result pairing.
package historyopt

import (
	"github.com/haasonsaas/docassist/internal/tokencount"
	"github.com/haasonsaas/docassist/pkg/models"
)

// DefaultPreserveRecentN is used when the caller passes <= 0.
const DefaultPreserveRecentN = 4

// Result is the outcome of Optimize: the (possibly trimmed) message list
// plus the summary spec.md §4.4 requires callers to surface.
type Result struct {
	Messages []models.Message
	models.HistoryOptimizationInfo
}

// Optimize trims messages to fit within maxTokens, per spec.md §4.4:
//  1. Always keep the first system message, if present.
//  2. Always keep the last preserveRecentN messages.
//  3. Drop from the middle, oldest-first, until the token estimate fits.
//  4. Never split a tool/assistant-with-tool_calls pair; drop both or
//     neither.
//  5. If the budget is still exceeded after dropping everything droppable,
//     return the minimal set and mark WasOptimized true.
func Optimize(messages []models.Message, maxTokens int, preserveRecentN int) Result {
	original := len(messages)
	if preserveRecentN <= 0 {
		preserveRecentN = DefaultPreserveRecentN
	}

	if maxTokens <= 0 || original == 0 {
		return Result{
			Messages: messages,
			HistoryOptimizationInfo: models.HistoryOptimizationInfo{
				OriginalCount:  original,
				OptimizedCount: original,
			},
		}
	}

	hasLeadingSystem := messages[0].Role == models.RoleSystem

	leadingEnd := 0
	if hasLeadingSystem {
		leadingEnd = 1
	}

	// The tail is the last preserveRecentN messages, but never starts
	// before leadingEnd (a tiny conversation can't double-count the
	// leading system message as both kept-head and kept-tail).
	tailStart := original - preserveRecentN
	if tailStart < leadingEnd {
		tailStart = leadingEnd
	}

	// Expand tailStart backwards so it never splits a tool/assistant pair
	// at the boundary: if messages[tailStart] is a tool message, its
	// originating assistant-with-tool_calls message must also be in the
	// tail.
	tailStart = expandBackwardsForPairs(messages, tailStart, leadingEnd)

	middle := make([]int, 0, tailStart-leadingEnd)
	for i := leadingEnd; i < tailStart; i++ {
		middle = append(middle, i)
	}

	kept := make(map[int]bool, original)
	for i := 0; i < leadingEnd; i++ {
		kept[i] = true
	}
	for i := tailStart; i < original; i++ {
		kept[i] = true
	}
	for _, i := range middle {
		kept[i] = true
	}

	currentTokens := tokenSum(messages, kept)
	wasOptimized := false

	// Drop from the middle, oldest-first, respecting pairing, until we fit
	// or run out of droppable messages.
	i := 0
	for currentTokens > maxTokens && i < len(middle) {
		idx := middle[i]
		if !kept[idx] {
			i++
			continue
		}
		dropSet := pairFor(messages, idx, kept)
		for _, d := range dropSet {
			if kept[d] {
				currentTokens -= tokencount.CountMessage(messages[d])
				kept[d] = false
			}
		}
		wasOptimized = true
		i++
	}

	out := make([]models.Message, 0, original)
	for idx := 0; idx < original; idx++ {
		if kept[idx] {
			out = append(out, messages[idx])
		}
	}

	return Result{
		Messages: out,
		HistoryOptimizationInfo: models.HistoryOptimizationInfo{
			WasOptimized:   wasOptimized || len(out) != original,
			OriginalCount:  original,
			OptimizedCount: len(out),
		},
	}
}

// expandBackwardsForPairs moves tailStart earlier while messages[tailStart]
// is a tool message whose pairing assistant message falls before it.
func expandBackwardsForPairs(messages []models.Message, tailStart, floor int) int {
	for tailStart > floor && messages[tailStart].Role == models.RoleTool {
		// find the assistant message that issued this tool_call_id
		callID := messages[tailStart].ToolCallID
		ownerIdx := findOwningAssistant(messages, tailStart, callID)
		if ownerIdx >= 0 && ownerIdx < tailStart {
			tailStart = ownerIdx
			continue
		}
		break
	}
	return tailStart
}

// findOwningAssistant scans backwards from before idx for the assistant
// message whose ToolCalls contains callID.
func findOwningAssistant(messages []models.Message, idx int, callID string) int {
	if callID == "" {
		return -1
	}
	for i := idx - 1; i >= 0; i-- {
		if messages[i].Role != models.RoleAssistant {
			continue
		}
		for _, tc := range messages[i].ToolCalls {
			if tc.ID == callID {
				return i
			}
		}
	}
	return -1
}

// pairFor returns the set of indices that must be dropped together with
// idx to avoid splitting a tool/assistant-with-tool_calls pair: if idx is
// an assistant message with tool_calls, every tool message answering one of
// those calls must drop with it; if idx is a tool message, its owning
// assistant message must drop with it (unless already dropped or kept
// elsewhere, e.g. in the preserved tail).
func pairFor(messages []models.Message, idx int, kept map[int]bool) []int {
	out := []int{idx}
	m := messages[idx]
	switch {
	case m.Role == models.RoleAssistant && len(m.ToolCalls) > 0:
		ids := make(map[string]bool, len(m.ToolCalls))
		for _, tc := range m.ToolCalls {
			ids[tc.ID] = true
		}
		for j := idx + 1; j < len(messages); j++ {
			if messages[j].Role == models.RoleTool && ids[messages[j].ToolCallID] && kept[j] {
				out = append(out, j)
			}
		}
	case m.Role == models.RoleTool:
		if owner := findOwningAssistant(messages, idx, m.ToolCallID); owner >= 0 && kept[owner] {
			out = append(out, owner)
		}
	}
	return out
}

func tokenSum(messages []models.Message, kept map[int]bool) int {
	total := 0
	for i, m := range messages {
		if kept[i] {
			total += tokencount.CountMessage(m)
		}
	}
	return total
}
