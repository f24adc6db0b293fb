// Package tokencount provides an approximate token counter used by the
// history optimizer, the orchestrator's context-overflow check and the
// providers' token counts to reason about context budget without depending
// on any one provider's exact tokenizer.
package tokencount

import "github.com/haasonsaas/docassist/pkg/models"

// charsPerToken is the approximation ratio: roughly 4 characters per token
// for English prose, the same heuristic the teacher's Anthropic client uses
// when no tokenizer library is wired.
const charsPerToken = 4

// messageOverhead approximates the fixed per-message framing tokens
// (role, separators) that the character heuristic alone misses.
const messageOverhead = 4

// Count estimates the number of tokens in s.
func Count(s string) int {
	if s == "" {
		return 0
	}
	n := len(s) / charsPerToken
	if n == 0 {
		n = 1
	}
	return n
}

// CountMessage estimates the token cost of a single message, including its
// tool-call arguments and name field, plus fixed framing overhead.
func CountMessage(m models.Message) int {
	total := messageOverhead + Count(m.Content)
	if m.Name != "" {
		total += Count(m.Name)
	}
	for _, tc := range m.ToolCalls {
		total += messageOverhead + Count(tc.Name) + Count(string(tc.Arguments))
	}
	return total
}

// CountMessages estimates the total token cost of a message list. The
// result is monotonically non-decreasing in the number and length of
// messages, which the history optimizer relies on to make forward progress
// when trimming.
func CountMessages(msgs []models.Message) int {
	total := 0
	for _, m := range msgs {
		total += CountMessage(m)
	}
	return total
}
