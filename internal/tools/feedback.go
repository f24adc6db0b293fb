package tools

import (
	"context"
	"encoding/json"
	"strings"
)

// feedbackMessage is the minimal conversation-turn shape the feedback tools
// consume; callers pass plain structs rather than pkg/models.Message so the
// tool's JSON Schema stays self-contained.
type feedbackMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type summarizeConversationArgs struct {
	Messages []feedbackMessage `json:"messages"`
}

type summarizeConversationResult struct {
	Summary              string `json:"summary"`
	MessageCount         int    `json:"message_count"`
	UserMessageCount     int    `json:"user_message_count"`
	AssistantMessageCount int   `json:"assistant_message_count"`
}

// SummarizeConversation implements the conversation-summary feedback tool:
// a cheap extractive summary (first user ask + final assistant answer)
// alongside turn counts, useful for a feedback-collection UI that doesn't
// want to re-render the full transcript.
func SummarizeConversation(ctx context.Context, args json.RawMessage) (any, error) {
	var in summarizeConversationArgs
	if err := json.Unmarshal(args, &in); err != nil {
		return nil, err
	}

	var firstUser, lastAssistant string
	userCount, assistantCount := 0, 0
	for _, m := range in.Messages {
		switch strings.ToLower(m.Role) {
		case "user":
			userCount++
			if firstUser == "" {
				firstUser = m.Content
			}
		case "assistant":
			assistantCount++
			lastAssistant = m.Content
		}
	}

	var b strings.Builder
	if firstUser != "" {
		b.WriteString("Asked: ")
		b.WriteString(truncate(firstUser, 160))
	}
	if lastAssistant != "" {
		if b.Len() > 0 {
			b.WriteString(" ")
		}
		b.WriteString("Answered: ")
		b.WriteString(truncate(lastAssistant, 160))
	}

	return summarizeConversationResult{
		Summary:               b.String(),
		MessageCount:          len(in.Messages),
		UserMessageCount:      userCount,
		AssistantMessageCount: assistantCount,
	}, nil
}

func truncate(s string, maxRunes int) string {
	r := []rune(strings.TrimSpace(s))
	if len(r) <= maxRunes {
		return string(r)
	}
	return string(r[:maxRunes]) + "…"
}

type sentimentSnapshotArgs struct {
	Text string `json:"text"`
}

type sentimentSnapshotResult struct {
	Sentiment string  `json:"sentiment"`
	Score     float64 `json:"score"`
}

var positiveWords = map[string]bool{
	"great": true, "good": true, "helpful": true, "clear": true, "thanks": true,
	"thank": true, "works": true, "working": true, "love": true, "excellent": true,
	"perfect": true, "nice": true,
}

var negativeWords = map[string]bool{
	"bad": true, "broken": true, "confusing": true, "wrong": true, "error": true,
	"fails": true, "failed": true, "useless": true, "unclear": true, "missing": true,
	"hate": true, "terrible": true,
}

// SentimentSnapshot implements the sentiment-snapshot feedback tool: a
// lexicon-based polarity score in [-1, 1], not a trained classifier — a
// best-effort signal for surfacing feedback that likely needs a human look,
// not a precision sentiment model.
func SentimentSnapshot(ctx context.Context, args json.RawMessage) (any, error) {
	var in sentimentSnapshotArgs
	if err := json.Unmarshal(args, &in); err != nil {
		return nil, err
	}

	pos, neg := 0, 0
	for _, raw := range strings.Fields(in.Text) {
		w := strings.ToLower(strings.Trim(raw, ".,!?;:()[]{}\"'`"))
		if positiveWords[w] {
			pos++
		}
		if negativeWords[w] {
			neg++
		}
	}

	total := pos + neg
	var score float64
	if total > 0 {
		score = float64(pos-neg) / float64(total)
	}

	sentiment := "neutral"
	switch {
	case score > 0.2:
		sentiment = "positive"
	case score < -0.2:
		sentiment = "negative"
	}

	return sentimentSnapshotResult{Sentiment: sentiment, Score: score}, nil
}

type suggestImprovementsArgs struct {
	Content string   `json:"content"`
	Issues  []string `json:"issues,omitempty"`
}

type suggestImprovementsResult struct {
	Suggestions []string `json:"suggestions"`
}

// suggestionsByIssue maps a known documentQualityResult issue string to an
// actionable remediation. Issues not in this table still surface (verbatim,
// prefixed) rather than being silently dropped.
var suggestionsByIssue = map[string]string{
	"missing a top-level (H1) title":                   "add a single H1 heading summarizing the document's subject",
	"document is very short (under 50 words)":           "expand the document with a description, usage example, or rationale",
	"long document with little section structure":       "break the document into headed sections so a reader can scan it",
}

// SuggestImprovements implements the improvement-suggestion feedback tool.
// It accepts either a pre-computed issues list (typically from
// analyze_document_quality in the same turn) or raw content, in which case
// it derives issues itself via AnalyzeDocumentQuality.
func SuggestImprovements(ctx context.Context, args json.RawMessage) (any, error) {
	var in suggestImprovementsArgs
	if err := json.Unmarshal(args, &in); err != nil {
		return nil, err
	}

	issues := in.Issues
	if len(issues) == 0 && in.Content != "" {
		qualityArgs, err := json.Marshal(documentQualityArgs{Content: in.Content})
		if err != nil {
			return nil, err
		}
		result, err := AnalyzeDocumentQuality(ctx, qualityArgs)
		if err != nil {
			return nil, err
		}
		if q, ok := result.(documentQualityResult); ok {
			issues = q.Issues
		}
	}

	suggestions := make([]string, 0, len(issues))
	for _, issue := range issues {
		if s, ok := suggestionsByIssue[issue]; ok {
			suggestions = append(suggestions, s)
		} else {
			suggestions = append(suggestions, "address: "+issue)
		}
	}

	return suggestImprovementsResult{Suggestions: suggestions}, nil
}
