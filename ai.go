package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// Assistant wraps the model gateway with the four product use cases:
// compatibility scoring, educational Q&A, content moderation and event
// recommendations. Every method returns a usable value even on failure —
// the documented static fallback — together with a non-nil *AIError, so
// callers can tell a genuine model answer from a canned substitute.

// AIError marks a model-backed result as a fallback rather than a genuine
// answer.
type AIError struct {
	UseCase string
	Err     error
}

func (e *AIError) Error() string {
	return fmt.Sprintf("ai %s: %v", e.UseCase, e.Err)
}

func (e *AIError) Unwrap() error { return e.Err }

type Assistant struct {
	gw ChatCompleter
}

func newAssistant(gw ChatCompleter) *Assistant {
	return &Assistant{gw: gw}
}

// --- Static fallbacks ---

func fallbackCompatibility() CompatibilityScore {
	return CompatibilityScore{
		Score:           50,
		Explanation:     "",
		Strengths:       []string{},
		Challenges:      []string{},
		Recommendations: []string{},
	}
}

func fallbackChatAnswer() ChatAnswer {
	return ChatAnswer{
		Message: "I'm having a technical difficulty answering right now. Please try again in a moment.",
		Suggestions: []string{
			"Try rephrasing your question",
			"Browse the community resources in the meantime",
		},
		Resources: []Resource{},
	}
}

func fallbackModeration() ModerationResult {
	return ModerationResult{
		IsAppropriate: true,
		Reasons:       []string{},
		Severity:      "low",
		Suggestions:   []string{},
	}
}

func fallbackStarters() []string {
	return []string{
		"What drew you to this community? / Qu'est-ce qui t'a amené·e dans cette communauté ?",
		"I'd love to hear about the values that guide your relationships. / J'aimerais connaître les valeurs qui guident tes relations.",
		"What are you hoping to find here? / Que cherches-tu ici ?",
	}
}

// --- Wrappers ---

func (a *Assistant) Compatibility(ctx context.Context, me, target Profile) (CompatibilityScore, error) {
	out, err := a.gw.Complete(ctx, compatibilityPrompt(me, target), 1000)
	if err != nil {
		return fallbackCompatibility(), &AIError{UseCase: "compatibility", Err: err}
	}
	raw, err := parseModelObject(out)
	if err != nil {
		return fallbackCompatibility(), &AIError{UseCase: "compatibility", Err: err}
	}
	return CompatibilityScore{
		Score:           clampScore(asInt(raw["score"], 50)),
		Explanation:     asString(raw["explanation"]),
		Strengths:       asStringList(raw["strengths"]),
		Challenges:      asStringList(raw["challenges"]),
		Recommendations: asStringList(raw["recommendations"]),
	}, nil
}

func (a *Assistant) Answer(ctx context.Context, question string, p *Profile) (ChatAnswer, error) {
	out, err := a.gw.Complete(ctx, assistantPrompt(question, p), 1500)
	if err != nil {
		return fallbackChatAnswer(), &AIError{UseCase: "assistant", Err: err}
	}
	raw, err := parseModelObject(out)
	if err != nil {
		return fallbackChatAnswer(), &AIError{UseCase: "assistant", Err: err}
	}
	ans := ChatAnswer{
		Message:     asString(raw["message"]),
		Suggestions: asStringList(raw["suggestions"]),
		Resources:   asResourceList(raw["resources"]),
	}
	if ans.Message == "" {
		return fallbackChatAnswer(), &AIError{UseCase: "assistant", Err: fmt.Errorf("empty message in model output")}
	}
	return ans, nil
}

func (a *Assistant) Moderate(ctx context.Context, content, contentType string) (ModerationResult, error) {
	out, err := a.gw.Complete(ctx, moderationPrompt(content, contentType), 500)
	if err != nil {
		// Fail open: an upstream outage never blocks user content.
		return fallbackModeration(), &AIError{UseCase: "moderation", Err: err}
	}
	raw, err := parseModelObject(out)
	if err != nil {
		return fallbackModeration(), &AIError{UseCase: "moderation", Err: err}
	}
	return ModerationResult{
		// Appropriate unless the model said false explicitly
		IsAppropriate: raw["isAppropriate"] != false,
		Reasons:       asStringList(raw["reasons"]),
		Severity:      asSeverity(raw["severity"]),
		Suggestions:   asStringList(raw["suggestions"]),
	}, nil
}

func (a *Assistant) ConversationStarters(ctx context.Context, me, target Profile) ([]string, error) {
	out, err := a.gw.Complete(ctx, startersPrompt(me, target), 500)
	if err != nil {
		return fallbackStarters(), &AIError{UseCase: "conversation-starters", Err: err}
	}
	raw, err := parseModelObject(out)
	if err != nil {
		return fallbackStarters(), &AIError{UseCase: "conversation-starters", Err: err}
	}
	suggestions := asStringList(raw["suggestions"])
	if len(suggestions) == 0 {
		return fallbackStarters(), &AIError{UseCase: "conversation-starters", Err: fmt.Errorf("no suggestions in model output")}
	}
	return suggestions, nil
}

func (a *Assistant) EventRecommendations(ctx context.Context, p Profile, events []Event) ([]EventRecommendation, error) {
	if len(events) == 0 {
		return []EventRecommendation{}, nil
	}
	out, err := a.gw.Complete(ctx, eventRecommendationsPrompt(p, events), 1000)
	if err != nil {
		return []EventRecommendation{}, &AIError{UseCase: "event-recommendations", Err: err}
	}
	var items []any
	if err := json.Unmarshal([]byte(stripFences(out)), &items); err != nil {
		// Not an array at the top level: per contract, an empty list
		var anything any
		if json.Unmarshal([]byte(stripFences(out)), &anything) == nil {
			return []EventRecommendation{}, nil
		}
		return []EventRecommendation{}, &AIError{UseCase: "event-recommendations", Err: err}
	}
	recs := make([]EventRecommendation, 0, len(items))
	for _, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		recs = append(recs, EventRecommendation{
			EventTitle: asString(m["eventTitle"]),
			Reason:     asString(m["reason"]),
			Score:      clampScore(asInt(m["score"], 0)),
		})
	}
	return recs, nil
}

// --- Parsing & coercion helpers ---

// stripFences removes a surrounding markdown code fence, which models often
// wrap JSON in despite instructions.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		if idx := strings.LastIndex(s, "```"); idx >= 0 {
			s = s[:idx]
		}
	}
	return strings.TrimSpace(s)
}

func parseModelObject(out string) (map[string]any, error) {
	var m map[string]any
	if err := json.Unmarshal([]byte(stripFences(out)), &m); err != nil {
		return nil, fmt.Errorf("model output is not a JSON object: %w", err)
	}
	return m, nil
}

func clampScore(n int) int {
	if n < 0 {
		return 0
	}
	if n > 100 {
		return 100
	}
	return n
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func asInt(v any, def int) int {
	switch n := v.(type) {
	case float64:
		return int(n)
	case string:
		var out int
		if _, err := fmt.Sscanf(n, "%d", &out); err == nil {
			return out
		}
	}
	return def
}

func asStringList(v any) []string {
	items, ok := v.([]any)
	if !ok {
		return []string{}
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func asResourceList(v any) []Resource {
	items, ok := v.([]any)
	if !ok {
		return []Resource{}
	}
	out := make([]Resource, 0, len(items))
	for _, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		out = append(out, Resource{
			Title:       asString(m["title"]),
			Description: asString(m["description"]),
			URL:         asString(m["url"]),
		})
	}
	return out
}

func asSeverity(v any) string {
	switch asString(v) {
	case "medium":
		return "medium"
	case "high":
		return "high"
	default:
		return "low"
	}
}
