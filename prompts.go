package main

import (
	"fmt"
	"strings"
	"time"
)

// Prompt builders for the model-backed features. All of them are pure
// functions of their inputs, and every prompt ends with an explicit JSON
// template because the response parser relies on the model honoring it.

const notSpecified = "Not specified"

const personaLine = "You are a knowledgeable, compassionate advisor for Fluide, " +
	"a community platform for people exploring ethical non-monogamy and " +
	"alternative relationship styles. You answer without judgment and with " +
	"respect for consent, communication and personal boundaries."

func orNotSpecified(s string) string {
	if strings.TrimSpace(s) == "" {
		return notSpecified
	}
	return s
}

func listOrNotSpecified(items []string) string {
	if len(items) == 0 {
		return notSpecified
	}
	return strings.Join(items, ", ")
}

func ageOrNotSpecified(p Profile) string {
	if age := p.Age(time.Now()); age >= 0 {
		return fmt.Sprintf("%d", age)
	}
	return notSpecified
}

// profileBlock renders one profile's relevant fields as labelled lines.
// Absent values are spelled out rather than omitted so the model does not
// invent them.
func profileBlock(label string, p Profile) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s:\n", label)
	fmt.Fprintf(&b, "- Name: %s\n", orNotSpecified(p.DisplayName))
	fmt.Fprintf(&b, "- Age: %s\n", ageOrNotSpecified(p))
	fmt.Fprintf(&b, "- Gender: %s\n", orNotSpecified(p.Gender))
	fmt.Fprintf(&b, "- Orientation: %s\n", orNotSpecified(p.Orientation))
	fmt.Fprintf(&b, "- Location: %s\n", orNotSpecified(p.Location))
	fmt.Fprintf(&b, "- Bio: %s\n", orNotSpecified(p.Bio))
	fmt.Fprintf(&b, "- Relationship styles: %s\n", listOrNotSpecified(p.RelationshipStyles))
	fmt.Fprintf(&b, "- Practices: %s\n", listOrNotSpecified(p.Practices))
	fmt.Fprintf(&b, "- Values: %s\n", listOrNotSpecified(p.Values))
	fmt.Fprintf(&b, "- Intentions: %s\n", listOrNotSpecified(p.Intentions))
	return b.String()
}

const jsonOnly = "Respond ONLY with JSON in this exact structure, no other text:\n"

func compatibilityPrompt(me, target Profile) string {
	return personaLine + "\n\n" +
		"Assess the relational compatibility of these two member profiles.\n\n" +
		profileBlock("Profile A", me) + "\n" +
		profileBlock("Profile B", target) + "\n" +
		jsonOnly +
		`{
  "score": <integer 0-100>,
  "explanation": "<short explanation>",
  "strengths": ["<strength>", ...],
  "challenges": ["<challenge>", ...],
  "recommendations": ["<recommendation>", ...]
}`
}

// assistantPrompt builds the educational Q&A prompt. When the asker's
// profile is known, their practice-tag count steers the register: three or
// more tags reads as experienced, fewer as newer to the community.
func assistantPrompt(question string, p *Profile) string {
	level := "The member has not shared their experience level."
	if p != nil {
		if len(p.Practices) >= 3 {
			level = "The member appears experienced; you can use community terminology freely."
		} else {
			level = "The member appears newer to the community; explain terminology gently."
		}
	}
	return personaLine + "\n\n" +
		level + "\n\n" +
		"Member question: " + question + "\n\n" +
		jsonOnly +
		`{
  "message": "<your answer>",
  "suggestions": ["<short follow-up suggestion>", ...],
  "resources": [{"title": "<title>", "description": "<description>", "url": "<optional url>"}, ...]
}`
}

func moderationPrompt(content, contentType string) string {
	return personaLine + "\n\n" +
		"Review the following user-submitted " + contentType + " content for the community guidelines: " +
		"no harassment, no hate speech, no non-consensual content, no soliciting, no personal data leaks. " +
		"Frank discussion of relationships and sexuality is welcome here; only flag genuine violations.\n\n" +
		"Content:\n" + content + "\n\n" +
		jsonOnly +
		`{
  "isAppropriate": <true|false>,
  "reasons": ["<reason>", ...],
  "severity": "<low|medium|high>",
  "suggestions": ["<improvement suggestion>", ...]
}`
}

func startersPrompt(me, target Profile) string {
	return personaLine + "\n\n" +
		"Suggest thoughtful conversation openers one member could send the other, " +
		"grounded in what their profiles share. Keep them warm, specific and consent-aware.\n\n" +
		profileBlock("Sender", me) + "\n" +
		profileBlock("Recipient", target) + "\n" +
		jsonOnly +
		`{
  "suggestions": ["<opener>", "<opener>", "<opener>"]
}`
}

func eventRecommendationsPrompt(p Profile, events []Event) string {
	var b strings.Builder
	b.WriteString(personaLine + "\n\n")
	b.WriteString("Rank the following upcoming community events for this member. " +
		"Score each candidate 0-100 for how well it fits their profile.\n\n")
	b.WriteString(profileBlock("Member", p) + "\n")
	b.WriteString("Upcoming events:\n")
	for _, e := range events {
		fmt.Fprintf(&b, "- %s (%s, %s): %s\n",
			e.Title, orNotSpecified(e.Location), e.StartsAt.Format("2006-01-02"), orNotSpecified(e.Description))
	}
	b.WriteString("\n" + jsonOnly +
		`[
  {"eventTitle": "<title>", "reason": "<why it fits>", "score": <integer 0-100>},
  ...
]`)
	return b.String()
}
