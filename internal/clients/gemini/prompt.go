package gemini

import "strings"

const analysisPreamble = `You are a comprehensive research analyst. Provide a complete, neutral assessment of this idea.

Rules:
- Do not encourage or discourage the user.
- Grade novelty realistically against existing solutions. Most ideas score 2-4.
- Be thorough in listing existing products and services.
- Provide only facts and evidence-based analysis.`

func buildPrompt(title, content string) string {
	var b strings.Builder
	b.WriteString(analysisPreamble)
	b.WriteString("\n\nIdea Title: ")
	b.WriteString(strings.TrimSpace(title))
	b.WriteString("\n\nIdea Content:\n")
	b.WriteString(strings.TrimSpace(content))
	b.WriteString(`

Respond with a JSON object containing noveltyScore (0-10), category, keyConcepts,
existingSolutions (specific products or services), marketLandscape, challenges,
opportunities and searchQueries (three web search queries).`)
	return b.String()
}

var stringList = map[string]any{
	"type":  "array",
	"items": map[string]any{"type": "string"},
}

var analysisSchema = map[string]any{
	"type": "object",
	"required": []string{
		"noveltyScore", "category", "keyConcepts", "existingSolutions",
		"marketLandscape", "challenges", "opportunities", "searchQueries",
	},
	"properties": map[string]any{
		"noveltyScore": map[string]any{
			"type":        "number",
			"description": "Novelty from 0 to 10, calibrated against existing solutions.",
		},
		"category": map[string]any{
			"type":        "string",
			"description": "Kind of idea: product, service, content, research, etc.",
		},
		"keyConcepts":       stringList,
		"existingSolutions": stringList,
		"marketLandscape": map[string]any{
			"type":        "string",
			"description": "Who else is in this space and their traction.",
		},
		"challenges":    stringList,
		"opportunities": stringList,
		"searchQueries": stringList,
	},
}
