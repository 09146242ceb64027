package summarizer

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// SummarizationPrompt is the system prompt for generating summaries.
const SummarizationPrompt = `You are a summarization engine. Not a chatbot.
Output ONLY in this exact JSON format, no deviations:

{
  "heading": "[compelling title, max 8 words, captures the essence]",
  "summary": "[main summary text with **bold** for key terms]",
  "highlights": ["keyword1", "keyword2", "keyword3"]
}

Rules:
- Output ONLY valid JSON, nothing else
- Use **double asterisks** to bold important terms in the summary
- highlights array: 3-7 key terms that are most important
- heading: should be engaging and descriptive, not generic
- No meta commentary, disclaimers, or source references
- Compress aggressively without hallucinating
- Write in the same language as the content`

// AnswerPrompt frames follow-up questions.
const AnswerPrompt = `You are a helpful assistant answering follow-up questions about content the user has just summarized.
Answer using only the source material below and the conversation so far. If the material does not contain the answer, say so plainly.
Keep answers short and direct. Respond in the language of the question.`

var lengthInstructions = map[Length]string{
	Short:    "Be extremely concise. Maximum 2-3 sentences total. Only the absolute core insight.",
	Medium:   "Be concise but complete. 1 short paragraph (4-6 sentences). Cover main points briefly.",
	Long:     "Be thorough. 2-3 paragraphs. Include key details and supporting points.",
	Detailed: "Be comprehensive. 4-5 paragraphs. Include context, details, examples, and nuances.",
}

// summarizeUserPrompt is the user message for a summary request.
func summarizeUserPrompt(text string, length Length) string {
	instruction, ok := lengthInstructions[length]
	if !ok {
		instruction = lengthInstructions[Medium]
	}
	return fmt.Sprintf("Length instruction: %s\n\nContent to summarize:\n%s", instruction, Truncate(text))
}

// answerSystemPrompt embeds the grounding text in the system message.
func answerSystemPrompt(grounding string) string {
	return AnswerPrompt + "\n\nSource material:\n" + Truncate(grounding)
}

var (
	fenceOpenRe  = regexp.MustCompile("^```(?:json|JSON)?\\s*\n?")
	fenceCloseRe = regexp.MustCompile("\n?```\\s*$")
)

// parseResponse decodes the model's JSON reply. Replies wrapped in code
// fences or surrounded by chatter are tolerated; anything else becomes a
// plain summary under a generic heading.
func parseResponse(content string) *Result {
	raw := strings.TrimSpace(content)
	if strings.HasPrefix(raw, "```") {
		raw = fenceOpenRe.ReplaceAllString(raw, "")
		raw = fenceCloseRe.ReplaceAllString(raw, "")
		raw = strings.TrimSpace(raw)
	}

	var result Result
	err := json.Unmarshal([]byte(raw), &result)
	if err != nil {
		start, end := strings.Index(raw, "{"), strings.LastIndex(raw, "}")
		if start >= 0 && end > start {
			err = json.Unmarshal([]byte(raw[start:end+1]), &result)
		}
	}
	if err != nil || (result.Summary == "" && result.Heading == "") {
		return &Result{Heading: "Summary", Summary: raw, Highlights: []string{}}
	}

	if result.Heading == "" {
		result.Heading = "Summary"
	}
	if result.Highlights == nil {
		result.Highlights = []string{}
	}
	return &result
}
