package llm

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

// maxPromptRunes bounds how much extracted content is sent per request.
// Longer documents are truncated from the tail; summaries of the opening
// sections remain useful and the request stays under provider limits.
const maxPromptRunes = 48000

// SummaryRequest carries the material to summarize.
type SummaryRequest struct {
	Content     string
	ContentKind string
	Title       string
	// Binary marks content that is not UTF-8 text (e.g. PDF bytes). It is
	// base64-encoded into the prompt for models that accept inline documents.
	Binary bool
}

// Summary is the structured JSON payload returned by the model.
type Summary struct {
	Title          string   `json:"title"`
	Overview       string   `json:"overview"`
	BulletPoints   []string `json:"bullet_points"`
	Quotes         []string `json:"quotes"`
	Topics         []string `json:"topics"`
	Classification string   `json:"classification"`
	Raw            string   `json:"-"`
}

const summarySystemPrompt = `You are a careful reader producing structured summaries.
Respond with JSON only, using this exact schema:
{
  "title": "a short descriptive title for the content",
  "overview": "two to four sentences capturing the core argument or story",
  "bullet_points": ["the most important takeaways, at most eight"],
  "quotes": ["up to three short verbatim quotes worth keeping"],
  "topics": ["three to six lowercase topic tags"],
  "classification": "one of: technology, science, business, politics, culture, health, other"
}
Do not invent facts that are not in the supplied content.`

const transcriptSystemPrompt = `You are a careful listener producing structured summaries of spoken audio transcripts.
The transcript may contain recognition errors; read past them.
Respond with JSON only, using this exact schema:
{
  "title": "a short descriptive title for the episode",
  "overview": "two to four sentences capturing what was discussed",
  "bullet_points": ["the most important points made, at most eight"],
  "quotes": ["up to three short verbatim quotes worth keeping"],
  "topics": ["three to six lowercase topic tags"],
  "classification": "one of: technology, science, business, politics, culture, health, other"
}
Do not invent facts that are not in the transcript.`

// Summarize produces a structured summary of the supplied content.
func (c *Client) Summarize(ctx context.Context, req SummaryRequest) (Summary, error) {
	var empty Summary
	if strings.TrimSpace(req.Content) == "" && !req.Binary {
		return empty, errors.New("llm summarize: content required")
	}
	if c.cfg.APIKey == "" {
		return empty, errors.New("llm summarize: api key required")
	}

	systemPrompt := summarySystemPrompt
	if req.ContentKind == "podcast" {
		systemPrompt = transcriptSystemPrompt
	}

	content, err := c.CompleteJSON(ctx, systemPrompt, buildSummaryUserPrompt(req))
	if err != nil {
		return empty, err
	}

	var parsed Summary
	if err := DecodeLLMJSON(content, &parsed); err != nil {
		return empty, fmt.Errorf("llm summarize: parse payload: %w", err)
	}
	parsed.Raw = content
	parsed.Title = strings.TrimSpace(parsed.Title)
	parsed.Overview = strings.TrimSpace(parsed.Overview)
	parsed.Classification = strings.ToLower(strings.TrimSpace(parsed.Classification))
	parsed.BulletPoints = trimAll(parsed.BulletPoints)
	parsed.Quotes = trimAll(parsed.Quotes)
	parsed.Topics = trimAll(parsed.Topics)
	if parsed.Overview == "" && len(parsed.BulletPoints) == 0 {
		return empty, errors.New("llm summarize: model returned an empty summary")
	}
	return parsed, nil
}

func buildSummaryUserPrompt(req SummaryRequest) string {
	var sb strings.Builder
	if title := strings.TrimSpace(req.Title); title != "" {
		sb.WriteString("Known title: ")
		sb.WriteString(title)
		sb.WriteString("\n\n")
	}
	if req.Binary {
		sb.WriteString("The document is supplied as base64-encoded bytes:\n")
		sb.WriteString(base64.StdEncoding.EncodeToString([]byte(req.Content)))
		return sb.String()
	}
	sb.WriteString(truncateRunes(req.Content, maxPromptRunes))
	return sb.String()
}

func truncateRunes(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}

func trimAll(values []string) []string {
	out := values[:0]
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
