package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"google.golang.org/genai"

	"github.com/ashita-ai/mekiki/internal/model"
)

const (
	judgeTemperature     = 0.1
	judgeMaxOutputTokens = 500
	judgeTimeout         = 30 * time.Second
)

// JudgeRequest carries one paper and its anchor pre-filter context into triage.
type JudgeRequest struct {
	ArxivID        string
	Title          string
	Abstract       string
	BestCategoryID int
	MaxScore       float64
	HitCount       int
}

var verdictSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"is_relevant": {
			Type:        genai.TypeBoolean,
			Description: "Whether the paper is relevant to LLM systems practitioners",
		},
		"category_id": {
			Type:        genai.TypeInteger,
			Description: "Primary category id, 1-6",
		},
		"secondary_category_ids": {
			Type:        genai.TypeArray,
			Description: "Other applicable category ids",
			Items:       &genai.Schema{Type: genai.TypeInteger},
		},
		"confidence": {
			Type:        genai.TypeNumber,
			Description: "Judgement confidence, 0.0-1.0",
		},
		"importance": {
			Type:        genai.TypeInteger,
			Description: "Practical importance, 1-5",
		},
		"summary_ja": {
			Type:        genai.TypeString,
			Description: "Single-line Japanese summary, max 100 characters",
		},
		"reasoning": {
			Type:        genai.TypeString,
			Description: "Short English reasoning for the judgement",
		},
	},
	Required: []string{"is_relevant", "category_id", "confidence", "importance", "summary_ja"},
}

// Judge evaluates one paper's relevance. It retries transport errors with
// backoff and malformed output without; after all retries it returns an error
// and the paper is left unjudged.
func (c *Client) Judge(ctx context.Context, r JudgeRequest) (model.Verdict, error) {
	contents := []*genai.Content{{
		Parts: []*genai.Part{{Text: buildJudgePrompt(r)}},
		Role:  "user",
	}}
	cfg := &genai.GenerateContentConfig{
		Temperature:      genai.Ptr(float32(judgeTemperature)),
		MaxOutputTokens:  judgeMaxOutputTokens,
		ResponseMIMEType: "application/json",
		ResponseSchema:   verdictSchema,
		SystemInstruction: &genai.Content{
			Parts: []*genai.Part{{Text: judgeSystemPrompt}},
		},
	}

	for attempt := 0; attempt < maxRetries; attempt++ {
		callCtx, cancel := context.WithTimeout(ctx, judgeTimeout)
		resp, err := c.generate(callCtx, c.model, contents, cfg)
		cancel()
		if err != nil {
			if ctx.Err() != nil {
				return model.Verdict{}, ctx.Err()
			}
			wait := c.backoff(attempt)
			c.logger.Warn("gemini: judge call failed, retrying",
				"arxiv_id", r.ArxivID, "attempt", attempt+1, "wait", wait, "error", err)
			if perr := pause(ctx, wait); perr != nil {
				return model.Verdict{}, perr
			}
			continue
		}

		text := resp.Text()
		if text == "" {
			c.logger.Warn("gemini: judge empty response", "arxiv_id", r.ArxivID, "attempt", attempt+1)
			continue
		}

		var v model.Verdict
		if err := json.Unmarshal([]byte(text), &v); err != nil {
			c.logger.Warn("gemini: judge parse error", "arxiv_id", r.ArxivID, "attempt", attempt+1, "error", err)
			continue
		}
		if err := v.Validate(); err != nil {
			c.logger.Warn("gemini: judge invalid verdict", "arxiv_id", r.ArxivID, "attempt", attempt+1, "error", err)
			continue
		}
		return v, nil
	}

	return model.Verdict{}, fmt.Errorf("gemini: judge %s: retries exhausted", r.ArxivID)
}
