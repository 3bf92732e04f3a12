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
	reviewTemperature     = 0.3
	reviewMaxOutputTokens = 4096
	reviewTimeout         = 60 * time.Second
)

var reviewSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"sections": {
			Type:        genai.TypeArray,
			Description: "3-5 selected sections, most informative first",
			Items: &genai.Schema{
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"section_id": {
						Type:        genai.TypeString,
						Description: "One of the section candidate ids",
					},
					"title_ja":   {Type: genai.TypeString},
					"content_ja": {Type: genai.TypeString},
				},
				Required: []string{"section_id", "title_ja", "content_ja"},
			},
		},
		"perspectives": {
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"ai_engineer":   {Type: genai.TypeString},
				"mathematician": {Type: genai.TypeString},
				"business":      {Type: genai.TypeString},
			},
			Required: []string{"ai_engineer", "mathematician", "business"},
		},
		"levels": {
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"beginner":     {Type: genai.TypeString},
				"intermediate": {Type: genai.TypeString},
				"expert":       {Type: genai.TypeString},
			},
			Required: []string{"beginner", "intermediate", "expert"},
		},
		"figure_analysis": {
			Type: genai.TypeArray,
			Items: &genai.Schema{
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"figure_ref": {
						Type:        genai.TypeString,
						Description: "Figure or table reference as printed in the paper",
					},
					"description_ja": {Type: genai.TypeString},
					"is_key_figure":  {Type: genai.TypeBoolean},
				},
				Required: []string{"figure_ref", "description_ja"},
			},
		},
		"one_line_takeaway": {Type: genai.TypeString},
	},
	Required: []string{"sections", "perspectives", "levels", "one_line_takeaway"},
}

// Review analyzes a paper's full PDF and produces a structured detail review.
// Retry behavior matches Judge, with review-sized limits and timeouts.
func (c *Client) Review(ctx context.Context, target model.ReviewTarget, pdf []byte) (model.DetailReview, error) {
	contents := []*genai.Content{{
		Parts: []*genai.Part{
			{InlineData: &genai.Blob{MIMEType: "application/pdf", Data: pdf}},
			{Text: buildReviewPrompt(target)},
		},
		Role: "user",
	}}
	cfg := &genai.GenerateContentConfig{
		Temperature:      genai.Ptr(float32(reviewTemperature)),
		MaxOutputTokens:  reviewMaxOutputTokens,
		ResponseMIMEType: "application/json",
		ResponseSchema:   reviewSchema,
		SystemInstruction: &genai.Content{
			Parts: []*genai.Part{{Text: reviewSystemPrompt}},
		},
	}

	for attempt := 0; attempt < maxRetries; attempt++ {
		callCtx, cancel := context.WithTimeout(ctx, reviewTimeout)
		resp, err := c.generate(callCtx, c.model, contents, cfg)
		cancel()
		if err != nil {
			if ctx.Err() != nil {
				return model.DetailReview{}, ctx.Err()
			}
			wait := c.backoff(attempt)
			c.logger.Warn("gemini: review call failed, retrying",
				"arxiv_id", target.ArxivID, "attempt", attempt+1, "wait", wait, "error", err)
			if perr := pause(ctx, wait); perr != nil {
				return model.DetailReview{}, perr
			}
			continue
		}

		text := resp.Text()
		if text == "" {
			c.logger.Warn("gemini: review empty response", "arxiv_id", target.ArxivID, "attempt", attempt+1)
			continue
		}

		var review model.DetailReview
		if err := json.Unmarshal([]byte(text), &review); err != nil {
			c.logger.Warn("gemini: review parse error", "arxiv_id", target.ArxivID, "attempt", attempt+1, "error", err)
			continue
		}
		if err := review.Validate(); err != nil {
			c.logger.Warn("gemini: review invalid", "arxiv_id", target.ArxivID, "attempt", attempt+1, "error", err)
			continue
		}
		return review, nil
	}

	return model.DetailReview{}, fmt.Errorf("gemini: review %s: retries exhausted", target.ArxivID)
}
