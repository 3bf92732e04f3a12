package model

import "fmt"

// Verdict is the structured relevance judgement for one paper.
type Verdict struct {
	IsRelevant           bool    `json:"is_relevant"`
	CategoryID           int     `json:"category_id"`
	SecondaryCategoryIDs []int   `json:"secondary_category_ids"`
	Confidence           float64 `json:"confidence"`
	Importance           int     `json:"importance"`
	SummaryJA            string  `json:"summary_ja"`
	Reasoning            string  `json:"reasoning"`
}

// Validate checks that the verdict fields are within their documented ranges.
func (v Verdict) Validate() error {
	if v.CategoryID < 1 || v.CategoryID > NumCategories {
		return fmt.Errorf("model: category_id %d out of range 1..%d", v.CategoryID, NumCategories)
	}
	if v.Confidence < 0 || v.Confidence > 1 {
		return fmt.Errorf("model: confidence %g out of range 0..1", v.Confidence)
	}
	if v.Importance < 1 || v.Importance > 5 {
		return fmt.Errorf("model: importance %d out of range 1..5", v.Importance)
	}
	return nil
}

// DetailReview is the multi-perspective review generated from a paper's full text.
type DetailReview struct {
	Sections        []ReviewSection    `json:"sections"`
	Perspectives    ReviewPerspectives `json:"perspectives"`
	Levels          ReviewLevels       `json:"levels"`
	FigureAnalysis  []FigureAnalysis   `json:"figure_analysis"`
	OneLineTakeaway string             `json:"one_line_takeaway"`
}

// ReviewSection is one selected section of a detail review.
type ReviewSection struct {
	SectionID string `json:"section_id"`
	TitleJA   string `json:"title_ja"`
	ContentJA string `json:"content_ja"`
}

// ReviewPerspectives holds the three role-specific readings of a paper.
type ReviewPerspectives struct {
	AIEngineer    string `json:"ai_engineer"`
	Mathematician string `json:"mathematician"`
	Business      string `json:"business"`
}

// ReviewLevels holds the three difficulty-graded explanations.
type ReviewLevels struct {
	Beginner     string `json:"beginner"`
	Intermediate string `json:"intermediate"`
	Expert       string `json:"expert"`
}

// FigureAnalysis is the review's commentary on one figure.
type FigureAnalysis struct {
	FigureRef     string `json:"figure_ref"`
	DescriptionJA string `json:"description_ja"`
	IsKeyFigure   bool   `json:"is_key_figure"`
}

// Validate checks that the review carries the minimum usable content.
func (r DetailReview) Validate() error {
	if len(r.Sections) == 0 {
		return fmt.Errorf("model: review has no sections")
	}
	if r.OneLineTakeaway == "" {
		return fmt.Errorf("model: review has no one_line_takeaway")
	}
	return nil
}
