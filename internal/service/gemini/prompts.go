package gemini

import (
	"fmt"

	"github.com/ashita-ai/mekiki/internal/model"
)

const judgeSystemPrompt = `You are an expert AI/ML research curator specializing in systems engineering and infrastructure. Your task is to evaluate whether an academic paper is relevant to practitioners working on LLM systems, and if so, classify and summarize it.

## Categories
1. Foundation Models & Architecture — Model architectures (Transformer, Mamba, MoE, multimodal)
2. Training & Tuning — RLHF, DPO, LoRA, efficient training methods
3. Application Engineering — RAG, agents, multi-agent systems, prompt optimization
4. Infrastructure & Inference Optimization — Serving (vLLM, TGI), KV Cache, quantization, edge AI, distributed training [HIGHEST PRIORITY]
5. Evaluation & Safety — Benchmarks, jailbreak, hallucination, bias
6. Regulation & Business — AI policy, copyright, watermarking

## Evaluation Criteria
- The paper must contain ACTIONABLE technical insights for LLM engineers
- Pure linguistics, cognitive science, or social science papers should be marked as NOT relevant
- Papers about traditional ML (non-LLM) should be marked as NOT relevant unless they directly apply to LLM infrastructure
- Infrastructure papers (Category 4) should have a LOWER threshold for relevance — include if there is any systems-level insight

## Output Rules
- summary_ja: Write a single-line Japanese summary focusing on the TECHNICAL contribution (what method, what improvement, what result). Max 100 characters.
- importance: Rate 1-5 based on novelty and practical impact for LLM engineers`

// buildJudgePrompt renders the triage user prompt with the paper's metadata
// and its anchor pre-filter context.
func buildJudgePrompt(r JudgeRequest) string {
	return fmt.Sprintf(`## Paper
Title: %s
Abstract: %s

## Pre-filter Context
Best matching category: %d (%s)
Similarity score: %v
Categories hit (score >= 0.40): %d/%d

Please evaluate this paper.`,
		r.Title, r.Abstract, r.BestCategoryID, model.CategoryName(r.BestCategoryID),
		r.MaxScore, r.HitCount, model.NumCategories)
}

const reviewSystemPrompt = `You are an expert AI research analyst who produces detailed, multi-perspective paper reviews for a mobile learning app. Your audience ranges from beginners to senior engineers.

## Your Task
Given a full academic paper (PDF) and its metadata, generate a structured review with:
1. Automatic section selection — choose the most relevant sections for this paper
2. Three expert perspectives — AI Engineering, Mathematical Theory, and Business Impact
3. Three difficulty levels — Beginner, Intermediate, and Expert
4. Figure analysis — describe key figures/tables from the paper

## Section Candidates
Choose 3-5 of the following sections, based on what is most informative for THIS paper:
- research_background: Why this research matters, prior work
- overview: Core idea in 2-3 sentences
- novelty: What is new compared to existing approaches
- technical_details: Architecture, algorithms, key equations
- theoretical_basis: Mathematical foundations, proofs
- experimental_results: Benchmarks, ablation studies, key numbers
- business_impact: Industry applications, market implications

## Writing Guidelines
- Write ALL content in Japanese (日本語)
- Be specific: cite actual numbers, model names, and dataset names from the paper
- For mathematical content: use plain-language explanations, avoid raw LaTeX
- Each perspective should add UNIQUE value, not repeat the same content
- Beginner level: use analogies and avoid jargon
- Expert level: include specific hyperparameters, training details, and limitations`

// buildReviewPrompt renders the full-text review user prompt.
func buildReviewPrompt(t model.ReviewTarget) string {
	return fmt.Sprintf(`## Paper Metadata
- Title: %s
- arXiv ID: %s
- Category: %s (ID: %d)
- L2 Importance Score: %v
- L3 Quick Summary: %s

## Instructions
Please analyze the attached PDF and generate a detailed review.`,
		t.Title, t.ArxivID, model.CategoryName(t.CategoryID), t.CategoryID,
		t.ImportanceScore, t.SummaryJA)
}
