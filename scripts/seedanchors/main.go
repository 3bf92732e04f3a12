// seedanchors embeds the six category definitions and upserts the anchor
// rows the selection stage scores against.
//
// Usage (run from the repo root):
//
//	OPENAI_API_KEY=... DATABASE_URL=... go run scripts/seedanchors/main.go
//
// Re-running refreshes names, definitions and embeddings in place; category
// ids are stable and referenced by stored verdicts, so never renumber them.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	"github.com/ashita-ai/mekiki/internal/config"
	"github.com/ashita-ai/mekiki/internal/model"
	"github.com/ashita-ai/mekiki/internal/service/embedding"
	"github.com/ashita-ai/mekiki/internal/storage"
)

// anchorDef is one category's reference definition. The English text is what
// gets embedded; the Japanese text is shown to readers.
type anchorDef struct {
	categoryID   int
	categoryName string
	definitionEN string
	definitionJA string
}

var anchors = []anchorDef{
	{
		categoryID:   1,
		categoryName: "基盤モデル & アーキテクチャ",
		definitionEN: "State-of-the-art model architectures for large language models, including Transformer alternatives (Mamba, RWKV, SSM), Mixture of Experts (MoE), multimodal models, and reasoning-specialized models.",
		definitionJA: "大規模言語モデルの最新アーキテクチャ、Transformer代替モデル(Mamba, RWKV)、MoE、マルチモーダル、推論特化型モデルなど。",
	},
	{
		categoryID:   2,
		categoryName: "学習 & チューニング",
		definitionEN: "Training and fine-tuning methods to improve model capability and adaptability: post-training (RLHF, DPO), Chain of Thought reasoning, and efficient adaptation (LoRA, QLoRA, Model Merging).",
		definitionJA: "モデル能力向上のための学習手法：RLHF, DPO, CoT, LoRA, QLoRA, モデルマージなど。",
	},
	{
		categoryID:   3,
		categoryName: "アプリケーションエンジニアリング",
		definitionEN: "Applied LLM engineering: Retrieval-Augmented Generation (RAG, GraphRAG, Hybrid Search), autonomous agents, multi-agent systems, and prompt optimization (DSPy).",
		definitionJA: "LLM応用エンジニアリング：RAG, GraphRAG, AIエージェント, マルチエージェント, プロンプト最適化(DSPy)。",
	},
	{
		categoryID:   4,
		categoryName: "インフラ & 推論最適化",
		definitionEN: "Infrastructure and inference optimization for large language models: high-throughput serving (vLLM, TGI), memory management (PagedAttention, KV Cache), quantization, edge AI deployment, and distributed training systems.",
		definitionJA: "LLMインフラと推論最適化：vLLM, TGI, PagedAttention, 量子化, エッジAI, 分散学習。",
	},
	{
		categoryID:   5,
		categoryName: "評価 & 安全性",
		definitionEN: "Evaluation and safety of language models: benchmarks, leaderboards, jailbreak attacks and defenses, hallucination detection, bias assessment, and safety alignment.",
		definitionJA: "LLMの評価と安全性：ベンチマーク, ジェイルブレイク攻撃, ハルシネーション検出, バイアス評価, アライメント。",
	},
	{
		categoryID:   6,
		categoryName: "規制 & ビジネス",
		definitionEN: "AI regulation, policy, and business impact: EU AI Act, copyright issues, training data rights, watermarking techniques, and societal implications of AI.",
		definitionJA: "AI規制とビジネス：AI法規制, 著作権, 学習データ権利, ウォーターマーク, 社会的影響。",
	},
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if cfg.OpenAIAPIKey == "" {
		return fmt.Errorf("OPENAI_API_KEY is required")
	}
	if cfg.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	db, err := storage.New(ctx, cfg.DatabaseURL, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	embedder := embedding.NewOpenAIProvider("", cfg.OpenAIAPIKey, cfg.EmbeddingModel, cfg.EmbeddingDimensions)

	// One batch call covers all six definitions.
	texts := make([]string, len(anchors))
	for i, a := range anchors {
		texts[i] = a.definitionEN
	}
	vecs, err := embedder.Embed(ctx, texts)
	if err != nil {
		return err
	}

	for i, a := range anchors {
		if err := db.UpsertAnchor(ctx, model.Anchor{
			CategoryID:   a.categoryID,
			CategoryName: a.categoryName,
			DefinitionEN: a.definitionEN,
			DefinitionJA: a.definitionJA,
			Embedding:    vecs[i],
			IsActive:     true,
		}); err != nil {
			return err
		}
		fmt.Printf("anchor %d: %s\n", a.categoryID, a.categoryName)
	}
	fmt.Println("all anchors seeded")
	return nil
}
