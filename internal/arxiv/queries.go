package arxiv

// Query is one category harvest query. Expr is pre-encoded for the arXiv API
// query string ('+' separators, %28/%29 parens, %22 quotes) and is combined
// with a submittedDate window at request time.
type Query struct {
	CategoryID int
	Label      string
	Expr       string
	MaxResults int
}

// Queries are the six category queries run each day, in category order.
var Queries = []Query{
	{
		CategoryID: 1,
		Label:      "基盤モデル",
		Expr: "%28cat:cs.CL+OR+cat:cs.LG%29" +
			"+AND+" +
			"%28abs:%22Foundation+Model%22+OR+abs:%22Large+Language+Model%22" +
			"+OR+abs:GPT+OR+abs:Llama+OR+abs:Gemini+OR+abs:Claude" +
			"+OR+abs:Mistral+OR+abs:MoE+OR+abs:Mamba+OR+abs:SSM" +
			"+OR+abs:RWKV+OR+abs:Transformer%29",
		MaxResults: 500,
	},
	{
		CategoryID: 2,
		Label:      "学習・調整",
		Expr: "%28cat:cs.LG+OR+cat:cs.AI%29" +
			"+AND+" +
			"%28abs:RLHF+OR+abs:RLAIF" +
			"+OR+abs:%22Direct+Preference+Optimization%22+OR+abs:DPO" +
			"+OR+abs:%22Chain+of+Thought%22" +
			"+OR+abs:PEFT+OR+abs:LoRA+OR+abs:QLoRA" +
			"+OR+abs:%22Model+Merging%22%29",
		MaxResults: 300,
	},
	{
		CategoryID: 3,
		Label:      "エンジニアリング",
		Expr: "%28cat:cs.SE+OR+cat:cs.CL%29" +
			"+AND+" +
			"%28abs:%22Retrieval-Augmented+Generation%22+OR+abs:RAG" +
			"+OR+abs:GraphRAG" +
			"+OR+abs:%22Autonomous+Agent%22+OR+abs:%22Multi-Agent%22" +
			"+OR+abs:%22Prompt+Engineering%22+OR+abs:DSPy%29",
		MaxResults: 300,
	},
	{
		CategoryID: 4,
		Label:      "インフラ・最適化",
		Expr: "%28cat:cs.DC+OR+cat:cs.AR%29" +
			"+AND+" +
			"%28abs:vLLM+OR+abs:TGI+OR+abs:TensorRT" +
			"+OR+abs:%22KV+Cache%22+OR+abs:%22Speculative+Decoding%22" +
			"+OR+abs:Quantization+OR+abs:AWQ+OR+abs:GPTQ" +
			"+OR+abs:%22On-Device%22+OR+abs:%22Edge+AI%22" +
			"+OR+abs:%22GPU+optimization%22%29",
		MaxResults: 200,
	},
	{
		CategoryID: 5,
		Label:      "評価・安全性",
		Expr: "%28cat:cs.CL+OR+cat:cs.CR%29" +
			"+AND+" +
			"%28abs:%22LLM+Evaluation%22+OR+abs:Leaderboard" +
			"+OR+abs:Hallucination+OR+abs:Jailbreak" +
			"+OR+abs:%22Adversarial+Attack%22+OR+abs:Bias" +
			"+OR+abs:%22Safety+Alignment%22%29",
		MaxResults: 200,
	},
	{
		CategoryID: 6,
		Label:      "規制・社会",
		Expr: "cat:cs.CY" +
			"+AND+" +
			"%28abs:%22AI+Regulation%22+OR+abs:%22EU+AI+Act%22" +
			"+OR+abs:Copyright+OR+abs:Watermarking%29",
		MaxResults: 100,
	},
}
