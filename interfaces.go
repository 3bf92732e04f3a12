package mekiki

import "context"

// EmbeddingProvider generates vector embeddings from text.
// When provided via WithEmbeddingProvider, replaces the config-selected
// OpenAI or noop provider. The method set deliberately matches the internal
// embedding.Provider interface, so implementations cross the boundary
// without an adapter.
type EmbeddingProvider interface {
	// Embed returns one vector per input text, in input order.
	Embed(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the embedding vector dimensionality. It must match
	// the anchor vectors stored in Postgres (1536 by default).
	Dimensions() int
}

// ObjectStore receives extracted figure images.
// When provided via WithObjectStore, replaces the config-selected S3 client.
// Keys follow figures/{arxiv_id}/fig_{index}.{ext}; contentType is the image
// MIME type.
type ObjectStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
}
