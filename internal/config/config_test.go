package config

import "testing"

func TestLoadIncludesRetrievalDefaults(t *testing.T) {
	t.Setenv("RETRIEVAL_TOP_K_PER_QUERY", "")
	t.Setenv("RETRIEVAL_MAX_CLAUSES", "")
	t.Setenv("EMBED_BATCH_SIZE", "")
	t.Setenv("LLM_TEMPERATURE", "")

	cfg := Load()
	if cfg.RetrievalTopKPerQuery != 5 {
		t.Fatalf("expected default top k 5, got %d", cfg.RetrievalTopKPerQuery)
	}
	if cfg.RetrievalMaxClauses != 15 {
		t.Fatalf("expected default max clauses 15, got %d", cfg.RetrievalMaxClauses)
	}
	if cfg.EmbedBatchSize != 64 {
		t.Fatalf("expected default batch size 64, got %d", cfg.EmbedBatchSize)
	}
	if cfg.LLMTemperature != 0.2 {
		t.Fatalf("expected default temperature 0.2, got %f", cfg.LLMTemperature)
	}
}

func TestLoadParsesOverrides(t *testing.T) {
	t.Setenv("RETRIEVAL_TOP_K_PER_QUERY", "8")
	t.Setenv("LLM_TEMPERATURE", "0.5")
	t.Setenv("NATS_SUBJECT", "contracts.analyze.test")

	cfg := Load()
	if cfg.RetrievalTopKPerQuery != 8 {
		t.Fatalf("expected top k 8, got %d", cfg.RetrievalTopKPerQuery)
	}
	if cfg.LLMTemperature != 0.5 {
		t.Fatalf("expected temperature 0.5, got %f", cfg.LLMTemperature)
	}
	if cfg.NATSSubject != "contracts.analyze.test" {
		t.Fatalf("expected subject override, got %q", cfg.NATSSubject)
	}
}

func TestLoadFallsBackOnUnparsableValues(t *testing.T) {
	t.Setenv("EMBED_CONCURRENCY", "not-a-number")
	t.Setenv("LLM_TEMPERATURE", "warm")

	cfg := Load()
	if cfg.EmbedConcurrency != 4 {
		t.Fatalf("expected fallback concurrency 4, got %d", cfg.EmbedConcurrency)
	}
	if cfg.LLMTemperature != 0.2 {
		t.Fatalf("expected fallback temperature 0.2, got %f", cfg.LLMTemperature)
	}
}
