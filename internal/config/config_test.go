package config

import "testing"

func validBaseConfig() *Config {
	return &Config{
		LLM: LLMConfig{
			DefaultProvider: "openai",
			OpenAI:          OpenAIConfig{APIKey: "k", Model: "gpt"},
		},
	}
}

func TestValidate_RejectsQualityWeightsNotSummingToOne(t *testing.T) {
	cfg := validBaseConfig()
	cfg.Quality = QualityConfig{
		EnableQualityScoring: true,
		Weights: QualityWeightsConfig{
			Access: 0.5, Structure: 0.5, Richness: 0.5, Coherence: 0.1, Integrity: 0.1,
		},
	}
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected error for mis-summed quality weights")
	}
}

func TestValidate_AcceptsQualityWeightsSummingToOne(t *testing.T) {
	cfg := validBaseConfig()
	cfg.Quality = QualityConfig{
		EnableQualityScoring: true,
		Weights: QualityWeightsConfig{
			Access: 0.30, Structure: 0.15, Richness: 0.25, Coherence: 0.20, Integrity: 0.10,
		},
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_SkipsQualityCheckWhenScoringDisabled(t *testing.T) {
	cfg := validBaseConfig()
	cfg.Quality = QualityConfig{EnableQualityScoring: false}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error when quality scoring disabled: %v", err)
	}
}
