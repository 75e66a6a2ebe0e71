package embedding

import (
	"context"
	"testing"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{
			name: "valid ollama",
			cfg:  Config{Provider: ProviderOllama, Model: "all-minilm:l6-v2", Dimension: 384},
		},
		{
			name:    "unknown provider",
			cfg:     Config{Provider: "pinecone", Model: "m", Dimension: 8},
			wantErr: true,
		},
		{
			name:    "missing model",
			cfg:     Config{Provider: ProviderOpenAI, Dimension: 1536},
			wantErr: true,
		},
		{
			name:    "zero dimension",
			cfg:     Config{Provider: ProviderOllama, Model: "m"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.cfg.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestNew_RequiresCredentials(t *testing.T) {
	ctx := context.Background()

	if _, err := New(ctx, Config{Provider: ProviderOpenAI, Model: "text-embedding-3-small", Dimension: 1536}); err == nil {
		t.Error("New() with no OpenAI key should fail")
	}
	if _, err := New(ctx, Config{Provider: ProviderGoogle, Model: "text-embedding-004", Dimension: 768}); err == nil {
		t.Error("New() with no Google key should fail")
	}
}
