package embedding

import (
	"fmt"
	"net/http"

	"github/itish2003/ragqa/config"

	"google.golang.org/genai"
)

// New builds the configured provider. genaiClient is only needed for "gemini".
func New(cfg config.EmbeddingConfig, httpClient *http.Client, genaiClient *genai.Client) (Embedder, error) {
	switch cfg.Provider {
	case "ollama":
		return NewOllama(httpClient, cfg.BaseURL, cfg.Model, cfg.Dimension), nil
	case "gemini":
		if genaiClient == nil {
			return nil, fmt.Errorf("gemini embedding provider needs a gemini client")
		}
		return NewGemini(genaiClient, cfg.Model, cfg.Dimension), nil
	case "fastembed":
		fe, err := NewFastEmbed(cfg.Model, cfg.CacheDir)
		if err != nil {
			return nil, err
		}
		if fe.Dimension() != cfg.Dimension {
			return nil, fmt.Errorf("fastembed model %s produces %d dims, config expects %d", cfg.Model, fe.Dimension(), cfg.Dimension)
		}
		return fe, nil
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.Provider)
	}
}
