package aiconnectors

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// OllamaModel is one entry of the Ollama /api/tags listing
type OllamaModel struct {
	Name       string    `json:"name"`
	ModifiedAt time.Time `json:"modified_at"`
	Size       int64     `json:"size"`
}

type ollamaTagsResponse struct {
	Models []OllamaModel `json:"models"`
}

// FetchOllamaModels lists the models pulled on an Ollama server
func FetchOllamaModels(ctx context.Context, baseURL, token string) ([]OllamaModel, error) {
	root := OllamaURL(baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, root+"/api/tags", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Ollama at %s: %w", root, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ollama API returned status %d", resp.StatusCode)
	}

	var tags ollamaTagsResponse
	if err := json.NewDecoder(resp.Body).Decode(&tags); err != nil {
		return nil, fmt.Errorf("failed to parse Ollama response: %w", err)
	}
	return tags.Models, nil
}

// CheckOllamaModel verifies that model is available on the server.
// A name without a tag matches any tag of that model.
func CheckOllamaModel(ctx context.Context, baseURL, token, model string) error {
	models, err := FetchOllamaModels(ctx, baseURL, token)
	if err != nil {
		return err
	}
	for _, m := range models {
		if m.Name == model || m.Name == model+":latest" {
			return nil
		}
	}
	return fmt.Errorf("model %q is not pulled on %s (%d models available)", model, OllamaURL(baseURL), len(models))
}
