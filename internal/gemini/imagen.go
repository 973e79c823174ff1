package gemini

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/mirellag/gemini-adventure/internal/engine"
)

// The generative-ai-go SDK covers text only; Imagen is reached through its
// REST predict endpoint directly.
const defaultImagenEndpoint = "https://generativelanguage.googleapis.com/v1beta"

const (
	sceneStylePrefix     = "Dark fantasy adventure game art, focusing on atmosphere and environment: "
	sceneStyleSuffix     = ". Detailed digital painting, cinematic lighting. Style: moody, evocative, slightly desaturated colors or monochrome if appropriate for a dark theme."
	characterStylePrefix = "Fantasy character portrait, detailed digital painting. Character appearance: "
	characterStyleSuffix = ". Focus on face and upper body. Style: realistic with painterly strokes, evocative lighting. Background should be simple or out of focus."
)

// illustrator calls the Imagen predict endpoint and writes the returned JPEG
// to the configured output directory.
type illustrator struct {
	httpClient *http.Client
	endpoint   string
	apiKey     string
	model      string
	outDir     string
}

type imagenRequest struct {
	Instances  []imagenInstance `json:"instances"`
	Parameters imagenParameters `json:"parameters"`
}

type imagenInstance struct {
	Prompt string `json:"prompt"`
}

type imagenParameters struct {
	SampleCount int `json:"sampleCount"`
}

type imagenResponse struct {
	Predictions []struct {
		BytesBase64Encoded string `json:"bytesBase64Encoded"`
		MimeType           string `json:"mimeType"`
	} `json:"predictions"`
}

func (il *illustrator) generate(ctx context.Context, description string, subject engine.IllustrationKind) (string, error) {
	prompt := description
	switch subject {
	case engine.IllustrationScene:
		prompt = sceneStylePrefix + description + sceneStyleSuffix
	case engine.IllustrationCharacter:
		prompt = characterStylePrefix + description + characterStyleSuffix
	}

	body, err := json.Marshal(imagenRequest{
		Instances:  []imagenInstance{{Prompt: prompt}},
		Parameters: imagenParameters{SampleCount: 1},
	})
	if err != nil {
		return "", fmt.Errorf("encode imagen request: %w", err)
	}

	reqURL := fmt.Sprintf("%s/models/%s:predict?key=%s", il.endpoint, il.model, url.QueryEscape(il.apiKey))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build imagen request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := il.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("imagen request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("imagen request: status %d: %s", resp.StatusCode, snippet)
	}

	var decoded imagenResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("decode imagen response: %w", err)
	}
	if len(decoded.Predictions) == 0 || decoded.Predictions[0].BytesBase64Encoded == "" {
		// The model can decline to produce an image; that is not an error.
		return "", nil
	}

	data, err := base64.StdEncoding.DecodeString(decoded.Predictions[0].BytesBase64Encoded)
	if err != nil {
		return "", fmt.Errorf("decode imagen payload: %w", err)
	}

	if err := os.MkdirAll(il.outDir, 0o755); err != nil {
		return "", fmt.Errorf("create image dir: %w", err)
	}
	path := filepath.Join(il.outDir, fmt.Sprintf("%s-%d.jpg", subject, time.Now().UnixNano()))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write image: %w", err)
	}
	return path, nil
}
