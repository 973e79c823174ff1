package gemini

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/mirellag/gemini-adventure/internal/engine"
)

func newTestIllustrator(t *testing.T, handler http.HandlerFunc) *illustrator {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return &illustrator{
		httpClient: srv.Client(),
		endpoint:   srv.URL,
		apiKey:     "test-key",
		model:      "imagen-test",
		outDir:     t.TempDir(),
	}
}

func TestIllustratorWritesImage(t *testing.T) {
	imageBytes := []byte("\xff\xd8\xff not really a jpeg")
	var gotPrompt string

	il := newTestIllustrator(t, func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, "imagen-test:predict") {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		var req imagenRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		gotPrompt = req.Instances[0].Prompt
		json.NewEncoder(w).Encode(map[string]any{
			"predictions": []map[string]string{{
				"bytesBase64Encoded": base64.StdEncoding.EncodeToString(imageBytes),
				"mimeType":           "image/jpeg",
			}},
		})
	})

	path, err := il.generate(context.Background(), "a shadowy crypt", engine.IllustrationScene)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if path == "" {
		t.Fatal("expected a file path")
	}
	if !strings.Contains(gotPrompt, "a shadowy crypt") || !strings.HasPrefix(gotPrompt, sceneStylePrefix) {
		t.Errorf("prompt not decorated for scene: %q", gotPrompt)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read image: %v", err)
	}
	if string(data) != string(imageBytes) {
		t.Error("written image does not match response payload")
	}
}

func TestIllustratorCharacterPromptDecoration(t *testing.T) {
	var gotPrompt string
	il := newTestIllustrator(t, func(w http.ResponseWriter, r *http.Request) {
		var req imagenRequest
		json.NewDecoder(r.Body).Decode(&req)
		gotPrompt = req.Instances[0].Prompt
		json.NewEncoder(w).Encode(map[string]any{"predictions": []map[string]string{}})
	})

	if _, err := il.generate(context.Background(), "a stout dwarf", engine.IllustrationCharacter); err != nil {
		t.Fatalf("generate: %v", err)
	}
	if !strings.HasPrefix(gotPrompt, characterStylePrefix) {
		t.Errorf("prompt not decorated for character: %q", gotPrompt)
	}
}

func TestIllustratorNoPredictionsIsNotAnError(t *testing.T) {
	il := newTestIllustrator(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"predictions": []map[string]string{}})
	})

	path, err := il.generate(context.Background(), "anything", engine.IllustrationScene)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if path != "" {
		t.Errorf("expected empty path, got %q", path)
	}
}

func TestIllustratorHTTPFailure(t *testing.T) {
	il := newTestIllustrator(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	})

	if _, err := il.generate(context.Background(), "anything", engine.IllustrationScene); err == nil {
		t.Fatal("expected an error on HTTP failure")
	}
}
