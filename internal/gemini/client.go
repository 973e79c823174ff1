// Package gemini implements the engine.Provider boundary on top of the
// Gemini API: structured JSON text generation for the narrative operations
// and the Imagen predict endpoint for illustrations.
package gemini

import (
	"bytes"
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"text/template"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/mirellag/gemini-adventure/internal/config"
	"github.com/mirellag/gemini-adventure/internal/engine"
	"github.com/mirellag/gemini-adventure/internal/models"
	"github.com/mirellag/gemini-adventure/internal/payload"
)

//go:embed prompts/initial_scene.txt
var initialScenePrompt string

//go:embed prompts/custom_character.txt
var customCharacterPrompt string

//go:embed prompts/starting_assets.txt
var startingAssetsPrompt string

//go:embed prompts/kickoff.txt
var kickoffPrompt string

//go:embed prompts/action.txt
var actionPrompt string

// Temperatures per request kind, tuned for how much creative drift each
// operation can tolerate.
const (
	initialSceneTemp = 0.8
	characterTemp    = 0.7
	assetsTemp       = 0.7
	kickoffTemp      = 0.6
	actionTemp       = 0.7
)

// Client is the Gemini-backed Provider implementation.
type Client struct {
	client    *genai.Client
	textModel string
	logger    *slog.Logger
	images    *illustrator
}

var _ engine.Provider = (*Client)(nil)

// New creates a Client from the application configuration.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Client, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.GeminiAPIKey))
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		client:    client,
		textModel: cfg.TextModel,
		logger:    logger,
		images: &illustrator{
			httpClient: &http.Client{Timeout: 90 * time.Second},
			endpoint:   defaultImagenEndpoint,
			apiKey:     cfg.GeminiAPIKey,
			model:      cfg.ImageModel,
			outDir:     cfg.ImageDir,
		},
	}, nil
}

// Close releases the underlying API client.
func (c *Client) Close() {
	c.client.Close()
}

// GenerateInitialScene asks for a complete random opening.
func (c *Client) GenerateInitialScene(ctx context.Context) (*payload.InitialScene, error) {
	raw, err := c.generate(ctx, "initial_scene", initialScenePrompt, nil, initialSceneTemp)
	if err != nil {
		return nil, err
	}
	return payload.DecodeInitialScene(raw)
}

// ExpandCharacter turns a user bio into a full character profile.
func (c *Client) ExpandCharacter(ctx context.Context, bio string) (*payload.Character, error) {
	raw, err := c.generate(ctx, "custom_character", customCharacterPrompt, struct{ Bio string }{bio}, characterTemp)
	if err != nil {
		return nil, err
	}
	return payload.DecodeCharacter(raw)
}

// GenerateStartingAssets asks for a starting package fitting the character
// and world.
func (c *Client) GenerateStartingAssets(ctx context.Context, profile models.CharacterProfile, world models.WorldInfo) (*payload.StartingAssets, error) {
	data := struct {
		Name            string
		Class           string
		Background      string
		Skills          string
		WorldBackground string
		CurrencySystem  string
		CurrencyName    string
	}{
		Name:            profile.Name,
		Class:           profile.Class,
		Background:      truncate(profile.Background, 200),
		Skills:          joinOr(profile.Skills, "None"),
		WorldBackground: truncate(world.Background, 200),
		CurrencySystem:  world.CurrencySystem,
		CurrencyName:    world.CurrencyName,
	}
	raw, err := c.generate(ctx, "starting_assets", startingAssetsPrompt, data, assetsTemp)
	if err != nil {
		return nil, err
	}
	return payload.DecodeStartingAssets(raw)
}

// GenerateKickoffEvent asks for a short opening event for a custom scenario.
func (c *Client) GenerateKickoffEvent(ctx context.Context, scenario models.CustomScenario, characterName string) (*payload.Kickoff, error) {
	data := struct {
		LocationName  string
		SceneSummary  string
		CharacterBio  string
		CharacterName string
		Inventory     string
	}{
		LocationName:  scenario.LocationName,
		SceneSummary:  truncate(scenario.SceneDescription, 200),
		CharacterBio:  truncate(scenario.CharacterBio, 200),
		CharacterName: characterName,
		Inventory:     joinOr(scenario.Inventory, "None"),
	}
	raw, err := c.generate(ctx, "kickoff", kickoffPrompt, data, kickoffTemp)
	if err != nil {
		return nil, err
	}
	return payload.DecodeKickoff(raw)
}

// ProcessAction resolves one player command.
func (c *Client) ProcessAction(ctx context.Context, req engine.ActionRequest) (*payload.Action, error) {
	data := struct {
		LocationName     string
		SceneSummary     string
		Inventory        string
		CharacterContext string
		CurrencyAmount   int
		CurrencyName     string
		RecentEvents     string
		Command          string
	}{
		LocationName:     req.LocationName,
		SceneSummary:     truncate(req.SceneDescription, 150),
		Inventory:        joinOr(req.Inventory, "Empty"),
		CharacterContext: characterContext(req),
		CurrencyAmount:   req.CurrencyAmount,
		CurrencyName:     req.CurrencyName,
		RecentEvents:     recentEvents(req.RecentHistory),
		Command:          req.Command,
	}
	raw, err := c.generate(ctx, "action", actionPrompt, data, actionTemp)
	if err != nil {
		return nil, err
	}
	return payload.DecodeAction(raw)
}

// GenerateIllustration renders an image via Imagen and returns the saved
// file's path, or "" when no image came back.
func (c *Client) GenerateIllustration(ctx context.Context, description string, subject engine.IllustrationKind) (string, error) {
	return c.images.generate(ctx, description, subject)
}

// generate fills the prompt template, runs the model and returns the raw
// response text.
func (c *Client) generate(ctx context.Context, name, promptTmpl string, data any, temperature float32) (string, error) {
	tmpl, err := template.New(name).Parse(promptTmpl)
	if err != nil {
		return "", fmt.Errorf("parse %s prompt: %w", name, err)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render %s prompt: %w", name, err)
	}

	model := c.client.GenerativeModel(c.textModel)
	model.ResponseMIMEType = "application/json"
	model.SetTemperature(temperature)

	start := time.Now()
	resp, err := model.GenerateContent(ctx, genai.Text(buf.String()))
	if err != nil {
		return "", fmt.Errorf("%s generation: %w", name, err)
	}
	c.logger.Debug("gemini call completed", "kind", name, "elapsed", time.Since(start))

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("%s generation: no content returned", name)
	}
	var text strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			text.WriteString(string(t))
		}
	}
	if text.Len() == 0 {
		return "", fmt.Errorf("%s generation: unexpected response part type", name)
	}
	return text.String(), nil
}

func characterContext(req engine.ActionRequest) string {
	if req.Profile == nil {
		return "Character: A mysterious adventurer."
	}
	p := req.Profile
	return fmt.Sprintf(`Character Name: %s
Class: %s
Skills: %s
Personality: %s
Background Snippet: %s...
Current Wealth: %d %s`,
		p.Name,
		p.Class,
		joinOr(p.Skills, "None"),
		joinOr(p.PersonalityTraits, "Not specified"),
		truncate(p.Background, 100),
		req.CurrencyAmount,
		req.CurrencyName,
	)
}

func recentEvents(history []string) string {
	if len(history) == 0 {
		return "No recent events."
	}
	var b strings.Builder
	for _, line := range history {
		b.WriteString("- ")
		b.WriteString(line)
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func joinOr(items []string, empty string) string {
	if len(items) == 0 {
		return empty
	}
	return strings.Join(items, ", ")
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
