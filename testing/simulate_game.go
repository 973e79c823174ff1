// Command simulate_game drives a full adventure without the terminal UI.
// It either replays a YAML command script or lets a second Gemini model
// play, which is useful for smoke-testing prompt changes end to end.
//
// Usage:
//
//	go run testing/simulate_game.go -turns 10
//	go run testing/simulate_game.go -script scripts/cellar.yaml
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
	"gopkg.in/yaml.v3"

	"github.com/mirellag/gemini-adventure/internal/config"
	"github.com/mirellag/gemini-adventure/internal/engine"
	"github.com/mirellag/gemini-adventure/internal/gemini"
	"github.com/mirellag/gemini-adventure/internal/models"
)

// script is the YAML shape accepted by -script.
type script struct {
	Goal           string `yaml:"goal"`
	CustomScenario *struct {
		LocationName     string   `yaml:"location_name"`
		SceneDescription string   `yaml:"scene_description"`
		Inventory        []string `yaml:"inventory"`
		CharacterBio     string   `yaml:"character_bio"`
	} `yaml:"custom_scenario"`
	Commands []string `yaml:"commands"`
}

const playerPrompt = `You are playing a text adventure game. Your goal: %s

Recent story:
%s

Current location: %s
Inventory: %s

Reply with a single short imperative command for what to do next (e.g. "examine the door"). Reply with the command only, no quotes or explanation.`

func main() {
	maxTurns := flag.Int("turns", 10, "maximum number of turns to play")
	scriptPath := flag.String("script", "", "YAML script with a scenario and commands to replay")
	goal := flag.String("goal", "explore and survive", "goal given to the AI player")
	flag.Parse()

	if err := run(*maxTurns, *scriptPath, *goal); err != nil {
		fmt.Fprintln(os.Stderr, "Simulation failed:", err)
		os.Exit(1)
	}
}

func run(maxTurns int, scriptPath, goal string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	ctx := context.Background()
	provider, err := gemini.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer provider.Close()

	session := engine.NewSession(provider, logger)

	var sc script
	if scriptPath != "" {
		data, err := os.ReadFile(scriptPath)
		if err != nil {
			return fmt.Errorf("reading script: %w", err)
		}
		if err := yaml.Unmarshal(data, &sc); err != nil {
			return fmt.Errorf("parsing script: %w", err)
		}
		if sc.Goal != "" {
			goal = sc.Goal
		}
	}

	var custom *models.CustomScenario
	if sc.CustomScenario != nil {
		custom = &models.CustomScenario{
			LocationName:     sc.CustomScenario.LocationName,
			SceneDescription: sc.CustomScenario.SceneDescription,
			Inventory:        sc.CustomScenario.Inventory,
			CharacterBio:     sc.CustomScenario.CharacterBio,
		}
	}

	fmt.Println("=== Starting adventure ===")
	seen := 0
	if err := session.StartAdventure(ctx, custom); err != nil {
		return fmt.Errorf("starting adventure: %w", err)
	}
	seen = printNewEntries(session, seen)

	var player *aiPlayer
	if len(sc.Commands) == 0 {
		player, err = newAIPlayer(ctx, cfg, goal)
		if err != nil {
			return err
		}
		defer player.Close()
	}

	turns := maxTurns
	if len(sc.Commands) > 0 && len(sc.Commands) < turns {
		turns = len(sc.Commands)
	}

	for turn := 0; turn < turns; turn++ {
		st := session.Snapshot()
		if st.GameOver {
			break
		}

		var command string
		if len(sc.Commands) > 0 {
			command = sc.Commands[turn]
		} else {
			command, err = player.nextCommand(ctx, st, goal)
			if err != nil {
				return fmt.Errorf("turn %d: choosing command: %w", turn+1, err)
			}
		}

		fmt.Printf("\n--- Turn %d: %q ---\n", turn+1, command)
		result, err := session.SubmitCommand(ctx, command)
		if err != nil {
			return fmt.Errorf("turn %d: %w", turn+1, err)
		}
		seen = printNewEntries(session, seen)

		if result.SceneChanged {
			session.RefreshSceneImage(ctx)
		}
		time.Sleep(time.Second)
	}

	final := session.Snapshot()
	fmt.Println("\n=== Final state ===")
	fmt.Println("Location:", final.LocationName)
	fmt.Printf("Wealth: %d %s\n", final.CurrencyAmount, final.CurrencyName)
	fmt.Println("Inventory:", strings.Join(final.Inventory, ", "))
	fmt.Println("Game over:", final.GameOver)
	return nil
}

func printNewEntries(session *engine.Session, seen int) int {
	snap := session.Snapshot()
	entries := snap.Log.Entries()
	for _, e := range entries[seen:] {
		fmt.Printf("[%s] %s\n", e.Kind, e.Text)
	}
	return len(entries)
}

// aiPlayer picks the next command with a second Gemini model.
type aiPlayer struct {
	client *genai.Client
	model  string
}

func newAIPlayer(ctx context.Context, cfg *config.Config, goal string) (*aiPlayer, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.GeminiAPIKey))
	if err != nil {
		return nil, fmt.Errorf("create player client: %w", err)
	}
	return &aiPlayer{client: client, model: cfg.TextModel}, nil
}

func (p *aiPlayer) Close() {
	p.client.Close()
}

func (p *aiPlayer) nextCommand(ctx context.Context, st models.GameState, goal string) (string, error) {
	recent := st.Log.Recent(5)
	story := "Nothing has happened yet."
	if len(recent) > 0 {
		story = "- " + strings.Join(recent, "\n- ")
	}
	inventory := "empty"
	if len(st.Inventory) > 0 {
		inventory = strings.Join(st.Inventory, ", ")
	}
	prompt := fmt.Sprintf(playerPrompt, goal, story, st.LocationName, inventory)

	m := p.client.GenerativeModel(p.model)
	m.SetTemperature(0.9)
	resp, err := m.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", err
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", fmt.Errorf("player model returned no candidates")
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			b.WriteString(string(text))
		}
	}
	command := strings.TrimSpace(strings.Trim(strings.TrimSpace(b.String()), `"`))
	if command == "" {
		return "", fmt.Errorf("player model returned an empty command")
	}
	return command, nil
}
