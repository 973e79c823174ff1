package engine

import (
	"context"

	"github.com/mirellag/gemini-adventure/internal/models"
	"github.com/mirellag/gemini-adventure/internal/payload"
)

// IllustrationKind selects the prompt treatment for a generated image.
type IllustrationKind string

const (
	IllustrationScene     IllustrationKind = "scene"
	IllustrationCharacter IllustrationKind = "character"
)

// ActionRequest carries everything the model needs to resolve one command.
type ActionRequest struct {
	LocationName     string
	SceneDescription string
	Inventory        []string
	Profile          *models.CharacterProfile
	CurrencyAmount   int
	CurrencyName     string
	RecentHistory    []string
	Command          string
}

// Provider is the generative-AI boundary. All operations are fallible and
// attempted once per turn; implementations return validated payloads or the
// typed errors from the payload package.
type Provider interface {
	// GenerateInitialScene produces a full random opening: scene, location,
	// event text, character profile and world/currency description.
	GenerateInitialScene(ctx context.Context) (*payload.InitialScene, error)

	// ExpandCharacter turns a short user bio into a full character profile.
	ExpandCharacter(ctx context.Context, bio string) (*payload.Character, error)

	// GenerateStartingAssets picks a starting package for the character.
	GenerateStartingAssets(ctx context.Context, profile models.CharacterProfile, world models.WorldInfo) (*payload.StartingAssets, error)

	// GenerateKickoffEvent writes the opening event for a custom scenario.
	GenerateKickoffEvent(ctx context.Context, scenario models.CustomScenario, characterName string) (*payload.Kickoff, error)

	// ProcessAction resolves one player command against the current state.
	ProcessAction(ctx context.Context, req ActionRequest) (*payload.Action, error)

	// GenerateIllustration renders an image for the description and returns a
	// local file path, or "" when the provider yields nothing. Absence is not
	// an error.
	GenerateIllustration(ctx context.Context, description string, subject IllustrationKind) (string, error)
}
