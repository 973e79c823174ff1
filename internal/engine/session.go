package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/mirellag/gemini-adventure/internal/models"
	"github.com/mirellag/gemini-adventure/internal/payload"
)

// Phase tracks where the orchestrator is in the initialization or action flow.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseSceneGenerating
	PhaseCharacterReady
	PhaseAssetsGenerating
	PhasePortraitGenerating
	PhaseSceneImageGenerating
	PhasePlaying
	PhaseAwaitingOutcome
	PhaseGameOver
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseSceneGenerating:
		return "scene_generating"
	case PhaseCharacterReady:
		return "character_ready"
	case PhaseAssetsGenerating:
		return "assets_generating"
	case PhasePortraitGenerating:
		return "portrait_generating"
	case PhaseSceneImageGenerating:
		return "scene_image_generating"
	case PhasePlaying:
		return "playing"
	case PhaseAwaitingOutcome:
		return "awaiting_outcome"
	case PhaseGameOver:
		return "game_over"
	}
	return "unknown"
}

var (
	// ErrBusy means an operation is already in flight; the command is dropped.
	ErrBusy = errors.New("an operation is already in flight")
	// ErrGameOver means the adventure has concluded; only a reset is accepted.
	ErrGameOver = errors.New("the adventure has concluded")
	// ErrNotPlaying means no adventure is in progress.
	ErrNotPlaying = errors.New("no adventure in progress")
)

// Fallback texts substituted when non-fatal generation steps fail.
const (
	fallbackPauseEvent        = "The world seems to pause, unsure how to react."
	fallbackForceEvent        = "A mysterious force prevents your action."
	fallbackAssetsDescription = "You start with very little, a path of hardship ahead."
	fallbackAssetsCurrency    = 5
)

func fallbackAssets() *payload.StartingAssets {
	return &payload.StartingAssets{
		InitialInventoryItems:    []string{"A simple Cloak", "Stale Bread"},
		InitialCurrencyAmount:    payload.LooseInt{Value: fallbackAssetsCurrency, Valid: true},
		InitialAssetsDescription: fallbackAssetsDescription,
	}
}

// Flags are the transient indicators exposed to the presentation layer.
type Flags struct {
	Initializing bool
	Acting       bool
	ImageBusy    bool
	LastError    string
}

// TurnResult summarizes one resolved action turn for the caller.
type TurnResult struct {
	SceneChanged bool
	GameOver     bool
}

// Session is the turn orchestrator. It owns the game state, sequences the
// initialization and action flows, and enforces single-flight: at most one
// outstanding operation at a time per adventure.
//
// One mutex guards the state; it is never held across an AI call. A restart
// bumps the epoch, which makes any still-running call discard its result
// instead of writing into the replacement state.
type Session struct {
	provider Provider
	logger   *slog.Logger
	rec      *Reconciler

	mu           sync.Mutex
	state        *models.GameState
	phase        Phase
	epoch        uint64
	initializing bool
	acting       bool
	imageBusy    bool
	lastErr      string
}

// NewSession creates an idle session backed by the given provider.
func NewSession(provider Provider, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{
		provider: provider,
		logger:   logger,
		rec:      NewReconciler(),
		state:    models.NewGameState(),
		phase:    PhaseIdle,
	}
}

// Phase returns the current orchestrator phase.
func (s *Session) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// Flags returns the current transient indicators.
func (s *Session) Flags() Flags {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Flags{
		Initializing: s.initializing,
		Acting:       s.acting,
		ImageBusy:    s.imageBusy,
		LastError:    s.lastErr,
	}
}

// Busy reports whether a new action or adventure would be refused right now.
func (s *Session) Busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.initializing || s.acting || s.imageBusy
}

// Snapshot returns a deep copy of the current game state.
func (s *Session) Snapshot() models.GameState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Clone()
}

// Reset discards the adventure and returns to setup. Results from any calls
// still in flight are dropped when they land.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.epoch++
	s.state = models.NewGameState()
	s.phase = PhaseIdle
	s.initializing = false
	s.acting = false
	s.imageBusy = false
	s.lastErr = ""
}

// StartAdventure runs the initialization flow. With a nil scenario it
// generates a fully random adventure; otherwise it expands the player's
// custom setup. Failures in the text/character/world stages are fatal to the
// attempt and return the session to Idle; starting-asset and illustration
// failures degrade gracefully.
func (s *Session) StartAdventure(ctx context.Context, custom *models.CustomScenario) error {
	s.mu.Lock()
	if s.initializing || s.acting || s.imageBusy {
		s.mu.Unlock()
		return ErrBusy
	}
	s.epoch++
	epoch := s.epoch
	s.initializing = true
	s.lastErr = ""
	s.state = models.NewAdventureState(custom)
	s.phase = PhaseSceneGenerating
	if custom != nil {
		s.state.Log.Append(models.LogSystemInfo, "Crafting your custom world, character, and starting assets...")
	} else {
		s.state.Log.Append(models.LogSystemInfo, "Generating a random adventure, hero, and their place in the world...")
	}
	s.mu.Unlock()

	err := s.initialize(ctx, custom, epoch)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.epoch != epoch {
		return nil // superseded by a restart
	}
	s.initializing = false
	if err != nil {
		s.lastErr = err.Error()
		s.state.Log.Append(models.LogError, "Initialization failed: "+err.Error())
		s.phase = PhaseIdle
		return err
	}
	s.phase = PhasePlaying
	return nil
}

func (s *Session) initialize(ctx context.Context, custom *models.CustomScenario, epoch uint64) error {
	var profile models.CharacterProfile
	var world models.WorldInfo
	var sceneText string

	if custom != nil {
		s.append(epoch, models.LogSystemInfo, fmt.Sprintf("Expanding character from bio: %q...", truncate(custom.CharacterBio, 50)))
		ch, err := s.provider.ExpandCharacter(ctx, custom.CharacterBio)
		if err != nil {
			return fmt.Errorf("expand character: %w", err)
		}
		profile = toProfile(ch)

		// World and currency details come from a throwaway random opening;
		// its scene and character are discarded in favor of the custom setup.
		initial, err := s.provider.GenerateInitialScene(ctx)
		if err != nil {
			return fmt.Errorf("generate world details: %w", err)
		}
		world = models.WorldInfo{
			Background:     initial.WorldBackground,
			CurrencySystem: initial.CurrencySystem,
			CurrencyName:   initial.CurrencyName,
		}
		sceneText = custom.SceneDescription

		s.mu.Lock()
		if s.epoch == epoch {
			s.state.Character = &profile
			s.state.World = &world
			s.state.CurrencyName = world.CurrencyName
			s.phase = PhaseCharacterReady
			s.state.Log.Append(models.LogCharacterUpdate, fmt.Sprintf("Character Created: %s, %s", profile.Name, profile.Class))
			s.state.Log.Append(models.LogNarration, sceneText)
		}
		s.mu.Unlock()

		event := s.kickoffEvent(ctx, *custom, profile.Name)
		s.append(epoch, models.LogEvent, event)
	} else {
		initial, err := s.provider.GenerateInitialScene(ctx)
		if err != nil {
			return fmt.Errorf("generate initial scene: %w", err)
		}
		profile = toProfile(&initial.CharacterProfile)
		world = models.WorldInfo{
			Background:     initial.WorldBackground,
			CurrencySystem: initial.CurrencySystem,
			CurrencyName:   initial.CurrencyName,
		}
		sceneText = initial.SceneDescription

		s.mu.Lock()
		if s.epoch == epoch {
			s.state.LocationName = initial.LocationName
			s.state.SceneDescription = initial.SceneDescription
			s.state.Character = &profile
			s.state.World = &world
			s.state.CurrencyName = world.CurrencyName
			s.phase = PhaseCharacterReady
			s.state.Log.Append(models.LogCharacterUpdate, fmt.Sprintf("Character Revealed: %s, %s", profile.Name, profile.Class))
			s.state.Log.Append(models.LogNarration, initial.SceneDescription)
			s.state.Log.Append(models.LogEvent, initial.EventMessage)
		}
		s.mu.Unlock()
	}

	s.setPhase(epoch, PhaseAssetsGenerating)
	s.append(epoch, models.LogSystemInfo, fmt.Sprintf("Determining starting assets for %s in this world...", profile.Name))
	assets, err := s.provider.GenerateStartingAssets(ctx, profile, world)
	if err != nil {
		s.logger.Warn("starting assets generation failed, using fallback package", "error", err)
		assets = fallbackAssets()
	}
	s.mu.Lock()
	if s.epoch == epoch {
		delta := s.rec.StartingAssets(s.state, assets, world.CurrencyName)
		s.state.Inventory = delta.Inventory
		s.state.CurrencyAmount = delta.CurrencyAmount
		for _, e := range delta.Entries {
			s.state.Log.Append(e.Kind, e.Text)
		}
	}
	s.mu.Unlock()

	// Illustrations are best-effort: a failure leaves the slot empty.
	if profile.Appearance != "" {
		s.setPhase(epoch, PhasePortraitGenerating)
		s.append(epoch, models.LogSystemInfo, fmt.Sprintf("Generating portrait for %s...", profile.Name))
		if path, err := s.provider.GenerateIllustration(ctx, profile.Appearance, IllustrationCharacter); err != nil {
			s.logger.Warn("portrait generation failed", "error", err)
		} else if path != "" {
			s.mu.Lock()
			if s.epoch == epoch {
				s.state.CharacterImagePath = path
			}
			s.mu.Unlock()
		}
	}

	if sceneText != "" {
		s.setPhase(epoch, PhaseSceneImageGenerating)
		if path, err := s.provider.GenerateIllustration(ctx, sceneText, IllustrationScene); err != nil {
			s.logger.Warn("scene illustration failed", "error", err)
		} else if path != "" {
			s.mu.Lock()
			if s.epoch == epoch {
				s.state.SceneImagePath = path
			}
			s.mu.Unlock()
		}
	}
	return nil
}

// kickoffEvent asks the model for a custom-scenario opening and substitutes a
// deterministic message when that fails; kickoff failures are never fatal.
func (s *Session) kickoffEvent(ctx context.Context, scenario models.CustomScenario, characterName string) string {
	kick, err := s.provider.GenerateKickoffEvent(ctx, scenario, characterName)
	if err == nil {
		return kick.EventMessage
	}
	s.logger.Warn("kickoff generation failed, using fallback", "error", err)
	subject := "Your custom adventure"
	if characterName != "" {
		subject = characterName
	}
	if payload.IsValidation(err) {
		return subject + " begins..."
	}
	return subject + " begins with an air of mystery..."
}

// SubmitCommand resolves one player command. Empty commands, commands while
// busy and commands after game over are ignored at the boundary. Provider and
// validation failures degrade to the unchanged scene plus a generic event.
func (s *Session) SubmitCommand(ctx context.Context, command string) (TurnResult, error) {
	command = strings.TrimSpace(command)
	if command == "" {
		return TurnResult{}, nil
	}

	s.mu.Lock()
	switch {
	case s.state.GameOver || s.phase == PhaseGameOver:
		s.mu.Unlock()
		return TurnResult{}, ErrGameOver
	case s.initializing || s.acting || s.imageBusy:
		s.mu.Unlock()
		return TurnResult{}, ErrBusy
	case s.phase != PhasePlaying:
		s.mu.Unlock()
		return TurnResult{}, ErrNotPlaying
	}
	s.acting = true
	s.phase = PhaseAwaitingOutcome
	s.lastErr = ""
	epoch := s.epoch
	s.state.Log.Append(models.LogPlayerAction, command)
	req := ActionRequest{
		LocationName:     s.state.LocationName,
		SceneDescription: s.state.SceneDescription,
		Inventory:        append([]string(nil), s.state.Inventory...),
		CurrencyAmount:   s.state.CurrencyAmount,
		CurrencyName:     s.state.CurrencyName,
		RecentHistory:    s.state.Log.Recent(5),
		Command:          command,
	}
	if s.state.Character != nil {
		profile := *s.state.Character
		req.Profile = &profile
	}
	s.mu.Unlock()

	resp, callErr := s.provider.ProcessAction(ctx, req)
	if callErr != nil {
		resp = s.degradedOutcome(req, callErr)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.epoch != epoch {
		return TurnResult{}, nil
	}
	s.acting = false
	delta := s.rec.Action(s.state, resp)
	s.state.LocationName = delta.LocationName
	s.state.SceneDescription = delta.SceneDescription
	s.state.Inventory = delta.Inventory
	s.state.CurrencyAmount = delta.CurrencyAmount
	s.state.GameOver = delta.GameOver
	for _, e := range delta.Entries {
		s.state.Log.Append(e.Kind, e.Text)
	}
	if delta.GameOver {
		s.phase = PhaseGameOver
	} else {
		s.phase = PhasePlaying
	}
	if callErr != nil {
		s.lastErr = callErr.Error()
	}
	return TurnResult{SceneChanged: delta.SceneChanged, GameOver: delta.GameOver}, nil
}

// degradedOutcome builds the substitute action response for a failed call:
// the scene stays put and a generic event carries the error along.
func (s *Session) degradedOutcome(req ActionRequest, err error) *payload.Action {
	event := fallbackForceEvent
	if payload.IsValidation(err) {
		event = fallbackPauseEvent
	}
	s.logger.Warn("action processing failed, substituting degraded outcome", "error", err)
	return &payload.Action{
		SceneDescription: req.SceneDescription,
		EventMessage:     event,
		ErrorMessage:     err.Error(),
	}
}

// RefreshSceneImage regenerates the scene illustration after a scene change.
// It is best-effort and detached from the turn that requested it, but its
// in-flight flag still counts toward the busy check for the next action.
func (s *Session) RefreshSceneImage(ctx context.Context) {
	s.mu.Lock()
	if s.phase != PhasePlaying || s.imageBusy {
		s.mu.Unlock()
		return
	}
	s.imageBusy = true
	epoch := s.epoch
	scene := s.state.SceneDescription
	s.mu.Unlock()

	path, err := s.provider.GenerateIllustration(ctx, scene, IllustrationScene)
	if err != nil {
		s.logger.Warn("scene illustration refresh failed", "error", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.epoch != epoch {
		return
	}
	s.imageBusy = false
	if err == nil && path != "" {
		s.state.SceneImagePath = path
	}
}

// append adds a log entry unless a restart has replaced the state.
func (s *Session) append(epoch uint64, kind models.LogKind, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.epoch == epoch {
		s.state.Log.Append(kind, text)
	}
}

func (s *Session) setPhase(epoch uint64, phase Phase) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.epoch == epoch {
		s.phase = phase
	}
}

func toProfile(c *payload.Character) models.CharacterProfile {
	return models.CharacterProfile{
		Name:              c.Name,
		Age:               c.Age,
		Class:             c.Class,
		Skills:            append([]string(nil), c.Skills...),
		Background:        c.Background,
		Appearance:        c.Appearance,
		PersonalityTraits: append([]string(nil), c.PersonalityTraits...),
	}
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
