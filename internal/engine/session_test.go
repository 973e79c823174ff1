package engine

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/mirellag/gemini-adventure/internal/models"
	"github.com/mirellag/gemini-adventure/internal/payload"
)

// scriptProvider replays canned responses and counts calls.
type scriptProvider struct {
	initial    *payload.InitialScene
	initialErr error

	character    *payload.Character
	characterErr error

	assets    *payload.StartingAssets
	assetsErr error

	kickoff    *payload.Kickoff
	kickoffErr error

	actions    []*payload.Action
	actionErrs []error

	illustration    string
	illustrationErr error

	actionCalls       int
	illustrationCalls int
}

func (p *scriptProvider) GenerateInitialScene(context.Context) (*payload.InitialScene, error) {
	return p.initial, p.initialErr
}

func (p *scriptProvider) ExpandCharacter(context.Context, string) (*payload.Character, error) {
	return p.character, p.characterErr
}

func (p *scriptProvider) GenerateStartingAssets(context.Context, models.CharacterProfile, models.WorldInfo) (*payload.StartingAssets, error) {
	return p.assets, p.assetsErr
}

func (p *scriptProvider) GenerateKickoffEvent(context.Context, models.CustomScenario, string) (*payload.Kickoff, error) {
	return p.kickoff, p.kickoffErr
}

func (p *scriptProvider) ProcessAction(context.Context, ActionRequest) (*payload.Action, error) {
	i := p.actionCalls
	p.actionCalls++
	var resp *payload.Action
	var err error
	if i < len(p.actions) {
		resp = p.actions[i]
	}
	if i < len(p.actionErrs) {
		err = p.actionErrs[i]
	}
	return resp, err
}

func (p *scriptProvider) GenerateIllustration(context.Context, string, IllustrationKind) (string, error) {
	p.illustrationCalls++
	return p.illustration, p.illustrationErr
}

func testCharacter() payload.Character {
	return payload.Character{
		Name:              "Bram",
		Age:               "Veteran Dwarf",
		Class:             "Mountain Guardian",
		Skills:            []string{"Axe Mastery", "Endurance"},
		Background:        "Exiled from his clan.",
		Appearance:        "Stout, grey-streaked beard.",
		PersonalityTraits: []string{"Stoic"},
	}
}

func testInitialScene() *payload.InitialScene {
	return &payload.InitialScene{
		SceneDescription: "A windscraped cave",
		LocationName:     "Windscraped Cave",
		EventMessage:     "The cold seeps in.",
		CharacterProfile: testCharacter(),
		WorldBackground:  "Aerthos is fractured.",
		CurrencySystem:   "Sunstones, warm pebbles.",
		CurrencyName:     "Sunstones",
	}
}

func testAssets() *payload.StartingAssets {
	return &payload.StartingAssets{
		InitialInventoryItems:    []string{"Rusty Shortsword"},
		InitialCurrencyAmount:    change(12),
		InitialAssetsDescription: "You awaken in a damp alley.",
	}
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestStartAdventureRandom(t *testing.T) {
	prov := &scriptProvider{
		initial:      testInitialScene(),
		assets:       testAssets(),
		illustration: "/tmp/scene.jpg",
	}
	s := NewSession(prov, quietLogger())

	if err := s.StartAdventure(context.Background(), nil); err != nil {
		t.Fatalf("StartAdventure: %v", err)
	}
	if s.Phase() != PhasePlaying {
		t.Fatalf("phase = %v, want playing", s.Phase())
	}

	st := s.Snapshot()
	if st.LocationName != "Windscraped Cave" {
		t.Errorf("location = %q", st.LocationName)
	}
	if st.Character == nil || st.Character.Name != "Bram" {
		t.Errorf("character = %+v", st.Character)
	}
	if st.World == nil || st.CurrencyName != "Sunstones" {
		t.Errorf("world/currency not applied: %+v", st.World)
	}
	if st.CurrencyAmount != 12 {
		t.Errorf("currency = %d", st.CurrencyAmount)
	}
	if len(st.Inventory) != 1 || st.Inventory[0] != "Rusty Shortsword" {
		t.Errorf("inventory = %v", st.Inventory)
	}
	if st.SceneImagePath == "" || st.CharacterImagePath == "" {
		t.Errorf("illustrations not recorded: scene=%q character=%q", st.SceneImagePath, st.CharacterImagePath)
	}
	if _, ok := st.Log.LastOfKind(models.LogCharacterUpdate); !ok {
		t.Error("character_update entry missing")
	}
}

func TestStartAdventureFatalFailureReturnsToIdle(t *testing.T) {
	prov := &scriptProvider{initialErr: errors.New("quota exhausted")}
	s := NewSession(prov, quietLogger())

	err := s.StartAdventure(context.Background(), nil)
	if err == nil {
		t.Fatal("expected error")
	}
	if s.Phase() != PhaseIdle {
		t.Errorf("phase = %v, want idle", s.Phase())
	}
	if s.Flags().LastError == "" {
		t.Error("lastError not surfaced")
	}
	snap := s.Snapshot()
	if _, ok := snap.Log.LastOfKind(models.LogError); !ok {
		t.Error("error entry missing from log")
	}
}

func TestStartAdventureAssetsFallback(t *testing.T) {
	prov := &scriptProvider{
		initial:   testInitialScene(),
		assetsErr: errors.New("model hiccup"),
	}
	s := NewSession(prov, quietLogger())

	if err := s.StartAdventure(context.Background(), nil); err != nil {
		t.Fatalf("asset failure must not abort initialization: %v", err)
	}
	st := s.Snapshot()
	if st.CurrencyAmount != fallbackAssetsCurrency {
		t.Errorf("currency = %d, want fallback grant %d", st.CurrencyAmount, fallbackAssetsCurrency)
	}
	want := []string{"A simple Cloak", "Stale Bread"}
	if len(st.Inventory) != len(want) || st.Inventory[0] != want[0] || st.Inventory[1] != want[1] {
		t.Errorf("inventory = %v, want fallback %v", st.Inventory, want)
	}
}

func TestStartAdventureCustomKickoffFallback(t *testing.T) {
	ch := testCharacter()
	prov := &scriptProvider{
		initial:    testInitialScene(),
		character:  &ch,
		assets:     testAssets(),
		kickoffErr: &payload.SchemaError{Kind: payload.KindKickoff, Missing: []string{"eventMessage"}},
	}
	s := NewSession(prov, quietLogger())

	custom := &models.CustomScenario{
		SceneDescription: "A quiet library",
		LocationName:     "Sunken Library",
		Inventory:        []string{"Reading Glasses"},
		CharacterBio:     "A near-sighted scholar.",
	}
	if err := s.StartAdventure(context.Background(), custom); err != nil {
		t.Fatalf("kickoff failure must not abort initialization: %v", err)
	}

	st := s.Snapshot()
	if st.LocationName != "Sunken Library" || st.SceneDescription != "A quiet library" {
		t.Errorf("custom setup not preserved: %q / %q", st.LocationName, st.SceneDescription)
	}
	event, ok := st.Log.LastOfKind(models.LogEvent)
	if !ok {
		t.Fatal("kickoff event entry missing")
	}
	if event.Text != "Bram begins..." {
		t.Errorf("kickoff fallback = %q", event.Text)
	}
	// custom inventory is unioned with starting assets
	found := map[string]bool{}
	for _, item := range st.Inventory {
		found[item] = true
	}
	if !found["Reading Glasses"] || !found["Rusty Shortsword"] {
		t.Errorf("inventory = %v", st.Inventory)
	}
}

func startPlaying(t *testing.T, prov *scriptProvider) *Session {
	t.Helper()
	s := NewSession(prov, quietLogger())
	if err := s.StartAdventure(context.Background(), nil); err != nil {
		t.Fatalf("StartAdventure: %v", err)
	}
	return s
}

func TestSubmitCommandSuccess(t *testing.T) {
	prov := &scriptProvider{
		initial: testInitialScene(),
		assets:  testAssets(),
		actions: []*payload.Action{{
			SceneDescription: "The chanting grows louder.",
			EventMessage:     "You step deeper into the cave.",
			ItemsFound:       []string{"Glowing Shard"},
			CurrencyChange:   change(3),
		}},
	}
	s := startPlaying(t, prov)

	res, err := s.SubmitCommand(context.Background(), "go deeper")
	if err != nil {
		t.Fatalf("SubmitCommand: %v", err)
	}
	if !res.SceneChanged {
		t.Error("sceneChanged should be true")
	}

	st := s.Snapshot()
	if st.SceneDescription != "The chanting grows louder." {
		t.Errorf("scene = %q", st.SceneDescription)
	}
	if st.CurrencyAmount != 15 {
		t.Errorf("currency = %d, want 15", st.CurrencyAmount)
	}
	if action, ok := st.Log.LastOfKind(models.LogPlayerAction); !ok || action.Text != "go deeper" {
		t.Errorf("player_action entry = %+v", action)
	}
	if s.Phase() != PhasePlaying {
		t.Errorf("phase = %v", s.Phase())
	}
}

func TestSubmitCommandDegradedOnValidationFailure(t *testing.T) {
	prov := &scriptProvider{
		initial:    testInitialScene(),
		assets:     testAssets(),
		actionErrs: []error{&payload.SchemaError{Kind: payload.KindAction, Missing: []string{"sceneDescription"}}},
	}
	s := startPlaying(t, prov)
	before := s.Snapshot().SceneDescription

	res, err := s.SubmitCommand(context.Background(), "poke the altar")
	if err != nil {
		t.Fatalf("degraded path must not return an error: %v", err)
	}
	if res.SceneChanged {
		t.Error("degraded outcome must not trigger an illustration refresh")
	}

	st := s.Snapshot()
	if st.SceneDescription != before {
		t.Errorf("scene changed on degraded outcome: %q", st.SceneDescription)
	}
	if event, ok := st.Log.LastOfKind(models.LogEvent); !ok || event.Text != fallbackPauseEvent {
		t.Errorf("event entry = %+v, want pause fallback", event)
	}
	if _, ok := st.Log.LastOfKind(models.LogError); !ok {
		t.Error("error entry missing")
	}
}

func TestSubmitCommandTransportFallback(t *testing.T) {
	prov := &scriptProvider{
		initial:    testInitialScene(),
		assets:     testAssets(),
		actionErrs: []error{errors.New("connection reset")},
	}
	s := startPlaying(t, prov)

	if _, err := s.SubmitCommand(context.Background(), "wait"); err != nil {
		t.Fatalf("SubmitCommand: %v", err)
	}
	snap := s.Snapshot()
	event, _ := snap.Log.LastOfKind(models.LogEvent)
	if event.Text != fallbackForceEvent {
		t.Errorf("event = %q, want force fallback", event.Text)
	}
}

func TestGameOverFreeze(t *testing.T) {
	prov := &scriptProvider{
		initial: testInitialScene(),
		assets:  testAssets(),
		actions: []*payload.Action{{
			SceneDescription: "Darkness takes you.",
			EventMessage:     "The floor gives way.",
			IsGameOver:       true,
			GameOverMessage:  "Your adventure ends here.",
		}},
	}
	s := startPlaying(t, prov)

	res, err := s.SubmitCommand(context.Background(), "jump")
	if err != nil {
		t.Fatalf("SubmitCommand: %v", err)
	}
	if !res.GameOver || s.Phase() != PhaseGameOver {
		t.Fatalf("expected game over, phase = %v", s.Phase())
	}

	callsBefore := prov.actionCalls
	snapBefore := s.Snapshot()
	logBefore := snapBefore.Log.Len()
	if _, err := s.SubmitCommand(context.Background(), "get up"); !errors.Is(err, ErrGameOver) {
		t.Errorf("err = %v, want ErrGameOver", err)
	}
	if prov.actionCalls != callsBefore {
		t.Error("provider called after game over")
	}
	snapAfter := s.Snapshot()
	if snapAfter.Log.Len() != logBefore {
		t.Error("state mutated after game over")
	}

	// a full reset unfreezes
	s.Reset()
	if s.Phase() != PhaseIdle || s.Snapshot().GameOver {
		t.Error("reset did not return session to idle")
	}
}

func TestEmptyCommandIgnored(t *testing.T) {
	prov := &scriptProvider{initial: testInitialScene(), assets: testAssets()}
	s := startPlaying(t, prov)

	if _, err := s.SubmitCommand(context.Background(), "   "); err != nil {
		t.Fatalf("empty command should be silently ignored, got %v", err)
	}
	if prov.actionCalls != 0 {
		t.Error("provider called for an empty command")
	}
}

func TestSingleFlight(t *testing.T) {
	prov := &scriptProvider{initial: testInitialScene(), assets: testAssets()}
	s := NewSession(prov, quietLogger())

	// Not playing yet: commands are refused without touching the provider.
	if _, err := s.SubmitCommand(context.Background(), "look"); !errors.Is(err, ErrNotPlaying) {
		t.Errorf("err = %v, want ErrNotPlaying", err)
	}

	if err := s.StartAdventure(context.Background(), nil); err != nil {
		t.Fatalf("StartAdventure: %v", err)
	}

	// Simulate an in-flight illustration; the next action must be refused.
	s.mu.Lock()
	s.imageBusy = true
	s.mu.Unlock()
	if _, err := s.SubmitCommand(context.Background(), "look"); !errors.Is(err, ErrBusy) {
		t.Errorf("err = %v, want ErrBusy", err)
	}
	if err := s.StartAdventure(context.Background(), nil); !errors.Is(err, ErrBusy) {
		t.Errorf("StartAdventure err = %v, want ErrBusy", err)
	}
}

func TestRefreshSceneImage(t *testing.T) {
	prov := &scriptProvider{
		initial:      testInitialScene(),
		assets:       testAssets(),
		illustration: "/tmp/new-scene.jpg",
	}
	s := startPlaying(t, prov)

	s.RefreshSceneImage(context.Background())
	st := s.Snapshot()
	if st.SceneImagePath != "/tmp/new-scene.jpg" {
		t.Errorf("scene image = %q", st.SceneImagePath)
	}
	if s.Flags().ImageBusy {
		t.Error("imageBusy flag not cleared")
	}
}

func TestRefreshSceneImageFailureIsSilent(t *testing.T) {
	prov := &scriptProvider{
		initial:         testInitialScene(),
		assets:          testAssets(),
		illustrationErr: errors.New("image model unavailable"),
	}
	s := NewSession(prov, quietLogger())
	if err := s.StartAdventure(context.Background(), nil); err != nil {
		t.Fatalf("illustration failures must not abort initialization: %v", err)
	}

	before := s.Snapshot().SceneImagePath
	s.RefreshSceneImage(context.Background())
	st := s.Snapshot()
	if st.SceneImagePath != before {
		t.Errorf("image slot changed on failure: %q", st.SceneImagePath)
	}
	if s.Flags().ImageBusy {
		t.Error("imageBusy flag not cleared after failure")
	}
}
