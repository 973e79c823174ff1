package models

// DefaultCurrencyName is used until world generation names the real currency.
const DefaultCurrencyName = "Coins"

// CharacterProfile describes the player character. It is created once during
// initialization, either fully generated or expanded from a user-provided bio,
// and never mutated afterwards.
type CharacterProfile struct {
	Name              string
	Age               string // descriptive, e.g. "Seasoned Veteran"
	Class             string
	Skills            []string
	Background        string
	Appearance        string // also used as the portrait generation seed
	PersonalityTraits []string
}

// WorldInfo describes the world the adventure takes place in. Created once
// alongside the character profile; immutable.
type WorldInfo struct {
	Background     string
	CurrencySystem string
	CurrencyName   string
}

// CustomScenario is the player's own setup for a custom adventure.
type CustomScenario struct {
	SceneDescription string
	LocationName     string
	Inventory        []string
	CharacterBio     string
}

// GameState is the single mutable aggregate for one adventure. It is owned by
// the turn orchestrator; everything else sees copies.
type GameState struct {
	LocationName     string
	SceneDescription string
	Inventory        []string
	CurrencyName     string
	CurrencyAmount   int
	Character        *CharacterProfile
	World            *WorldInfo
	GameOver         bool
	Log              StoryLog

	SceneImagePath     string
	CharacterImagePath string
}

// NewGameState returns the pre-game state shown before any adventure starts.
func NewGameState() *GameState {
	st := baseState()
	st.Log.Append(LogSystemInfo, "Welcome to Gemini Text Adventure!")
	return st
}

// NewAdventureState returns the starting state for a new adventure. A non-nil
// custom scenario seeds the scene, location and inventory; otherwise the
// defaults stand until generation fills them in.
func NewAdventureState(custom *CustomScenario) *GameState {
	st := baseState()
	if custom != nil {
		st.LocationName = custom.LocationName
		st.SceneDescription = custom.SceneDescription
		st.Inventory = append([]string(nil), custom.Inventory...)
	}
	st.Log.Append(LogSystemInfo, "A new adventure is materializing...")
	return st
}

func baseState() *GameState {
	return &GameState{
		LocationName:     "Loading...",
		SceneDescription: "The mists of creation swirl around you.",
		CurrencyName:     DefaultCurrencyName,
	}
}

// Clone returns a deep copy safe to hand to the presentation layer.
func (st *GameState) Clone() GameState {
	out := *st
	out.Inventory = append([]string(nil), st.Inventory...)
	out.Log = st.Log.Clone()
	if st.Character != nil {
		ch := *st.Character
		ch.Skills = append([]string(nil), st.Character.Skills...)
		ch.PersonalityTraits = append([]string(nil), st.Character.PersonalityTraits...)
		out.Character = &ch
	}
	if st.World != nil {
		w := *st.World
		out.World = &w
	}
	return out
}
