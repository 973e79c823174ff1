// Package payload validates the semi-structured JSON the model returns.
//
// Each request kind has its own decode function. Decoding distinguishes two
// failure modes, both of which keep the raw model text for diagnostics:
// ParseError (the text was not valid JSON at all) and SchemaError (valid JSON
// missing required fields). Callers must handle both before trusting any field.
package payload

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// Kind identifies which contract a raw payload is checked against.
type Kind string

const (
	KindInitialScene    Kind = "initial_scene"
	KindCustomCharacter Kind = "custom_character"
	KindStartingAssets  Kind = "starting_assets"
	KindKickoff         Kind = "kickoff"
	KindAction          Kind = "action"
)

// ParseError reports model output that could not be decoded as JSON.
type ParseError struct {
	Raw string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("unparsable model response: %v", e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// SchemaError reports a decoded payload missing required fields for its kind.
type SchemaError struct {
	Kind    Kind
	Missing []string
	Raw     string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("%s response missing required fields: %s", e.Kind, strings.Join(e.Missing, ", "))
}

// IsValidation reports whether err is a parse or schema failure, as opposed
// to a transport or provider error.
func IsValidation(err error) bool {
	var pe *ParseError
	var se *SchemaError
	return errors.As(err, &pe) || errors.As(err, &se)
}

// Models wrap JSON in markdown code fences often enough that unwrapping has
// to happen before parsing.
var fenceRE = regexp.MustCompile("(?s)^```(?:json)?\\s*\\n?(.*?)\\n?\\s*```$")

// Unfence strips a surrounding markdown code fence, if any.
func Unfence(raw string) string {
	s := strings.TrimSpace(raw)
	if m := fenceRE.FindStringSubmatch(s); m != nil {
		return strings.TrimSpace(m[1])
	}
	return s
}

// LooseInt decodes a JSON number leniently: floats are truncated and numeric
// strings accepted, while any other type leaves the value absent rather than
// failing the whole payload.
type LooseInt struct {
	Value int
	Valid bool
}

func (l *LooseInt) UnmarshalJSON(data []byte) error {
	var f float64
	if err := json.Unmarshal(data, &f); err == nil {
		l.Value, l.Valid = int(f), true
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		if n, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			l.Value, l.Valid = n, true
		}
	}
	return nil
}

// Character is the wire shape of a generated character profile.
type Character struct {
	Name              string   `json:"name"`
	Age               string   `json:"age"`
	Class             string   `json:"class"`
	Skills            []string `json:"skills"`
	Background        string   `json:"background"`
	Appearance        string   `json:"appearance"`
	PersonalityTraits []string `json:"personalityTraits"`
}

// InitialScene is the wire shape of a random-adventure opening.
type InitialScene struct {
	SceneDescription string    `json:"sceneDescription"`
	LocationName     string    `json:"locationName"`
	EventMessage     string    `json:"eventMessage"`
	CharacterProfile Character `json:"characterProfile"`
	WorldBackground  string    `json:"worldBackground"`
	CurrencySystem   string    `json:"currencySystem"`
	CurrencyName     string    `json:"currencyName"`
}

// StartingAssets is the wire shape of the starting-package generation.
type StartingAssets struct {
	InitialInventoryItems    []string `json:"initialInventoryItems"`
	InitialCurrencyAmount    LooseInt `json:"initialCurrencyAmount"`
	InitialAssetsDescription string   `json:"initialAssetsDescription"`
}

// Kickoff is the wire shape of a custom-scenario opening event.
type Kickoff struct {
	EventMessage string `json:"eventMessage"`
}

// Action is the wire shape of an action outcome. Only sceneDescription and
// eventMessage are required; everything else is optional.
type Action struct {
	SceneDescription string   `json:"sceneDescription"`
	NewLocationName  string   `json:"newLocationName"`
	EventMessage     string   `json:"eventMessage"`
	ItemsFound       []string `json:"itemsFound"`
	ItemsLost        []string `json:"itemsLost"`
	CurrencyChange   LooseInt `json:"currencyChange"`
	IsGameOver       bool     `json:"isGameOver"`
	GameOverMessage  string   `json:"gameOverMessage"`
	ErrorMessage     string   `json:"errorMessage"`
}

func decode(raw string, v any) error {
	clean := Unfence(raw)
	if err := json.Unmarshal([]byte(clean), v); err != nil {
		return &ParseError{Raw: raw, Err: err}
	}
	return nil
}

// DecodeInitialScene validates a raw payload against the InitialScene contract.
func DecodeInitialScene(raw string) (*InitialScene, error) {
	var p InitialScene
	if err := decode(raw, &p); err != nil {
		return nil, err
	}
	missing := missingStrings(map[string]string{
		"sceneDescription": p.SceneDescription,
		"locationName":     p.LocationName,
		"eventMessage":     p.EventMessage,
		"worldBackground":  p.WorldBackground,
		"currencySystem":   p.CurrencySystem,
		"currencyName":     p.CurrencyName,
	})
	missing = append(missing, characterMissing(&p.CharacterProfile, "characterProfile.")...)
	if len(missing) > 0 {
		return nil, &SchemaError{Kind: KindInitialScene, Missing: missing, Raw: raw}
	}
	return &p, nil
}

// DecodeCharacter validates a raw payload against the Character contract.
func DecodeCharacter(raw string) (*Character, error) {
	var p Character
	if err := decode(raw, &p); err != nil {
		return nil, err
	}
	if missing := characterMissing(&p, ""); len(missing) > 0 {
		return nil, &SchemaError{Kind: KindCustomCharacter, Missing: missing, Raw: raw}
	}
	return &p, nil
}

// DecodeStartingAssets validates a raw payload against the StartingAssets
// contract. The item list may be empty but must be present.
func DecodeStartingAssets(raw string) (*StartingAssets, error) {
	var p StartingAssets
	if err := decode(raw, &p); err != nil {
		return nil, err
	}
	var missing []string
	if p.InitialInventoryItems == nil {
		missing = append(missing, "initialInventoryItems")
	}
	if !p.InitialCurrencyAmount.Valid {
		missing = append(missing, "initialCurrencyAmount")
	}
	if len(missing) > 0 {
		return nil, &SchemaError{Kind: KindStartingAssets, Missing: missing, Raw: raw}
	}
	return &p, nil
}

// DecodeKickoff validates a raw payload against the Kickoff contract.
// Callers treat kickoff failures as non-fatal and substitute a fallback.
func DecodeKickoff(raw string) (*Kickoff, error) {
	var p Kickoff
	if err := decode(raw, &p); err != nil {
		return nil, err
	}
	if p.EventMessage == "" {
		return nil, &SchemaError{Kind: KindKickoff, Missing: []string{"eventMessage"}, Raw: raw}
	}
	return &p, nil
}

// DecodeAction validates a raw payload against the Action contract. A failure
// here signals a degraded result: the caller falls back to the unchanged
// scene plus a generic event, carrying the error text along.
func DecodeAction(raw string) (*Action, error) {
	var p Action
	if err := decode(raw, &p); err != nil {
		return nil, err
	}
	missing := missingStrings(map[string]string{
		"sceneDescription": p.SceneDescription,
		"eventMessage":     p.EventMessage,
	})
	if len(missing) > 0 {
		return nil, &SchemaError{Kind: KindAction, Missing: missing, Raw: raw}
	}
	return &p, nil
}

func characterMissing(c *Character, prefix string) []string {
	missing := missingStrings(map[string]string{
		prefix + "name":       c.Name,
		prefix + "age":        c.Age,
		prefix + "class":      c.Class,
		prefix + "background": c.Background,
		prefix + "appearance": c.Appearance,
	})
	if len(c.Skills) == 0 {
		missing = append(missing, prefix+"skills")
	}
	if len(c.PersonalityTraits) == 0 {
		missing = append(missing, prefix+"personalityTraits")
	}
	return missing
}

func missingStrings(fields map[string]string) []string {
	var missing []string
	for name, value := range fields {
		if strings.TrimSpace(value) == "" {
			missing = append(missing, name)
		}
	}
	sort.Strings(missing)
	return missing
}
