package engine

import (
	"fmt"
	"strings"

	"github.com/mirellag/gemini-adventure/internal/models"
	"github.com/mirellag/gemini-adventure/internal/payload"
)

// PendingEntry is a log line the reconciler wants appended. Ids and
// timestamps are assigned on append, not here.
type PendingEntry struct {
	Kind models.LogKind
	Text string
}

// ActionDelta is the result of merging one action outcome into the previous
// state. SceneChanged governs whether a follow-up illustration refresh runs.
type ActionDelta struct {
	LocationName     string
	SceneDescription string
	Inventory        []string
	CurrencyAmount   int
	GameOver         bool
	SceneChanged     bool
	Entries          []PendingEntry
}

// AssetsDelta is the result of merging the starting package into the state.
type AssetsDelta struct {
	Inventory      []string
	CurrencyAmount int
	Entries        []PendingEntry
}

// Reconciler derives the next game state from a validated model response.
// Its methods are pure: they read the previous state and return deltas,
// never touching the network or mutating their inputs.
type Reconciler struct {
	// NoOpMarkers lists phrases that mark an event message as filler next to
	// an error. This is a content heuristic, not a contract; tune freely.
	NoOpMarkers []string
}

// NewReconciler returns a reconciler with the default no-op markers.
func NewReconciler() *Reconciler {
	return &Reconciler{NoOpMarkers: []string{"nothing happens"}}
}

// Action merges an action outcome into prev.
//
// Inventory is treated as a set for membership and an ordered sequence for
// display: itemsFound union in (duplicates skipped), itemsLost are removed.
// Currency is clamped at zero. When the response carries an errorMessage the
// scene and location are pinned to their previous values, whatever the
// payload says.
func (r *Reconciler) Action(prev *models.GameState, resp *payload.Action) ActionDelta {
	d := ActionDelta{
		LocationName:     prev.LocationName,
		SceneDescription: resp.SceneDescription,
		CurrencyAmount:   prev.CurrencyAmount,
		GameOver:         prev.GameOver || resp.IsGameOver,
	}
	if resp.NewLocationName != "" {
		d.LocationName = resp.NewLocationName
	}

	d.Inventory = removeItems(unionItems(prev.Inventory, resp.ItemsFound), resp.ItemsLost)

	if resp.CurrencyChange.Valid && resp.CurrencyChange.Value != 0 {
		change := resp.CurrencyChange.Value
		d.CurrencyAmount = prev.CurrencyAmount + change
		if d.CurrencyAmount < 0 {
			d.CurrencyAmount = 0
		}
		verb := "gained"
		if change < 0 {
			verb = "lost"
		}
		d.Entries = append(d.Entries, PendingEntry{
			Kind: models.LogCurrencyUpdate,
			Text: fmt.Sprintf("You %s %d %s. Current: %d %s.", verb, abs(change), prev.CurrencyName, d.CurrencyAmount, prev.CurrencyName),
		})
	}

	d.SceneChanged = resp.SceneDescription != prev.SceneDescription ||
		(resp.NewLocationName != "" && resp.NewLocationName != prev.LocationName)
	if resp.ErrorMessage != "" || resp.IsGameOver {
		d.SceneChanged = false
	}

	if resp.ErrorMessage != "" {
		// Invalid or impossible actions leave the player exactly where they were.
		d.SceneDescription = prev.SceneDescription
		d.LocationName = prev.LocationName
		d.Entries = append(d.Entries, PendingEntry{Kind: models.LogError, Text: resp.ErrorMessage})
		if resp.EventMessage != "" && !r.redundantEvent(resp.EventMessage, resp.ErrorMessage) {
			d.Entries = append(d.Entries, PendingEntry{Kind: models.LogEvent, Text: resp.EventMessage})
		}
	} else {
		d.Entries = append(d.Entries,
			PendingEntry{Kind: models.LogNarration, Text: resp.SceneDescription},
			PendingEntry{Kind: models.LogEvent, Text: resp.EventMessage},
		)
	}

	if resp.IsGameOver && resp.GameOverMessage != "" {
		d.Entries = append(d.Entries, PendingEntry{Kind: models.LogGameOver, Text: resp.GameOverMessage})
	}
	return d
}

// StartingAssets merges the starting package into prev using the same union
// rules as the action merge. The currency amount is the initial grant.
func (r *Reconciler) StartingAssets(prev *models.GameState, assets *payload.StartingAssets, currencyName string) AssetsDelta {
	d := AssetsDelta{
		Inventory:      unionItems(prev.Inventory, assets.InitialInventoryItems),
		CurrencyAmount: assets.InitialCurrencyAmount.Value,
	}
	if d.CurrencyAmount < 0 {
		d.CurrencyAmount = 0
	}
	for _, item := range d.Inventory[len(prev.Inventory):] {
		d.Entries = append(d.Entries, PendingEntry{Kind: models.LogEvent, Text: "Acquired: " + item})
	}
	d.Entries = append(d.Entries, PendingEntry{
		Kind: models.LogCurrencyUpdate,
		Text: fmt.Sprintf("Initial wealth: %d %s.", d.CurrencyAmount, currencyName),
	})
	if assets.InitialAssetsDescription != "" {
		d.Entries = append(d.Entries, PendingEntry{Kind: models.LogAssetUpdate, Text: assets.InitialAssetsDescription})
	}
	return d
}

// redundantEvent reports whether the event text would only duplicate the
// error next to it.
func (r *Reconciler) redundantEvent(event, errText string) bool {
	if event == errText {
		return true
	}
	lower := strings.ToLower(event)
	for _, marker := range r.NoOpMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// unionItems appends the members of add not already present in base,
// preserving insertion order. The input slices are not modified.
func unionItems(base, add []string) []string {
	out := append([]string(nil), base...)
	seen := make(map[string]bool, len(out))
	for _, item := range out {
		seen[item] = true
	}
	for _, item := range add {
		if item == "" || seen[item] {
			continue
		}
		seen[item] = true
		out = append(out, item)
	}
	return out
}

// removeItems drops every member of lost from base, preserving order.
func removeItems(base, lost []string) []string {
	if len(lost) == 0 {
		return base
	}
	drop := make(map[string]bool, len(lost))
	for _, item := range lost {
		drop[item] = true
	}
	out := base[:0:0]
	for _, item := range base {
		if !drop[item] {
			out = append(out, item)
		}
	}
	return out
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
