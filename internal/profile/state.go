package profile

import (
	"fmt"
	"strings"
)

// Personality trait keys, in precedence order for tie-breaking.
var traitOrder = []string{"aggressive", "builder", "tamer", "explorer", "social"}

// personalityLabels map the dominant trait to a commentary-friendly label.
var personalityLabels = map[string]string{
	"tamer":      "dinosaur enthusiast",
	"builder":    "master architect",
	"aggressive": "PvP warrior",
	"social":     "community leader",
	"explorer":   "adventurous survivor",
}

// State is the accumulated behavior profile of one entity, persisted as a
// JSON blob in the store.
type State struct {
	FavoriteDinos  map[string]int     `json:"favorite_dinos"`
	DinoCategories map[string]int     `json:"dino_categories"`
	DeathCount     int                `json:"death_count"`
	TamingCount    int                `json:"taming_count"`
	BuildingCount  int                `json:"building_count"`
	PvpEncounters  int                `json:"pvp_encounters"`
	Traits         map[string]float64 `json:"personality_traits"`
}

// NewState returns an empty profile with every trait at zero.
func NewState() *State {
	traits := make(map[string]float64, len(traitOrder))
	for _, t := range traitOrder {
		traits[t] = 0
	}
	return &State{
		FavoriteDinos:  map[string]int{},
		DinoCategories: map[string]int{},
		Traits:         traits,
	}
}

// normalize repairs a state decoded from an older or partial blob so every
// map and trait key exists.
func (s *State) normalize() {
	if s.FavoriteDinos == nil {
		s.FavoriteDinos = map[string]int{}
	}
	if s.DinoCategories == nil {
		s.DinoCategories = map[string]int{}
	}
	if s.Traits == nil {
		s.Traits = map[string]float64{}
	}
}

// Apply folds one classified event into the profile. Trait values never
// exceed 1.0.
func (s *State) Apply(ev Event) {
	switch ev.Type {
	case EventTaming:
		s.TamingCount++
		if dino, ok := ev.Details["dino_type"]; ok {
			s.FavoriteDinos[dino]++
			category := ev.Details["dino_category"]
			if category == "" {
				category = "other"
			}
			s.DinoCategories[category]++
		}
		s.bumpTrait("tamer", 0.1)

	case EventDeath:
		s.DeathCount++
		killer := strings.ToLower(ev.Details["killed_by"])
		if killer == "player" || killer == "tribe" {
			s.PvpEncounters++
			s.bumpTrait("aggressive", 0.05)
		}

	case EventBuilding:
		s.BuildingCount++
		s.bumpTrait("builder", 0.1)

	case EventChat:
		s.bumpTrait("social", 0.05)
	}
}

func (s *State) bumpTrait(trait string, delta float64) {
	v := s.Traits[trait] + delta
	if v > 1.0 {
		v = 1.0
	}
	s.Traits[trait] = v
}

// Personality labels the entity by its dominant trait. An entity with no
// recorded traits is a newcomer; one whose strongest trait is still weak
// is a casual player.
func (s *State) Personality() string {
	if len(s.Traits) == 0 {
		return "newcomer"
	}

	maxTrait := ""
	maxValue := -1.0
	for _, t := range traitOrder {
		if v, ok := s.Traits[t]; ok && v > maxValue {
			maxTrait = t
			maxValue = v
		}
	}
	// traits outside the known set still count toward dominance
	for t, v := range s.Traits {
		if v > maxValue {
			maxTrait = t
			maxValue = v
		}
	}

	if maxValue < 0.3 {
		return "casual player"
	}
	if label, ok := personalityLabels[maxTrait]; ok {
		return label
	}
	return "active survivor"
}

// FavoriteActivities lists up to three activities the entity demonstrably
// repeats. Each has a minimum occurrence threshold so one-off events never
// surface.
func (s *State) FavoriteActivities() []string {
	var activities []string

	if dino, count := maxEntry(s.FavoriteDinos); count > 2 {
		activities = append(activities, fmt.Sprintf("taming %ss", dino))
	}
	if category, count := maxEntry(s.DinoCategories); count > 3 {
		activities = append(activities, fmt.Sprintf("%s dinosaurs", category))
	}
	if s.BuildingCount > 10 {
		activities = append(activities, "building")
	}
	if s.PvpEncounters > 5 {
		activities = append(activities, "PvP combat")
	}

	if len(activities) > 3 {
		activities = activities[:3]
	}
	return activities
}

// NotableStats lists up to two standout counters.
func (s *State) NotableStats() []string {
	var stats []string
	if s.DeathCount > 20 {
		stats = append(stats, fmt.Sprintf("%d deaths", s.DeathCount))
	}
	if s.TamingCount > 15 {
		stats = append(stats, fmt.Sprintf("%d tames", s.TamingCount))
	}
	if s.BuildingCount > 50 {
		stats = append(stats, fmt.Sprintf("%d structures built", s.BuildingCount))
	}
	if len(stats) > 2 {
		stats = stats[:2]
	}
	return stats
}

// Blurb renders a one-line context summary for prompt injection.
func (s *State) Blurb(entityName string) string {
	parts := []string{fmt.Sprintf("%s is a %s", entityName, s.Personality())}

	if activities := s.FavoriteActivities(); len(activities) > 0 {
		parts = append(parts, fmt.Sprintf("who loves %s", strings.Join(activities, ", ")))
	}
	if stats := s.NotableStats(); len(stats) > 0 {
		parts = append(parts, fmt.Sprintf("Notable: %s", strings.Join(stats, ", ")))
	}
	return strings.Join(parts, ". ")
}

// maxEntry returns the map key with the highest count. Ties resolve to the
// lexicographically smallest key so blurbs are stable across runs.
func maxEntry(m map[string]int) (string, int) {
	bestKey := ""
	bestCount := 0
	for k, v := range m {
		if v > bestCount || (v == bestCount && bestKey != "" && k < bestKey) {
			bestKey = k
			bestCount = v
		}
	}
	return bestKey, bestCount
}
