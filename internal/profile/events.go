package profile

import (
	"regexp"
	"strings"
)

// Event classification categories.
const (
	EventTaming   = "taming"
	EventDeath    = "death"
	EventBuilding = "building"
	EventPvp      = "pvp"
	EventJoining  = "joining"
	EventLeaving  = "leaving"
	EventTribe    = "tribe"
	EventChat     = "chat"
)

// Event is one classified log line attributed to an entity.
type Event struct {
	Type    string
	Details map[string]string
	RawLine string
}

// namePatterns match the log grammars that carry an entity name in their
// first capture group. Order matters only for deterministic extraction
// output; every pattern runs against every line.
var namePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(\w+) tamed`),
	regexp.MustCompile(`(?i)(\w+) died`),
	regexp.MustCompile(`(?i)(\w+) was killed`),
	regexp.MustCompile(`(?i)(\w+) joined`),
	regexp.MustCompile(`(?i)(\w+) left`),
	regexp.MustCompile(`(?i)(\w+) said`),
	regexp.MustCompile(`(?i)(\w+) placed`),
	regexp.MustCompile(`(?i)(\w+) destroyed`),
	regexp.MustCompile(`(?i)Tribe (\w+)`),
	regexp.MustCompile(`(?i)Player (\w+)`),
}

// nameStoplist filters grammar words the patterns capture by accident.
var nameStoplist = map[string]struct{}{
	"the": {}, "and": {}, "was": {}, "you": {}, "all": {}, "any": {},
}

// classifier pairs a category with its trigger keywords. First category
// with any keyword present in the lowercased line wins.
type classifier struct {
	category string
	keywords []string
}

var classifiers = []classifier{
	{EventTaming, []string{"tamed", "tame completed", "dinosaur tamed"}},
	{EventDeath, []string{"died", "was killed", "death"}},
	{EventBuilding, []string{"placed", "built", "constructed", "foundation"}},
	{EventPvp, []string{"destroyed", "killed", "raided", "attacked"}},
	{EventJoining, []string{"joined", "connected"}},
	{EventLeaving, []string{"left", "disconnected"}},
	{EventTribe, []string{"tribe", "invited", "promoted", "demoted"}},
	{EventChat, []string{"said", "chat", "global"}},
}

// dinoCategories classify tamed creatures by role. Checked in order;
// first category containing the creature name wins.
var dinoCategories = []struct {
	name  string
	dinos []string
}{
	{"utility", []string{"ankylo", "doedicurus", "beaver", "argentavis", "quetzal"}},
	{"combat", []string{"rex", "giga", "spino", "carno", "therizino"}},
	{"transport", []string{"argentavis", "quetzal", "wyvern", "griffin", "phoenix"}},
	{"gathering", []string{"ankylo", "doedicurus", "mammoth", "therizino"}},
	{"tek", []string{"tek parasaur", "tek raptor", "tek rex", "tek stego"}},
	{"rare", []string{"wyvern", "griffin", "phoenix", "reaper", "rock drake"}},
}

var (
	tamedDinoRe = regexp.MustCompile(`(?i)tamed a (\w+)`)
	levelRe     = regexp.MustCompile(`(?i)level (\d+)`)
	killedByRe  = regexp.MustCompile(`(?i)killed by (\w+)`)
	placedRe    = regexp.MustCompile(`(?i)placed (\w+)`)
)

// ExtractEntities pulls entity names out of raw log lines. Names of two
// characters or fewer and common grammar words are dropped. The result is
// de-duplicated and ordered by first appearance per pattern.
func ExtractEntities(lines []string) []string {
	text := strings.Join(lines, "\n")

	var out []string
	seen := make(map[string]struct{})
	for _, pattern := range namePatterns {
		for _, match := range pattern.FindAllStringSubmatch(text, -1) {
			name := strings.TrimSpace(match[1])
			if len(name) <= 2 {
				continue
			}
			if _, stop := nameStoplist[strings.ToLower(name)]; stop {
				continue
			}
			if _, dup := seen[name]; dup {
				continue
			}
			seen[name] = struct{}{}
			out = append(out, name)
		}
	}
	return out
}

// ClassifyLine determines the event category of a single log line and
// extracts category-specific details. Returns ok=false for lines matching
// no category; those never reach a profile.
func ClassifyLine(line string) (Event, bool) {
	lower := strings.ToLower(line)
	for _, c := range classifiers {
		for _, kw := range c.keywords {
			if strings.Contains(lower, kw) {
				return Event{
					Type:    c.category,
					Details: extractDetails(line, c.category),
					RawLine: line,
				}, true
			}
		}
	}
	return Event{}, false
}

// extractDetails pulls category-specific fields out of a line.
func extractDetails(line, category string) map[string]string {
	details := map[string]string{}
	switch category {
	case EventTaming:
		if m := tamedDinoRe.FindStringSubmatch(line); m != nil {
			details["dino_type"] = m[1]
			details["dino_category"] = categorizeDino(m[1])
		}
		if m := levelRe.FindStringSubmatch(line); m != nil {
			details["level"] = m[1]
		}
	case EventDeath:
		if m := killedByRe.FindStringSubmatch(line); m != nil {
			details["killed_by"] = m[1]
		}
	case EventBuilding:
		if m := placedRe.FindStringSubmatch(line); m != nil {
			details["structure_type"] = m[1]
		}
	}
	return details
}

// categorizeDino maps a creature name onto a role category, "other" when
// nothing matches.
func categorizeDino(dinoName string) string {
	lower := strings.ToLower(dinoName)
	for _, cat := range dinoCategories {
		for _, d := range cat.dinos {
			if strings.Contains(lower, d) {
				return cat.name
			}
		}
	}
	return "other"
}
