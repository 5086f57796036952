// Package router implements the Intent Router (C6): a deterministic,
// side-effect-free scorer that maps a free-form user message to one
// (agent, mode) slot pair drawn from the Persona Registry (C7). Grounded
// on the teacher's scoring-table style used throughout
// runtime/registry (stable, pure lookups over an arena of slots), with the
// scoring formula itself taken directly from spec.md §4.6 rather than any
// one teacher file — the teacher has no equivalent keyword router.
package router

import (
	"sort"
	"strings"
)

// stopWords is the closed stop-word set excluded from keyword extraction.
var stopWords = map[string]bool{
	"the": true, "and": true, "for": true, "with": true, "that": true,
	"this": true, "from": true, "into": true, "your": true, "you": true,
	"are": true, "was": true, "were": true, "will": true, "have": true,
	"has": true, "had": true, "can": true, "could": true, "should": true,
	"would": true, "about": true, "when": true, "what": true, "which": true,
	"who": true, "how": true, "all": true, "any": true, "some": true,
	"not": true, "but": true, "its": true, "it's": true, "they": true,
}

// Keywords extracts the lowercase, stop-word-filtered, length>=3 token set
// from s, per spec.md §4.6.
func Keywords(s string) []string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
	})
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if len(f) < 3 || stopWords[f] {
			continue
		}
		out = append(out, f)
	}
	return out
}

// wordMatch reports whether a and b are considered the same keyword under
// spec.md §4.6's fuzzy match rule: exact equality, or a prefix relationship
// with enough shared length, or a shared 4+ char prefix covering len-2 of
// the shorter word.
func wordMatch(a, b string) bool {
	if a == b {
		return true
	}
	shorter, longer := a, b
	if len(longer) < len(shorter) {
		shorter, longer = longer, shorter
	}
	if len(shorter) < 3 {
		return false
	}
	if strings.HasPrefix(longer, shorter) && len(shorter) >= 3 {
		return true
	}
	shared := 0
	for i := 0; i < len(shorter) && i < len(longer); i++ {
		if shorter[i] != longer[i] {
			break
		}
		shared++
	}
	return shared >= 4 && shared >= len(shorter)-2
}

// overlap counts keywords in a that word-match some keyword in b, and
// returns that count alongside the ratio over len(a) (0 when a is empty).
func overlap(a, b []string) (matches int, ratio float64) {
	for _, ka := range a {
		for _, kb := range b {
			if wordMatch(ka, kb) {
				matches++
				break
			}
		}
	}
	if len(a) > 0 {
		ratio = float64(matches) / float64(len(a))
	}
	return matches, ratio
}

// Mode is the routable slice of an AgentMode the scorer needs.
type Mode struct {
	Slug        string
	Name        string
	Description string
	WhenToUse   string
	IsInternal  bool
}

// Slot is the routable slice of an AgentSlot (persona) the scorer needs.
type Slot struct {
	Name            string
	Description     string
	DefaultModeSlug string
	Enabled         bool
	Modes           []Mode
}

// Decision is the RoutingDecision value produced by Route.
type Decision struct {
	AgentName  string
	ModeSlug   string
	Confidence float64
	Reasoning  string
}

// fallbackDecision is the hard-coded fallback per spec.md §4.6, used when
// no slot is enabled at all.
var fallbackDecision = Decision{AgentName: "Goose Agent", ModeSlug: "ask", Confidence: 0.1, Reasoning: "no enabled slots; hard-coded fallback"}

// score computes the combined score for one (slot, mode) pair against the
// message keywords, per spec.md §4.6's weighted composition.
func score(msgKeywords []string, slot Slot, mode Mode) float64 {
	whenToUseKeywords := Keywords(mode.WhenToUse)
	modeDescKeywords := Keywords(mode.Description)
	agentDescKeywords := Keywords(slot.Description)

	whenMatches, whenRatio := overlap(msgKeywords, whenToUseKeywords)
	descMatches, descRatio := overlap(msgKeywords, modeDescKeywords)
	agentMatches, agentRatio := overlap(msgKeywords, agentDescKeywords)

	total := whenMatches + descMatches

	s := whenRatio*0.55 + descRatio*0.25
	if strings.Contains(strings.ToLower(strings.Join(msgKeywords, " ")), strings.ToLower(mode.Name)) {
		s += 0.1
	}
	s += float64(min(total, 5)) * 0.04
	s += agentRatio*0.3 + float64(min(agentMatches, 4))*0.05
	return s
}

// candidate pairs a slot with one of its modes for scoring and the
// deterministic tie-break ordering (first seen wins).
type candidate struct {
	slot  Slot
	mode  Mode
	score float64
}

// Route scores every enabled slot's modes against message and returns the
// argmax decision, per spec.md §4.6. Route is a pure function of
// (message, slots): same inputs always produce the same Decision.
func Route(message string, slots []Slot) Decision {
	enabled := make([]Slot, 0, len(slots))
	for _, s := range slots {
		if s.Enabled {
			enabled = append(enabled, s)
		}
	}
	if len(enabled) == 0 {
		return fallbackDecision
	}

	msgKeywords := Keywords(message)

	var candidates []candidate
	for _, slot := range enabled {
		for _, mode := range slot.Modes {
			candidates = append(candidates, candidate{slot: slot, mode: mode, score: score(msgKeywords, slot, mode)})
		}
	}

	// sort.SliceStable preserves first-seen order among equal scores,
	// giving the deterministic tie-break spec.md §4.6 requires.
	sort.SliceStable(candidates, func(i, j int) bool { return candidates[i].score > candidates[j].score })

	if len(candidates) > 0 && candidates[0].score >= 0.2 {
		best := candidates[0]
		conf := best.score
		if conf > 1 {
			conf = 1
		}
		return Decision{
			AgentName:  best.slot.Name,
			ModeSlug:   best.mode.Slug,
			Confidence: conf,
			Reasoning:  "scored match",
		}
	}

	first := enabled[0]
	return Decision{
		AgentName:  first.Name,
		ModeSlug:   first.DefaultModeSlug,
		Confidence: 0.5,
		Reasoning:  "no candidate reached the match threshold; default mode of first enabled slot",
	}
}
