// Package positioning manages the corporate positioning section of the
// brand context blob and its completeness score.
package positioning

import "strings"

// sectionWeights drives the completeness score. Elevator pitches are scored
// per length variant inside scorePitches.
var sectionWeights = map[string]int{
	"mission":         15,
	"vision":          10,
	"differentiators": 20,
	"pillars":         20,
	"proof_points":    10,
	"objections":      5,
}

// ComputeFilledScore returns the 0-100 completeness score of a positioning
// document. String sections count when non-blank, list sections when
// non-empty. The function has no side effects.
func ComputeFilledScore(positioning map[string]interface{}) int {
	if positioning == nil {
		return 0
	}

	score := 0
	for section, weight := range sectionWeights {
		if filled(positioning[section]) {
			score += weight
		}
	}
	score += scorePitches(positioning["elevator_pitches"])
	return score
}

// scorePitches awards short 5, medium 5, long 10.
func scorePitches(value interface{}) int {
	pitches, ok := value.(map[string]interface{})
	if !ok {
		return 0
	}
	score := 0
	if filled(pitches["short"]) {
		score += 5
	}
	if filled(pitches["medium"]) {
		score += 5
	}
	if filled(pitches["long"]) {
		score += 10
	}
	return score
}

func filled(value interface{}) bool {
	switch v := value.(type) {
	case string:
		return strings.TrimSpace(v) != ""
	case []interface{}:
		return len(v) > 0
	case map[string]interface{}:
		return len(v) > 0
	default:
		return false
	}
}
