// Package scoring rates contract awards by how likely they need dump-truck hauling.
package scoring

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Keyword is one weighted search term.
type Keyword struct {
	Term   string
	Weight int
}

// Keywords is evaluated in order; reasons follow the same order.
var Keywords = []Keyword{
	{"dump truck", 10},
	{"dumptruck", 10},
	{"dump-truck", 10},
	{"hauling", 8},
	{"haul", 8},
	{"earthwork", 7},
	{"excavation", 6},
	{"grading", 6},
	{"fill", 5},
	{"aggregate", 5},
	{"gravel", 5},
	{"stone", 4},
	{"sand", 4},
	{"material hauling", 9},
	{"trucking", 7},
	{"transport", 6},
}

// bonusThreshold is the number of hits after which each extra hit earns bonusPerHit.
const (
	bonusThreshold = 3
	bonusPerHit    = 2
)

// Result is the outcome of scoring one contract.
type Result struct {
	Score   int
	Reasons []string
}

// Serialized returns the reasons as a JSON array with ", " between items, or nil when
// nothing matched. Stored score_reasons text uses this exact layout.
func (r Result) Serialized() *string {
	if len(r.Reasons) == 0 {
		return nil
	}

	items := make([]string, 0, len(r.Reasons))
	for _, reason := range r.Reasons {
		var buf bytes.Buffer
		enc := json.NewEncoder(&buf)
		enc.SetEscapeHTML(false)
		if err := enc.Encode(reason); err != nil {
			return nil
		}
		items = append(items, strings.TrimSuffix(buf.String(), "\n"))
	}

	s := "[" + strings.Join(items, ", ") + "]"
	return &s
}

// Score matches every keyword independently against the combined, case-folded text,
// so overlapping terms ("haul" in "hauling") each count.
func Score(description, contractID, awardedTo string) Result {
	text := strings.ToLower(description + " " + contractID + " " + awardedTo)

	var (
		result  Result
		matches int
	)
	for _, kw := range Keywords {
		if !strings.Contains(text, strings.ToLower(kw.Term)) {
			continue
		}
		matches++
		result.Score += kw.Weight
		result.Reasons = append(result.Reasons, fmt.Sprintf("Matched keyword '%s' (+%d points)", kw.Term, kw.Weight))
	}

	if matches > bonusThreshold {
		bonus := (matches - bonusThreshold) * bonusPerHit
		result.Score += bonus
		result.Reasons = append(result.Reasons, fmt.Sprintf("Multiple relevant keywords bonus (+%d points)", bonus))
	}

	return result
}
