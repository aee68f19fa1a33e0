package scoring

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestScoreDumpTruckHauling(t *testing.T) {
	t.Parallel()

	res := Score("Dump truck hauling services for highway construction", "", "")
	if res.Score < 18 {
		t.Fatalf("expected score >= 18, got %d", res.Score)
	}

	reasons := res.Serialized()
	if reasons == nil {
		t.Fatalf("expected reasons")
	}
	if !strings.Contains(strings.ToLower(*reasons), "dump truck") {
		t.Fatalf("reasons should mention dump truck: %s", *reasons)
	}

	var decoded []string
	if err := json.Unmarshal([]byte(*reasons), &decoded); err != nil {
		t.Fatalf("reasons are not a JSON list: %v", err)
	}
	if decoded[0] != "Matched keyword 'dump truck' (+10 points)" {
		t.Fatalf("unexpected first reason: %q", decoded[0])
	}
}

func TestSerializedSeparatesItemsWithSpace(t *testing.T) {
	t.Parallel()

	res := Result{Score: 16, Reasons: []string{
		"Matched keyword 'hauling' (+8 points)",
		"Matched keyword 'haul' (+8 points)",
	}}

	got := res.Serialized()
	want := `["Matched keyword 'hauling' (+8 points)", "Matched keyword 'haul' (+8 points)"]`
	if got == nil || *got != want {
		t.Fatalf("unexpected serialization %v, want %s", got, want)
	}

	single := Result{Reasons: []string{"a & <b>"}}.Serialized()
	if single == nil || *single != `["a & <b>"]` {
		t.Fatalf("unexpected single-item serialization %v", single)
	}
}

func TestScoreNoKeywords(t *testing.T) {
	t.Parallel()

	res := Score("Bridge construction and maintenance services", "", "")
	if res.Score != 0 {
		t.Fatalf("expected 0, got %d", res.Score)
	}
	if res.Serialized() != nil {
		t.Fatalf("expected nil reasons, got %s", *res.Serialized())
	}
}

func TestScoreOverlappingKeywordsAndBonus(t *testing.T) {
	t.Parallel()

	// dump truck 10, hauling 8, haul 8, earthwork 7, excavation 6 -> 39, five hits -> +4
	res := Score("Dump truck hauling for earthwork and excavation project", "", "")
	if res.Score != 43 {
		t.Fatalf("expected 43, got %d (%v)", res.Score, res.Reasons)
	}

	last := res.Reasons[len(res.Reasons)-1]
	if last != "Multiple relevant keywords bonus (+4 points)" {
		t.Fatalf("unexpected bonus reason %q", last)
	}
}

func TestScoreExactlyThreeHitsHasNoBonus(t *testing.T) {
	t.Parallel()

	// hauling, haul, gravel
	res := Score("gravel hauling", "", "")
	if res.Score != 21 {
		t.Fatalf("expected 21, got %d", res.Score)
	}
	for _, r := range res.Reasons {
		if strings.Contains(r, "bonus") {
			t.Fatalf("unexpected bonus reason")
		}
	}
}

func TestScoreCaseInsensitive(t *testing.T) {
	t.Parallel()

	a := Score("DUMP TRUCK services", "", "")
	b := Score("dump truck services", "", "")
	c := Score("Dump Truck services", "", "")
	if a.Score != b.Score || b.Score != c.Score || a.Score < 10 {
		t.Fatalf("scores differ: %d %d %d", a.Score, b.Score, c.Score)
	}
}

func TestScoreSearchesAwardedToAndContractID(t *testing.T) {
	t.Parallel()

	res := Score("General construction", "", "Dump Truck Hauling Inc.")
	if res.Score < 10 {
		t.Fatalf("awarded_to should be searched, got %d", res.Score)
	}

	res = Score("General construction", "GRAVEL-2024", "")
	if res.Score != 5 {
		t.Fatalf("contract_id should be searched, got %d", res.Score)
	}
}
