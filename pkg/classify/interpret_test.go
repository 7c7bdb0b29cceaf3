package classify

import (
	"strings"
	"testing"
)

func TestInterpret_TopIsMaxProbability(t *testing.T) {
	r := Result{
		{Label: "A", Probability: 0.4},
		{Label: "B", Probability: 0.9},
		{Label: "C", Probability: 0.9},
	}

	pred, ok := Interpret(r, StateMap{DoorClosed, DoorOpen, DoorOpen})
	if !ok {
		t.Fatal("expected a prediction")
	}
	if pred.Label != "B" {
		t.Errorf("expected top label B (first max wins), got %s", pred.Label)
	}
	if pred.Probability != 0.9 {
		t.Errorf("expected probability 0.9, got %v", pred.Probability)
	}
}

func TestInterpret_TieGoesToEarliestIndex(t *testing.T) {
	r := Result{
		{Label: "first", Probability: 0.5},
		{Label: "second", Probability: 0.5},
	}

	pred, ok := Interpret(r, DefaultStateMap())
	if !ok {
		t.Fatal("expected a prediction")
	}
	if pred.Label != "first" {
		t.Errorf("tie must go to earliest index, got %s", pred.Label)
	}
	if pred.State != DoorClosed {
		t.Errorf("index 0 must map to closed, got %s", pred.State)
	}
}

func TestInterpret_EmptyResult(t *testing.T) {
	_, ok := Interpret(nil, DefaultStateMap())
	if ok {
		t.Error("empty result must not produce a prediction")
	}
	_, ok = Interpret(Result{}, DefaultStateMap())
	if ok {
		t.Error("empty result must not produce a prediction")
	}
}

func TestInterpret_StateFromIndexNotLabel(t *testing.T) {
	// The label text says "open" but class index 0 is configured closed.
	// Labels are operator-supplied and must not drive control logic.
	r := Result{
		{Label: "open", Probability: 0.99},
		{Label: "closed", Probability: 0.01},
	}

	pred, ok := Interpret(r, DefaultStateMap())
	if !ok {
		t.Fatal("expected a prediction")
	}
	if pred.State != DoorClosed {
		t.Errorf("index 0 must yield closed regardless of label text, got %s", pred.State)
	}
}

func TestInterpret_UnmappedIndex(t *testing.T) {
	r := Result{
		{Label: "a", Probability: 0.1},
		{Label: "b", Probability: 0.2},
		{Label: "c", Probability: 0.7},
	}

	// Map only covers two classes; top index 2 is unmapped.
	_, ok := Interpret(r, DefaultStateMap())
	if ok {
		t.Error("unmapped top index must not produce a prediction")
	}
}

func TestDisplayConfidence(t *testing.T) {
	cases := []struct {
		p    float64
		want float64
	}{
		{0.856, 85.6},
		{0.8567, 85.7},
		{1.0, 100.0},
		{0.0, 0.0},
		{0.12345, 12.3},
	}

	for _, c := range cases {
		if got := DisplayConfidence(c.p); got != c.want {
			t.Errorf("DisplayConfidence(%v) = %v, want %v", c.p, got, c.want)
		}
	}
}

func TestDoorStateString(t *testing.T) {
	if DoorOpen.String() != "open" {
		t.Errorf("expected open, got %s", DoorOpen.String())
	}
	if DoorClosed.String() != "closed" {
		t.Errorf("expected closed, got %s", DoorClosed.String())
	}
}

func TestStateMapStateOf(t *testing.T) {
	m := DefaultStateMap()

	if s, ok := m.StateOf(1); !ok || s != DoorOpen {
		t.Errorf("StateOf(1) = %v, %v", s, ok)
	}
	if _, ok := m.StateOf(-1); ok {
		t.Error("negative index must not be ok")
	}
	if _, ok := m.StateOf(2); ok {
		t.Error("out-of-range index must not be ok")
	}
}

func TestParseProbabilities(t *testing.T) {
	probs, err := parseProbabilities("```json\n{\"Closed\": 0.8, \"Open\": 0.2}\n```")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if probs["closed"] != 0.8 {
		t.Errorf("expected 0.8 for closed, got %v", probs["closed"])
	}
	if probs["open"] != 0.2 {
		t.Errorf("expected 0.2 for open, got %v", probs["open"])
	}

	if _, err := parseProbabilities("not json at all"); err == nil {
		t.Error("expected error for non-JSON content")
	}
	if _, err = parseProbabilities(""); err == nil {
		t.Error("expected error for empty content")
	}
	if !strings.Contains(err.Error(), "parse probabilities") {
		t.Errorf("unexpected error text: %v", err)
	}
}
