package classify

import "math"

// DoorState is the discrete application state derived from a classification.
type DoorState int

const (
	// DoorClosed means the top class maps to a closed door.
	DoorClosed DoorState = iota
	// DoorOpen means the top class maps to an open door.
	DoorOpen
)

// String returns the lowercase name of the state.
func (s DoorState) String() string {
	if s == DoorOpen {
		return "open"
	}
	return "closed"
}

// MarshalText implements encoding.TextMarshaler for JSON output.
func (s DoorState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// StateMap maps a class index to a door state.
//
// The model's class ordering is assumed fixed; the mapping is keyed by
// index rather than label text because labels are operator-supplied and
// must not drive control logic.
type StateMap []DoorState

// DefaultStateMap returns the standard two-class mapping:
// class 0 is closed, class 1 is open.
func DefaultStateMap() StateMap {
	return StateMap{DoorClosed, DoorOpen}
}

// StateOf returns the door state for a class index.
// Indices outside the map are reported as not ok.
func (m StateMap) StateOf(index int) (DoorState, bool) {
	if index < 0 || index >= len(m) {
		return DoorClosed, false
	}
	return m[index], true
}

// Prediction is the derived output of one successful classification cycle.
// It is immutable; a new cycle's prediction supersedes it wholesale.
type Prediction struct {
	Label       string    `json:"label"`
	Probability float64   `json:"probability"`
	Confidence  float64   `json:"confidence"` // display percentage, one decimal
	State       DoorState `json:"door_state"`
}

// Interpret turns a ranked result into a prediction.
//
// The top entry is the first maximum-probability entry under a stable
// left-to-right scan: exact ties go to the earliest index. An empty
// result returns ok=false, as does a top index missing from the map;
// the caller keeps its previous prediction in both cases.
func Interpret(r Result, states StateMap) (Prediction, bool) {
	if len(r) == 0 {
		return Prediction{}, false
	}

	top := 0
	for i := 1; i < len(r); i++ {
		if r[i].Probability > r[top].Probability {
			top = i
		}
	}

	state, ok := states.StateOf(top)
	if !ok {
		return Prediction{}, false
	}

	return Prediction{
		Label:       r[top].Label,
		Probability: r[top].Probability,
		Confidence:  DisplayConfidence(r[top].Probability),
		State:       state,
	}, true
}

// DisplayConfidence converts a probability to a percentage rounded to
// one decimal place. Display only; it never affects state selection.
func DisplayConfidence(p float64) float64 {
	return math.Round(p*1000) / 10
}
