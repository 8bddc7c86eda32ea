package session

// State is the lifecycle of the source attached to a session
type State int

const (
	StateEmpty State = iota
	StateIndexing
	StateReady
	StateRebuilding
	StateError
	StateClosed
)

var stateNames = map[State]string{
	StateEmpty:      "empty",
	StateIndexing:   "indexing",
	StateReady:      "ready",
	StateRebuilding: "rebuilding",
	StateError:      "error",
	StateClosed:     "closed",
}

// String returns the state name
func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "unknown"
}

// transitions lists the states reachable from each state. Any state may
// fail or close; Closed and Error only leave by attaching a new source.
var transitions = map[State][]State{
	StateEmpty:      {StateIndexing, StateError, StateClosed},
	StateIndexing:   {StateReady, StateError, StateClosed},
	StateReady:      {StateRebuilding, StateError, StateClosed},
	StateRebuilding: {StateReady, StateError, StateClosed},
	StateError:      {StateEmpty, StateClosed},
	StateClosed:     {StateEmpty},
}

// CanTransition reports whether from may move to to
func CanTransition(from, to State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Terminal reports whether the state only leaves by attaching a source
func (s State) Terminal() bool {
	return s == StateError || s == StateClosed
}

// Filterable reports whether a rebuild may run in this state
func (s State) Filterable() bool {
	return s == StateReady || s == StateRebuilding
}
