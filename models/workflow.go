package models

// Transition is one edge of a workflow: applying Action in state From yields To
type Transition[S ~string, A ~string] struct {
	From   S
	Action A
	To     S
}

// StateMachine is an explicit transition table keyed by (state, action).
// The cancel action, when configured, is legal from every non-terminal state.
type StateMachine[S ~string, A ~string] struct {
	table        map[S]map[A]S
	terminal     map[S]bool
	states       []S
	cancelAction A
	cancelled    S
}

// NewStateMachine builds a machine from its edges and terminal states
func NewStateMachine[S ~string, A ~string](states []S, edges []Transition[S, A], terminal []S) *StateMachine[S, A] {
	m := &StateMachine[S, A]{
		table:    make(map[S]map[A]S, len(states)),
		terminal: make(map[S]bool, len(terminal)),
		states:   states,
	}
	for _, s := range terminal {
		m.terminal[s] = true
	}
	for _, e := range edges {
		if m.table[e.From] == nil {
			m.table[e.From] = make(map[A]S)
		}
		m.table[e.From][e.Action] = e.To
	}
	return m
}

// WithCancel adds a cancel edge from every non-terminal state to the cancelled state
func (m *StateMachine[S, A]) WithCancel(action A, cancelled S) *StateMachine[S, A] {
	m.cancelAction = action
	m.cancelled = cancelled
	for _, s := range m.states {
		if m.terminal[s] {
			continue
		}
		if m.table[s] == nil {
			m.table[s] = make(map[A]S)
		}
		m.table[s][action] = cancelled
	}
	return m
}

// Next returns the state reached by applying action in from, or false when the pair is not in the table
func (m *StateMachine[S, A]) Next(from S, action A) (S, bool) {
	var zero S
	if m.terminal[from] {
		return zero, false
	}
	to, ok := m.table[from][action]
	return to, ok
}

// IsTerminal reports whether s has no outgoing transitions
func (m *StateMachine[S, A]) IsTerminal(s S) bool {
	return m.terminal[s]
}

// Target returns the single state an action always leads to.
// Actions that lead to different states depending on the origin report false.
func (m *StateMachine[S, A]) Target(action A) (S, bool) {
	var target S
	found := false
	for _, actions := range m.table {
		to, ok := actions[action]
		if !ok {
			continue
		}
		if found && to != target {
			var zero S
			return zero, false
		}
		target = to
		found = true
	}
	return target, found
}

// AvailableActions lists the actions legal from s in a stable order
func (m *StateMachine[S, A]) AvailableActions(s S, order []A) []A {
	out := make([]A, 0, len(order))
	for _, a := range order {
		if _, ok := m.Next(s, a); ok {
			out = append(out, a)
		}
	}
	return out
}

// States returns every state the machine knows about
func (m *StateMachine[S, A]) States() []S {
	return m.states
}
