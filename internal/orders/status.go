package orders

import "strings"

type State string

const (
	StatePending    State = "pendiente"
	StateInProgress State = "en_proceso"
	StateCompleted  State = "completado"
	StateDelivered  State = "entregado"
	StateCancelled  State = "cancelado"
)

var validNext = map[State]map[State]bool{
	StatePending:    {StateInProgress: true, StateCancelled: true},
	StateInProgress: {StateCompleted: true, StateCancelled: true},
	StateCompleted:  {StateDelivered: true},
	StateDelivered:  {},
	StateCancelled:  {},
}

// feminine forms and the english "pending" are accepted by the API
var stateAliases = map[string]State{
	"completada": StateCompleted,
	"cancelada":  StateCancelled,
	"pending":    StatePending,
}

func CanTransition(from, to State) bool {
	return validNext[from][to]
}

// Known reports whether s is one of the canonical states.
func (s State) Known() bool {
	_, ok := validNext[s]
	return ok
}

// Terminal reports whether no transition leaves s.
func (s State) Terminal() bool {
	return s.Known() && len(validNext[s]) == 0
}

// ReachedCompletion reports whether an order in state s has a real total.
func (s State) ReachedCompletion() bool {
	return s == StateCompleted || s == StateDelivered
}

// ParseState normalizes a wire token into a canonical State.
func ParseState(token string) (State, bool) {
	t := strings.ToLower(strings.TrimSpace(token))
	if s, ok := stateAliases[t]; ok {
		return s, true
	}
	s := State(t)
	if !s.Known() {
		return "", false
	}
	return s, true
}

// States lists the canonical states in lifecycle order.
func States() []State {
	return []State{StatePending, StateInProgress, StateCompleted, StateDelivered, StateCancelled}
}
