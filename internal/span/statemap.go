package span

import "github.com/openzap/openzap/internal/channel"

// NodeType is the disposition of a state-map node (spec §4.2).
type NodeType int

const (
	NodeAcceptable NodeType = iota
	NodeEnd
)

// Direction selects which call direction a state-map node applies to.
type Direction int

const (
	DirectionInbound Direction = iota
	DirectionOutbound
)

// StateSet is a small membership set used for check_states/states, with
// a sentinel meaning "matches any current state" (spec §4.2 ANY_STATE).
type StateSet struct {
	any    bool
	states []channel.State
}

// AnyState builds a StateSet that matches every state.
func AnyState() StateSet {
	return StateSet{any: true}
}

// States builds a StateSet containing exactly the listed states.
func States(states ...channel.State) StateSet {
	return StateSet{states: states}
}

func (s StateSet) contains(v channel.State) bool {
	if s.any {
		return true
	}
	for _, st := range s.states {
		if st == v {
			return true
		}
	}
	return false
}

// MapNode is one entry of a span-installed state map (spec §4.2). The
// first node whose Direction matches the channel's outbound flag and
// whose CheckStates contains the current state decides the outcome for
// every target state: later nodes are never consulted for that target,
// even if the decision is a rejection (spec §9 open question — the
// source's parser `goto end`s on the first matching check_states entry
// regardless of node type).
type MapNode struct {
	Type        NodeType
	Direction   Direction
	CheckStates StateSet
	States      StateSet
}

// Map is an ordered list of MapNodes a span installs to override the
// core's built-in transition table (spec §4.2, SPEC_FULL §4.2: "the
// state-map walk returns the verdict of the FIRST node whose
// check_states matches ... it never continues scanning later nodes for
// the same target state"). Map implements channel.StateMapper so
// internal/channel can consult an installed map without importing this
// package.
type Map struct {
	Nodes []MapNode
}

var _ channel.StateMapper = Map{}

// Accepts evaluates the state map for a transition from cur to next in
// the given direction (spec §4.2).
func (m Map) Accepts(outbound bool, cur, next channel.State) (allowed, ok bool) {
	dir := DirectionInbound
	if outbound {
		dir = DirectionOutbound
	}
	for _, n := range m.Nodes {
		if n.Direction != dir {
			continue
		}
		if !n.CheckStates.contains(cur) {
			continue
		}
		if n.States.contains(next) {
			return n.Type == NodeAcceptable, true
		}
		return n.Type != NodeAcceptable, true
	}
	return false, false
}
