// Package pattern compiles note sequences into a shared prefix trie and
// matches a live note stream against all of them at once.
package pattern

import (
	errgo "gopkg.in/errgo.v1"
)

// ActionID names the side effect fired when a pattern completes.
type ActionID string

// Pattern is an ordered note sequence ending in an action.
type Pattern struct {
	Name   string
	Notes  []Token
	Action ActionID
}

// NodeID indexes a trie node in a Library.
type NodeID int32

// Root is the node every match starts from.
const Root NodeID = 0

const none NodeID = -1

var (
	ErrEmptyPattern = errgo.New("pattern has no notes")
	ErrNoAction     = errgo.New("pattern has no action")
	ErrBadToken     = errgo.New("invalid note token")
	ErrConflict     = errgo.New("conflicting actions for the same note sequence")
)

type node struct {
	next   map[uint8]NodeID // exact-pitch edges
	any    NodeID           // wildcard edge, or none
	action ActionID
	final  bool
	parent NodeID
	token  Token
}

// Library is an immutable trie built from a set of patterns. Patterns with a
// common prefix share nodes. It is safe for concurrent readers.
type Library struct {
	nodes    []node
	patterns []Pattern
}

// Compile builds the trie for patterns. Two patterns with the same token
// sequence must name the same action.
func Compile(patterns []Pattern) (*Library, error) {
	l := &Library{
		nodes: []node{{any: none, parent: none, token: Any}},
	}
	for _, p := range patterns {
		if err := l.add(p); err != nil {
			return nil, err
		}
		l.patterns = append(l.patterns, Pattern{
			Name:   p.Name,
			Notes:  append([]Token(nil), p.Notes...),
			Action: p.Action,
		})
	}
	return l, nil
}

func (l *Library) add(p Pattern) error {
	if len(p.Notes) == 0 {
		return errgo.WithCausef(nil, ErrEmptyPattern, "pattern %q has no notes", p.Name)
	}
	if p.Action == "" {
		return errgo.WithCausef(nil, ErrNoAction, "pattern %q has no action", p.Name)
	}
	cur := Root
	for i, t := range p.Notes {
		if !t.Valid() {
			return errgo.WithCausef(nil, ErrBadToken, "pattern %q: note %d (%d) out of range", p.Name, i, int(t))
		}
		cur = l.child(cur, t)
	}
	n := &l.nodes[cur]
	if n.final && n.action != p.Action {
		return errgo.WithCausef(nil, ErrConflict, "pattern %q: %s already fires %q", p.Name, FormatTokens(p.Notes), n.action)
	}
	n.final = true
	n.action = p.Action
	return nil
}

// child returns the node reached from id over t, creating it if needed.
func (l *Library) child(id NodeID, t Token) NodeID {
	n := &l.nodes[id]
	if t == Any {
		if n.any != none {
			return n.any
		}
	} else if c, ok := n.next[uint8(t)]; ok {
		return c
	}

	c := NodeID(len(l.nodes))
	l.nodes = append(l.nodes, node{any: none, parent: id, token: t})
	n = &l.nodes[id] // append may have moved the arena
	if t == Any {
		n.any = c
	} else {
		if n.next == nil {
			n.next = make(map[uint8]NodeID)
		}
		n.next[uint8(t)] = c
	}
	return c
}

// step follows the edge for pitch out of id. An exact edge wins over the
// wildcard edge so a specific pattern is never masked by a general one.
func (l *Library) step(id NodeID, pitch uint8) (NodeID, bool) {
	n := &l.nodes[id]
	if c, ok := n.next[pitch]; ok {
		return c, true
	}
	if n.any != none {
		return n.any, true
	}
	return none, false
}

// Len returns the number of trie nodes, including the root.
func (l *Library) Len() int {
	return len(l.nodes)
}

// Patterns returns the compiled patterns in configuration order.
func (l *Library) Patterns() []Pattern {
	return l.patterns
}

// Action returns the action completed at id, if any.
func (l *Library) Action(id NodeID) (ActionID, bool) {
	if id < 0 || int(id) >= len(l.nodes) {
		return "", false
	}
	n := &l.nodes[id]
	return n.action, n.final
}

// Prefix returns the tokens leading from the root to id.
func (l *Library) Prefix(id NodeID) []Token {
	var depth int
	for cur := id; cur > Root; cur = l.nodes[cur].parent {
		depth++
	}
	tokens := make([]Token, depth)
	for cur := id; cur > Root; cur = l.nodes[cur].parent {
		depth--
		tokens[depth] = l.nodes[cur].token
	}
	return tokens
}

// Candidates returns the names of patterns that still pass through id.
func (l *Library) Candidates(id NodeID) []string {
	prefix := l.Prefix(id)
	var names []string
	for _, p := range l.patterns {
		if len(p.Notes) < len(prefix) {
			continue
		}
		match := true
		for i, t := range prefix {
			if p.Notes[i] != t {
				match = false
				break
			}
		}
		if match {
			names = append(names, p.Name)
		}
	}
	return names
}
