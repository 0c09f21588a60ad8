package pattern

// Matcher tracks every partial match of a Library against a note stream.
// It is not safe for concurrent use; the owner serializes calls.
type Matcher struct {
	lib  *Library
	live []NodeID
	next []NodeID
}

// NewMatcher returns a matcher with an empty live set.
func NewMatcher(lib *Library) *Matcher {
	return &Matcher{
		lib:  lib,
		live: make([]NodeID, 0, lib.Len()),
		next: make([]NodeID, 0, lib.Len()),
	}
}

// Library returns the library being matched.
func (m *Matcher) Library() *Library {
	return m.lib
}

// Advance feeds one note-on pitch. Every live node follows its edge for
// pitch (nodes without one are dropped), a fresh attempt starts from the
// root, and the actions of any completed nodes are returned.
//
// The trie is a tree, so the children of distinct live nodes are distinct
// and never equal the depth-one node reached from the root: the next live
// set needs no deduplication.
func (m *Matcher) Advance(pitch uint8) []ActionID {
	var fired []ActionID
	m.next = m.next[:0]
	for _, id := range m.live {
		if c, ok := m.lib.step(id, pitch); ok {
			m.next = append(m.next, c)
			if a, ok := m.lib.Action(c); ok {
				fired = append(fired, a)
			}
		}
	}
	if c, ok := m.lib.step(Root, pitch); ok {
		m.next = append(m.next, c)
		if a, ok := m.lib.Action(c); ok {
			fired = append(fired, a)
		}
	}
	m.live, m.next = m.next, m.live
	return fired
}

// Live returns a copy of the current live set.
func (m *Matcher) Live() []NodeID {
	return append([]NodeID(nil), m.live...)
}

// Reset drops every partial match.
func (m *Matcher) Reset() {
	m.live = m.live[:0]
}
