// Package handler implements the message-handler table: an ordered list of
// (pattern, callable) pairs with the strictly total precedence order from
// the data model, plus the three built-in handlers every table is seeded
// with.
package handler

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/geoffjay/lucena/envelope"
)

// Message is a JSON request/reply object.
type Message = envelope.Message

// Callable handles a matched message and returns the reply message.
type Callable func(Message) Message

// NoHandlerError reports a lookup with no matching pattern, or an unbind
// of a pattern that was never bound.
type NoHandlerError struct {
	Pattern Message
}

func (e *NoHandlerError) Error() string {
	return fmt.Sprintf("handler: no handler for pattern %v", e.Pattern)
}

type entry struct {
	pattern Message
	handler Callable
	local   bool
	key     string
}

func sortKey(pattern Message) string {
	b, err := json.Marshal(sortedMap(pattern))
	if err != nil {
		return ""
	}
	return string(b)
}

// sortedMap returns a map whose JSON encoding has lexicographically sorted
// keys; encoding/json already sorts map keys, so this is a pass-through
// kept for documentation of the invariant it relies on.
func sortedMap(m Message) Message {
	return m
}

// Owner is the component a table's built-in handlers act on: the stop
// signal handler flips its stopRequested flag, and the eval handler reads
// a named attribute off it.
type Owner interface {
	RequestStop()
	Attr(name string) (interface{}, bool)
}

// Table is an ordered, precedence-sorted set of handlers.
type Table struct {
	entries []entry
}

// NewTable builds a table seeded with the three built-in handlers bound
// against owner: {} -> default echo, {$signal:"stop"} -> stop handler,
// {$req:"eval"} -> attribute introspection.
func NewTable(owner Owner) *Table {
	t := &Table{}
	t.Bind(Message{}, func(m Message) Message {
		reply := Message{}
		for k, v := range m {
			reply[k] = v
		}
		reply["$rep"] = nil
		reply["$error"] = "No handler match"
		return reply
	})
	t.Bind(Message{"$signal": "stop"}, func(m Message) Message {
		owner.RequestStop()
		return Message{"$signal": "stop", "$rep": "OK"}
	})
	t.Bind(Message{"$req": "eval"}, func(m Message) Message {
		attr, _ := m["$attr"].(string)
		value, ok := owner.Attr(attr)
		reply := Message{}
		for k, v := range m {
			reply[k] = v
		}
		if !ok {
			reply["$rep"] = nil
			reply["$error"] = fmt.Sprintf("no such attribute %q", attr)
			return reply
		}
		reply["$rep"] = value
		return reply
	})
	return t
}

// Bind appends a new (pattern, handler) entry and re-sorts by precedence.
// Binding the same pattern twice does not replace the existing entry; both
// coexist, ordered by insertion among equals.
func (t *Table) Bind(pattern Message, h Callable) {
	t.entries = append(t.entries, entry{pattern: pattern, handler: h, local: true, key: sortKey(pattern)})
	t.sort()
}

// Unbind removes the first entry whose pattern equals pattern.
func (t *Table) Unbind(pattern Message) error {
	key := sortKey(pattern)
	for i, e := range t.entries {
		if e.key == key && patternEqual(e.pattern, pattern) {
			t.entries = append(t.entries[:i], t.entries[i+1:]...)
			return nil
		}
	}
	return &NoHandlerError{Pattern: pattern}
}

// Lookup returns the highest-precedence handler whose pattern subset-matches
// message.
func (t *Table) Lookup(message Message) (Callable, error) {
	for _, e := range t.entries {
		if matches(e.pattern, message) {
			return e.handler, nil
		}
	}
	return nil, &NoHandlerError{Pattern: message}
}

// Resolve looks up and invokes the matching handler.
func (t *Table) Resolve(message Message) Message {
	h, err := t.Lookup(message)
	if err != nil {
		// Unreachable in practice: the {} catch-all always matches, but
		// guard against a caller that unbinds it.
		return Message{"$rep": nil, "$error": err.Error()}
	}
	return h(message)
}

// matches reports whether every (k, v) in pattern is present and equal in
// message.
func matches(pattern, message Message) bool {
	for k, v := range pattern {
		mv, ok := message[k]
		if !ok || !equalJSON(v, mv) {
			return false
		}
	}
	return true
}

func equalJSON(a, b interface{}) bool {
	ab, _ := json.Marshal(a)
	bb, _ := json.Marshal(b)
	return string(ab) == string(bb)
}

func patternEqual(a, b Message) bool {
	return sortKey(a) == sortKey(b)
}

// sort orders entries by the strictly total precedence: more keys first,
// then lexicographically smaller sort key, then local before remote.
func (t *Table) sort() {
	sort.SliceStable(t.entries, func(i, j int) bool {
		a, b := t.entries[i], t.entries[j]
		if len(a.pattern) != len(b.pattern) {
			return len(a.pattern) > len(b.pattern)
		}
		if a.key != b.key {
			return a.key < b.key
		}
		if a.local != b.local {
			return a.local
		}
		return false
	})
}
