package handler

import "testing"

type fakeOwner struct {
	stopped bool
	attrs   map[string]interface{}
}

func (f *fakeOwner) RequestStop() { f.stopped = true }
func (f *fakeOwner) Attr(name string) (interface{}, bool) {
	v, ok := f.attrs[name]
	return v, ok
}

func TestDefaultHandlerEchoesWithNoHandlerError(t *testing.T) {
	owner := &fakeOwner{attrs: map[string]interface{}{}}
	table := NewTable(owner)
	reply := table.Resolve(Message{"$req": "HELLO"})
	if reply["$req"] != "HELLO" {
		t.Fatalf("expected echoed $req, got %#v", reply)
	}
	if reply["$rep"] != nil {
		t.Fatalf("expected nil $rep, got %#v", reply["$rep"])
	}
	if reply["$error"] != "No handler match" {
		t.Fatalf("expected No handler match error, got %#v", reply["$error"])
	}
}

func TestStopHandlerSetsOwnerFlag(t *testing.T) {
	owner := &fakeOwner{attrs: map[string]interface{}{}}
	table := NewTable(owner)
	reply := table.Resolve(Message{"$signal": "stop"})
	if !owner.stopped {
		t.Fatalf("expected RequestStop to have been called")
	}
	if reply["$rep"] != "OK" {
		t.Fatalf("expected OK reply, got %#v", reply)
	}
}

func TestEvalHandlerReadsOwnerAttribute(t *testing.T) {
	owner := &fakeOwner{attrs: map[string]interface{}{"totalClientRequests": 256}}
	table := NewTable(owner)
	reply := table.Resolve(Message{"$req": "eval", "$attr": "totalClientRequests"})
	if reply["$rep"] != 256 {
		t.Fatalf("expected $rep 256, got %#v", reply["$rep"])
	}
}

func TestPrecedenceMorePropertiesWins(t *testing.T) {
	owner := &fakeOwner{attrs: map[string]interface{}{}}
	table := NewTable(owner)
	table.Bind(Message{"$req": "mul"}, func(m Message) Message { return Message{"$rep": "generic"} })
	table.Bind(Message{"$req": "mul", "kind": "int"}, func(m Message) Message { return Message{"$rep": "specific"} })

	reply := table.Resolve(Message{"$req": "mul", "kind": "int", "a": 6, "b": 7})
	if reply["$rep"] != "specific" {
		t.Fatalf("expected more-specific pattern to win, got %#v", reply)
	}
}

func TestPrecedenceAlphabeticalOrderWins(t *testing.T) {
	owner := &fakeOwner{attrs: map[string]interface{}{}}
	table := NewTable(owner)
	table.Bind(Message{"z": "1"}, func(m Message) Message { return Message{"$rep": "z"} })
	table.Bind(Message{"a": "1"}, func(m Message) Message { return Message{"$rep": "a"} })

	// Both one-key patterns match; {"a":"1"} sorts first despite being bound last.
	h, err := table.Lookup(Message{"a": "1", "z": "1"})
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if h(Message{})["$rep"] != "a" {
		t.Fatalf("expected alphabetically-first pattern to win")
	}
}

func TestUnbindRemovesHandler(t *testing.T) {
	owner := &fakeOwner{attrs: map[string]interface{}{}}
	table := NewTable(owner)
	table.Bind(Message{"$req": "sum"}, func(m Message) Message { return Message{"$rep": "sum"} })
	if err := table.Unbind(Message{"$req": "sum"}); err != nil {
		t.Fatalf("Unbind: %v", err)
	}
	if err := table.Unbind(Message{"$req": "sum"}); err == nil {
		t.Fatalf("expected NoHandlerError on second unbind")
	}
}

func TestArithmeticHandler(t *testing.T) {
	owner := &fakeOwner{attrs: map[string]interface{}{}}
	table := NewTable(owner)
	table.Bind(Message{"$req": "sum"}, func(m Message) Message {
		a, _ := m["a"].(float64)
		b, _ := m["b"].(float64)
		return Message{"$rep": a + b}
	})
	reply := table.Resolve(Message{"$req": "sum", "a": float64(100), "b": float64(20)})
	if reply["$rep"] != float64(120) {
		t.Fatalf("expected 120, got %#v", reply["$rep"])
	}
}
