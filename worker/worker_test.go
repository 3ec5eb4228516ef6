package worker

import "testing"

func TestWorkerAttrExposesStopRequested(t *testing.T) {
	w := New("worker#0", nil)
	v, ok := w.Attr("stopRequested")
	if !ok || v != false {
		t.Fatalf("expected stopRequested=false initially, got %#v, %v", v, ok)
	}
	w.RequestStop()
	v, ok = w.Attr("stopRequested")
	if !ok || v != true {
		t.Fatalf("expected stopRequested=true after RequestStop, got %#v, %v", v, ok)
	}
}

func TestWorkerCustomAttr(t *testing.T) {
	w := New("worker#0", nil)
	count := 0
	w.SetAttr("served", func() interface{} { return count })
	count = 5
	v, ok := w.Attr("served")
	if !ok || v != 5 {
		t.Fatalf("expected served=5, got %#v, %v", v, ok)
	}
}

func TestWorkerDefaultEcho(t *testing.T) {
	w := New("worker#0", nil)
	reply := w.Handlers.Resolve(map[string]interface{}{"$req": "HELLO"})
	if reply["$req"] != "HELLO" || reply["$error"] != "No handler match" {
		t.Fatalf("unexpected default reply: %#v", reply)
	}
}

func TestWorkerStopSignalHandler(t *testing.T) {
	w := New("worker#0", nil)
	reply := w.Handlers.Resolve(map[string]interface{}{"$signal": "stop"})
	if reply["$rep"] != "OK" {
		t.Fatalf("expected OK reply, got %#v", reply)
	}
	if !w.stopRequested {
		t.Fatalf("expected stopRequested to be set")
	}
}

func TestWorkerBoundHandlerPrecedence(t *testing.T) {
	w := New("worker#0", nil)
	w.Bind(map[string]interface{}{"$req": "sum"}, func(m map[string]interface{}) map[string]interface{} {
		a, _ := m["a"].(float64)
		b, _ := m["b"].(float64)
		return map[string]interface{}{"$rep": a + b}
	})
	reply := w.Handlers.Resolve(map[string]interface{}{"$req": "sum", "a": float64(100), "b": float64(20)})
	if reply["$rep"] != float64(120) {
		t.Fatalf("expected 120, got %#v", reply["$rep"])
	}
}
