package service

import "github.com/geoffjay/lucena/envelope"
import "testing"

func TestIsEvalRequest(t *testing.T) {
	if !isEvalRequest(envelope.Message{"$req": "eval", "$attr": "totalClientRequests"}) {
		t.Fatalf("expected eval request to be recognized")
	}
	if isEvalRequest(envelope.Message{"$req": "sum"}) {
		t.Fatalf("did not expect sum request to be recognized as eval")
	}
}

func TestEvalReplyReadsTotalClientRequests(t *testing.T) {
	s := New(nil)
	s.totalClientRequests = 256
	reply := s.evalReply(envelope.Message{"$req": "eval", "$attr": "totalClientRequests"})
	if reply["$rep"] != 256 {
		t.Fatalf("expected $rep=256, got %#v", reply["$rep"])
	}
}

func TestEvalReplyUnknownAttr(t *testing.T) {
	s := New(nil)
	reply := s.evalReply(envelope.Message{"$req": "eval", "$attr": "bogus"})
	if reply["$rep"] != nil {
		t.Fatalf("expected nil $rep for unknown attribute, got %#v", reply["$rep"])
	}
	if reply["$error"] == nil {
		t.Fatalf("expected $error to be set for unknown attribute")
	}
}

func TestAttrPendingAndReadyWorkers(t *testing.T) {
	s := New(nil)
	s.readyWorkers = []string{"worker#0", "worker#1"}
	s.pending = 1
	if v, _ := s.Attr("readyWorkers"); v != 2 {
		t.Fatalf("expected 2 ready workers, got %#v", v)
	}
	if v, _ := s.Attr("pending"); v != 1 {
		t.Fatalf("expected pending=1, got %#v", v)
	}
}
