package mdp

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMMIHandlerUnknownNamespaceMethod(t *testing.T) {
	broker, _ := NewBroker("inproc://mmi-test-1")
	mmi := NewMMIHandler(broker)

	code := mmi.HandleRequest("mmi.unknown", []string{"echo"})
	assert.Equal(t, MMICodeNotImplemented, code)
}

func TestMMIHandlerServiceNotRegistered(t *testing.T) {
	broker, _ := NewBroker("inproc://mmi-test-2")
	mmi := NewMMIHandler(broker)

	code := mmi.HandleRequest(MMIService, []string{"echo"})
	assert.Equal(t, MMICodeNotFound, code)
}

func TestMMIHandlerServiceRegisteredNoWorkers(t *testing.T) {
	broker, _ := NewBroker("inproc://mmi-test-3")
	mmi := NewMMIHandler(broker)
	broker.ServiceRequire("echo")

	code := mmi.HandleRequest(MMIService, []string{"echo"})
	assert.Equal(t, MMICodeNotFound, code)
}

func TestMMIHandlerServiceWithIdleWorker(t *testing.T) {
	broker, _ := NewBroker("inproc://mmi-test-4")
	mmi := NewMMIHandler(broker)
	svc := broker.ServiceRequire("echo")
	svc.waiting = append(svc.waiting, &brokerWorker{broker: broker, idString: `"w1"`, identity: "w1", service: svc})

	code := mmi.HandleRequest(MMIService, []string{"echo"})
	assert.Equal(t, MMICodeOK, code)
}

func TestMMIHandlerEmptyRequest(t *testing.T) {
	broker, _ := NewBroker("inproc://mmi-test-5")
	mmi := NewMMIHandler(broker)

	code := mmi.HandleRequest(MMIService, []string{})
	assert.Equal(t, MMICodeNotFound, code)
}

func TestIsMMIService(t *testing.T) {
	assert.True(t, IsMMIService("mmi.service"))
	assert.True(t, IsMMIService("mmi.anything"))
	assert.False(t, IsMMIService("echo"))
	assert.False(t, IsMMIService(""))
}
