package mdp

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	czmq "github.com/zeromq/goczmq/v4"
)

func TestPurgeExpiredWorkersStopsAtFirstLiveWorker(t *testing.T) {
	broker, err := NewBroker("inproc://purge-test")
	require.NoError(t, err)

	expired := &brokerWorker{broker: broker, idString: `"expired"`, identity: "expired", expiry: time.Now().Add(-time.Second)}
	live := &brokerWorker{broker: broker, idString: `"live"`, identity: "live", expiry: time.Now().Add(time.Hour)}
	svc := broker.ServiceRequire("echo")
	expired.service, live.service = svc, svc
	broker.workers[expired.idString] = expired
	broker.workers[live.idString] = live
	broker.Waiting = []*brokerWorker{expired, live}
	svc.waiting = []*brokerWorker{expired, live}

	broker.purgeExpiredWorkers()

	assert.Len(t, broker.Waiting, 1)
	assert.Equal(t, live, broker.Waiting[0])
	_, stillKnown := broker.workers[expired.idString]
	assert.False(t, stillKnown)
}

func TestServiceDispatchQueuesWithoutIdleWorkers(t *testing.T) {
	broker, err := NewBroker("inproc://dispatch-test")
	require.NoError(t, err)
	svc := broker.ServiceRequire("echo")

	svc.Dispatch([]string{"client-id", "", "payload"})

	assert.Len(t, svc.requests, 1)
	assert.Empty(t, svc.waiting)
}

// TestBrokerEndToEnd exercises the full READY/REQUEST/REPLY cycle over a
// real inproc ROUTER/DEALER pair: a fake worker registers, a fake client
// sends a request through ClientMsg's queueing path, and the reply is
// relayed back. Skipped under -short since it requires a live czmq socket.
func TestBrokerEndToEnd(t *testing.T) {
	if testing.Short() {
		t.Skip("requires a live czmq socket")
	}

	endpoint := "inproc://broker-e2e-" + uuid.NewString()
	broker, err := NewBroker(endpoint)
	require.NoError(t, err)
	require.NoError(t, broker.Bind())
	defer broker.Close()

	done := make(chan bool, 1)
	go broker.Run(done)

	worker, err := czmq.NewDealer(endpoint)
	require.NoError(t, err)
	defer worker.Destroy()
	require.NoError(t, worker.Connect(endpoint))

	require.NoError(t, worker.SendMessage(stringArrayToByte2D([]string{"", MdpwWorker, MdpwReady, "echo"})))
	time.Sleep(50 * time.Millisecond)

	client, err := czmq.NewDealer(endpoint)
	require.NoError(t, err)
	defer client.Destroy()
	require.NoError(t, client.Connect(endpoint))
	require.NoError(t, client.SendMessage(stringArrayToByte2D([]string{"", MdpcClient, "echo", "hello"})))

	recv, err := worker.RecvMessage()
	require.NoError(t, err)
	req := byte2DToStringArray(recv)
	require.NoError(t, ValidateWorkerMessage(req))
	assert.Equal(t, MdpwRequest, req[2])

	clientID, body := unwrap(req[3:])
	reply := []string{clientID, ""}
	reply = append(reply, body...)
	require.NoError(t, worker.SendMessage(stringArrayToByte2D(append([]string{"", MdpwWorker, MdpwReply}, reply...))))

	recv, err = client.RecvMessage()
	require.NoError(t, err)
	got := byte2DToStringArray(recv)
	require.NoError(t, ValidateClientMessage(got))
	assert.Equal(t, "echo", got[2])
	assert.Equal(t, "hello", got[3])
}

func TestMMIRequestViaBrokerHandler(t *testing.T) {
	broker, err := NewBroker("inproc://mmi-clientmsg-test")
	require.NoError(t, err)
	svc := broker.ServiceRequire("echo")
	svc.waiting = append(svc.waiting, &brokerWorker{broker: broker, idString: `"w"`, identity: "w", service: svc})

	code := broker.mmi.HandleRequest(MMIService, []string{"echo"})
	assert.Equal(t, MMICodeOK, code)

	code = broker.mmi.HandleRequest(MMIService, []string{"nonexistent"})
	assert.Equal(t, MMICodeNotFound, code)
}
