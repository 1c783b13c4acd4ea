package sessionbroker

import (
	"encoding/json"
	"net"
	"testing"
	"time"

	"github.com/screencontrol/core/internal/ipc"
)

func createSocketPair(t *testing.T) (net.Conn, net.Conn) {
	t.Helper()
	server, client := net.Pipe()
	return server, client
}

func TestSendCommandReceivesMatchingResponse(t *testing.T) {
	serverConn, clientConn := createSocketPair(t)
	defer serverConn.Close()
	defer clientConn.Close()

	serverIPC := ipc.NewConn(serverConn)
	clientIPC := ipc.NewConn(clientConn)
	session := NewSession(serverIPC, "1000", "alice", "sess-1")

	go func() {
		env, err := clientIPC.Recv()
		if err != nil {
			return
		}
		clientIPC.SendTyped(env.ID, ipc.TypeConsentResponse, ipc.ConsentResponse{Result: "granted"})
	}()

	resp, err := session.SendCommand("req-1", ipc.TypeConsentRequest,
		ipc.ConsentRequest{Requester: "viewer-1", SessionType: "desktop", TimeoutSecs: 30},
		2*time.Second)
	if err != nil {
		t.Fatalf("SendCommand() error = %v", err)
	}

	var decoded ipc.ConsentResponse
	if err := json.Unmarshal(resp.Payload, &decoded); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if decoded.Result != "granted" {
		t.Fatalf("result = %q, want granted", decoded.Result)
	}
}

func TestSendCommandTimesOutWithoutResponse(t *testing.T) {
	serverConn, clientConn := createSocketPair(t)
	defer serverConn.Close()
	defer clientConn.Close()

	serverIPC := ipc.NewConn(serverConn)
	session := NewSession(serverIPC, "1000", "alice", "sess-1")

	go clientIPCDrain(clientConn)

	_, err := session.SendCommand("req-2", ipc.TypeConsentRequest, ipc.ConsentRequest{}, 50*time.Millisecond)
	if err != ErrCommandTimeout {
		t.Fatalf("error = %v, want ErrCommandTimeout", err)
	}
}

func clientIPCDrain(conn net.Conn) {
	buf := make([]byte, 4096)
	for {
		if _, err := conn.Read(buf); err != nil {
			return
		}
	}
}

func TestIdleDurationReflectsTouch(t *testing.T) {
	serverConn, clientConn := createSocketPair(t)
	defer serverConn.Close()
	defer clientConn.Close()

	session := NewSession(ipc.NewConn(serverConn), "1000", "alice", "sess-1")
	session.LastSeen = time.Now().Add(-time.Hour)

	if session.IdleDuration() < 59*time.Minute {
		t.Fatal("expected idle duration to reflect stale LastSeen")
	}

	session.Touch()
	if session.IdleDuration() > time.Second {
		t.Fatal("expected Touch to reset idle duration")
	}
}
