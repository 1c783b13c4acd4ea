package ipc

import (
	"encoding/json"
	"net"
	"testing"
	"time"
)

func createSocketPair(t *testing.T) (net.Conn, net.Conn) {
	t.Helper()
	server, client := net.Pipe()
	return server, client
}

func TestConnSendRecv(t *testing.T) {
	serverConn, clientConn := createSocketPair(t)
	defer serverConn.Close()
	defer clientConn.Close()

	server := NewConn(serverConn)
	client := NewConn(clientConn)

	payload, _ := json.Marshal(map[string]string{"hello": "world"})
	env := &Envelope{ID: "test-1", Type: TypePing, Payload: payload}

	done := make(chan error, 1)
	go func() { done <- client.Send(env) }()

	server.SetReadDeadline(time.Now().Add(2 * time.Second))
	recv, err := server.Recv()
	if err != nil {
		t.Fatalf("recv: %v", err)
	}
	if err := <-done; err != nil {
		t.Fatalf("send: %v", err)
	}

	if recv.ID != "test-1" {
		t.Errorf("expected ID test-1, got %s", recv.ID)
	}
	if recv.Type != TypePing {
		t.Errorf("expected type %s, got %s", TypePing, recv.Type)
	}
	if recv.Seq != 1 {
		t.Errorf("expected seq 1, got %d", recv.Seq)
	}
}

func TestConnHMACMismatchRejected(t *testing.T) {
	serverConn, clientConn := createSocketPair(t)
	defer serverConn.Close()
	defer clientConn.Close()

	key, err := GenerateSessionKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}

	server := NewConn(serverConn)
	server.SetSessionKey(key)

	client := NewConn(clientConn)
	// deliberately not setting client's session key: HMAC will be
	// computed against zeroKey instead of the shared key.

	payload, _ := json.Marshal("test")
	env := &Envelope{ID: "hmac-test", Type: TypePong, Payload: payload}

	done := make(chan error, 1)
	go func() { done <- client.Send(env) }()

	server.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, err = server.Recv()
	<-done
	if err == nil {
		t.Fatal("expected HMAC mismatch error")
	}
}

func TestConnSequenceNumbersIncreasePerMessage(t *testing.T) {
	serverConn, clientConn := createSocketPair(t)
	defer serverConn.Close()
	defer clientConn.Close()

	key, _ := GenerateSessionKey()
	server := NewConn(serverConn)
	server.SetSessionKey(key)
	client := NewConn(clientConn)
	client.SetSessionKey(key)

	server.SetReadDeadline(time.Now().Add(2 * time.Second))
	for i, id := range []string{"a", "b", "c"} {
		payload, _ := json.Marshal(id)
		go client.Send(&Envelope{ID: id, Type: TypePing, Payload: payload})
		recv, err := server.Recv()
		if err != nil {
			t.Fatalf("recv %d: %v", i, err)
		}
		if recv.Seq != uint64(i+1) {
			t.Fatalf("expected seq %d, got %d", i+1, recv.Seq)
		}
	}
}

func TestRateLimiterAllowsWithinWindowThenBlocks(t *testing.T) {
	rl := NewRateLimiter(2, time.Minute)
	if !rl.Allow("uid-1") {
		t.Fatal("first attempt should be allowed")
	}
	if !rl.Allow("uid-1") {
		t.Fatal("second attempt should be allowed")
	}
	if rl.Allow("uid-1") {
		t.Fatal("third attempt should be rate limited")
	}
	if !rl.Allow("uid-2") {
		t.Fatal("a different identity should not share the budget")
	}
}
