package transport

import (
	"bytes"
	"errors"
	"net"
	"testing"
	"time"
)

func newLoopbackEndpoint(t *testing.T, peer net.Addr) *Endpoint {
	t.Helper()
	ep, err := NewEndpoint(EndpointConfig{
		ListenAddr:  "127.0.0.1:0",
		PeerAddr:    peer,
		ReadTimeout: 2 * time.Second,
	})
	if err != nil {
		t.Fatalf("NewEndpoint() error = %v", err)
	}
	t.Cleanup(func() { ep.Close() })
	return ep
}

func TestEndpoint_SendReceive(t *testing.T) {
	server := newLoopbackEndpoint(t, nil)
	client := newLoopbackEndpoint(t, server.LocalAddr())

	if server.PeerAddr() != nil {
		t.Fatalf("server.PeerAddr() = %v, want nil before first packet", server.PeerAddr())
	}

	msg := []byte("hello over udp")
	if err := client.Send(msg); err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	got, err := server.Receive()
	if err != nil {
		t.Fatalf("Receive() error = %v", err)
	}
	if !bytes.Equal(got, msg) {
		t.Errorf("Receive() = %q, want %q", got, msg)
	}
	if server.PeerAddr() == nil || server.PeerAddr().String() != client.LocalAddr().String() {
		t.Errorf("server learned peer %v, want %v", server.PeerAddr(), client.LocalAddr())
	}

	// The server can now reply without a configured peer.
	if err := server.Send([]byte("reply")); err != nil {
		t.Fatalf("server Send() error = %v", err)
	}
	got, err = client.Receive()
	if err != nil {
		t.Fatalf("client Receive() error = %v", err)
	}
	if string(got) != "reply" {
		t.Errorf("client Receive() = %q, want %q", got, "reply")
	}
}

func TestEndpoint_IgnoresOtherSenders(t *testing.T) {
	server := newLoopbackEndpoint(t, nil)
	first := newLoopbackEndpoint(t, server.LocalAddr())
	stranger := newLoopbackEndpoint(t, server.LocalAddr())

	if err := first.Send([]byte("one")); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if _, err := server.Receive(); err != nil {
		t.Fatalf("Receive() error = %v", err)
	}

	if err := stranger.Send([]byte("intruder")); err != nil {
		t.Fatalf("stranger Send() error = %v", err)
	}
	time.Sleep(20 * time.Millisecond)
	if err := first.Send([]byte("two")); err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	got, err := server.Receive()
	if err != nil {
		t.Fatalf("Receive() error = %v", err)
	}
	if string(got) != "two" {
		t.Errorf("Receive() = %q, want %q", got, "two")
	}
}

func TestEndpoint_SendWithoutPeer(t *testing.T) {
	ep := newLoopbackEndpoint(t, nil)
	if err := ep.Send([]byte("x")); !errors.Is(err, ErrInvalidAddress) {
		t.Errorf("Send() error = %v, want %v", err, ErrInvalidAddress)
	}
}

func TestEndpoint_MessageTooLarge(t *testing.T) {
	server := newLoopbackEndpoint(t, nil)
	client := newLoopbackEndpoint(t, server.LocalAddr())

	err := client.Send(make([]byte, MaxDatagramSize+1))
	if !errors.Is(err, ErrMessageTooLarge) {
		t.Errorf("Send() error = %v, want %v", err, ErrMessageTooLarge)
	}
}

func TestEndpoint_ReadTimeout(t *testing.T) {
	ep, err := NewEndpoint(EndpointConfig{
		ListenAddr:  "127.0.0.1:0",
		ReadTimeout: 20 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("NewEndpoint() error = %v", err)
	}
	defer ep.Close()

	if _, err := ep.Receive(); !errors.Is(err, ErrTimeout) {
		t.Errorf("Receive() error = %v, want %v", err, ErrTimeout)
	}
}

func TestEndpoint_Close(t *testing.T) {
	ep, err := NewEndpoint(EndpointConfig{ListenAddr: "127.0.0.1:0"})
	if err != nil {
		t.Fatalf("NewEndpoint() error = %v", err)
	}

	done := make(chan error, 1)
	go func() {
		_, err := ep.Receive()
		done <- err
	}()
	time.Sleep(10 * time.Millisecond)

	if err := ep.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := ep.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}

	select {
	case err := <-done:
		if !errors.Is(err, ErrClosed) {
			t.Errorf("Receive() error = %v, want %v", err, ErrClosed)
		}
	case <-time.After(time.Second):
		t.Fatal("Receive() did not return after Close()")
	}

	if err := ep.Send([]byte("x")); !errors.Is(err, ErrClosed) {
		t.Errorf("Send() after Close error = %v, want %v", err, ErrClosed)
	}
}

func TestEndpoint_WithConn(t *testing.T) {
	conn, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("ListenPacket() error = %v", err)
	}
	ep, err := NewEndpoint(EndpointConfig{Conn: conn})
	if err != nil {
		t.Fatalf("NewEndpoint() error = %v", err)
	}
	defer ep.Close()

	if ep.LocalAddr().String() != conn.LocalAddr().String() {
		t.Errorf("LocalAddr() = %v, want %v", ep.LocalAddr(), conn.LocalAddr())
	}
}
