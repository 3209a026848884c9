package client

import (
	"bufio"
	"bytes"
	"io"
	"net"
	"strings"
	"sync"
	"testing"
	"time"
)

// syncBuffer is a goroutine-safe output sink.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestRunRelaysBothDirections(t *testing.T) {
	serverEnd, clientEnd := net.Pipe()

	out := &syncBuffer{}
	inR, inW := io.Pipe()
	defer func() { _ = inW.Close() }()
	c := New(clientEnd, inR, out)

	runDone := make(chan error, 1)
	go func() { runDone <- c.Run() }()

	go func() { _, _ = inW.Write([]byte("hello from the terminal\n")) }()

	// Server sees the typed line, newline-terminated.
	line, err := bufio.NewReader(serverEnd).ReadString('\n')
	if err != nil {
		t.Fatalf("server read: %v", err)
	}
	if line != "hello from the terminal\n" {
		t.Errorf("server got %q", line)
	}

	// Server output lands on the terminal, prompts included.
	if _, err := serverEnd.Write([]byte("Username: ")); err != nil {
		t.Fatalf("server write: %v", err)
	}
	deadline := time.After(2 * time.Second)
	for !strings.Contains(out.String(), "Username: ") {
		select {
		case <-deadline:
			t.Fatalf("terminal output missing prompt, got %q", out.String())
		default:
			time.Sleep(5 * time.Millisecond)
		}
	}

	// Server closing the connection ends Run cleanly.
	_ = serverEnd.Close()
	select {
	case err := <-runDone:
		if err != nil && err != io.EOF && err != io.ErrClosedPipe {
			t.Errorf("Run returned %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after server close")
	}
}

func TestCloseUnblocksRun(t *testing.T) {
	serverEnd, clientEnd := net.Pipe()
	defer func() { _ = serverEnd.Close() }()

	// Input that never yields a line keeps the send loop pending.
	blocked, _ := io.Pipe()
	c := New(clientEnd, blocked, &syncBuffer{})

	runDone := make(chan error, 1)
	go func() { runDone <- c.Run() }()

	time.Sleep(20 * time.Millisecond)
	_ = c.Close()

	select {
	case <-runDone:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after Close")
	}
}
