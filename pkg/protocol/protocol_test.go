package protocol

import (
	"errors"
	"io"
	"net"
	"strings"
	"sync"
	"testing"
	"time"
)

// chunkedConn feeds reads from pre-cut chunks to simulate a peer whose
// writes do not line up with frame boundaries.
type chunkedConn struct {
	net.Conn
	chunks [][]byte
}

func (c *chunkedConn) Read(p []byte) (int, error) {
	if len(c.chunks) == 0 {
		return 0, io.EOF
	}
	n := copy(p, c.chunks[0])
	if n == len(c.chunks[0]) {
		c.chunks = c.chunks[1:]
	} else {
		c.chunks[0] = c.chunks[0][n:]
	}
	return n, nil
}

func (c *chunkedConn) Write(p []byte) (int, error) { return len(p), nil }
func (c *chunkedConn) Close() error                { return nil }

func newChunked(chunks ...string) *LineConn {
	cc := &chunkedConn{}
	for _, ch := range chunks {
		cc.chunks = append(cc.chunks, []byte(ch))
	}
	return NewLineConn(cc)
}

func TestReadLineAssemblesPartialReads(t *testing.T) {
	c := newChunked("hel", "lo wor", "ld\n")
	line, err := c.ReadLine()
	if err != nil {
		t.Fatalf("ReadLine: %v", err)
	}
	if line != "hello world" {
		t.Errorf("ReadLine = %q, want %q", line, "hello world")
	}
}

func TestReadLineSplitsCoalescedFrames(t *testing.T) {
	c := newChunked("first\nsecond\nthird\n")
	for _, want := range []string{"first", "second", "third"} {
		line, err := c.ReadLine()
		if err != nil {
			t.Fatalf("ReadLine: %v", err)
		}
		if line != want {
			t.Errorf("ReadLine = %q, want %q", line, want)
		}
	}
	if _, err := c.ReadLine(); err != io.EOF {
		t.Errorf("ReadLine after drain: err = %v, want io.EOF", err)
	}
}

func TestReadLineTrimsCRLF(t *testing.T) {
	c := newChunked("windows line\r\n")
	line, err := c.ReadLine()
	if err != nil {
		t.Fatalf("ReadLine: %v", err)
	}
	if line != "windows line" {
		t.Errorf("ReadLine = %q, want %q", line, "windows line")
	}
}

func TestReadLineFinalUnterminatedLine(t *testing.T) {
	c := newChunked("no terminator")
	line, err := c.ReadLine()
	if err != nil {
		t.Fatalf("ReadLine: %v", err)
	}
	if line != "no terminator" {
		t.Errorf("ReadLine = %q, want %q", line, "no terminator")
	}
	if _, err := c.ReadLine(); err != io.EOF {
		t.Errorf("second ReadLine: err = %v, want io.EOF", err)
	}
}

func TestReadLineTooLong(t *testing.T) {
	c := newChunked(strings.Repeat("x", MaxLineLength+1) + "\n")
	if _, err := c.ReadLine(); !errors.Is(err, ErrLineTooLong) {
		t.Errorf("ReadLine: err = %v, want ErrLineTooLong", err)
	}
}

func TestStamp(t *testing.T) {
	at := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)
	got := Stamp(at, "alice: hello")
	if got != "09:26:53 alice: hello" {
		t.Errorf("Stamp = %q, want %q", got, "09:26:53 alice: hello")
	}
}

func TestConcurrentWritesDoNotInterleave(t *testing.T) {
	server, client := net.Pipe()
	defer func() { _ = client.Close() }()

	c := NewLineConn(server)
	const writers = 8
	const perWriter = 20

	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perWriter; j++ {
				if err := c.WriteLine("aaaaaaaaaaaaaaaaaaaa"); err != nil {
					t.Errorf("WriteLine: %v", err)
					return
				}
			}
		}()
	}

	reader := NewLineConn(client)
	for i := 0; i < writers*perWriter; i++ {
		line, err := reader.ReadLine()
		if err != nil {
			t.Fatalf("ReadLine %d: %v", i, err)
		}
		if line != "aaaaaaaaaaaaaaaaaaaa" {
			t.Fatalf("ReadLine %d: interleaved frame %q", i, line)
		}
	}
	wg.Wait()
	_ = c.Close()
}
