// Package protocol defines the line-oriented chat wire protocol.
//
// Frames are newline-terminated UTF-8 text over a raw TCP stream; there is
// no length prefix and no multiplexing. Lines are assembled from a buffered
// reader because a single read may return a partial line or coalesce
// several lines.
package protocol

import (
	"bufio"
	"errors"
	"io"
	"net"
	"strings"
	"sync"
	"time"
)

// MaxLineLength bounds one frame, terminator included. Longer input is a
// protocol violation and terminates the connection.
const MaxLineLength = 4096

// Fixed handshake strings. Prompts end without a newline on purpose: the
// client renders them as-is and the reply arrives on the same visual line.
const (
	Greeting          = "Welcome to the chatroom!\nDo you want to login (-l) or signup (-s)? "
	PromptNewUsername = "Choose a username: "
	PromptNewPassword = "Choose a password: "
	PromptUsername    = "Username: "
	PromptPassword    = "Password: "

	ReplyAccountCreated  = "Account created!\n"
	ReplyUsernameTaken   = "Username already taken.\n"
	ReplyInvalidUsername = "Invalid username.\n"
	ReplyInvalidLogin    = "Invalid login.\n"
	ReplyInvalidOp       = "Invalid operation!\n"
	ReplyAlreadyOnline   = "User already logged in.\n"
	ReplyShutdown        = "Server is shutting down! Goodbye!\n"
)

// Handshake mode tokens, matched after trim + lowercase.
const (
	ModeSignup = "-s"
	ModeLogin  = "-l"
)

var ErrLineTooLong = errors.New("protocol: line exceeds maximum length")

// TimeLayout is the clock prefix on every broadcast line.
const TimeLayout = "15:04:05"

// Stamp prefixes text with the wall-clock time of the broadcast.
func Stamp(t time.Time, text string) string {
	return t.Format(TimeLayout) + " " + text
}

// LineConn frames a net.Conn into protocol lines.
//
// Reads are owned by a single session goroutine. Writes can come from both
// that session and the broadcaster acting for other sessions, so the write
// path is serialized with a mutex.
type LineConn struct {
	conn net.Conn
	r    *bufio.Reader

	wmu sync.Mutex
}

// NewLineConn wraps a connection with buffered line framing.
func NewLineConn(conn net.Conn) *LineConn {
	return &LineConn{
		conn: conn,
		r:    bufio.NewReader(conn),
	}
}

// ReadLine blocks until one full frame is assembled, then returns it with
// the trailing "\r\n" or "\n" stripped. EOF with pending bytes yields those
// bytes as a final line; EOF with nothing pending is returned as io.EOF.
func (c *LineConn) ReadLine() (string, error) {
	var buf []byte
	for {
		frag, err := c.r.ReadSlice('\n')
		buf = append(buf, frag...)
		if len(buf) > MaxLineLength {
			return "", ErrLineTooLong
		}
		if err == nil {
			break
		}
		if err == bufio.ErrBufferFull {
			continue
		}
		if err == io.EOF && len(buf) > 0 {
			break
		}
		return "", err
	}
	return strings.TrimRight(string(buf), "\r\n"), nil
}

// Prompt writes s verbatim, without appending a terminator.
func (c *LineConn) Prompt(s string) error {
	return c.write([]byte(s))
}

// WriteLine writes one newline-terminated frame.
func (c *LineConn) WriteLine(s string) error {
	return c.write([]byte(s + "\n"))
}

func (c *LineConn) write(p []byte) error {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	_, err := c.conn.Write(p)
	return err
}

// Close closes the underlying connection, unblocking a pending ReadLine.
func (c *LineConn) Close() error {
	return c.conn.Close()
}

// RemoteAddr returns the peer address.
func (c *LineConn) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}
