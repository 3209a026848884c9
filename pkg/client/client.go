// Package client implements the terminal chat client.
//
// Two loops share one connection: one relays server output to the terminal,
// the other relays terminal input to the server. Closing the connection,
// locally or by the server, unblocks both.
package client

import (
	"bufio"
	"fmt"
	"io"
	"net"
)

// Client is one terminal chat session.
type Client struct {
	conn net.Conn
	in   io.Reader
	out  io.Writer
}

// Dial connects to a chat server. in and out are the local terminal ends,
// normally os.Stdin and os.Stdout.
func Dial(addr string, in io.Reader, out io.Writer) (*Client, error) {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("client: connect %s: %w", addr, err)
	}
	return New(conn, in, out), nil
}

// New wraps an existing connection; used by tests.
func New(conn net.Conn, in io.Reader, out io.Writer) *Client {
	return &Client{conn: conn, in: in, out: out}
}

// Run relays in both directions until either side ends, then closes the
// connection so the surviving loop unblocks too. A server-initiated close
// and local input EOF both return nil.
func (c *Client) Run() error {
	recvErr := make(chan error, 1)
	go func() {
		_, err := io.Copy(c.out, c.conn)
		recvErr <- err
	}()

	sendErr := make(chan error, 1)
	go func() {
		sc := bufio.NewScanner(c.in)
		for sc.Scan() {
			if _, err := fmt.Fprintf(c.conn, "%s\n", sc.Text()); err != nil {
				sendErr <- err
				return
			}
		}
		sendErr <- sc.Err() // nil on EOF
	}()

	var err error
	select {
	case err = <-recvErr:
	case err = <-sendErr:
	}
	_ = c.conn.Close()
	return err
}

// Close closes the connection, unblocking Run.
func (c *Client) Close() error {
	return c.conn.Close()
}
