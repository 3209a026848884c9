package main

import (
	"errors"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/NicolasHaas/chatroom/pkg/client"
	"github.com/NicolasHaas/chatroom/pkg/logging"
)

func main() {
	addr := flag.String("addr", "localhost:55555", "chat server address")
	flag.Parse()

	// Default to "info"; override with CHATROOM_LOG_LEVEL env var.
	level := "info"
	if v := os.Getenv("CHATROOM_LOG_LEVEL"); v != "" {
		level = v
	}
	_ = logging.Setup(logging.Options{Level: level, Output: os.Stderr})

	c, err := client.Dial(*addr, os.Stdin, os.Stdout)
	if err != nil {
		fmt.Fprintf(os.Stderr, "could not connect to %s: %v\n", *addr, err)
		os.Exit(1)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Println("\nDisconnecting from server...")
		_ = c.Close()
	}()

	if err := c.Run(); err != nil && !errors.Is(err, net.ErrClosed) {
		fmt.Fprintf(os.Stderr, "connection error: %v\n", err)
		os.Exit(1)
	}
}
