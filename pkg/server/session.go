package server

import (
	"errors"
	"io"
	"log/slog"
	"net"
	"strings"

	"github.com/google/uuid"

	"github.com/NicolasHaas/chatroom/pkg/datastore"
	"github.com/NicolasHaas/chatroom/pkg/model"
	"github.com/NicolasHaas/chatroom/pkg/protocol"
)

// AuthResult classifies the outcome of the handshake.
type AuthResult int

const (
	// AuthOK means the handshake completed and a username was established.
	AuthOK AuthResult = iota
	// AuthRejected means the client was refused (bad mode token, taken
	// username, or bad credentials). The rejection reply has already been
	// written when authenticate returns this.
	AuthRejected
	// AuthTransportError means an I/O failure ended the handshake early.
	AuthTransportError
)

// Session owns one client connection from accept to disconnect. It runs the
// handshake state machine, then the message loop:
//
//	Greeting -> ModeChoice -> SigningUp|LoggingIn -> Authenticated
//	         -> MessageLoop -> Terminated
type Session struct {
	id     uuid.UUID
	conn   *protocol.LineConn
	remote string
	srv    *Server

	username string // set once, on auth success
}

func newSession(srv *Server, netConn net.Conn) *Session {
	return &Session{
		id:     uuid.New(),
		conn:   protocol.NewLineConn(netConn),
		remote: netConn.RemoteAddr().String(),
		srv:    srv,
	}
}

// run drives the session to completion. Every failure in here is terminal
// for this session only; nothing may take down the server.
func (s *Session) run() {
	defer func() { _ = s.conn.Close() }()

	slog.Debug("new connection", "remote", s.remote, "session", s.id)

	username, res := s.authenticate()
	if res != AuthOK {
		if res == AuthRejected {
			s.srv.metrics.FailedAuths.Add(1)
		}
		return
	}

	if err := s.srv.registry.Register(username, s.conn); err != nil {
		// A second connection under an in-use name must not steal routing
		// from the session already holding it.
		s.srv.metrics.FailedAuths.Add(1)
		_ = s.conn.Prompt(protocol.ReplyAlreadyOnline)
		slog.Warn("rejected duplicate login", "user", username, "remote", s.remote)
		return
	}
	s.username = username
	s.srv.metrics.SuccessfulAuths.Add(1)
	slog.Info("client authenticated", "user", username, "remote", s.remote, "session", s.id)

	if motd := s.srv.cfg.MOTD; motd != "" {
		_ = s.conn.WriteLine(motd)
	}

	s.srv.broadcaster.Broadcast(username+" has joined!", username)

	s.messageLoop()

	// Remove our own entry only. If the entry no longer maps to this
	// connection the guard fails and the leave notice is skipped.
	if s.srv.registry.Unregister(username, s.conn) {
		s.srv.broadcaster.Broadcast(username+" has left.", username)
	}
	slog.Info("client disconnected", "user", username, "remote", s.remote, "session", s.id)
}

// authenticate runs the fixed greeting/mode-choice/credential exchange.
func (s *Session) authenticate() (string, AuthResult) {
	if err := s.conn.Prompt(protocol.Greeting); err != nil {
		return "", AuthTransportError
	}
	choice, err := s.conn.ReadLine()
	if err != nil {
		return "", AuthTransportError
	}

	switch strings.ToLower(strings.TrimSpace(choice)) {
	case protocol.ModeSignup:
		return s.signUp()
	case protocol.ModeLogin:
		return s.logIn()
	default:
		_ = s.conn.Prompt(protocol.ReplyInvalidOp)
		return "", AuthRejected
	}
}

// readCredentials prompts for and reads a username/password pair.
func (s *Session) readCredentials(userPrompt, passPrompt string) (username, password string, err error) {
	if err = s.conn.Prompt(userPrompt); err != nil {
		return
	}
	if username, err = s.conn.ReadLine(); err != nil {
		return
	}
	if err = s.conn.Prompt(passPrompt); err != nil {
		return
	}
	if password, err = s.conn.ReadLine(); err != nil {
		return
	}
	username = strings.TrimSpace(username)
	password = strings.TrimSpace(password)
	return
}

func (s *Session) signUp() (string, AuthResult) {
	username, password, err := s.readCredentials(protocol.PromptNewUsername, protocol.PromptNewPassword)
	if err != nil {
		return "", AuthTransportError
	}

	err = s.srv.accounts.CreateAccount(username, password)
	switch {
	case err == nil:
	case errors.Is(err, datastore.ErrUsernameTaken):
		_ = s.conn.Prompt(protocol.ReplyUsernameTaken)
		return "", AuthRejected
	case errors.Is(err, model.ErrUsernameEmpty),
		errors.Is(err, model.ErrUsernameTooLong),
		errors.Is(err, model.ErrUsernameInvalidChars):
		_ = s.conn.Prompt(protocol.ReplyInvalidUsername)
		return "", AuthRejected
	default:
		// Credential store failure. On the wire this is indistinguishable
		// from losing a signup race; the detail goes to the server log.
		slog.Error("create account failed", "user", username, "remote", s.remote, "err", err)
		_ = s.conn.Prompt(protocol.ReplyUsernameTaken)
		return "", AuthRejected
	}

	if err := s.conn.Prompt(protocol.ReplyAccountCreated); err != nil {
		return "", AuthTransportError
	}
	return username, AuthOK
}

func (s *Session) logIn() (string, AuthResult) {
	username, password, err := s.readCredentials(protocol.PromptUsername, protocol.PromptPassword)
	if err != nil {
		return "", AuthTransportError
	}

	ok, err := s.srv.accounts.CheckLogin(username, password)
	if err != nil {
		slog.Error("check login failed", "user", username, "remote", s.remote, "err", err)
	}
	if !ok {
		_ = s.conn.Prompt(protocol.ReplyInvalidLogin)
		return "", AuthRejected
	}

	// A successful login proceeds silently; the join notice to the others
	// is the only confirmation.
	return username, AuthOK
}

// messageLoop relays inbound lines until the transport ends. EOF is a clean
// disconnect; any other read error is an abnormal one. Both exit the loop,
// neither aborts anything beyond this session.
func (s *Session) messageLoop() {
	for {
		line, err := s.conn.ReadLine()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				slog.Warn("session read error", "user", s.username, "remote", s.remote, "err", err)
			}
			return
		}

		text := strings.TrimSpace(line)
		if text == "" {
			continue
		}

		// Persistence is best-effort: a failed save is logged and the line
		// is still delivered live.
		if err := s.srv.messages.SaveMessage(s.username, text); err != nil {
			s.srv.metrics.SaveFailures.Add(1)
			slog.Error("save message failed", "user", s.username, "err", err)
		} else {
			s.srv.metrics.MessagesSaved.Add(1)
		}

		s.srv.broadcaster.Broadcast(s.username+": "+text, s.username)
		s.srv.metrics.MessagesRelayed.Add(1)
	}
}
