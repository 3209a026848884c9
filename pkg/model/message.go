package model

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

const MessageMaxBodyLength = 1024

var ErrMessageBodyTooLong = fmt.Errorf("message body exceeds %d characters", MessageMaxBodyLength)
var ErrMessageBodyEmpty = errors.New("message body cannot be empty")

// ChatMessage is one persisted chat line.
type ChatMessage struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

func (m *ChatMessage) Validate() error {
	if strings.TrimSpace(m.Body) == "" {
		return ErrMessageBodyEmpty
	} else if utf8.RuneCountInString(m.Body) > MessageMaxBodyLength {
		return ErrMessageBodyTooLong
	}

	return nil
}

type MessageFilters struct {
	LimitToUsername *string
	PageSize        *int64
	Offset          *int64
}
