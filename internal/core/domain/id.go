package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var ErrMalformedID = errors.New("malformed id")

// SessionID identifies the login session the agent acts for.
type SessionID string

func (id SessionID) String() string {
	return string(id)
}

// Server-assigned identifiers. The server is free to send them as JSON strings or
// numbers, so they are kept as opaque strings.
type (
	ActivityID    string
	ParticipantID string
	InvitationID  string
)

func (id ActivityID) String() string    { return string(id) }
func (id ParticipantID) String() string { return string(id) }
func (id InvitationID) String() string  { return string(id) }

func (id *ActivityID) UnmarshalJSON(b []byte) error {
	s, err := decodeOpaque(b)
	*id = ActivityID(s)
	return err
}

func (id *ParticipantID) UnmarshalJSON(b []byte) error {
	s, err := decodeOpaque(b)
	*id = ParticipantID(s)
	return err
}

func (id *InvitationID) UnmarshalJSON(b []byte) error {
	s, err := decodeOpaque(b)
	*id = InvitationID(s)
	return err
}

// decodeOpaque accepts a JSON string, number or null.
func decodeOpaque(b []byte) (string, error) {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		return "", nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return "", fmt.Errorf("%w: %s", ErrMalformedID, b)
		}
		return s, nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return "", fmt.Errorf("%w: %s", ErrMalformedID, b)
	}
	return n.String(), nil
}

// ClientID identifies a local UI client attached to the agent.
type ClientID uuid.UUID

func NewClientID() ClientID {
	return ClientID(uuid.New())
}

func (id ClientID) String() string {
	return uuid.UUID(id).String()
}
