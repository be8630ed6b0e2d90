package wamp

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// WAMP v1 message type ids.
const (
	msgWelcome     = 0
	msgPrefix      = 1
	msgCall        = 2
	msgCallResult  = 3
	msgCallError   = 4
	msgSubscribe   = 5
	msgUnsubscribe = 6
	msgPublish     = 7
	msgEvent       = 8
)

var ErrMalformedMessage = errors.New("malformed wamp message")

// CallError is the server's error answer to a call.
type CallError struct {
	URI     string
	Desc    string
	Details json.RawMessage
}

func (e *CallError) Error() string {
	if len(e.Details) > 0 {
		return fmt.Sprintf("call error %s: %s (%s)", e.URI, e.Desc, e.Details)
	}
	return fmt.Sprintf("call error %s: %s", e.URI, e.Desc)
}

type message struct {
	typ    int
	fields []json.RawMessage
}

func parseMessage(data []byte) (message, error) {
	var fields []json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return message{}, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	if len(fields) == 0 {
		return message{}, fmt.Errorf("%w: empty", ErrMalformedMessage)
	}
	var typ int
	if err := json.Unmarshal(fields[0], &typ); err != nil {
		return message{}, fmt.Errorf("%w: type: %v", ErrMalformedMessage, err)
	}
	return message{typ: typ, fields: fields[1:]}, nil
}

func (m message) str(i int) (string, error) {
	if i >= len(m.fields) {
		return "", fmt.Errorf("%w: type %d has %d fields", ErrMalformedMessage, m.typ, len(m.fields))
	}
	var s string
	if err := json.Unmarshal(m.fields[i], &s); err != nil {
		return "", fmt.Errorf("%w: field %d: %v", ErrMalformedMessage, i, err)
	}
	return s, nil
}

func (m message) raw(i int) json.RawMessage {
	if i >= len(m.fields) {
		return nil
	}
	return m.fields[i]
}

// welcome is [sessionId, protocolVersion, serverIdent].
type welcome struct {
	SessionID string
	Version   int
	Server    string
}

func (m message) welcome() (welcome, error) {
	if m.typ != msgWelcome {
		return welcome{}, fmt.Errorf("%w: expected welcome, got type %d", ErrMalformedMessage, m.typ)
	}
	id, err := m.str(0)
	if err != nil {
		return welcome{}, err
	}
	w := welcome{SessionID: id}
	if raw := m.raw(1); raw != nil {
		_ = json.Unmarshal(raw, &w.Version)
	}
	if raw := m.raw(2); raw != nil {
		_ = json.Unmarshal(raw, &w.Server)
	}
	return w, nil
}

func (m message) callError() (string, *CallError, error) {
	id, err := m.str(0)
	if err != nil {
		return "", nil, err
	}
	uri, _ := m.str(1)
	desc, _ := m.str(2)
	return id, &CallError{URI: uri, Desc: desc, Details: m.raw(3)}, nil
}

// prefixes expands CURIEs such as "event:user_event".
type prefixes map[string]string

func (p prefixes) expand(curie string) string {
	name, ref, ok := strings.Cut(curie, ":")
	if !ok {
		return curie
	}
	if base, ok := p[name]; ok {
		return base + ref
	}
	return curie
}
