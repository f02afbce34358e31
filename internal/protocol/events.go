// Package protocol defines the event names and payloads exchanged over the
// match session transport. The server and the client state machine share it.
package protocol

import (
	"encoding/json"
	"fmt"
)

const (
	// client - server
	MsgJoinQueue        = "joinQueue"
	MsgCreatePrivate    = "createPrivateRoom"
	MsgJoinPrivate      = "joinPrivateRoom"
	MsgPlayComputer     = "playComputer"
	MsgCancelSearch     = "cancelSearch"
	MsgMakeMove         = "makeMove"
	MsgSurrender        = "surrender"
	MsgGetSessionStatus = "getSessionStatus"
	MsgPing             = "ping"

	// server - client
	MsgReady            = "ready"
	MsgQueued           = "queued"
	MsgPrivateCreated   = "privateRoomCreated"
	MsgPrivateExpired   = "privateRoomExpired"
	MsgSearchCancelled  = "searchCancelled"
	MsgMatchFound       = "matchFound"
	MsgOpponentMadeMove = "opponentMadeMove"
	MsgRoundResult      = "roundResult"
	MsgNextRound        = "nextRound"
	MsgMatchOver        = "matchOver"
	MsgOpponentLeft     = "opponentLeft"
	MsgSessionStatus    = "sessionStatus"
	MsgError            = "error"
	MsgPong             = "pong"
)

// Event is an outgoing message before encoding.
type Event struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

// Envelope is a received message whose payload has not been decoded yet.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Encode serializes an event for the wire.
func Encode(ev Event) ([]byte, error) {
	return json.Marshal(ev)
}

// Decode parses a raw wire message into an envelope.
func Decode(raw []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return env, fmt.Errorf("decode envelope: %w", err)
	}
	if env.Type == "" {
		return env, fmt.Errorf("decode envelope: missing type")
	}
	return env, nil
}

// Bind decodes the envelope payload into v. An empty payload leaves v untouched.
func (e Envelope) Bind(v any) error {
	if len(e.Payload) == 0 || string(e.Payload) == "null" {
		return nil
	}
	if err := json.Unmarshal(e.Payload, v); err != nil {
		return fmt.Errorf("decode %s payload: %w", e.Type, err)
	}
	return nil
}

// ToEnvelope round-trips an event through JSON so in-process consumers see
// exactly what a remote peer would.
func ToEnvelope(ev Event) (Envelope, error) {
	raw, err := Encode(ev)
	if err != nil {
		return Envelope{}, err
	}
	return Decode(raw)
}
