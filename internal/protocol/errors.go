package protocol

import (
	"errors"

	"rps_arena/internal/domain"
)

// Error codes carried by the error event.
const (
	CodeInvalidRoomCode   = "invalid_room_code"
	CodeInsufficientFunds = "insufficient_funds"
	CodeUnknownMatch      = "unknown_match"
	CodeMatchOver         = "match_over"
	CodeInvalidBet        = "invalid_bet"
	CodeAlreadySearching  = "already_searching"
	CodeAlreadyInMatch    = "already_in_match"
	CodeNotSearching      = "not_searching"
	CodeInvalidMove       = "invalid_move"
	CodeBadRequest        = "bad_request"
	CodeUnauthorized      = "unauthorized"
	CodeInternal          = "internal"
)

var codeByErr = []struct {
	err  error
	code string
}{
	{domain.ErrInvalidRoomCode, CodeInvalidRoomCode},
	{domain.ErrInsufficientFunds, CodeInsufficientFunds},
	{domain.ErrUnknownMatch, CodeUnknownMatch},
	{domain.ErrMatchOver, CodeMatchOver},
	{domain.ErrInvalidBet, CodeInvalidBet},
	{domain.ErrAlreadySearching, CodeAlreadySearching},
	{domain.ErrAlreadyInMatch, CodeAlreadyInMatch},
	{domain.ErrNotSearching, CodeNotSearching},
	{domain.ErrInvalidChoice, CodeInvalidMove},
	{domain.ErrRoundMismatch, CodeInvalidMove},
	{domain.ErrNotParticipant, CodeInvalidMove},
}

// CodeOf classifies err into a wire error code.
func CodeOf(err error) string {
	for _, c := range codeByErr {
		if errors.Is(err, c.err) {
			return c.code
		}
	}
	return CodeInternal
}

// ErrorEvent builds the error event for err. Internal failures get a generic message.
func ErrorEvent(err error) Event {
	code := CodeOf(err)
	msg := err.Error()
	if code == CodeInternal {
		msg = "internal error"
	}
	return Event{Type: MsgError, Payload: ErrorPayload{Code: code, Message: msg}}
}

// ErrFromCode maps a wire code back to the domain sentinel on the client side.
func ErrFromCode(code string) error {
	switch code {
	case CodeInvalidRoomCode:
		return domain.ErrInvalidRoomCode
	case CodeInsufficientFunds:
		return domain.ErrInsufficientFunds
	case CodeUnknownMatch:
		return domain.ErrUnknownMatch
	case CodeMatchOver:
		return domain.ErrMatchOver
	case CodeInvalidBet:
		return domain.ErrInvalidBet
	case CodeAlreadySearching:
		return domain.ErrAlreadySearching
	case CodeAlreadyInMatch:
		return domain.ErrAlreadyInMatch
	case CodeNotSearching:
		return domain.ErrNotSearching
	case CodeInvalidMove:
		return domain.ErrInvalidChoice
	}
	return errors.New(code)
}

// Fail builds an error event that has no domain sentinel behind it.
func Fail(code, message string) Event {
	return Event{Type: MsgError, Payload: ErrorPayload{Code: code, Message: message}}
}
