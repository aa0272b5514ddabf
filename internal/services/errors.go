package services

import "errors"

var (
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrInvalidAmount     = errors.New("amount must be positive")
	ErrInvalidKind       = errors.New("transaction kind not allowed for this operation")
	ErrAccountNotFound   = errors.New("ledger account not found")
	ErrAccountExists     = errors.New("ledger account already exists")

	ErrUserNotFound = errors.New("user not found")
	ErrUserExists   = errors.New("user already exists")

	ErrMatchNotFound     = errors.New("match not found")
	ErrInvalidTransition = errors.New("match is not in a state that allows this action")
	ErrSelfJoin          = errors.New("cannot join your own match")
	ErrNotParticipant    = errors.New("user is not a player in this match")
	ErrInvalidWinner     = errors.New("winner must be one of the match players")
	ErrNotYourTurn       = errors.New("it is not this player's turn")

	ErrInvalidInput = errors.New("invalid input")

	ErrUnsupportedSnapshotVersion = errors.New("unsupported snapshot version")
)
