package app

import "errors"

// Business-rule errors raised by the account operations service. Store-level
// failures (insufficient funds, missing rows) surface as the sentinel errors
// defined in internal/store; everything here is decided before or around the
// database transaction.
var (
	ErrNotAuthenticated    = errors.New("not authenticated")
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrRecipientNotFound   = errors.New("recipient not found")
	ErrAmbiguousRecipient  = errors.New("recipient identifier matches more than one customer")
	ErrSelfTransfer        = errors.New("cannot transfer to yourself")
	ErrApplicationRejected = errors.New("application rejected")
	ErrExtensionDeclined   = errors.New("payment extension declined")
)
