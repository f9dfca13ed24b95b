package logic

import "errors"

var (
	ErrValidation             = errors.New("validation failed")
	ErrNotFound               = errors.New("not found")
	ErrInsufficientBalance    = errors.New("insufficient balance")
	ErrSubmissionCancelled    = errors.New("submission cancelled by signer")
	ErrConfirmationTimeout    = errors.New("confirmation timeout")
	ErrReconciliationConflict = errors.New("balance reconciliation conflict")
	ErrTerminalState          = errors.New("request already decided")
)
