package types

import "errors"

// Code is the short, stable failure code surfaced to callers, both on direct
// calls and inside relay results.
type Code string

const (
	CodeNotOwner       Code = "NOT_OWNER"
	CodeNotManager     Code = "NOT_MANAGER"
	CodeNotMember      Code = "NOT_MEMBER"
	CodeNotGasStation  Code = "NOT_GASSTATION"
	CodeNotPoll        Code = "NOT_POLL"
	CodeNoManager      Code = "NO_MANAGER"
	CodeNoMember       Code = "NO_MEMBER"
	CodeNotFinalized   Code = "IS_NOT_FINALIZED"
	CodeWrongState     Code = "WRONG_STATE"
	CodeHasVoted       Code = "HAS_VOTED"
	CodeHasNotVoted    Code = "HAS_NOT_VOTED"
	CodeAlreadyEnabled Code = "ALREADY_ENABLED"
	CodeAlreadyDisable Code = "ALREADY_DISABLED"
	CodeIsEqual        Code = "IS_EQUAL"
	CodeNotAllowed     Code = "NOT_ALLOWED"
	CodeNotValid       Code = "NOT_VALID"
	CodeNotEnabled     Code = "IS_NOT_ENABLED"
	CodeWrongSig       Code = "WRONG_SIG"
	CodeNotFound       Code = "NOT_FOUND"
	CodeInitialized    Code = "ALREADY_INITIALIZED"
	CodeNotInitialized Code = "NOT_INITIALIZED"
	CodeNoBalance      Code = "INSUFFICIENT_BALANCE"
)

type PoolError struct {
	Code Code
}

func (e *PoolError) Error() string {
	return string(e.Code)
}

func NewPoolError(code Code) *PoolError {
	return &PoolError{Code: code}
}

var (
	ErrNotOwner       = NewPoolError(CodeNotOwner)
	ErrNotManager     = NewPoolError(CodeNotManager)
	ErrNotMember      = NewPoolError(CodeNotMember)
	ErrNotGasStation  = NewPoolError(CodeNotGasStation)
	ErrNotPoll        = NewPoolError(CodeNotPoll)
	ErrNoManager      = NewPoolError(CodeNoManager)
	ErrNoMember       = NewPoolError(CodeNoMember)
	ErrNotFinalized   = NewPoolError(CodeNotFinalized)
	ErrWrongState     = NewPoolError(CodeWrongState)
	ErrHasVoted       = NewPoolError(CodeHasVoted)
	ErrHasNotVoted    = NewPoolError(CodeHasNotVoted)
	ErrAlreadyEnabled = NewPoolError(CodeAlreadyEnabled)
	ErrAlreadyDisable = NewPoolError(CodeAlreadyDisable)
	ErrIsEqual        = NewPoolError(CodeIsEqual)
	ErrNotAllowed     = NewPoolError(CodeNotAllowed)
	ErrNotValid       = NewPoolError(CodeNotValid)
	ErrNotEnabled     = NewPoolError(CodeNotEnabled)
	ErrWrongSig       = NewPoolError(CodeWrongSig)
	ErrNotFound       = NewPoolError(CodeNotFound)
	ErrInitialized    = NewPoolError(CodeInitialized)
	ErrNotInitialized = NewPoolError(CodeNotInitialized)
	ErrNoBalance      = NewPoolError(CodeNoBalance)
)

// CodeOf extracts the short code carried by err. Errors that did not originate
// from a pool check keep their own message.
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	var perr *PoolError
	if errors.As(err, &perr) {
		return perr.Code
	}
	return Code(err.Error())
}
