// internal/token/errors.go
package token

import "errors"

var (
	ErrInsufficientBalance  = errors.New("transfer amount exceeds balance")
	ErrAllowanceExceeded    = errors.New("insufficient allowance")
	ErrBannedAddress        = errors.New("banned address")
	ErrUnauthorized         = errors.New("caller is not the owner")
	ErrInvalidReceiver      = errors.New("invalid receiver")
	ErrNotReceiver          = errors.New("receiver does not accept transfer callbacks")
	ErrUnsupportedOperation = errors.New("operation not supported by this token")
	ErrSupplyOverflow       = errors.New("total supply overflow")
	ErrUnknownKind          = errors.New("unknown token kind")
)
