// internal/chain/errors.go
package chain

import "errors"

var (
	ErrCallDepth        = errors.New("max call depth exceeded")
	ErrWriteProtection  = errors.New("write in read-only context")
	ErrUnknownContract  = errors.New("unknown contract")
	ErrContractExists   = errors.New("contract already registered")
	ErrExecutionAborted = errors.New("execution aborted")
	ErrCorruptState     = errors.New("corrupt state value")
)
