// internal/token/events.go
package token

import (
	"github.com/holiman/uint256"
	"github.com/rovshanmuradov/tokensale/internal/types"
)

// TransferEvent перемещение баланса. From == ZeroAddress означает выпуск.
type TransferEvent struct {
	From   types.Address
	To     types.Address
	Amount *uint256.Int
	// Forced перевод владельцем в обход allowance (god mode)
	Forced bool
}

// ApprovalEvent изменение allowance.
type ApprovalEvent struct {
	Owner   types.Address
	Spender types.Address
	Amount  *uint256.Int
}

// BanEvent изменение статуса в санкционном списке.
type BanEvent struct {
	Account types.Address
	Banned  bool
}
