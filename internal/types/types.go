// internal/types/types.go
package types

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
)

// Address идентифицирует аккаунт или контракт (ed25519 public key, base58).
type Address = solana.PublicKey

// ZeroAddress пустой адрес, используется как "нет отправителя" (mint).
var ZeroAddress = solana.PublicKey{}

// ParseAddress разбирает base58 строку в Address.
func ParseAddress(s string) (Address, error) {
	addr, err := solana.PublicKeyFromBase58(s)
	if err != nil {
		return ZeroAddress, fmt.Errorf("invalid address %q: %w", s, err)
	}
	return addr, nil
}

// ShortAddress возвращает укороченное представление для логов и отчётов.
func ShortAddress(a Address) string {
	s := a.String()
	if len(s) <= 10 {
		return s
	}
	return s[:4] + ".." + s[len(s)-4:]
}
