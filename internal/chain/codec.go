// internal/chain/codec.go
package chain

import (
	"fmt"
	"strings"

	"github.com/holiman/uint256"
	"github.com/rovshanmuradov/tokensale/internal/types"
)

// Key собирает ключ хранилища из частей: Key("bal", addr) -> "bal/<addr>".
func Key(parts ...any) string {
	s := make([]string, len(parts))
	for i, p := range parts {
		switch v := p.(type) {
		case string:
			s[i] = v
		case types.Address:
			s[i] = v.String()
		default:
			s[i] = fmt.Sprint(v)
		}
	}
	return strings.Join(s, "/")
}

// GetUint читает число. Отсутствующий ключ = 0.
func (c *Context) GetUint(key string) *uint256.Int {
	raw := c.Get(key)
	if raw == nil {
		return new(uint256.Int)
	}
	v, err := uint256.FromDecimal(*raw)
	if err != nil {
		panic(fmt.Errorf("%w: %s=%q: %v", ErrCorruptState, key, *raw, err))
	}
	return v
}

// SetUint записывает число, ноль удаляет ключ.
func (c *Context) SetUint(key string, v *uint256.Int) {
	if v == nil || v.IsZero() {
		c.Delete(key)
		return
	}
	c.Set(key, v.Dec())
}

// GetBool читает флаг.
func (c *Context) GetBool(key string) bool {
	raw := c.Get(key)
	return raw != nil && *raw == "1"
}

// SetBool записывает флаг, false удаляет ключ.
func (c *Context) SetBool(key string, v bool) {
	if !v {
		c.Delete(key)
		return
	}
	c.Set(key, "1")
}

// GetAddress читает адрес.
func (c *Context) GetAddress(key string) types.Address {
	raw := c.Get(key)
	if raw == nil {
		return types.ZeroAddress
	}
	addr, err := types.ParseAddress(*raw)
	if err != nil {
		panic(fmt.Errorf("%w: %s: %v", ErrCorruptState, key, err))
	}
	return addr
}

// SetAddress записывает адрес.
func (c *Context) SetAddress(key string, a types.Address) {
	c.Set(key, a.String())
}
