package token

import (
	"errors"
	"testing"

	"github.com/holiman/uint256"
	"github.com/rovshanmuradov/tokensale/internal/chain"
	"github.com/rovshanmuradov/tokensale/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errRejected = errors.New("rejected")

// recordingReceiver принимает оба вида уведомлений
type recordingReceiver struct {
	addr   types.Address
	reject bool

	calls []receivedCall
}

type receivedCall struct {
	sender   types.Address
	operator types.Address
	from     types.Address
	amount   string
	data     string
}

func (r *recordingReceiver) Address() types.Address { return r.addr }

func (r *recordingReceiver) OnTransferReceived(c *chain.Context, operator, from types.Address, amount *uint256.Int, data []byte) error {
	if r.reject {
		return errRejected
	}
	r.calls = append(r.calls, receivedCall{c.Sender(), operator, from, amount.Dec(), string(data)})
	return nil
}

func (r *recordingReceiver) TokensReceived(c *chain.Context, operator, from, to types.Address, amount *uint256.Int, userData, operatorData []byte) error {
	if r.reject {
		return errRejected
	}
	r.calls = append(r.calls, receivedCall{c.Sender(), operator, from, amount.Dec(), string(userData)})
	return nil
}

// silentContract контракт без колбэков
type silentContract struct{ addr types.Address }

func (s *silentContract) Address() types.Address { return s.addr }

func (f *fixture) register(t *testing.T, c chain.Contract) {
	t.Helper()
	require.NoError(t, f.rt.Register(c))
}

func TestTransferAndCall(t *testing.T) {
	f := newFixture(t)
	tok := f.deploy(t, Config{Kind: KindCallback}).(*CallbackToken)
	recv := &recordingReceiver{addr: newAccount()}
	f.register(t, recv)

	require.NoError(t, f.exec(f.owner, tok, func(c *chain.Context) error {
		return tok.TransferAndCall(c, recv.addr, wei("2"), []byte("hello"))
	}))

	require.Len(t, recv.calls, 1)
	call := recv.calls[0]
	assert.Equal(t, tok.Address(), call.sender, "receiver sees token as sender")
	assert.Equal(t, f.owner, call.operator)
	assert.Equal(t, f.owner, call.from)
	assert.Equal(t, wei("2").Dec(), call.amount)
	assert.Equal(t, "hello", call.data)
	assert.Equal(t, "2", f.balance(t, tok, recv.addr))
}

func TestTransferAndCallRevertsOnRejection(t *testing.T) {
	f := newFixture(t)
	tok := f.deploy(t, Config{Kind: KindCallback}).(*CallbackToken)
	recv := &recordingReceiver{addr: newAccount(), reject: true}
	f.register(t, recv)

	err := f.exec(f.owner, tok, func(c *chain.Context) error {
		return tok.TransferAndCall(c, recv.addr, wei("2"), nil)
	})
	assert.ErrorIs(t, err, errRejected)
	assert.Equal(t, "0", f.balance(t, tok, recv.addr))
	assert.Equal(t, "1000000", f.balance(t, tok, f.owner))
}

func TestTransferAndCallRequiresReceiver(t *testing.T) {
	f := newFixture(t)
	tok := f.deploy(t, Config{Kind: KindCallback}).(*CallbackToken)
	silent := &silentContract{addr: newAccount()}
	f.register(t, silent)

	err := f.exec(f.owner, tok, func(c *chain.Context) error {
		return tok.TransferAndCall(c, f.user, wei("1"), nil)
	})
	assert.ErrorIs(t, err, ErrNotReceiver)

	err = f.exec(f.owner, tok, func(c *chain.Context) error {
		return tok.TransferAndCall(c, silent.addr, wei("1"), nil)
	})
	assert.ErrorIs(t, err, ErrNotReceiver)
	assert.Equal(t, "0", f.balance(t, tok, f.user))
}

func TestTransferFromAndCall(t *testing.T) {
	f := newFixture(t)
	tok := f.deploy(t, Config{Kind: KindCallback}).(*CallbackToken)
	recv := &recordingReceiver{addr: newAccount()}
	f.register(t, recv)

	require.NoError(t, f.exec(f.owner, tok, func(c *chain.Context) error {
		return tok.Approve(c, f.user, wei("3"))
	}))
	require.NoError(t, f.exec(f.user, tok, func(c *chain.Context) error {
		return tok.TransferFromAndCall(c, f.owner, recv.addr, wei("3"), nil)
	}))

	require.Len(t, recv.calls, 1)
	assert.Equal(t, f.user, recv.calls[0].operator)
	assert.Equal(t, f.owner, recv.calls[0].from)
}

func TestSupportsInterface(t *testing.T) {
	tok := &CallbackToken{}
	assert.True(t, tok.SupportsInterface(InterfaceTransferCall))
	assert.True(t, tok.SupportsInterface(InterfaceERC20))
	assert.False(t, tok.SupportsInterface("0xdeadbeef"))
}

func TestHookCalledOnEveryTransfer(t *testing.T) {
	f := newFixture(t)
	tok := f.deploy(t, Config{Kind: KindHook}).(*HookToken)
	recv := &recordingReceiver{addr: newAccount()}
	f.register(t, recv)

	require.NoError(t, f.exec(f.owner, tok, func(c *chain.Context) error {
		return tok.Transfer(c, recv.addr, wei("1"))
	}))
	require.NoError(t, f.exec(f.owner, tok, func(c *chain.Context) error {
		return tok.Send(c, recv.addr, wei("2"), []byte("data"))
	}))
	require.NoError(t, f.exec(f.owner, tok, func(c *chain.Context) error {
		return tok.Approve(c, f.user, wei("4"))
	}))
	require.NoError(t, f.exec(f.user, tok, func(c *chain.Context) error {
		return tok.TransferFrom(c, f.owner, recv.addr, wei("4"))
	}))

	require.Len(t, recv.calls, 3)
	assert.Equal(t, tok.Address(), recv.calls[0].sender)
	assert.Equal(t, "data", recv.calls[1].data)
	assert.Equal(t, f.user, recv.calls[2].operator)
	assert.Equal(t, f.owner, recv.calls[2].from)
	assert.Equal(t, "7", f.balance(t, tok, recv.addr))
}

func TestHookRejectionReverts(t *testing.T) {
	f := newFixture(t)
	tok := f.deploy(t, Config{Kind: KindHook}).(*HookToken)
	recv := &recordingReceiver{addr: newAccount(), reject: true}
	f.register(t, recv)

	err := f.exec(f.owner, tok, func(c *chain.Context) error {
		return tok.Transfer(c, recv.addr, wei("1"))
	})
	assert.ErrorIs(t, err, errRejected)
	assert.Equal(t, "0", f.balance(t, tok, recv.addr))
}

func TestHookSkipsPlainAccounts(t *testing.T) {
	f := newFixture(t)
	tok := f.deploy(t, Config{Kind: KindHook}).(*HookToken)
	silent := &silentContract{addr: newAccount()}
	f.register(t, silent)

	require.NoError(t, f.exec(f.owner, tok, func(c *chain.Context) error {
		if err := tok.Transfer(c, f.user, wei("1")); err != nil {
			return err
		}
		return tok.Transfer(c, silent.addr, wei("1"))
	}))
	assert.Equal(t, "1", f.balance(t, tok, f.user))
	assert.Equal(t, "1", f.balance(t, tok, silent.addr))
}

func TestOperatorSend(t *testing.T) {
	f := newFixture(t)
	tok := f.deploy(t, Config{Kind: KindHook}).(*HookToken)

	err := f.exec(f.user, tok, func(c *chain.Context) error {
		return tok.OperatorSend(c, f.owner, f.user, wei("1"), nil, nil)
	})
	assert.ErrorIs(t, err, ErrAllowanceExceeded)
}
