// internal/chain/runtime.go
package chain

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/google/uuid"
	"github.com/rovshanmuradov/tokensale/internal/types"
	"go.uber.org/zap"
)

// Contract любой объект, зарегистрированный в рантайме. Состояние контракт
// хранит не в полях, а в хранилище через Context.
type Contract interface {
	Address() types.Address
}

// Runtime реестр контрактов и единый журнал состояния. Все транзакции
// исполняются строго последовательно.
type Runtime struct {
	mu        sync.RWMutex
	deliverMu sync.Mutex

	store     *Store
	contracts map[types.Address]Contract
	height    uint64
	nonce     uint64

	subMu       sync.RWMutex
	subscribers []func(*Receipt)

	logger *zap.Logger
}

// NewRuntime создаёт пустой рантайм.
func NewRuntime(logger *zap.Logger) *Runtime {
	return &Runtime{
		store:     NewStore(),
		contracts: make(map[types.Address]Contract),
		logger:    logger.Named("runtime"),
	}
}

// DeriveAddress детерминированно выводит адрес нового контракта.
func (r *Runtime) DeriveAddress(base types.Address, seed string) (types.Address, error) {
	r.mu.Lock()
	r.nonce++
	nonce := r.nonce
	r.mu.Unlock()

	s := fmt.Sprintf("%d:%s", nonce, seed)
	if len(s) > solana.MaxSeedLength {
		s = s[:solana.MaxSeedLength]
	}
	addr, err := solana.CreateWithSeed(base, s, solana.TokenProgramID)
	if err != nil {
		return types.ZeroAddress, fmt.Errorf("failed to derive address: %w", err)
	}
	return addr, nil
}

// Register добавляет контракт в реестр.
func (r *Runtime) Register(c Contract) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	addr := c.Address()
	if _, ok := r.contracts[addr]; ok {
		return fmt.Errorf("%w: %s", ErrContractExists, addr)
	}
	r.contracts[addr] = c
	r.logger.Debug("Contract registered",
		zap.String("address", addr.String()),
		zap.String("type", fmt.Sprintf("%T", c)))
	return nil
}

// Deploy регистрирует контракт и исполняет его инициализацию от имени from.
// Если инициализация не удалась, контракт удаляется из реестра.
func (r *Runtime) Deploy(ctx context.Context, from types.Address, c Contract, init func(*Context) error) (*Receipt, error) {
	if err := r.Register(c); err != nil {
		return nil, err
	}
	receipt, err := r.Execute(ctx, from, c.Address(), "deploy", init)
	if err != nil {
		r.mu.Lock()
		delete(r.contracts, c.Address())
		r.mu.Unlock()
		return receipt, fmt.Errorf("failed to deploy %s: %w", c.Address(), err)
	}
	return receipt, nil
}

// Contract возвращает контракт по адресу.
func (r *Runtime) Contract(addr types.Address) (Contract, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.contracts[addr]
	return c, ok
}

// Subscribe регистрирует получателя зафиксированных квитанций.
// Квитанции доставляются по порядку фиксации.
func (r *Runtime) Subscribe(fn func(*Receipt)) {
	r.subMu.Lock()
	defer r.subMu.Unlock()
	r.subscribers = append(r.subscribers, fn)
}

// Height количество зафиксированных транзакций.
func (r *Runtime) Height() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.height
}

// Execute исполняет fn как атомарную транзакцию from -> to.
// Ошибка или паника откатывает все записи и события.
func (r *Runtime) Execute(ctx context.Context, from, to types.Address, method string, fn func(*Context) error) (*Receipt, error) {
	start := time.Now()
	receipt := &Receipt{
		TxID:   uuid.New().String(),
		From:   from,
		To:     to,
		Method: method,
	}

	r.mu.Lock()
	locked := true
	defer func() {
		if locked {
			r.mu.Unlock()
		}
	}()

	if err := ctx.Err(); err != nil {
		receipt.Err = err
		return receipt, err
	}
	if _, ok := r.contracts[to]; !ok {
		err := fmt.Errorf("%w: %s", ErrUnknownContract, to)
		receipt.Err = err
		return receipt, err
	}

	tx := &txn{id: receipt.TxID}
	c := &Context{
		ctx:    ctx,
		rt:     r,
		tx:     tx,
		sender: from,
		origin: from,
		self:   to,
	}

	err := run(c, fn)
	receipt.Duration = time.Since(start)
	if err != nil {
		r.store.RevertTo(0)
		receipt.Err = err
		r.logger.Debug("Transaction reverted",
			zap.String("tx_id", receipt.TxID),
			zap.String("method", method),
			zap.Error(err))
		return receipt, err
	}

	r.store.Commit()
	r.height++
	receipt.Height = r.height
	receipt.Logs = tx.logs

	// подписчики получают квитанции по порядку, но уже без блокировки
	// состояния, поэтому могут читать его через View
	r.deliverMu.Lock()
	r.mu.Unlock()
	locked = false
	r.deliver(receipt)
	r.deliverMu.Unlock()

	return receipt, nil
}

// View исполняет fn только для чтения. Разрешены параллельные вызовы.
func (r *Runtime) View(ctx context.Context, to types.Address, fn func(*Context) error) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	if _, ok := r.contracts[to]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownContract, to)
	}

	c := &Context{
		ctx:      ctx,
		rt:       r,
		self:     to,
		readOnly: true,
	}
	return run(c, fn)
}

// SaveFile сохраняет снимок состояния.
func (r *Runtime) SaveFile(path string) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.store.SaveFile(path)
}

// LoadFile восстанавливает состояние из снимка. Контракты должны быть
// зарегистрированы заново с теми же адресами.
func (r *Runtime) LoadFile(path string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.store.LoadFile(path)
}

func (r *Runtime) deliver(receipt *Receipt) {
	r.subMu.RLock()
	subs := make([]func(*Receipt), len(r.subscribers))
	copy(subs, r.subscribers)
	r.subMu.RUnlock()

	for _, fn := range subs {
		fn(receipt)
	}
}

func run(c *Context, fn func(*Context) error) (err error) {
	defer func() {
		if p := recover(); p != nil {
			if perr, ok := p.(error); ok {
				err = fmt.Errorf("%w: %w", ErrExecutionAborted, perr)
				return
			}
			err = fmt.Errorf("%w: %v", ErrExecutionAborted, p)
		}
	}()
	return fn(c)
}
