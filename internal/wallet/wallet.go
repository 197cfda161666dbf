// ==================================
// File: internal/wallet/wallet.go
// ==================================
package wallet

import (
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/gagliardetto/solana-go"
	"github.com/mr-tron/base58"
	"github.com/rovshanmuradov/tokensale/internal/types"
	"gopkg.in/yaml.v3"
)

var ErrUnknownWallet = errors.New("unknown wallet")

// Wallet именованный участник продажи.
type Wallet struct {
	Name       string
	PrivateKey solana.PrivateKey
	PublicKey  solana.PublicKey
}

// NewWallet создаёт кошелёк из base58-encoded приватного ключа.
func NewWallet(name, privateKeyBase58 string) (*Wallet, error) {
	privateKeyBytes, err := base58.Decode(privateKeyBase58)
	if err != nil {
		return nil, fmt.Errorf("failed to decode private key: %w", err)
	}
	if len(privateKeyBytes) != 64 {
		return nil, fmt.Errorf("invalid private key length: expected 64 bytes, got %d", len(privateKeyBytes))
	}
	privateKey := solana.PrivateKey(privateKeyBytes)
	return &Wallet{
		Name:       name,
		PrivateKey: privateKey,
		PublicKey:  privateKey.PublicKey(),
	}, nil
}

// Generate новый случайный кошелёк.
func Generate(name string) (*Wallet, error) {
	key, err := solana.NewRandomPrivateKey()
	if err != nil {
		return nil, fmt.Errorf("failed to generate key for %s: %w", name, err)
	}
	return &Wallet{Name: name, PrivateKey: key, PublicKey: key.PublicKey()}, nil
}

// Address адрес кошелька в рантайме.
func (w *Wallet) Address() types.Address {
	return w.PublicKey
}

func (w *Wallet) String() string {
	return w.Name + ":" + types.ShortAddress(w.PublicKey)
}

// Book набор кошельков по имени.
type Book struct {
	mu      sync.RWMutex
	byName  map[string]*Wallet
	byOwner map[types.Address]string
}

func NewBook() *Book {
	return &Book{
		byName:  make(map[string]*Wallet),
		byOwner: make(map[types.Address]string),
	}
}

// Add добавляет или заменяет кошелёк.
func (b *Book) Add(w *Wallet) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if old, ok := b.byName[w.Name]; ok {
		delete(b.byOwner, old.PublicKey)
	}
	b.byName[w.Name] = w
	b.byOwner[w.PublicKey] = w.Name
}

// Get кошелёк по имени.
func (b *Book) Get(name string) (*Wallet, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	w, ok := b.byName[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownWallet, name)
	}
	return w, nil
}

// Ensure генерирует недостающие кошельки.
func (b *Book) Ensure(names ...string) error {
	for _, name := range names {
		if _, err := b.Get(name); err == nil {
			continue
		}
		w, err := Generate(name)
		if err != nil {
			return err
		}
		b.Add(w)
	}
	return nil
}

// NameOf имя владельца адреса, если он известен.
func (b *Book) NameOf(addr types.Address) (string, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	name, ok := b.byOwner[addr]
	return name, ok
}

// Names отсортированные имена.
func (b *Book) Names() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	names := make([]string, 0, len(b.byName))
	for name := range b.byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (b *Book) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.byName)
}

type walletFile struct {
	Wallets []struct {
		Name       string `yaml:"name"`
		PrivateKey string `yaml:"private_key"`
	} `yaml:"wallets"`
}

// LoadWallets загружает кошельки из CSV (Name,PrivateKeyBase58 с заголовком)
// или YAML (по расширению .yaml/.yml).
func LoadWallets(path string) (*Book, error) {
	cleanPath := filepath.Clean(path)
	ext := strings.ToLower(filepath.Ext(cleanPath))
	if ext == ".yaml" || ext == ".yml" {
		return loadYAML(cleanPath)
	}
	return loadCSV(cleanPath)
}

func loadCSV(path string) (*Book, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	records, err := csv.NewReader(file).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV: %w", err)
	}
	if len(records) < 2 {
		return nil, fmt.Errorf("CSV file is empty or missing data")
	}

	book := NewBook()
	for i, record := range records[1:] {
		if len(record) != 2 {
			return nil, fmt.Errorf("line %d: expected 2 columns, got %d", i+2, len(record))
		}
		w, err := NewWallet(strings.TrimSpace(record[0]), strings.TrimSpace(record[1]))
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", i+2, err)
		}
		book.Add(w)
	}
	return book, nil
}

func loadYAML(path string) (*Book, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	var cfg walletFile
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if len(cfg.Wallets) == 0 {
		return nil, fmt.Errorf("no wallets found in %s", path)
	}

	book := NewBook()
	for _, entry := range cfg.Wallets {
		w, err := NewWallet(entry.Name, entry.PrivateKey)
		if err != nil {
			return nil, fmt.Errorf("wallet %q: %w", entry.Name, err)
		}
		book.Add(w)
	}
	return book, nil
}

// SaveCSV сохраняет кошельки в формате, который читает LoadWallets.
func (b *Book) SaveCSV(path string) error {
	file, err := os.OpenFile(filepath.Clean(path), os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	w := csv.NewWriter(file)
	if err := w.Write([]string{"Name", "PrivateKey"}); err != nil {
		return err
	}
	for _, name := range b.Names() {
		wl, _ := b.Get(name)
		if err := w.Write([]string{name, base58.Encode(wl.PrivateKey)}); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}
