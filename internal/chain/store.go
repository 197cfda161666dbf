// internal/chain/store.go
package chain

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// State минимальный key/value интерфейс хранилища контрактов.
type State interface {
	Set(key, value string)
	Get(key string) *string
	Delete(key string)
}

type journalEntry struct {
	key  string
	prev *string
}

// Store хранилище с журналом изменений: любую серию записей можно откатить
// до снимка. Не потокобезопасен, доступ сериализует Runtime.
type Store struct {
	db      map[string]string
	journal []journalEntry
}

// NewStore создаёт пустое хранилище.
func NewStore() *Store {
	return &Store{db: make(map[string]string)}
}

func (s *Store) Get(key string) *string {
	val, ok := s.db[key]
	if !ok {
		return nil
	}
	return &val
}

func (s *Store) Set(key, value string) {
	s.record(key)
	s.db[key] = value
}

func (s *Store) Delete(key string) {
	if _, ok := s.db[key]; !ok {
		return
	}
	s.record(key)
	delete(s.db, key)
}

func (s *Store) record(key string) {
	s.journal = append(s.journal, journalEntry{key: key, prev: s.Get(key)})
}

// Snapshot возвращает метку для RevertTo.
func (s *Store) Snapshot() int {
	return len(s.journal)
}

// RevertTo откатывает все записи, сделанные после снимка.
func (s *Store) RevertTo(snapshot int) {
	for i := len(s.journal) - 1; i >= snapshot; i-- {
		e := s.journal[i]
		if e.prev == nil {
			delete(s.db, e.key)
		} else {
			s.db[e.key] = *e.prev
		}
	}
	s.journal = s.journal[:snapshot]
}

// Commit фиксирует изменения и очищает журнал.
func (s *Store) Commit() {
	s.journal = s.journal[:0]
}

// Len количество ключей.
func (s *Store) Len() int {
	return len(s.db)
}

// Keys отсортированный список ключей с префиксом.
func (s *Store) Keys(prefix string) []string {
	keys := make([]string, 0)
	for k := range s.db {
		if len(k) >= len(prefix) && k[:len(prefix)] == prefix {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

// SaveFile записывает состояние в JSON файл.
func (s *Store) SaveFile(path string) error {
	data, err := json.MarshalIndent(s.db, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode state: %w", err)
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create state dir: %w", err)
		}
	}
	return os.WriteFile(path, data, 0o644)
}

// LoadFile загружает состояние из JSON файла. Отсутствующий файл не ошибка.
func (s *Store) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read state: %w", err)
	}
	db := make(map[string]string)
	if err := json.Unmarshal(data, &db); err != nil {
		return fmt.Errorf("failed to decode state: %w", err)
	}
	s.db = db
	s.journal = nil
	return nil
}
