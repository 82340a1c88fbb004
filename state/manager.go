package state

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/rlp"

	"curvemint/core/types"
	"curvemint/storage"
)

var (
	accountPrefix = []byte("account/")
)

// Manager persists accounts and auxiliary key-value records on top of the
// storage backend. It is the concrete state handed to the issuance engine.
type Manager struct {
	db storage.Database
}

// NewManager wraps the supplied database.
func NewManager(db storage.Database) *Manager {
	return &Manager{db: db}
}

// GetAccount loads the account stored under addr. A missing account resolves
// to nil without error so callers can lazily materialise zero accounts.
func (m *Manager) GetAccount(addr []byte) (*types.Account, error) {
	if m == nil || m.db == nil {
		return nil, errors.New("state: manager not initialised")
	}
	raw, err := m.db.Get(accountKey(addr))
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	account := &types.Account{}
	if err := json.Unmarshal(raw, account); err != nil {
		return nil, fmt.Errorf("state: decode account: %w", err)
	}
	return account, nil
}

// PutAccount stores the account under addr, overwriting any prior record.
func (m *Manager) PutAccount(addr []byte, account *types.Account) error {
	if m == nil || m.db == nil {
		return errors.New("state: manager not initialised")
	}
	if account == nil {
		return errors.New("state: account must not be nil")
	}
	raw, err := json.Marshal(account)
	if err != nil {
		return fmt.Errorf("state: encode account: %w", err)
	}
	return m.db.Put(accountKey(addr), raw)
}

// KVGet decodes the JSON value stored under key into out, reporting whether
// the key existed.
func (m *Manager) KVGet(key []byte, out interface{}) (bool, error) {
	raw, err := m.db.Get(key)
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return false, fmt.Errorf("state: decode value: %w", err)
	}
	return true, nil
}

// KVPut stores value under key as JSON.
func (m *Manager) KVPut(key []byte, value interface{}) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("state: encode value: %w", err)
	}
	return m.db.Put(key, raw)
}

// KVAppend appends value to the RLP-encoded list stored under key.
func (m *Manager) KVAppend(key []byte, value []byte) error {
	var list [][]byte
	if err := m.KVGetList(key, &list); err != nil {
		return err
	}
	list = append(list, value)
	encoded, err := rlp.EncodeToBytes(list)
	if err != nil {
		return fmt.Errorf("state: encode list: %w", err)
	}
	return m.db.Put(key, encoded)
}

// KVGetList decodes the RLP-encoded list stored under key into out. A missing
// key yields an empty list.
func (m *Manager) KVGetList(key []byte, out *[][]byte) error {
	raw, err := m.db.Get(key)
	if errors.Is(err, storage.ErrNotFound) {
		*out = nil
		return nil
	}
	if err != nil {
		return err
	}
	if err := rlp.DecodeBytes(raw, out); err != nil {
		return fmt.Errorf("state: decode list: %w", err)
	}
	return nil
}

func accountKey(addr []byte) []byte {
	buf := make([]byte, len(accountPrefix)+len(addr))
	copy(buf, accountPrefix)
	copy(buf[len(accountPrefix):], addr)
	return buf
}
