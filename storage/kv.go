package storage

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/rlp"
)

// KVStore adapts a Database into the typed key-value interface the vault
// ledger consumes, encoding records with RLP.
type KVStore struct {
	db Database
}

// NewKVStore wraps the supplied database.
func NewKVStore(db Database) *KVStore {
	return &KVStore{db: db}
}

// KVGet decodes the stored record into out, reporting whether the key existed.
func (s *KVStore) KVGet(key []byte, out interface{}) (bool, error) {
	if s == nil || s.db == nil {
		return false, fmt.Errorf("storage: kv store not initialised")
	}
	raw, err := s.db.Get(key)
	if err != nil {
		if errors.Is(err, ErrKeyNotFound) {
			return false, nil
		}
		return false, err
	}
	if err := rlp.DecodeBytes(raw, out); err != nil {
		return false, fmt.Errorf("storage: decode %q: %w", key, err)
	}
	return true, nil
}

// KVPut encodes the record and stores it under key.
func (s *KVStore) KVPut(key []byte, value interface{}) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("storage: kv store not initialised")
	}
	encoded, err := rlp.EncodeToBytes(value)
	if err != nil {
		return fmt.Errorf("storage: encode %q: %w", key, err)
	}
	return s.db.Put(key, encoded)
}
