package storage

import (
	"errors"
	"testing"
)

type sampleRecord struct {
	Amount string
	Count  uint64
}

func TestMemDBRoundTrip(t *testing.T) {
	db := NewMemDB()
	if err := db.Put([]byte("k"), []byte("v")); err != nil {
		t.Fatalf("put: %v", err)
	}
	value, err := db.Get([]byte("k"))
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(value) != "v" {
		t.Fatalf("unexpected value %q", value)
	}
	if _, err := db.Get([]byte("missing")); !errors.Is(err, ErrKeyNotFound) {
		t.Fatalf("expected key-not-found, got %v", err)
	}
}

func TestMemDBCopiesValues(t *testing.T) {
	db := NewMemDB()
	payload := []byte("original")
	if err := db.Put([]byte("k"), payload); err != nil {
		t.Fatalf("put: %v", err)
	}
	payload[0] = 'X'
	value, err := db.Get([]byte("k"))
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(value) != "original" {
		t.Fatalf("stored value aliased caller buffer: %q", value)
	}
}

func TestKVStoreEncodesRecords(t *testing.T) {
	store := NewKVStore(NewMemDB())
	in := sampleRecord{Amount: "12345", Count: 7}
	if err := store.KVPut([]byte("record"), in); err != nil {
		t.Fatalf("put: %v", err)
	}

	var out sampleRecord
	ok, err := store.KVGet([]byte("record"), &out)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !ok {
		t.Fatalf("expected record to exist")
	}
	if out != in {
		t.Fatalf("round trip mismatch: %+v", out)
	}
}

func TestKVStoreMissingKey(t *testing.T) {
	store := NewKVStore(NewMemDB())
	var out sampleRecord
	ok, err := store.KVGet([]byte("absent"), &out)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if ok {
		t.Fatalf("missing key reported as present")
	}
}

func TestLevelDBRoundTrip(t *testing.T) {
	db, err := NewLevelDB(t.TempDir())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()

	if err := db.Put([]byte("k"), []byte("v")); err != nil {
		t.Fatalf("put: %v", err)
	}
	value, err := db.Get([]byte("k"))
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(value) != "v" {
		t.Fatalf("unexpected value %q", value)
	}
	has, err := db.Has([]byte("k"))
	if err != nil || !has {
		t.Fatalf("expected key present, has=%v err=%v", has, err)
	}
	if _, err := db.Get([]byte("missing")); !errors.Is(err, ErrKeyNotFound) {
		t.Fatalf("expected key-not-found, got %v", err)
	}
}
