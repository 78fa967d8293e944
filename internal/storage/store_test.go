package storage

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	key, err := DeriveKey("test passphrase")
	require.NoError(t, err)
	store, err := NewSQLiteStore(":memory:", key)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

type changeRecorder struct {
	mu      sync.Mutex
	changes []Change
}

func (r *changeRecorder) record(c Change) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.changes = append(r.changes, c)
}

func (r *changeRecorder) all() []Change {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Change(nil), r.changes...)
}

func recordChanges(store *SQLiteStore) *changeRecorder {
	r := &changeRecorder{}
	store.OnChange(r.record)
	return r
}

func TestVisionCache(t *testing.T) {
	store := newTestStore(t)

	entry, err := store.GetVisionCache("missing")
	require.NoError(t, err)
	assert.Nil(t, entry)

	require.NoError(t, store.SetVisionCache("k", &VisionCacheEntry{Text: "first", Model: "m1"}))
	require.NoError(t, store.SetVisionCache("k", &VisionCacheEntry{Text: "second", Model: "m2"}))

	entry, err = store.GetVisionCache("k")
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, "second", entry.Text)
	assert.Equal(t, "m2", entry.Model)
}

func TestCrypto_RoundTrip(t *testing.T) {
	key, err := DeriveKey("hunter2")
	require.NoError(t, err)
	require.Len(t, key, 32)

	enc, err := Encrypt([]byte("admin@example.com"), key)
	require.NoError(t, err)
	assert.NotContains(t, enc, "admin@example.com")

	plain, err := Decrypt(enc, key)
	require.NoError(t, err)
	assert.Equal(t, "admin@example.com", string(plain))

	other, err := DeriveKey("another")
	require.NoError(t, err)
	_, err = Decrypt(enc, other)
	assert.Error(t, err)
}

func TestCrypto_DeriveKeyIsStable(t *testing.T) {
	a, err := DeriveKey("same")
	require.NoError(t, err)
	b, err := DeriveKey("same")
	require.NoError(t, err)
	assert.Equal(t, a, b)

	_, err = DeriveKey("")
	assert.Error(t, err)
}

func TestCrypto_DecryptRejectsGarbage(t *testing.T) {
	key := make([]byte, 32)
	_, err := Decrypt("not base64!", key)
	assert.Error(t, err)
	_, err = Decrypt("c2hvcnQ=", key)
	assert.Error(t, err)
}

func TestCrypto_EmptyFieldsStayEmpty(t *testing.T) {
	key := make([]byte, 32)
	enc, err := encryptField("", key)
	require.NoError(t, err)
	assert.Empty(t, enc)

	plain, err := decryptField("", key)
	require.NoError(t, err)
	assert.Empty(t, plain)
}
