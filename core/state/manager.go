package state

import (
	"bytes"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/ethereum/go-ethereum/rlp"

	"rwavault/storage"
)

// ErrEntryArchived is returned when a persistent entry is read after its
// retention window lapsed. Extending its TTL restores it.
var ErrEntryArchived = errors.New("state: entry archived")

// Manager layers a write journal over a storage.Database. Mutations stay in
// memory until Commit, which flushes them as a single atomic batch. Snapshots
// mark journal positions so a failed operation can be rolled back without
// touching the backing store.
//
// Manager is not safe for concurrent use; callers serialise operations.
type Manager struct {
	db      storage.Database
	nowFn   func() int64
	policy  TTLPolicy
	dirty   map[string]*pendingEntry
	journal []journalEntry
}

type pendingEntry struct {
	record  *storedEntry
	deleted bool
}

type journalEntry struct {
	key  string
	prev *pendingEntry
}

// storedEntry is the on-disk envelope around every value.
type storedEntry struct {
	Class     uint8
	LiveUntil uint64
	Value     []byte
}

// NewManager creates a state manager over db using the default retention
// policy.
func NewManager(db storage.Database) *Manager {
	return &Manager{
		db:     db,
		nowFn:  func() int64 { return time.Now().Unix() },
		policy: DefaultTTLPolicy(),
		dirty:  make(map[string]*pendingEntry),
	}
}

// SetNowFunc overrides the clock used for retention bookkeeping.
func (m *Manager) SetNowFunc(now func() int64) {
	if now == nil {
		m.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	m.nowFn = now
}

// SetTTLPolicy installs the retention policy applied to persistent entries.
func (m *Manager) SetTTLPolicy(policy TTLPolicy) error {
	if err := policy.Validate(); err != nil {
		return err
	}
	m.policy = policy
	return nil
}

// TTLPolicy returns the active retention policy.
func (m *Manager) TTLPolicy() TTLPolicy { return m.policy }

func (m *Manager) now() int64 {
	if m.nowFn == nil {
		return time.Now().Unix()
	}
	return m.nowFn()
}

func (m *Manager) load(key []byte) (*storedEntry, error) {
	if pending, ok := m.dirty[string(key)]; ok {
		if pending.deleted {
			return nil, nil
		}
		return pending.record, nil
	}
	raw, err := m.db.Get(key)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("state: read %q: %w", key, err)
	}
	record := new(storedEntry)
	if err := rlp.DecodeBytes(raw, record); err != nil {
		return nil, fmt.Errorf("state: decode %q: %w", key, err)
	}
	return record, nil
}

func (m *Manager) stage(key []byte, next *pendingEntry) {
	k := string(key)
	m.journal = append(m.journal, journalEntry{key: k, prev: m.dirty[k]})
	m.dirty[k] = next
}

func (m *Manager) archived(record *storedEntry) bool {
	if record == nil || Retention(record.Class) != RetentionPersistent {
		return false
	}
	return int64(record.LiveUntil) < m.now()
}

// Get decodes the value stored under key into out. The boolean reports
// whether the key exists.
func (m *Manager) Get(key []byte, out interface{}) (bool, error) {
	if len(key) == 0 {
		return false, fmt.Errorf("state: key must not be empty")
	}
	record, err := m.load(key)
	if err != nil {
		return false, err
	}
	if record == nil {
		return false, nil
	}
	if m.archived(record) {
		return false, fmt.Errorf("%w: %q", ErrEntryArchived, key)
	}
	if out == nil {
		return true, nil
	}
	if err := rlp.DecodeBytes(record.Value, out); err != nil {
		return false, fmt.Errorf("state: decode %q: %w", key, err)
	}
	return true, nil
}

// Put stores value under key with the given retention class. Writing a
// persistent entry extends its TTL to the policy target.
func (m *Manager) Put(key []byte, class Retention, value interface{}) error {
	if len(key) == 0 {
		return fmt.Errorf("state: key must not be empty")
	}
	if !class.Valid() {
		return fmt.Errorf("state: invalid retention class %d", class)
	}
	encoded, err := rlp.EncodeToBytes(value)
	if err != nil {
		return fmt.Errorf("state: encode %q: %w", key, err)
	}
	record := &storedEntry{Class: uint8(class), Value: encoded}
	if class == RetentionPersistent {
		existing, err := m.load(key)
		if err != nil {
			return err
		}
		record.LiveUntil = uint64(m.now() + m.policy.ExtendTo)
		if existing != nil && existing.LiveUntil > record.LiveUntil {
			record.LiveUntil = existing.LiveUntil
		}
	}
	m.stage(key, &pendingEntry{record: record})
	return nil
}

// Delete removes key.
func (m *Manager) Delete(key []byte) error {
	if len(key) == 0 {
		return fmt.Errorf("state: key must not be empty")
	}
	m.stage(key, &pendingEntry{deleted: true})
	return nil
}

// LiveUntil reports the expiry of a persistent entry. Instance entries report
// zero.
func (m *Manager) LiveUntil(key []byte) (int64, bool, error) {
	record, err := m.load(key)
	if err != nil || record == nil {
		return 0, false, err
	}
	return int64(record.LiveUntil), true, nil
}

// ExtendTTL bumps a persistent entry to now+ExtendTo when fewer than
// Threshold seconds remain. Archived entries are restored the same way.
// Instance entries and missing keys are left untouched.
func (m *Manager) ExtendTTL(key []byte) (bool, error) {
	record, err := m.load(key)
	if err != nil || record == nil {
		return false, err
	}
	if Retention(record.Class) != RetentionPersistent {
		return false, nil
	}
	now := m.now()
	if int64(record.LiveUntil)-now >= m.policy.Threshold {
		return false, nil
	}
	extended := *record
	extended.Value = append([]byte(nil), record.Value...)
	extended.LiveUntil = uint64(now + m.policy.ExtendTo)
	m.stage(key, &pendingEntry{record: &extended})
	return true, nil
}

// Keys returns every live key (committed or pending) under prefix in
// ascending order, including archived ones.
func (m *Manager) Keys(prefix []byte) ([][]byte, error) {
	seen := make(map[string]struct{})
	err := m.db.Iterate(prefix, func(key, _ []byte) bool {
		seen[string(key)] = struct{}{}
		return true
	})
	if err != nil {
		return nil, fmt.Errorf("state: iterate %q: %w", prefix, err)
	}
	for k, pending := range m.dirty {
		if !bytes.HasPrefix([]byte(k), prefix) {
			continue
		}
		if pending.deleted {
			delete(seen, k)
			continue
		}
		seen[k] = struct{}{}
	}
	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([][]byte, len(keys))
	for i, k := range keys {
		out[i] = []byte(k)
	}
	return out, nil
}

// Snapshot returns an identifier for the current journal position.
func (m *Manager) Snapshot() int { return len(m.journal) }

// RevertToSnapshot undoes every mutation staged after the snapshot.
func (m *Manager) RevertToSnapshot(id int) {
	if id < 0 {
		id = 0
	}
	for i := len(m.journal) - 1; i >= id; i-- {
		entry := m.journal[i]
		if entry.prev == nil {
			delete(m.dirty, entry.key)
		} else {
			m.dirty[entry.key] = entry.prev
		}
	}
	if id < len(m.journal) {
		m.journal = m.journal[:id]
	}
}

// Pending reports the number of staged keys.
func (m *Manager) Pending() int { return len(m.dirty) }

// Commit flushes staged mutations atomically. On failure the staged state is
// kept so the caller can revert it.
func (m *Manager) Commit() error {
	if len(m.dirty) == 0 {
		m.journal = m.journal[:0]
		return nil
	}
	batch := new(storage.Batch)
	keys := make([]string, 0, len(m.dirty))
	for k := range m.dirty {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		pending := m.dirty[k]
		if pending.deleted {
			batch.Delete([]byte(k))
			continue
		}
		encoded, err := rlp.EncodeToBytes(pending.record)
		if err != nil {
			return fmt.Errorf("state: encode envelope %q: %w", k, err)
		}
		batch.Put([]byte(k), encoded)
	}
	if err := m.db.Write(batch); err != nil {
		return fmt.Errorf("state: commit: %w", err)
	}
	m.dirty = make(map[string]*pendingEntry)
	m.journal = m.journal[:0]
	return nil
}

// Discard drops every staged mutation.
func (m *Manager) Discard() {
	m.dirty = make(map[string]*pendingEntry)
	m.journal = m.journal[:0]
}
