package state

import (
	"crypto/sha256"
	"encoding/base64"
	"sync"
)

// Claim is the owner of an export name within one run.
type Claim struct {
	Folder string
	ID     string
	Hash   string
}

// Tracker remembers which message each export name was written for so a
// different message reusing the name can be reported.
type Tracker interface {
	// Claim records owner for name. It returns the previous owner and true
	// when a different message already holds the name.
	Claim(name string, owner Claim) (Claim, bool)
	Snapshot() Snapshot
}

type Snapshot struct {
	Names      int
	Collisions int
}

// Hash identifies raw message content.
func Hash(raw []byte) string {
	sum := sha256.Sum256(raw)
	return base64.StdEncoding.EncodeToString(sum[:])
}

type MemoryTracker struct {
	mu         sync.RWMutex
	names      map[string]Claim
	collisions int
}

func NewMemoryTracker() *MemoryTracker {
	return &MemoryTracker{names: make(map[string]Claim)}
}

func (m *MemoryTracker) Claim(name string, owner Claim) (Claim, bool) {
	if name == "" {
		return Claim{}, false
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	prev, ok := m.names[name]
	m.names[name] = owner
	if !ok || prev.Hash == owner.Hash {
		return Claim{}, false
	}
	m.collisions++
	return prev, true
}

func (m *MemoryTracker) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Snapshot{Names: len(m.names), Collisions: m.collisions}
}
