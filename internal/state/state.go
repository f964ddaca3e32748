// Package state is the runtime device state shared between the app, the
// info screen and the HTTP API.
package state

import (
	"sync"
	"time"
)

type Phase int

const (
	BOOTING Phase = iota
	READY
	ERROR
	STOPPING
)

func (p Phase) String() string {
	switch p {
	case BOOTING:
		return "booting"
	case READY:
		return "ready"
	case ERROR:
		return "error"
	case STOPPING:
		return "stopping"
	}
	return "unknown"
}

func (p Phase) MarshalText() ([]byte, error) { return []byte(p.String()), nil }

type NetworkInfo struct {
	Interface string `json:"interface"`
	IP        string `json:"ip"`
	URL       string `json:"url"`
}

type State struct {
	Phase     Phase       `json:"phase"`
	Version   string      `json:"version"`
	BootTime  time.Time   `json:"boot_time"`
	Network   NetworkInfo `json:"network"`
	LastError string      `json:"last_error,omitempty"`
}

type Store struct {
	mu    sync.RWMutex
	state State
}

func NewStore(version string) *Store {
	return &Store{state: State{Phase: BOOTING, Version: version, BootTime: time.Now()}}
}

func (store *Store) Snapshot() State {
	store.mu.RLock()
	defer store.mu.RUnlock()
	return store.state
}

func (store *Store) SetPhase(phase Phase) {
	store.mu.Lock()
	store.state.Phase = phase
	store.mu.Unlock()
}

// Fail moves to ERROR and keeps the message for the API.
func (store *Store) Fail(err error) {
	store.mu.Lock()
	store.state.Phase = ERROR
	store.state.LastError = err.Error()
	store.mu.Unlock()
}

func (store *Store) UpdateNetwork(network NetworkInfo) {
	store.mu.Lock()
	store.state.Network = network
	store.mu.Unlock()
}

// Uptime is measured from store creation.
func (store *Store) Uptime() time.Duration {
	store.mu.RLock()
	defer store.mu.RUnlock()
	return time.Since(store.state.BootTime)
}
