//go:build deadlock

package lock

import "github.com/sasha-s/go-deadlock"

// RWMutex is github.com/sasha-s/go-deadlock's RWMutex under the deadlock
// build tag: deadlock detection has real overhead, so it is opt-in rather
// than always-on.
type RWMutex struct {
	mu deadlock.RWMutex
}

func (l *RWMutex) Lock()          { l.mu.Lock() }
func (l *RWMutex) Unlock()        { l.mu.Unlock() }
func (l *RWMutex) RLock()         { l.mu.RLock() }
func (l *RWMutex) RUnlock()       { l.mu.RUnlock() }
func (l *RWMutex) TryLock() bool  { return l.mu.TryLock() }
func (l *RWMutex) TryRLock() bool { return l.mu.TryRLock() }
