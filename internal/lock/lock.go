//go:build !deadlock

// Package lock provides the RWMutex used to guard concurrent access to
// mutable state such as the clone package's JunkGuard. In normal builds it is a plain
// sync.RWMutex; built with -tags deadlock it swaps in
// github.com/sasha-s/go-deadlock so that lock-order cycles show up as
// diagnosable panics in local testing instead of silent hangs.
package lock

import "sync"

// RWMutex is a drop-in replacement for sync.RWMutex.
type RWMutex struct {
	mu sync.RWMutex
}

func (l *RWMutex) Lock()          { l.mu.Lock() }
func (l *RWMutex) Unlock()        { l.mu.Unlock() }
func (l *RWMutex) RLock()         { l.mu.RLock() }
func (l *RWMutex) RUnlock()       { l.mu.RUnlock() }
func (l *RWMutex) TryLock() bool  { return l.mu.TryLock() }
func (l *RWMutex) TryRLock() bool { return l.mu.TryRLock() }
