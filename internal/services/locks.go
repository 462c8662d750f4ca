package services

import (
	"sync"
)

// convLock is one conversation's mutex plus the number of goroutines
// holding or waiting on it.
type convLock struct {
	mu   sync.Mutex
	refs int
}

// ConversationLocks serializes all transitions for one conversation:
// message processing and result reconciliation for the same conversation id
// never run concurrently, while different conversations proceed in parallel.
// Entries are reference-counted and removed once uncontended, so the table
// stays bounded by the number of in-flight conversations.
type ConversationLocks struct {
	mu    sync.Mutex
	locks map[uint]*convLock
}

// NewConversationLocks creates an empty lock table
func NewConversationLocks() *ConversationLocks {
	return &ConversationLocks{locks: make(map[uint]*convLock)}
}

// Lock acquires the exclusive critical section for a conversation
func (c *ConversationLocks) Lock(conversationID uint) {
	c.mu.Lock()
	lock, ok := c.locks[conversationID]
	if !ok {
		lock = &convLock{}
		c.locks[conversationID] = lock
	}
	lock.refs++
	c.mu.Unlock()

	lock.mu.Lock()
}

// Unlock releases the critical section for a conversation, dropping the
// table entry when no other goroutine is waiting on it.
func (c *ConversationLocks) Unlock(conversationID uint) {
	c.mu.Lock()
	lock, ok := c.locks[conversationID]
	if ok {
		lock.refs--
		if lock.refs == 0 {
			delete(c.locks, conversationID)
		}
	}
	c.mu.Unlock()

	if ok {
		lock.mu.Unlock()
	}
}
