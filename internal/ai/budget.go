package ai

import (
	"fmt"
	"sync"
)

// BudgetChecker checks and records token usage against per-learner budgets.
type BudgetChecker interface {
	// Check returns true if the learner has budget remaining.
	Check(userID string) (bool, error)
	// Record records token usage for a learner.
	Record(userID string, tokens int) error
	// Usage returns current usage and budget for a learner.
	Usage(userID string) (used int64, budget int64, err error)
}

// InMemoryBudget is an in-process budget tracker. Learners without an
// explicit budget get the default; a default of zero means unlimited.
type InMemoryBudget struct {
	mu       sync.RWMutex
	fallback int64
	budgets  map[string]int64 // user -> budget limit
	usage    map[string]int64 // user -> tokens used
}

// NewInMemoryBudget creates a budget tracker with the given default limit.
func NewInMemoryBudget(defaultTokens int64) *InMemoryBudget {
	return &InMemoryBudget{
		fallback: defaultTokens,
		budgets:  make(map[string]int64),
		usage:    make(map[string]int64),
	}
}

// SetBudget sets the token budget for one learner.
func (b *InMemoryBudget) SetBudget(userID string, tokens int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.budgets[userID] = tokens
}

func (b *InMemoryBudget) Check(userID string) (bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	budget := b.limit(userID)
	if budget <= 0 {
		return true, nil
	}
	return b.usage[userID] < budget, nil
}

func (b *InMemoryBudget) Record(userID string, tokens int) error {
	if tokens < 0 {
		return fmt.Errorf("tokens must be non-negative, got %d", tokens)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.usage[userID] += int64(tokens)
	return nil
}

func (b *InMemoryBudget) Usage(userID string) (int64, int64, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.usage[userID], b.limit(userID), nil
}

func (b *InMemoryBudget) limit(userID string) int64 {
	if budget, ok := b.budgets[userID]; ok {
		return budget
	}
	return b.fallback
}
