// Package transactions tracks long-running caller operations so they can be
// cancelled by id from another goroutine.
package transactions

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
)

// ErrCancelledByUser is the cancellation cause recorded by Registry.Cancel
var ErrCancelledByUser = errors.New("transaction cancelled")

// Transaction is one cancellable logical operation
type Transaction struct {
	ID     uint64
	ctx    context.Context
	cancel context.CancelCauseFunc
}

// Context is cancelled when the transaction is cancelled or finished
func (t *Transaction) Context() context.Context {
	return t.ctx
}

// Cancelled reports whether the transaction was cancelled through the registry
func (t *Transaction) Cancelled() bool {
	return errors.Is(context.Cause(t.ctx), ErrCancelledByUser)
}

// Registry hands out transaction ids and their cancellation contexts
type Registry struct {
	mu     sync.Mutex
	nextID atomic.Uint64
	active map[uint64]*Transaction
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		active: make(map[uint64]*Transaction),
	}
}

// Begin starts a transaction derived from parent
func (r *Registry) Begin(parent context.Context) *Transaction {
	ctx, cancel := context.WithCancelCause(parent)
	tx := &Transaction{
		ID:     r.nextID.Add(1),
		ctx:    ctx,
		cancel: cancel,
	}

	r.mu.Lock()
	r.active[tx.ID] = tx
	r.mu.Unlock()

	return tx
}

// Cancel cancels an active transaction. It reports whether the id was active.
func (r *Registry) Cancel(id uint64) bool {
	r.mu.Lock()
	tx, ok := r.active[id]
	delete(r.active, id)
	r.mu.Unlock()

	if !ok {
		return false
	}
	tx.cancel(ErrCancelledByUser)
	return true
}

// Finish releases a completed transaction
func (r *Registry) Finish(id uint64) {
	r.mu.Lock()
	tx, ok := r.active[id]
	delete(r.active, id)
	r.mu.Unlock()

	if ok {
		tx.cancel(context.Canceled)
	}
}
