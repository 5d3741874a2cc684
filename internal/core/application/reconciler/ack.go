package reconciler

import "context"

// Ack reports the outcome of the store write behind a mutation.
type Ack struct {
	done     chan struct{}
	revision int64
	err      error
}

func newAck() *Ack {
	return &Ack{done: make(chan struct{})}
}

func (a *Ack) resolve(revision int64, err error) {
	a.revision = revision
	a.err = err
	close(a.done)
}

// Done is closed once the store answered.
func (a *Ack) Done() <-chan struct{} {
	return a.done
}

// Wait blocks until the store answered or ctx ends. It returns the store
// error, e.g. order.NotAvailableError when another courier won the claim.
func (a *Ack) Wait(ctx context.Context) error {
	select {
	case <-a.done:
		return a.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Revision is the store revision of the write. It is 0 until Done is closed
// and when the write failed.
func (a *Ack) Revision() int64 {
	select {
	case <-a.done:
		return a.revision
	default:
		return 0
	}
}
