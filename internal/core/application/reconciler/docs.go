// Package reconciler keeps a courier's visible order list in step with the
// shared order store.
//
// A Subscription combines the last authoritative snapshot with the
// courier's own optimistic overlays:
//
//	store push / forced re-fetch ──> mailbox (latest wins) ──> consumer goroutine ──┐
//	                                                                                 ├──> onUpdate
//	Mutate ──> overlay + synchronous onUpdate ──> serial writer ──> store ─────────┘
//
// Snapshots are delivered in revision order and stale ones are dropped. An
// overlay stays in the view until the store acknowledges its write and a
// snapshot carrying that write arrives, or until the write is rejected. Every
// mutation also schedules a forced re-fetch, since push notifications may be
// delayed or coalesced. A failed re-fetch is logged and counted, the view is
// left as it is.
//
// Store writes run on a context detached from the subscription: they are
// not cancelled by Unsubscribe and their Ack is always resolved.
package reconciler
