// Package courier holds the identity of the delivery agents that consume the
// order feed: id, display name, upstream approval and the presence flags last
// reported for them.
package courier
