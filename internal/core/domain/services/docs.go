// Package services provides the stateless domain services of the dispatch
// core. They work on order snapshots and never talk to a store.
//
// The package includes:
//   - AssignmentFilter: decides which orders a courier may see and in which order
//   - TransitionEngine: validates claims, status steps and delivery confirmation,
//     producing the patch to write
//   - EarningsAggregator: sums delivery fees of delivered orders per day, ISO
//     week and month
//
// All services are value types without dependencies other than a clock and
// are safe for concurrent use.
package services
