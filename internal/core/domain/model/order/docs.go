// Package order holds the Order aggregate of the dispatch core together with
// its status machine.
//
// The package includes:
//   - Order: an order record with its money, customer and assignment fields
//   - Status: the lifecycle states and the table of legal forward steps
//   - Patch: a partial update guarded by a compare-and-set Precondition
//   - NotAvailableError, IllegalTransitionError, CodeMismatchError
//
// Key business rules:
//   - The courier-driven path is Accepted -> OnTheWayToStore -> ArrivedAtStore ->
//     PickingUpOrder -> OnTheWayToCustomer -> Delivered
//   - ManualAssigned offers leave their status only through a claim
//   - Delivered and Cancelled records are frozen
//
// Orders are mutated through Apply only. The same method is used for
// optimistic local overlays and inside store adapters, so both sides agree on
// what a patch means.
package order
