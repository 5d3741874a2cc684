// Package kernel provides the shared value objects of the dispatch domain.
//
// The package includes:
//   - ID: an opaque, store-assigned identifier for orders and couriers
//   - Money: a non-negative decimal amount used for prices, fees and earnings
//   - Geo: a latitude/longitude pair for customer drop-off points
//
// Values are immutable and safe for concurrent use. ID must be created through
// its constructors; Money and Geo validate their input on construction.
package kernel
