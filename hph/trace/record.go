// Package trace records the transaction calls a host sampler makes against
// an engine (location updates, store, accept, restore) for later analysis.
// This package has no dependencies on hph/; it stores pure data types.
package trace

// Op names one state-store call.
type Op string

const (
	OpUpdate  Op = "update"
	OpStore   Op = "store"
	OpAccept  Op = "accept"
	OpRestore Op = "restore"
)

// TransactionRecord captures a single state-store call.
type TransactionRecord struct {
	Op            Op
	UpdatedIndex  int     // location index for single-point updates, -1 otherwise
	LogLikelihood float64 // last evaluated log-likelihood at the time of the call
	Mirrored      bool    // accept reconciled the pairwise cache for UpdatedIndex
}
