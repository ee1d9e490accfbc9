package hph

import (
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/inference-sim/hawkes/hph/trace"
)

// Transaction protocol
//
// The host sampler drives the engine through
//
//	StoreState → UpdateLocations / SetParameters → evaluate → AcceptState | RestoreState
//
// updatedIndex tracks the single location changed since the last snapshot
// (-1 when none). A full update, or a second distinct single-index update,
// sets fullRecompute instead. StoreState, AcceptState and RestoreState reset
// both; AcceptState before any StoreState is a no-op and leaves them pending.

// UpdateLocations copies data into the active generation. index ==
// AllLocations replaces all N·D coordinates; otherwise data holds the D
// coordinates of point index.
func (e *Engine) UpdateLocations(index int, data []float64) error {
	current := e.locations.current()

	if index == AllLocations {
		if len(data) != e.n*e.dim {
			return errors.Wrapf(ErrLengthMismatch, "locations: got %d values, want %d (N·D)", len(data), e.n*e.dim)
		}
		copy(current, data)
		for i := range e.assigned {
			e.assigned[i] = true
		}
		e.assignedCount = e.n
		e.updatedIndex = -1
		e.fullRecompute = true
		if e.pairs != nil {
			e.pairs.invalidate()
		}
		e.record(trace.OpUpdate, -1, false)
		return nil
	}

	if index < 0 || index >= e.n {
		return errors.Wrapf(ErrIndexOutOfRange, "location index %d not in [0, %d)", index, e.n)
	}
	if len(data) != e.dim {
		return errors.Wrapf(ErrLengthMismatch, "location %d: got %d values, want %d (D)", index, len(data), e.dim)
	}
	copy(current[index*e.dim:(index+1)*e.dim], data)
	if !e.assigned[index] {
		e.assigned[index] = true
		e.assignedCount++
	}

	switch {
	case e.fullRecompute:
	case e.updatedIndex == -1 || e.updatedIndex == index:
		e.updatedIndex = index
	default:
		e.log.WithFields(logrus.Fields{"previous": e.updatedIndex, "index": index}).
			Debug("more than one location updated, falling back to full recomputation")
		e.updatedIndex = -1
		e.fullRecompute = true
	}
	if e.pairs != nil {
		e.pairs.touch(index)
	}
	e.record(trace.OpUpdate, index, false)
	return nil
}

// StoreState snapshots the parameters, the last log-likelihood with its
// per-event terms, and the active location generation as the rollback
// reference.
func (e *Engine) StoreState() {
	e.storedParams = e.params
	e.storedSumOfLikContribs = e.sumOfLikContribs
	copy(e.storedTerms, e.terms)
	e.locations.snapshot()
	if e.pairs != nil {
		e.pairs.markReference(e.live())
	}
	e.hasSnapshot = true
	e.updatedIndex = -1
	e.fullRecompute = false

	e.metrics.transaction(string(trace.OpStore))
	e.record(trace.OpStore, -1, false)
}

// RestoreState rolls back to the last snapshot: the staged location
// generation becomes active again and parameters, log-likelihood and
// per-event terms revert to their stored values.
func (e *Engine) RestoreState() {
	restored := e.updatedIndex

	e.params = e.storedParams
	e.sumOfLikContribs = e.storedSumOfLikContribs
	e.terms, e.storedTerms = e.storedTerms, e.terms
	e.locations.flip()

	if e.pairs != nil {
		switch {
		case !e.hasSnapshot || !e.pairs.referenced || e.fullRecompute:
			e.pairs.invalidate()
		case e.updatedIndex >= 0:
			e.pairs.revertRow(e.updatedIndex)
		}
		// The staged generation now holds the rejected proposal, which the
		// columns do not describe; a second restore must refill.
		e.pairs.referenced = false
	}
	e.updatedIndex = -1
	e.fullRecompute = false

	e.log.WithField("active", e.locations.activeName()).Debug("state restored")
	e.metrics.transaction(string(trace.OpRestore))
	e.record(trace.OpRestore, restored, false)
}

// AcceptState commits the proposal evaluated since the last snapshot. When
// exactly one location changed, the pairwise cache row of that location is
// mirrored into its column so the matrix is symmetric again.
func (e *Engine) AcceptState() {
	if !e.hasSnapshot {
		return
	}

	accepted := e.updatedIndex
	var mirrored bool
	if e.pairs != nil {
		if e.updatedIndex >= 0 {
			e.pairs.refresh(e.live())
			mirrored = e.pairs.mirror()
		}
		// The matrix now reflects the accepted proposal, not the snapshot.
		e.pairs.referenced = false
	}
	e.updatedIndex = -1
	e.fullRecompute = false

	e.metrics.transaction(string(trace.OpAccept))
	e.record(trace.OpAccept, accepted, mirrored)
}

// MakeDirty discards every cached quantity so the next evaluation starts
// from scratch.
func (e *Engine) MakeDirty() {
	if e.pairs != nil {
		e.pairs.invalidate()
	}
	e.updatedIndex = -1
	e.fullRecompute = true
}

// UpdatedIndex returns the single location changed since the last snapshot,
// or -1 when none (or more than one) changed.
func (e *Engine) UpdatedIndex() int { return e.updatedIndex }

func (e *Engine) record(op trace.Op, index int, mirrored bool) {
	e.recorder.Record(trace.TransactionRecord{
		Op:            op,
		UpdatedIndex:  index,
		LogLikelihood: e.sumOfLikContribs,
		Mirrored:      mirrored,
	})
}
