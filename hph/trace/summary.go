package trace

// TraceSummary aggregates statistics from a Recorder.
type TraceSummary struct {
	TotalCalls         int
	Stores             int
	Accepts            int
	Restores           int
	SingleIndexUpdates int
	FullUpdates        int
	MirroredAccepts    int
	AcceptanceRate     float64     // accepts / (accepts + restores); 0 when neither occurred
	UpdatesByIndex     map[int]int // location index → count of single-point updates
}

// Summarize computes aggregate statistics from a Recorder.
// Safe for nil or empty recorders (returns zero-value fields).
func Summarize(r *Recorder) *TraceSummary {
	summary := &TraceSummary{
		UpdatesByIndex: make(map[int]int),
	}
	if r == nil {
		return summary
	}

	summary.TotalCalls = len(r.Records)
	for _, rec := range r.Records {
		switch rec.Op {
		case OpStore:
			summary.Stores++
		case OpAccept:
			summary.Accepts++
			if rec.Mirrored {
				summary.MirroredAccepts++
			}
		case OpRestore:
			summary.Restores++
		case OpUpdate:
			if rec.UpdatedIndex < 0 {
				summary.FullUpdates++
			} else {
				summary.SingleIndexUpdates++
				summary.UpdatesByIndex[rec.UpdatedIndex]++
			}
		}
	}

	if decided := summary.Accepts + summary.Restores; decided > 0 {
		summary.AcceptanceRate = float64(summary.Accepts) / float64(decided)
	}
	return summary
}
