package trace

// TraceLevel controls the verbosity of transaction tracing.
type TraceLevel string

const (
	// TraceLevelNone disables tracing (zero overhead).
	TraceLevelNone TraceLevel = "none"
	// TraceLevelTransactions captures every state-store call.
	TraceLevelTransactions TraceLevel = "transactions"
)

// validTraceLevels maps accepted trace level strings.
var validTraceLevels = map[TraceLevel]bool{
	TraceLevelNone:         true,
	TraceLevelTransactions: true,
	"":                     true, // empty defaults to none
}

// IsValidTraceLevel returns true if the given level string is a recognized trace level.
func IsValidTraceLevel(level string) bool {
	return validTraceLevels[TraceLevel(level)]
}

// Recorder collects transaction records during a sampler run.
// A nil *Recorder accepts and drops every record.
type Recorder struct {
	Level   TraceLevel
	Records []TransactionRecord
}

// NewRecorder creates a Recorder ready for recording.
func NewRecorder(level TraceLevel) *Recorder {
	return &Recorder{
		Level:   level,
		Records: make([]TransactionRecord, 0),
	}
}

// Record appends a transaction record.
func (r *Recorder) Record(record TransactionRecord) {
	if r == nil || r.Level == TraceLevelNone || r.Level == "" {
		return
	}
	r.Records = append(r.Records, record)
}
