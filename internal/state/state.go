package state

// Status values for the machine state's "status" key. The agent owns this
// field between invocations and may write values outside this set; the loop
// only gives special meaning to the ones below.
const (
	StatusPlanning = "planning"
	StatusReady    = "ready"
	StatusWorking  = "working"
	StatusBlocked  = "blocked"
	StatusSuccess  = "success"
)

// Machine state keys of interest. Arbitrary additional keys written by the
// agent are preserved across partial updates.
const (
	KeyStatus        = "status"
	KeyCurrentTask   = "current_task"
	KeySessionCount  = "session_count"
	KeyPRNumber      = "pr_number"
	KeyStartedAt     = "started_at"
	KeyUpdatedAt     = "updated_at"
	KeyNotes         = "notes"
	KeyBlockedReason = "blocked_reason"
)

// State is the machine state mapping persisted as state.json. It is kept as
// an open map rather than a struct so that keys the agent invents survive
// load/merge/save cycles untouched.
type State map[string]interface{}

// Status returns the status key, or "" when absent.
func (s State) Status() string {
	return s.stringKey(KeyStatus)
}

// CurrentTask returns the current task description, or "" when absent.
func (s State) CurrentTask() string {
	return s.stringKey(KeyCurrentTask)
}

// SessionCount returns the recorded session count, defaulting to 0.
func (s State) SessionCount() int {
	n, _ := s.intKey(KeySessionCount)
	return n
}

// PRNumber returns the recorded pull request number, if any.
func (s State) PRNumber() (int, bool) {
	return s.intKey(KeyPRNumber)
}

func (s State) stringKey(key string) string {
	if s == nil {
		return ""
	}
	if v, ok := s[key].(string); ok {
		return v
	}
	return ""
}

// intKey tolerates both int and float64 since JSON decoding produces the
// latter for all numbers.
func (s State) intKey(key string) (int, bool) {
	if s == nil {
		return 0, false
	}
	switch v := s[key].(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	default:
		return 0, false
	}
}
