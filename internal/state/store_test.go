package state

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(t.TempDir())
}

func TestStore_InitCreatesLayout(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	require.NoError(t, s.Init("Build X", "tests pass"))

	assert.True(t, s.Exists())
	assert.Equal(t, filepath.Join(s.Dir(), "logs"), s.LogsDir())
	assert.DirExists(t, s.LogsDir())
	assert.Equal(t, "Build X", s.Goal())
	assert.Equal(t, "tests pass", s.Criteria())
	assert.Equal(t, "", s.Progress())
	assert.Equal(t, "", s.Context())

	st, err := s.LoadState()
	require.NoError(t, err)
	assert.Equal(t, StatusPlanning, st.Status())
	assert.Equal(t, 0, st.SessionCount())
	_, hasPR := st.PRNumber()
	assert.False(t, hasPR)
	assert.NotEmpty(t, st[KeyStartedAt])
	assert.NotEmpty(t, st[KeyUpdatedAt])
}

func TestStore_InitOverwritesPriorContent(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	require.NoError(t, s.Init("first goal", "first criteria"))
	require.NoError(t, s.UpdateState(State{KeyStatus: StatusSuccess, KeySessionCount: 9}))

	require.NoError(t, s.Init("second goal", "second criteria"))

	assert.Equal(t, "second goal", s.Goal())
	st, err := s.LoadState()
	require.NoError(t, err)
	assert.Equal(t, StatusPlanning, st.Status())
	assert.Equal(t, 0, st.SessionCount())
}

func TestStore_ExistsRequiresStateFile(t *testing.T) {
	t.Parallel()

	base := t.TempDir()
	s := NewStore(base)
	assert.False(t, s.Exists())

	// A bare directory without state.json is not initialized.
	require.NoError(t, os.MkdirAll(filepath.Join(base, DirName), 0o755))
	assert.False(t, s.Exists())

	require.NoError(t, s.SaveState(State{KeyStatus: StatusReady}))
	assert.True(t, s.Exists())
}

func TestStore_UpdateStateIsLeftFoldOfMerges(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	require.NoError(t, s.Init("goal", "criteria"))

	require.NoError(t, s.UpdateState(State{KeyStatus: StatusWorking, "custom_key": "kept"}))
	require.NoError(t, s.UpdateState(State{KeyCurrentTask: "add tests"}))
	require.NoError(t, s.UpdateState(State{KeyStatus: StatusReady}))

	st, err := s.LoadState()
	require.NoError(t, err)
	assert.Equal(t, StatusReady, st.Status())
	assert.Equal(t, "add tests", st.CurrentTask())
	assert.Equal(t, "kept", st["custom_key"])
	assert.Equal(t, 0, st.SessionCount())
}

func TestStore_SaveStateStampsUpdatedAt(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	fixed := time.Date(2026, 8, 26, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return fixed }

	require.NoError(t, s.SaveState(State{KeyStatus: StatusReady, KeyUpdatedAt: "stale"}))

	st, err := s.LoadState()
	require.NoError(t, err)
	assert.Equal(t, fixed.Format(time.RFC3339), st[KeyUpdatedAt])

	// The last update wins the stamp.
	later := fixed.Add(time.Hour)
	s.now = func() time.Time { return later }
	require.NoError(t, s.UpdateState(State{KeyCurrentTask: "x"}))

	st, err = s.LoadState()
	require.NoError(t, err)
	assert.Equal(t, later.Format(time.RFC3339), st[KeyUpdatedAt])
}

func TestStore_StateJSONIsPrettyPrintedAndPreservesUnknownKeys(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	require.NoError(t, s.SaveState(State{KeyStatus: StatusWorking, "pr_ready": true}))
	require.NoError(t, s.UpdateState(State{KeySessionCount: 2}))

	data, err := os.ReadFile(filepath.Join(s.Dir(), "state.json"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "\n  \"status\"")
	assert.Contains(t, string(data), "\"pr_ready\": true")
}

func TestStore_LoadStateMissingIsNil(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	st, err := s.LoadState()
	require.NoError(t, err)
	assert.Nil(t, st)
}

func TestStore_AppendOnMissingFileStartsWithNewline(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	require.NoError(t, os.MkdirAll(s.Dir(), 0o755))

	require.NoError(t, s.AppendProgress("first entry"))
	assert.Equal(t, "\nfirst entry", s.Progress())

	require.NoError(t, s.AppendProgress("second entry"))
	assert.Equal(t, "\nfirst entry\nsecond entry", s.Progress())

	require.NoError(t, s.AppendContext("learned something"))
	assert.Equal(t, "\nlearned something", s.Context())
}

func TestStore_SavePlanOverwrites(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	require.NoError(t, os.MkdirAll(s.Dir(), 0o755))

	require.NoError(t, s.SavePlan("## v1"))
	require.NoError(t, s.SavePlan("## v2"))
	assert.Equal(t, "## v2", s.Plan())
}

func TestStore_SessionNumbering(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	require.NoError(t, os.MkdirAll(s.Dir(), 0o755))

	// Empty logs directory (or none at all) starts at 1.
	assert.Equal(t, 1, s.NextSessionNumber())

	require.NoError(t, s.LogSession(1, "one"))
	assert.Equal(t, 2, s.NextSessionNumber())

	got, err := s.ReadSession(1)
	require.NoError(t, err)
	assert.Equal(t, "one", got)

	// Zero padding.
	_, err = os.Stat(filepath.Join(s.Dir(), "logs", "session-001.md"))
	require.NoError(t, err)
}

func TestStore_NextSessionNumberCountsRatherThanMax(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	require.NoError(t, s.LogSession(1, "a"))
	require.NoError(t, s.LogSession(5, "b"))

	// Two records present means next is 3, regardless of suffixes.
	assert.Equal(t, 3, s.NextSessionNumber())
}

func TestStore_SessionNumbersBeyondPaddingGrow(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	require.NoError(t, s.LogSession(1000, "big"))

	_, err := os.Stat(filepath.Join(s.Dir(), "logs", "session-1000.md"))
	require.NoError(t, err)
}

func TestStore_SuccessBlockedOnMissingState(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	assert.False(t, s.Success())
	assert.False(t, s.Blocked())

	_, ok := s.BlockedReason()
	assert.False(t, ok)
}

func TestStore_SuccessBlocked(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	require.NoError(t, s.SaveState(State{KeyStatus: StatusSuccess}))
	assert.True(t, s.Success())
	assert.False(t, s.Blocked())

	require.NoError(t, s.UpdateState(State{KeyStatus: StatusBlocked}))
	assert.False(t, s.Success())
	assert.True(t, s.Blocked())
}

func TestStore_BlockedReasonPrecedence(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)

	require.NoError(t, s.SaveState(State{KeyStatus: StatusBlocked}))
	reason, ok := s.BlockedReason()
	require.True(t, ok)
	assert.Equal(t, DefaultBlockedReason, reason)

	require.NoError(t, s.UpdateState(State{KeyBlockedReason: "CI flaky"}))
	reason, ok = s.BlockedReason()
	require.True(t, ok)
	assert.Equal(t, "CI flaky", reason)

	// notes wins over blocked_reason.
	require.NoError(t, s.UpdateState(State{KeyNotes: "CI failing"}))
	reason, ok = s.BlockedReason()
	require.True(t, ok)
	assert.Equal(t, "CI failing", reason)
}

func TestBuildContext_AllSourcesPresent(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	require.NoError(t, s.Init("Build X", "tests pass"))
	require.NoError(t, s.SavePlan("1. do the thing"))
	require.NoError(t, s.AppendContext("the build is slow"))
	require.NoError(t, s.AppendProgress("did the thing"))
	require.NoError(t, s.UpdateState(State{
		KeyStatus:       StatusWorking,
		KeyCurrentTask:  "wiring",
		KeyPRNumber:     12,
		KeySessionCount: 4,
	}))

	doc := s.BuildContext()

	assert.Contains(t, doc, "# Goal\n\nBuild X")
	assert.Contains(t, doc, "# Success Criteria\n\ntests pass")
	assert.Contains(t, doc, "Phase: working")
	assert.Contains(t, doc, "Current task: wiring")
	assert.Contains(t, doc, "PR: #12")
	assert.Contains(t, doc, "Session: 4")
	assert.Contains(t, doc, "1. do the thing")
	assert.Contains(t, doc, "the build is slow")
	assert.Contains(t, doc, "did the thing")
}

func TestBuildContext_ToleratesEverythingMissing(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	doc := s.BuildContext()

	for _, marker := range []string{
		"# Goal", "# Success Criteria", "# Status", "# Plan", "# Context", "# Progress",
	} {
		assert.Contains(t, doc, marker)
	}
	assert.Contains(t, doc, "Phase: unknown")
	assert.Contains(t, doc, "Current task: none")
	assert.Contains(t, doc, "PR: none")
	assert.Contains(t, doc, "Session: 0")
	assert.Contains(t, doc, "(no plan yet)")
	assert.Contains(t, doc, "(no context yet)")
	assert.Contains(t, doc, "(no progress yet)")
}

func TestState_IntKeyToleratesJSONNumbers(t *testing.T) {
	t.Parallel()

	st := State{KeySessionCount: float64(7), KeyPRNumber: 3}
	assert.Equal(t, 7, st.SessionCount())
	n, ok := st.PRNumber()
	require.True(t, ok)
	assert.Equal(t, 3, n)

	var empty State
	assert.Equal(t, 0, empty.SessionCount())
	assert.Equal(t, "", empty.Status())
	assert.Equal(t, "", empty.CurrentTask())
}
