// Package state persists harness progress as a directory of plain files so
// a run can be interrupted at any point and resumed later. The layout is
// stable: goal.txt, criteria.txt, plan.md, state.json, progress.md,
// context.md and logs/session-NNN.md transcripts.
package state

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// DirName is the hidden state directory created at the project root.
const DirName = ".task-master"

// DefaultBlockedReason is reported when the agent marked the run blocked
// without recording why.
const DefaultBlockedReason = "No reason recorded"

const (
	goalFile     = "goal.txt"
	criteriaFile = "criteria.txt"
	planFile     = "plan.md"
	stateFile    = "state.json"
	progressFile = "progress.md"
	contextFile  = "context.md"
	logsDir      = "logs"

	sessionPrefix = "session-"
	sessionSuffix = ".md"
)

// Store reads and writes the on-disk state directory for one project.
type Store struct {
	dir string

	// now is swappable for deterministic timestamps in tests.
	now func() time.Time
}

// NewStore creates a Store rooted at basePath; state lives in
// basePath/.task-master.
func NewStore(basePath string) *Store {
	return &Store{
		dir: filepath.Join(basePath, DirName),
		now: time.Now,
	}
}

// Dir returns the state directory path.
func (s *Store) Dir() string {
	return s.dir
}

// LogsDir returns the session log directory path.
func (s *Store) LogsDir() string {
	return filepath.Join(s.dir, logsDir)
}

// Init creates the state directory, writes the goal and criteria files,
// empty progress/context logs, and an initial machine state in the planning
// phase. Re-running replaces prior content; it is not additive.
func (s *Store) Init(goal, criteria string) error {
	if err := os.MkdirAll(filepath.Join(s.dir, logsDir), 0o755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	files := map[string]string{
		goalFile:     goal,
		criteriaFile: criteria,
		progressFile: "",
		contextFile:  "",
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(s.dir, name), []byte(content), 0o644); err != nil {
			return fmt.Errorf("failed to write %s: %w", name, err)
		}
	}

	now := s.now().Format(time.RFC3339)
	return s.SaveState(State{
		KeyStatus:       StatusPlanning,
		KeySessionCount: 0,
		KeyStartedAt:    now,
	})
}

// Exists reports whether the project is initialized: both the directory and
// the machine-state file must be present. A directory without state.json is
// treated as not initialized.
func (s *Store) Exists() bool {
	if info, err := os.Stat(s.dir); err != nil || !info.IsDir() {
		return false
	}
	_, err := os.Stat(filepath.Join(s.dir, stateFile))
	return err == nil
}

// LoadState reads state.json. A missing file returns (nil, nil).
func (s *Store) LoadState() (State, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, stateFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read state file: %w", err)
	}

	var st State
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("failed to parse state file: %w", err)
	}
	return st, nil
}

// SaveState fully replaces state.json with the given fields, always
// restamping updated_at with the current time. Output is pretty-printed so
// the agent (and humans) can read and edit it between invocations.
func (s *Store) SaveState(st State) error {
	if st == nil {
		st = State{}
	}
	st[KeyUpdatedAt] = s.now().Format(time.RFC3339)

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	if err := os.WriteFile(filepath.Join(s.dir, stateFile), data, 0o644); err != nil {
		return fmt.Errorf("failed to write state file: %w", err)
	}
	return nil
}

// UpdateState merges the partial fields into the loaded state (or an empty
// state if none exists) and saves the result. Keys not named in partial are
// preserved.
func (s *Store) UpdateState(partial State) error {
	st, err := s.LoadState()
	if err != nil {
		return err
	}
	if st == nil {
		st = State{}
	}
	for k, v := range partial {
		st[k] = v
	}
	return s.SaveState(st)
}

// Goal returns the stored goal text, or "" when missing.
func (s *Store) Goal() string { return s.readOptional(goalFile) }

// Criteria returns the stored success criteria, or "" when missing.
func (s *Store) Criteria() string { return s.readOptional(criteriaFile) }

// Plan returns the current plan markdown, or "" when missing.
func (s *Store) Plan() string { return s.readOptional(planFile) }

// Progress returns the progress log, or "" when missing.
func (s *Store) Progress() string { return s.readOptional(progressFile) }

// Context returns the accumulated learnings log, or "" when missing.
func (s *Store) Context() string { return s.readOptional(contextFile) }

func (s *Store) readOptional(name string) string {
	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if err != nil {
		return ""
	}
	return string(data)
}

// SavePlan overwrites plan.md.
func (s *Store) SavePlan(text string) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}
	if err := os.WriteFile(filepath.Join(s.dir, planFile), []byte(text), 0o644); err != nil {
		return fmt.Errorf("failed to write plan file: %w", err)
	}
	return nil
}

// AppendProgress adds an entry to the progress log.
func (s *Store) AppendProgress(text string) error {
	return s.appendTo(progressFile, text)
}

// AppendContext adds an entry to the learnings log.
func (s *Store) AppendContext(text string) error {
	return s.appendTo(contextFile, text)
}

// appendTo joins the existing content and the new entry with a newline,
// treating a missing file as empty. The very first append therefore starts
// with a blank line; existing state directories depend on this layout.
func (s *Store) appendTo(name, text string) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}
	existing := s.readOptional(name)
	content := existing + "\n" + text
	if err := os.WriteFile(filepath.Join(s.dir, name), []byte(content), 0o644); err != nil {
		return fmt.Errorf("failed to append to %s: %w", name, err)
	}
	return nil
}

// LogSession writes (or overwrites) the transcript for the given session
// number under logs/. Numbers are zero-padded to three digits; larger
// numbers simply grow.
func (s *Store) LogSession(number int, content string) error {
	dir := filepath.Join(s.dir, logsDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create logs directory: %w", err)
	}

	path := filepath.Join(dir, sessionFileName(number))
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("failed to write session log: %w", err)
	}
	return nil
}

// ReadSession returns the transcript for the given session number.
func (s *Store) ReadSession(number int) (string, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, logsDir, sessionFileName(number)))
	if err != nil {
		return "", fmt.Errorf("failed to read session log: %w", err)
	}
	return string(data), nil
}

// NextSessionNumber returns one more than the count of existing session
// records, or 1 when none exist. Counting (rather than max+1) means manually
// deleted or renumbered logs cause filename reuse on the next write; the
// behavior is kept for compatibility with existing state directories.
func (s *Store) NextSessionNumber() int {
	entries, err := os.ReadDir(filepath.Join(s.dir, logsDir))
	if err != nil {
		return 1
	}

	count := 0
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if strings.HasPrefix(name, sessionPrefix) && strings.HasSuffix(name, sessionSuffix) {
			count++
		}
	}
	return count + 1
}

func sessionFileName(number int) string {
	return fmt.Sprintf("%s%03d%s", sessionPrefix, number, sessionSuffix)
}

// Success reports whether the machine state records a successful run.
// Missing state is simply false, never an error.
func (s *Store) Success() bool {
	st, err := s.LoadState()
	if err != nil {
		return false
	}
	return st.Status() == StatusSuccess
}

// Blocked reports whether the machine state records a blocked run.
// Missing state is simply false, never an error.
func (s *Store) Blocked() bool {
	st, err := s.LoadState()
	if err != nil {
		return false
	}
	return st.Status() == StatusBlocked
}

// BlockedReason returns why the run is blocked: the notes field if present,
// else blocked_reason, else a fixed default. The second return is false when
// no machine state exists at all.
func (s *Store) BlockedReason() (string, bool) {
	st, err := s.LoadState()
	if err != nil || st == nil {
		return "", false
	}
	if notes := st.stringKey(KeyNotes); notes != "" {
		return notes, true
	}
	if reason := st.stringKey(KeyBlockedReason); reason != "" {
		return reason, true
	}
	return DefaultBlockedReason, true
}
