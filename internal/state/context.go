package state

import (
	"fmt"
	"strings"
)

// Placeholders substituted when a context source is absent.
const (
	placeholderGoal     = "(not set)"
	placeholderCriteria = "(not set)"
	placeholderPlan     = "(no plan yet)"
	placeholderContext  = "(no context yet)"
	placeholderProgress = "(no progress yet)"
)

// BuildContext assembles the single document handed to the agent before
// each work session: goal, success criteria, a status summary, the current
// plan, accumulated learnings and the progress log. Every underlying file
// or state field may be absent; defined placeholders are substituted so the
// document shape is always the same.
func (s *Store) BuildContext() string {
	st, _ := s.LoadState()

	phase := "unknown"
	if status := st.Status(); status != "" {
		phase = status
	}

	task := st.CurrentTask()
	if task == "" {
		task = "none"
	}

	pr := "none"
	if n, ok := st.PRNumber(); ok {
		pr = fmt.Sprintf("#%d", n)
	}

	var sb strings.Builder
	section := func(title, body, placeholder string) {
		sb.WriteString("# ")
		sb.WriteString(title)
		sb.WriteString("\n\n")
		if strings.TrimSpace(body) == "" {
			body = placeholder
		}
		sb.WriteString(strings.TrimRight(body, "\n"))
		sb.WriteString("\n\n")
	}

	section("Goal", s.Goal(), placeholderGoal)
	section("Success Criteria", s.Criteria(), placeholderCriteria)

	status := fmt.Sprintf("Phase: %s\nCurrent task: %s\nPR: %s\nSession: %d",
		phase, task, pr, st.SessionCount())
	section("Status", status, "")

	section("Plan", s.Plan(), placeholderPlan)
	section("Context", s.Context(), placeholderContext)
	section("Progress", s.Progress(), placeholderProgress)

	return strings.TrimRight(sb.String(), "\n") + "\n"
}
