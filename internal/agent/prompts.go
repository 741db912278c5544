package agent

import (
	"fmt"
	"strings"

	"github.com/sebyx07/claude-task-master/internal/textutil"
)

// conventionsLimit caps how much of the project's CLAUDE.md is inlined into
// the planning prompt.
const conventionsLimit = 4000

// PlanningPrompt asks the agent to break the goal into a plan and prime the
// state directory. conventions, when non-empty, carries the repository's
// CLAUDE.md so the plan follows local practice.
func PlanningPrompt(goal, conventions string) string {
	var b strings.Builder
	b.WriteString("You are starting work on a new goal. Before writing any code, produce a plan.\n\n")
	fmt.Fprintf(&b, "GOAL:\n%s\n\n", goal)
	if conventions != "" {
		fmt.Fprintf(&b, "PROJECT CONVENTIONS (from CLAUDE.md):\n%s\n\n", textutil.Truncate(conventions, conventionsLimit))
	}
	b.WriteString(`Do the following:
1. Explore the repository enough to understand its structure and current state.
2. Write a concrete, ordered task breakdown to .task-master/plan.md. Each task
   should be small enough to finish in a single working session.
3. Record anything future sessions must know (commands, gotchas, layout) in
   .task-master/context.md.
4. Update .task-master/state.json: set "status" to "ready" and "current_task"
   to the first task from the plan. Keep the file valid JSON and preserve any
   keys already present.

Do not start implementing tasks yet. Planning only.
`)
	return b.String()
}

// WorkPrompt asks the agent to execute the next task. contextDoc is the
// assembled state-directory snapshot from state.BuildContext.
func WorkPrompt(contextDoc string, autoMerge bool) string {
	var b strings.Builder
	b.WriteString("You are continuing work on an ongoing goal. Current state:\n\n")
	b.WriteString(contextDoc)
	b.WriteString(`

Do the following:
1. Pick the next incomplete task from the plan and complete it fully,
   including tests where the change warrants them.
2. Append a short dated entry describing what you did to
   .task-master/progress.md.
3. Record any new learnings future sessions need in .task-master/context.md.
4. Update .task-master/state.json: keep "current_task" accurate, record
   "pr_number" if you opened a pull request, and preserve existing keys.
5. If every success criterion is met, set "status" to "success". If you are
   stuck and cannot proceed, set "status" to "blocked" and explain why in
   "notes". Otherwise leave the status as "working".
`)
	if autoMerge {
		b.WriteString("6. If an open pull request for this work has all checks passing and no\n" +
			"   unresolved review threads, merge it before finishing the session.\n")
	}
	return b.String()
}
