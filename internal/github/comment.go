package github

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/sebyx07/claude-task-master/internal/textutil"
)

// Severity buckets a review comment by how urgently it needs a response.
type Severity string

const (
	SeverityCritical   Severity = "critical"
	SeverityWarning    Severity = "warning"
	SeverityMajor      Severity = "major"
	SeverityTrivial    Severity = "trivial"
	SeverityRefactor   Severity = "refactor"
	SeverityNitpick    Severity = "nitpick"
	SeveritySuggestion Severity = "suggestion"
	SeverityInfo       Severity = "info"
)

// Actionable reports whether a comment of this severity demands a change
// before merge.
func (s Severity) Actionable() bool {
	return s == SeverityCritical || s == SeverityMajor || s == SeverityWarning
}

// summaryLimit caps the derived one-line summary.
const summaryLimit = 100

// Review-bot tooling emits severity markers in bold, sometimes with a
// leading glyph. Ordered, first match wins.
var (
	criticalPattern = regexp.MustCompile(`\*\*\W*Critical`)
	warningPattern  = regexp.MustCompile(`\*\*\W*Warning`)
	majorPattern    = regexp.MustCompile(`\*\*\W*Major`)
	trivialPattern  = regexp.MustCompile(`(?i)\btrivial\b`)
	refactorPattern = regexp.MustCompile(`(?i)\brefactor`)
	nitpickPattern  = regexp.MustCompile(`(?i)\bnit(pick)?\b`)
	suggestPattern  = regexp.MustCompile(`(?i)\b(suggestion|consider):`)

	boldSpanPattern = regexp.MustCompile(`\*\*([^*]+)\*\*`)
)

// defaultKnownBots are review authors treated as bots even without the
// "[bot]" login suffix.
var defaultKnownBots = []string{
	"coderabbitai",
	"github-actions",
	"dependabot",
	"copilot-pull-request-reviewer",
}

// Comment is one fetched review comment. Severity and Summary are derived
// from the body once and cached on the instance.
type Comment struct {
	ID        string
	Path      string
	Line      int
	StartLine int
	Body      string
	Author    string
	CreatedAt time.Time
	UpdatedAt time.Time
	HTMLURL   string
	Resolved  bool

	derived  bool
	severity Severity
	summary  string
}

// LineRange renders the comment's location as "N" or "start-end".
func (c *Comment) LineRange() string {
	if c.StartLine > 0 && c.StartLine != c.Line {
		return fmt.Sprintf("%d-%d", c.StartLine, c.Line)
	}
	return fmt.Sprintf("%d", c.Line)
}

// Severity classifies the comment body.
func (c *Comment) Severity() Severity {
	c.derive()
	return c.severity
}

// Summary is a one-line digest: the first bolded span if any, otherwise the
// first substantive line, truncated.
func (c *Comment) Summary() string {
	c.derive()
	return c.summary
}

// Actionable reports whether the comment demands a change before merge.
func (c *Comment) Actionable() bool {
	return c.Severity().Actionable()
}

// FromBot reports whether the author looks like automated review tooling.
// known extends the built-in bot list.
func (c *Comment) FromBot(known []string) bool {
	if strings.HasSuffix(c.Author, "[bot]") {
		return true
	}
	author := strings.ToLower(c.Author)
	for _, b := range defaultKnownBots {
		if author == b {
			return true
		}
	}
	for _, b := range known {
		if author == strings.ToLower(b) {
			return true
		}
	}
	return false
}

// FromHuman is the complement of FromBot.
func (c *Comment) FromHuman(known []string) bool {
	return !c.FromBot(known)
}

func (c *Comment) derive() {
	if c.derived {
		return
	}
	c.derived = true
	c.severity = classify(c.Body)
	c.summary = summarize(c.Body)
}

func classify(body string) Severity {
	switch {
	case body == "":
		return SeverityInfo
	case criticalPattern.MatchString(body):
		return SeverityCritical
	case warningPattern.MatchString(body):
		return SeverityWarning
	case majorPattern.MatchString(body):
		return SeverityMajor
	case trivialPattern.MatchString(body):
		return SeverityTrivial
	case refactorPattern.MatchString(body):
		return SeverityRefactor
	case nitpickPattern.MatchString(body):
		return SeverityNitpick
	case suggestPattern.MatchString(body):
		return SeveritySuggestion
	default:
		return SeverityInfo
	}
}

func summarize(body string) string {
	if m := boldSpanPattern.FindStringSubmatch(body); m != nil {
		return textutil.Truncate(strings.TrimSpace(m[1]), summaryLimit)
	}
	for _, line := range strings.Split(body, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || isMetadataLine(line) {
			continue
		}
		return textutil.Truncate(line, summaryLimit)
	}
	return ""
}

// isMetadataLine filters the markup review bots wrap around their prose.
func isMetadataLine(line string) bool {
	return strings.HasPrefix(line, "<!--") ||
		strings.HasPrefix(line, "<") ||
		strings.HasPrefix(line, "---") ||
		strings.HasPrefix(line, "![") ||
		strings.HasPrefix(line, "```")
}
