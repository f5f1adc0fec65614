package sandbox

import (
	"fmt"
	"regexp"
	"strings"
)

// Violation is a static-validation rejection. It records the denylisted
// pattern that matched so the caller can tell the learner what tripped.
type Violation struct {
	Pattern string
	Reason  string
}

func (v *Violation) Error() string {
	return fmt.Sprintf("%s: %s", v.Reason, v.Pattern)
}

// deniedModules are modules capable of OS, network, process or serialization
// access. The scan looks for both "import X" and "from X" forms.
var deniedModules = []string{
	"os",
	"sys",
	"subprocess",
	"socket",
	"urllib",
	"requests",
	"ctypes",
	"platform",
	"shutil",
	"pickle",
	"marshal",
	"shelve",
	"dbm",
	"multiprocessing",
	"threading",
}

// deniedCalls are reflection, dynamic-execution and raw-I/O primitives. The
// trailing "(" keeps e.g. "evaluate(" from matching "eval(".
var deniedCalls = []string{
	"__import__",
	"exec(",
	"eval(",
	"compile(",
	"globals(",
	"locals(",
	"vars(",
	"dir(",
	"getattr(",
	"setattr(",
	"delattr(",
	"hasattr(",
	"reload(",
	"execfile(",
	"open(",
	"file(",
	"input(",
	"raw_input(",
}

// alwaysTrueLoop matches a `while True:` / `while 1:` loop header.
var alwaysTrueLoop = regexp.MustCompile(`(?i)^\s*while\s+(true|1)\s*:`)

// Validate scans raw submission source for denylisted lexical patterns and
// returns a Violation describing the first match, or nil if the source is
// clean.
//
// This is a deliberately crude substring scan, not a parse. It will reject
// safe code that merely mentions a pattern inside a string literal — that
// trade (false positives for speed and simplicity) is intentional, because
// this is only the first layer: anything it misses still has to get past the
// restricted namespace and the OS resource ceilings. The scan is
// case-insensitive so trivial case games don't slip through.
func Validate(code string) *Violation {
	lower := strings.ToLower(code)

	for _, mod := range deniedModules {
		for _, pattern := range []string{"import " + mod, "from " + mod} {
			if strings.Contains(lower, pattern) {
				return &Violation{
					Pattern: pattern,
					Reason:  "use of restricted module",
				}
			}
		}
	}

	for _, pattern := range deniedCalls {
		if strings.Contains(lower, pattern) {
			return &Violation{
				Pattern: pattern,
				Reason:  "use of restricted function",
			}
		}
	}

	// Infinite-loop heuristic: an always-true loop with no `break` token
	// anywhere in the submission is almost certainly a hang. A `break` in an
	// unrelated scope still counts as present — the heuristic is knowingly
	// incomplete in both directions, and the CPU/wall-clock ceilings remain
	// the authoritative backstop for anything it misses.
	if !strings.Contains(lower, "break") {
		for _, line := range strings.Split(lower, "\n") {
			if alwaysTrueLoop.MatchString(line) {
				return &Violation{
					Pattern: strings.TrimSpace(line),
					Reason:  "probable infinite loop",
				}
			}
		}
	}

	return nil
}
