package security

import "regexp"

// PatternFamily identifies which class of attack signature matched an input.
type PatternFamily string

const (
	FamilyNone             PatternFamily = ""
	FamilySQLInjection     PatternFamily = "sql_injection"
	FamilyXSS              PatternFamily = "xss"
	FamilyPathTraversal    PatternFamily = "path_traversal"
	FamilyCommandInjection PatternFamily = "command_injection"
)

var sqlPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(?:union|select|insert|update|delete|drop|create|alter)\b.*\b(?:from|into|table|database)\b`),
	regexp.MustCompile(`(?i)['"]\s*(?:or|and)\s*['"]?\w*['"]?\s*=`),
	regexp.MustCompile(`(?i);\s*(?:drop|delete|update|insert)\b`),
	regexp.MustCompile(`--\s*$`),
	regexp.MustCompile(`/\*.*\*/`),
}

var xssPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)<script[^>]*>?`),
	regexp.MustCompile(`(?i)javascript:`),
	regexp.MustCompile(`(?i)vbscript:`),
	regexp.MustCompile(`(?i)\bon\w+\s*=`),
	regexp.MustCompile(`(?i)<(?:iframe|embed|object)\b`),
	regexp.MustCompile(`(?i)\beval\s*\(`),
	regexp.MustCompile(`(?i)\bexpression\s*\(`),
	regexp.MustCompile(`(?i)data:text/html`),
}

var traversalPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\.\.[/\\]`),
	regexp.MustCompile(`(?i)%2e%2e(?:[/\\]|%2f|%5c)`),
}

// Command/template injection. A bare "&" or "|" is common in free-text
// addresses and notes, so only sequences are matched, never single separators.
var commandPatterns = []*regexp.Regexp{
	regexp.MustCompile("`"),
	regexp.MustCompile(`\$\(`),
	regexp.MustCompile(`\$\{[^}]*\}`),
	regexp.MustCompile(`\{\{[^}]*\}\}`),
	regexp.MustCompile(`(?i)[;|&]\s*(?:rm|cat|wget|curl|sh|bash|nc|chmod|powershell)\b`),
}

var families = []struct {
	family   PatternFamily
	patterns []*regexp.Regexp
}{
	{FamilySQLInjection, sqlPatterns},
	{FamilyXSS, xssPatterns},
	{FamilyPathTraversal, traversalPatterns},
	{FamilyCommandInjection, commandPatterns},
}

// IncidentForFamily maps a matched pattern family onto the incident type the
// auto-healer understands. Traversal and command injection fold into the XSS
// bucket; both carry the same 7-day block.
func IncidentForFamily(family PatternFamily) IncidentType {
	if family == FamilySQLInjection {
		return IncidentSQLInjection
	}
	return IncidentXSSAttempt
}

// DetectAttack scans the input against every attack-signature family in order
// and returns the first family that matches. Callers must scan individual
// user-supplied values, never a raw "&"-joined query string.
func DetectAttack(input string) (PatternFamily, bool) {
	for _, f := range families {
		for _, p := range f.patterns {
			if p.MatchString(input) {
				return f.family, true
			}
		}
	}
	return FamilyNone, false
}
