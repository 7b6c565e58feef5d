package pipeline

import (
	"fmt"
	"regexp"
	"strings"

	pipelineerrors "github.com/youthlab/policyrag/errors"
	"github.com/youthlab/policyrag/policy"
)

// The guard sits between query synthesis and execution. The synthesis prompt
// already instructs the model to emit a single SELECT, but prompt text is not
// an enforcement mechanism; every statement passes through here before it
// reaches the database.

var forbiddenKeywords = regexp.MustCompile(`(?i)\b(insert|update|delete|drop|alter|truncate|create|grant|revoke|copy|vacuum|comment|do|call|execute|merge|set|reset|listen|notify|prepare|deallocate|lock)\b`)

var fromOrJoin = regexp.MustCompile(`(?i)\b(?:from|join)\b`)

// clauseKeywords terminate a FROM item list. Join variants appear here too;
// each JOIN keyword starts its own scan.
var clauseKeywords = map[string]bool{
	"where": true, "group": true, "order": true, "limit": true,
	"having": true, "window": true, "union": true, "intersect": true,
	"except": true, "on": true, "using": true, "join": true,
	"left": true, "right": true, "inner": true, "outer": true,
	"cross": true, "natural": true, "full": true, "fetch": true,
	"offset": true, "for": true,
}

// validateQuery rejects anything that is not one read-only statement over the
// known policy tables. Returns nil for an acceptable statement.
func validateQuery(sql string) error {
	trimmed := strings.TrimSpace(sql)
	if trimmed == "" {
		return fmt.Errorf("%w: empty statement", pipelineerrors.ErrUnsafeQuery)
	}

	// One statement only. A single trailing semicolon is tolerated.
	body := strings.TrimSuffix(trimmed, ";")
	if strings.Contains(body, ";") {
		return fmt.Errorf("%w: multiple statements", pipelineerrors.ErrUnsafeQuery)
	}

	upper := strings.ToUpper(body)
	if !strings.HasPrefix(upper, "SELECT") && !strings.HasPrefix(upper, "WITH") {
		return fmt.Errorf("%w: only SELECT statements are allowed", pipelineerrors.ErrUnsafeQuery)
	}

	if match := forbiddenKeywords.FindString(body); match != "" {
		return fmt.Errorf("%w: forbidden keyword %q", pipelineerrors.ErrUnsafeQuery, strings.ToUpper(match))
	}

	return validateTableRefs(body)
}

// validateTableRefs checks that every FROM/JOIN target is a known policy
// table or a CTE defined in the statement itself. Every occurrence of FROM
// and JOIN starts a scan over the comma-separated item list that follows, so
// a second table smuggled in as "FROM policies, auth_user" is seen too.
func validateTableRefs(body string) error {
	ctes := cteNames(body)

	for _, loc := range fromOrJoin.FindAllStringIndex(body, -1) {
		if err := checkTableList(body, loc[1], ctes); err != nil {
			return err
		}
	}
	return nil
}

// checkTableList walks the item list starting at pos: the first identifier of
// each comma-separated item is a table reference, the rest are aliases. A
// parenthesized item is a subquery; its inner FROM is matched on its own.
func checkTableList(body string, pos int, ctes map[string]bool) error {
	expectTable := true
	i := pos
	for i < len(body) {
		switch c := body[i]; {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
		case c == ',':
			expectTable = true
			i++
		case c == '(':
			i = skipParens(body, i)
			expectTable = false
		case c == '"' || isIdentStart(c):
			name, quoted, next := readQualifiedIdent(body, i)
			lower := strings.ToLower(name)
			if !quoted && clauseKeywords[lower] {
				return nil
			}
			if expectTable {
				if err := checkTableName(lower, ctes); err != nil {
					return err
				}
				expectTable = false
			}
			i = next
		default:
			return nil
		}
	}
	return nil
}

func checkTableName(name string, ctes map[string]bool) error {
	if ctes[name] {
		return nil
	}
	for _, t := range policy.KnownTables {
		if name == t {
			return nil
		}
	}
	return fmt.Errorf("%w: unknown table %q", pipelineerrors.ErrUnsafeQuery, name)
}

// readQualifiedIdent reads a possibly schema-qualified, possibly quoted
// identifier and returns its last segment, whether any segment was quoted,
// and the index past the identifier.
func readQualifiedIdent(s string, i int) (string, bool, int) {
	var last string
	quoted := false
	for i < len(s) {
		if s[i] == '"' {
			j := i + 1
			for j < len(s) && s[j] != '"' {
				j++
			}
			last = s[i+1 : j]
			quoted = true
			i = j
			if i < len(s) {
				i++
			}
		} else {
			j := i
			for j < len(s) && isIdentChar(s[j]) {
				j++
			}
			last = s[i:j]
			i = j
		}
		if i < len(s) && s[i] == '.' {
			i++
			continue
		}
		break
	}
	return last, quoted, i
}

func skipParens(s string, i int) int {
	depth := 0
	for ; i < len(s); i++ {
		switch s[i] {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return i + 1
			}
		}
	}
	return i
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentChar(c byte) bool {
	return isIdentStart(c) || c == '$' || (c >= '0' && c <= '9')
}

var ctePattern = regexp.MustCompile(`(?i)(?:\bwith\s+|,\s*)([a-zA-Z_][a-zA-Z0-9_]*)\s+as\s*\(`)

func cteNames(body string) map[string]bool {
	names := make(map[string]bool)
	for _, match := range ctePattern.FindAllStringSubmatch(body, -1) {
		names[strings.ToLower(match[1])] = true
	}
	return names
}
