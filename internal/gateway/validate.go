// Package gateway runs ad-hoc read-only SQL against the holdings database
// for operators, logging every attempt to sql_editor_logs.
package gateway

import (
	"errors"
	"regexp"
	"strconv"
	"strings"
)

// Row limits applied to every query.
const (
	MinRows     = 1
	MaxRowsCap  = 1000
	DefaultRows = 200
)

// ErrRejected matches every validation failure.
var ErrRejected = errors.New("gateway: query rejected")

// RejectedError explains why a query was refused before execution.
type RejectedError struct {
	Reason string
}

func (e *RejectedError) Error() string { return e.Reason }

// Is reports whether target is ErrRejected.
func (e *RejectedError) Is(target error) bool { return target == ErrRejected }

func reject(reason string) error { return &RejectedError{Reason: reason} }

var (
	leadingRe  = regexp.MustCompile(`^(with|select)\b`)
	trailingRe = regexp.MustCompile(`;\s*$`)
	limitRe    = regexp.MustCompile(`(?i)\blimit\b`)
	blockedRe  = regexp.MustCompile(`(?i)\b(` + strings.Join(blockedKeywords, "|") + `)\b`)
)

var blockedKeywords = []string{
	"insert", "update", "delete", "drop", "alter", "create", "grant", "revoke",
	"truncate", "vacuum", "copy", "call", "execute", "commit", "rollback", "set",
}

// ClampRows bounds a requested row limit; zero or missing uses def.
func ClampRows(requested *int, def int) int {
	n := def
	if requested != nil {
		n = *requested
	}
	return max(MinRows, min(n, MaxRowsCap))
}

// Prepare validates sql and returns the statement to execute: the trailing
// semicolon removed and a LIMIT appended when none is present. maxLen <= 0
// disables the length check.
func Prepare(sql string, maxRows, maxLen int) (string, error) {
	sql = strings.TrimSpace(sql)
	if sql == "" {
		return "", reject("SQL is required")
	}
	if maxLen > 0 && len(sql) > maxLen {
		return "", reject("SQL too long")
	}

	lowered := strings.ToLower(sql)
	if !leadingRe.MatchString(lowered) {
		return "", reject("Only SELECT/CTE queries are allowed")
	}
	if strings.Contains(lowered, ";") && !trailingRe.MatchString(lowered) {
		return "", reject("Multiple statements are not allowed")
	}
	if strings.Count(lowered, ";") > 1 {
		return "", reject("Multiple statements are not allowed")
	}
	if blockedRe.MatchString(lowered) {
		return "", reject("Read-only queries only")
	}

	final := strings.TrimSpace(trailingRe.ReplaceAllString(sql, ""))
	if !limitRe.MatchString(final) {
		final += " limit " + strconv.Itoa(maxRows)
	}
	return final, nil
}
