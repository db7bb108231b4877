// Package resolve maps free-text holder names onto canonical institutions.
package resolve

import (
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

var (
	bracketedRe = regexp.MustCompile(`\(.*?\)|\[.*?\]|\{.*?\}`)
	nonWordRe   = regexp.MustCompile(`[^a-z0-9가-힣]+`)

	// Latin legal/business suffixes. Applied after punctuation and spacing
	// are gone, so they match glued onto the end of the name.
	latinSuffixRe = regexp.MustCompile(`(inc|corp|co|ltd|llc|lp|plc|company|holdings|management|asset|advisors|advisor)s?$`)

	// Korean corporate-form and fund suffixes.
	koreanSuffixRe = regexp.MustCompile(`(주식회사|유한회사|재단|재단법인|기금|공단|운용|운용본부)$`)
)

// NormalizeName reduces an organization name to a comparison key:
//  1. NFKC-normalize and case-fold (full-width brackets become ASCII)
//  2. Drop bracketed fragments such as "(주)" or "[Fund]"
//  3. Spell out "&" as "and"
//  4. Remove everything outside a-z, 0-9 and Hangul syllables
//  5. Strip one trailing Latin suffix, then one trailing Korean suffix
//
// Empty input yields an empty key, which never matches.
func NormalizeName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}

	// Casers carry state, so each call gets its own.
	name = cases.Fold().String(norm.NFKC.String(name))
	name = bracketedRe.ReplaceAllString(name, "")
	name = strings.ReplaceAll(name, "&", "and")
	name = nonWordRe.ReplaceAllString(name, "")
	name = latinSuffixRe.ReplaceAllString(name, "")
	name = koreanSuffixRe.ReplaceAllString(name, "")

	return name
}
