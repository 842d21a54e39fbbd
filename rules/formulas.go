package rules

import (
	"regexp"
	"strings"
)

var reFormula = regexp.MustCompile(`['"«]?([\p{L}\p{N}_.?]+)['"»]?\s*[:=]\s*([^,\n]+)`)

// formulaRewrites turns a few Russian phrases into pseudo-SQL tokens.
// "если ... то ... иначе ..." becomes "IF(..., ..., ..." without a closing
// parenthesis; the result is not a valid expression and is not meant to be.
var formulaRewrites = []struct {
	re   *regexp.Regexp
	repl string
}{
	{regexp.MustCompile(`(?i)\s*\+\s*1\s*час\p{L}*`), " + INTERVAL 1 HOUR"},
	{regexp.MustCompile(`(?i)больше\s+(\d+)`), "> ${1}"},
	{regexp.MustCompile(`(?i)если\s+`), "IF("},
	{regexp.MustCompile(`(?i)\s+то\s+`), ", "},
	{regexp.MustCompile(`(?i)\s+иначе\s+`), ", "},
	{regexp.MustCompile(`(?i)разница между`), "DATEDIFF("},
}

var logicPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)IF\s*\(`),
	regexp.MustCompile(`(?i)CASE\s+WHEN`),
	regexp.MustCompile(`(?i)если\s+.+?\s+то\s+`),
	regexp.MustCompile(`ЕСЛИ.+ТО.+ИНАЧЕ`),
	regexp.MustCompile(`(?i)условие\s*=\s*\d+`),
}

// ExtractFormulas scans action details for "name = expression" or
// "name: expression" pairs, each ending at a comma or newline.
// Names containing '=' or '?' are dropped. Returns nil when nothing matched.
func ExtractFormulas(details string) map[string]string {
	var formulas map[string]string

	for _, m := range reFormula.FindAllStringSubmatch(details, -1) {
		field := stripQuotes(m[1])
		expr := stripQuotes(m[2])
		if field == "" || expr == "" || strings.ContainsAny(field, "=?") {
			continue
		}

		for _, rw := range formulaRewrites {
			expr = rw.re.ReplaceAllString(expr, rw.repl)
		}

		if formulas == nil {
			formulas = make(map[string]string)
		}
		formulas[field] = expr
	}

	return formulas
}

// HasConditionalLogic reports whether action details describe a condition
func HasConditionalLogic(details string) bool {
	for _, re := range logicPatterns {
		if re.MatchString(details) {
			return true
		}
	}
	return false
}

func stripQuotes(s string) string {
	s = strings.NewReplacer(`"`, "", `'`, "", "«", "", "»", "").Replace(s)
	return strings.TrimSpace(s)
}
