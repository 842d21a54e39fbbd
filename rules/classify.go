package rules

import (
	"regexp"
	"strconv"
	"strings"
)

// Classified shapes of preparation steps and validation checks
const (
	TypeFormatDate    = "format_date"
	TypeReplaceNull   = "replace_null"
	TypeNotNull       = "not_null"
	TypeMaxDifference = "max_difference"
	TypeCustom        = "custom"
)

const (
	// DefaultDateFormat is used when a date formatting step names no format
	DefaultDateFormat = "YYYY-MM-DD HH:mm:ss"

	// AllDateFields is the field of a date formatting step that targets every date
	AllDateFields = "all_date_fields"
)

// Classification is heuristic matching over Russian free text. Patterns are
// tried in order and the first match wins; anything else falls back to custom.
// Mis-extraction of a field or format is accepted, not an error.

type preparationPattern struct {
	match func(text string) bool
	build func(text string) PreparationAction
}

type checkPattern struct {
	match func(text string) bool
	build func(text string) CheckResult
}

var (
	reFormat  = regexp.MustCompile(`(?i)формат`)
	reDate    = regexp.MustCompile(`(?i)дат`)
	reReplace = regexp.MustCompile(`(?i)замен`)
	reNull    = regexp.MustCompile(`(?i)null`)
	reEmpty   = regexp.MustCompile(`(?i)пуст`)
	reAll     = regexp.MustCompile(`(?i)(?:^|[^\p{L}])вс[её]х?(?:[^\p{L}]|$)`)

	reNamedField = regexp.MustCompile(`(?i)(?:^|[^\p{L}])пол[еяю](?:\s*:\s*|\s+)["«']?([\p{L}\p{N}_.]+)`)
	reReference  = regexp.MustCompile(`[\p{L}_][\p{L}\p{N}_]*\.[\p{L}\p{N}_]+`)

	reDateFormat = regexp.MustCompile(
		`(?:YYYY|YY|MM|DD|HH|hh|mm|ss|ГГГГ|ГГ|ММ|ДД|ЧЧ|мм|сс)(?:[-./: T]*(?:YYYY|YY|MM|DD|HH|hh|mm|ss|ГГГГ|ГГ|ММ|ДД|ЧЧ|мм|сс))+`)

	reQuotedTarget = regexp.MustCompile(`(?i)(?:^|\s)на\s+["«']([^"»']*)["»']`)
	reBareTarget   = regexp.MustCompile(`(?i)(?:^|\s)на\s+([\p{L}\p{N}_.\-]+)`)

	reMustBeFilled = regexp.MustCompile(`(?i)должн\p{L}*\s+быть\s+заполнен`)
	reFilledField  = regexp.MustCompile(`(?i)([\p{L}\p{N}_.]+)\s+должн\p{L}*\s+быть\s+заполнен`)

	reMustNotExceed = regexp.MustCompile(`(?i)(?:^|[^\p{L}])не\s+должн\p{L}*\s+превышать`)
	reBetween       = regexp.MustCompile(`(?i)между\s+["«']?([\p{L}\p{N}_.]+)["»']?\s+и\s+["«']?([\p{L}\p{N}_.]+)`)
	reLimitedField  = regexp.MustCompile(`(?i)([\p{L}\p{N}_.]+)\s+не\s+должн\p{L}*\s+превышать`)
	reLimit         = regexp.MustCompile(`(?i)превышать\s+(\d+)\s*(\p{L}+)?`)
)

var preparationPatterns = []preparationPattern{
	{
		match: func(s string) bool { return reFormat.MatchString(s) && reDate.MatchString(s) },
		build: buildFormatDate,
	},
	{
		match: func(s string) bool { return reReplace.MatchString(s) && reNull.MatchString(s) },
		build: buildReplaceNull,
	},
}

var checkPatterns = []checkPattern{
	{match: reMustBeFilled.MatchString, build: buildNotNull},
	{match: reMustNotExceed.MatchString, build: buildMaxDifference},
}

// ClassifyPreparation turns a free-text preparation step into a typed action
func ClassifyPreparation(text string) PreparationAction {
	for _, p := range preparationPatterns {
		if p.match(text) {
			return p.build(text)
		}
	}
	return PreparationAction{Type: TypeCustom, Description: text}
}

// ClassifyCheck turns a free-text validation check into a typed check
func ClassifyCheck(text string) CheckResult {
	for _, p := range checkPatterns {
		if p.match(text) {
			return p.build(text)
		}
	}
	return CheckResult{Type: TypeCustom, Message: text}
}

func buildFormatDate(text string) PreparationAction {
	action := PreparationAction{
		Type:        TypeFormatDate,
		Format:      DefaultDateFormat,
		Description: text,
	}

	// "ДД.ММ.ГГГГ" would otherwise read as an Alias.Field reference
	rest := text
	if f := reDateFormat.FindString(text); f != "" {
		action.Format = strings.TrimSpace(f)
		rest = strings.Replace(text, f, " ", 1)
	}

	action.Field = extractField(rest)
	if action.Field == "" && reAll.MatchString(rest) {
		action.Field = AllDateFields
	}
	return action
}

func buildReplaceNull(text string) PreparationAction {
	with := ""
	switch {
	case reEmpty.MatchString(text):
	case reQuotedTarget.MatchString(text):
		with = reQuotedTarget.FindStringSubmatch(text)[1]
	case reBareTarget.MatchString(text):
		with = reBareTarget.FindStringSubmatch(text)[1]
	}

	return PreparationAction{
		Type:        TypeReplaceNull,
		Field:       extractField(text),
		ReplaceWith: &with,
		Description: text,
	}
}

// extractField finds the field a step talks about: the word after
// "поле"/"поля"/"полю", else the first Alias.Field reference
func extractField(text string) string {
	if m := reNamedField.FindStringSubmatch(text); m != nil {
		return strings.TrimRight(m[1], ".")
	}
	return reReference.FindString(text)
}

func buildNotNull(text string) CheckResult {
	check := CheckResult{Type: TypeNotNull, Message: text}
	if m := reFilledField.FindStringSubmatch(text); m != nil {
		check.Field = m[1]
	}
	return check
}

func buildMaxDifference(text string) CheckResult {
	check := CheckResult{Type: TypeMaxDifference, Message: text}

	if m := reBetween.FindStringSubmatch(text); m != nil {
		check.Field1, check.Field2 = m[1], m[2]
	} else if m := reLimitedField.FindStringSubmatch(text); m != nil {
		check.Field = m[1]
	}

	if m := reLimit.FindStringSubmatch(text); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			check.MaxValue = &n
		}
		check.Unit = normalizeUnit(m[2])
	}
	return check
}

var unitPrefixes = []struct {
	prefix string
	unit   string
}{
	{"дн", "days"},
	{"ден", "days"},
	{"сут", "days"},
	{"час", "hours"},
	{"мин", "minutes"},
	{"сек", "seconds"},
	{"нед", "weeks"},
	{"мес", "months"},
	{"год", "years"},
	{"лет", "years"},
}

func normalizeUnit(word string) string {
	w := strings.ToLower(word)
	for _, u := range unitPrefixes {
		if strings.HasPrefix(w, u.prefix) {
			return u.unit
		}
	}
	return w
}
