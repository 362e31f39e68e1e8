package answer

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

var (
	reminderLineRe = regexp.MustCompile(`(?im)^[ \t]*(\*\*|__)?[ \t]*important\s+reminder[ \t]*:.*$`)
	sourcesLineRe  = regexp.MustCompile(`(?im)^[ \t]*(\*\*|__)?[ \t]*sources?[ \t]*:.*$`)
	fileBulletRe   = regexp.MustCompile(`(?im)^[ \t]*-[ \t].*\.pdf.*$`)
	disclaimerRe   = regexp.MustCompile(`(?i)(for\s+educational\s+purposes\s+only|not\s+a\s+substitute\s+for\s+professional\s+(medical\s+)?advice|consult\s+with\s+a\s+qualified\s+(healthcare\s+)?(provider|professional))[^.\n]*\.?`)
	boldRe         = regexp.MustCompile(`\*\*(.*?)\*\*`)
	underBoldRe    = regexp.MustCompile(`__(.*?)__`)
	italicRe       = regexp.MustCompile(`\*([^*\n]+)\*`)
	glyphBulletRe  = regexp.MustCompile(`(?m)^[ \t]*[•▪●·][ \t]+`)
	starBulletRe   = regexp.MustCompile(`(?m)^[ \t]*\*[ \t]+`)
	manyNewlinesRe = regexp.MustCompile(`\n{3,}`)

	strayEmphasisRe = regexp.MustCompile(`\*\*|__`)
	spaceRunRe      = regexp.MustCompile(`[ \t]{2,}`)
	spaceBeforeRe   = regexp.MustCompile(`[ \t]+([,.;:!?])`)
	emptyParensRe   = regexp.MustCompile(`\(\s+\)`)
)

// Clean strips boilerplate from one model fragment. Leading and trailing
// whitespace of the fragment is kept so stitching can see word breaks.
func Clean(fragment string) string {
	core := strings.TrimSpace(fragment)
	if core == "" {
		return fragment
	}
	lead := fragment[:strings.Index(fragment, core)]
	trail := fragment[len(lead)+len(core):]

	t := reminderLineRe.ReplaceAllString(core, "")
	t = sourcesLineRe.ReplaceAllString(t, "")
	t = fileBulletRe.ReplaceAllString(t, "")
	t = disclaimerRe.ReplaceAllString(t, "")
	t = boldRe.ReplaceAllString(t, "$1")
	t = underBoldRe.ReplaceAllString(t, "$1")
	t = starBulletRe.ReplaceAllString(t, "- ")
	t = italicRe.ReplaceAllString(t, "$1")
	t = glyphBulletRe.ReplaceAllString(t, "- ")
	t = manyNewlinesRe.ReplaceAllString(t, "\n\n")
	t = strings.TrimSpace(t)
	if t == "" {
		return ""
	}
	return lead + t + trail
}

// Stitch appends fragment to acc. A space is inserted only between two
// alphanumeric characters, and not when acc ends in a lone letter that the
// fragment continues in lowercase ("P" + "neumonia").
func Stitch(acc, fragment string) string {
	if acc == "" || fragment == "" {
		return acc + fragment
	}
	last, _ := utf8.DecodeLastRuneInString(acc)
	first, _ := utf8.DecodeRuneInString(fragment)
	if !isAlnum(last) || !isAlnum(first) {
		return acc + fragment
	}
	if unicode.IsLower(first) && singleLetterTail(acc) {
		return acc + fragment
	}
	return acc + " " + fragment
}

func isAlnum(r rune) bool { return unicode.IsLetter(r) || unicode.IsDigit(r) }

func singleLetterTail(s string) bool {
	tail := s
	if i := strings.LastIndexFunc(s, func(r rune) bool { return !isAlnum(r) }); i >= 0 {
		_, size := utf8.DecodeRuneInString(s[i:])
		tail = s[i+size:]
	}
	r, size := utf8.DecodeRuneInString(tail)
	return size == len(tail) && unicode.IsLetter(r)
}

// abbreviations never end a sentence.
var abbreviations = map[string]bool{
	"mr.": true, "mrs.": true, "ms.": true, "dr.": true, "prof.": true,
	"sr.": true, "jr.": true, "vs.": true, "etc.": true, "e.g.": true,
	"i.e.": true, "inc.": true, "ltd.": true, "co.": true, "dept.": true,
	"univ.": true, "st.": true, "no.": true, "fig.": true, "approx.": true,
}

const (
	sentenceWindow = 220
	fallbackRatio  = 0.6
)

// Trim cuts t to at most limit runes on the cleanest boundary available:
// the last sentence end in the final stretch of the window, then the last
// newline or space past 60% of the limit.
func Trim(t string, limit int) string {
	r := []rune(t)
	if limit <= 0 || len(r) <= limit {
		return t
	}
	snippet := r[:limit]

	for i := len(snippet) - 1; i >= max(0, limit-sentenceWindow); i-- {
		if !isTerminal(snippet[i]) {
			continue
		}
		var next rune = ' '
		if i+1 < len(r) {
			next = r[i+1]
		}
		if !unicode.IsSpace(next) {
			continue
		}
		if snippet[i] == '.' && isAbbreviation(snippet[:i+1]) {
			continue
		}
		return strings.TrimRightFunc(string(snippet[:i+1]), unicode.IsSpace)
	}

	floor := int(float64(limit) * fallbackRatio)
	for _, sep := range []rune{'\n', ' '} {
		if idx := lastIndex(snippet, sep); idx > floor {
			return stripDangling(string(snippet[:idx]))
		}
	}
	return stripDangling(string(snippet))
}

func isTerminal(r rune) bool { return r == '.' || r == '!' || r == '?' }

// isAbbreviation reports whether s ends with a known abbreviation token.
func isAbbreviation(s []rune) bool {
	start := len(s)
	for start > 0 && !unicode.IsSpace(s[start-1]) {
		start--
	}
	word := strings.ToLower(strings.TrimLeft(string(s[start:]), "(\"'"))
	return abbreviations[word]
}

func lastIndex(r []rune, sep rune) int {
	for i := len(r) - 1; i >= 0; i-- {
		if r[i] == sep {
			return i
		}
	}
	return -1
}

func stripDangling(s string) string {
	s = strings.TrimRightFunc(s, unicode.IsSpace)
	for s != "" && strings.ContainsRune(":,(", rune(s[len(s)-1])) {
		s = strings.TrimRightFunc(s[:len(s)-1], unicode.IsSpace)
	}
	return s
}

// Tidy removes leftover emphasis markers and normalizes spacing while
// keeping line structure.
func Tidy(t string) string {
	t = strayEmphasisRe.ReplaceAllString(t, "")
	t = spaceBeforeRe.ReplaceAllString(t, "$1")
	t = emptyParensRe.ReplaceAllString(t, "()")
	t = spaceRunRe.ReplaceAllString(t, " ")
	t = manyNewlinesRe.ReplaceAllString(t, "\n\n")
	return strings.TrimSpace(t)
}

// EnsureTerminal makes t end in sentence punctuation without exceeding
// limit runes when limit is positive.
func EnsureTerminal(t string, limit int) string {
	t = stripDangling(t)
	if t == "" {
		return t
	}
	last, _ := utf8.DecodeLastRuneInString(t)
	if isTerminal(last) {
		return t
	}
	if limit > 0 && utf8.RuneCountInString(t) >= limit {
		r := []rune(t)
		t = stripDangling(string(r[:limit-1]))
	}
	return t + "."
}
