package search

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// MaxKeywords caps the keywords used by the hybrid tier.
const MaxKeywords = 5

const minKeywordRunes = 4

var wordPattern = regexp.MustCompile(`[\p{L}\p{N}_]+`)

var stopWords = map[string]struct{}{}

func init() {
	for _, w := range strings.Fields(`the and or but in on at to for of with by is are was were be been
		have has had do does did will would could should may might can cannot not no yes
		this that these those i you he she it we they me him her us them my your his its
		our their a an`) {
		stopWords[w] = struct{}{}
	}
}

// NormalizeText applies NFKC, drops control characters and trims.
func NormalizeText(text string) string {
	normed := norm.NFKC.String(text)
	normed = strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return ' '
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, normed)
	return strings.TrimSpace(normed)
}

// ExtractKeywords returns the first MaxKeywords lower-case words of at least
// four characters that are not stop words, in order of appearance. A repeated
// word takes a slot each time, so a title dominated by one term narrows the
// hybrid filter to that term.
func ExtractKeywords(text string) []string {
	lowered := strings.ToLower(NormalizeText(text))
	var out []string
	for _, word := range wordPattern.FindAllString(lowered, -1) {
		if utf8.RuneCountInString(word) < minKeywordRunes {
			continue
		}
		if _, stop := stopWords[word]; stop {
			continue
		}
		out = append(out, word)
		if len(out) == MaxKeywords {
			break
		}
	}
	return out
}

// containsAny reports whether text contains any keyword, ignoring case.
func containsAny(text string, keywords []string) bool {
	lowered := strings.ToLower(text)
	for _, kw := range keywords {
		if strings.Contains(lowered, kw) {
			return true
		}
	}
	return false
}
