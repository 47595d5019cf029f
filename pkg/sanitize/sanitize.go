package sanitize

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

var (
	scriptRegex = regexp.MustCompile(`(?is)<script[^>]*>.*?</script>`)
	styleRegex  = regexp.MustCompile(`(?is)<style[^>]*>.*?</style>`)
	htmlRegex   = regexp.MustCompile(`<[^>]*>`)
	spaceRegex  = regexp.MustCompile(`[ \t]+`)
)

// SanitizeText prepares free-form profile text for the interviewer prompt:
// markup and control characters are removed, runs of blanks collapse and the
// result is cut to maxRunes (0 means unlimited).
func SanitizeText(input string, maxRunes int) string {
	input = SanitizeHTML(input)
	input = StripControlCharacters(input)
	input = spaceRegex.ReplaceAllString(input, " ")
	input = strings.TrimSpace(input)

	if maxRunes > 0 && utf8.RuneCountInString(input) > maxRunes {
		runes := []rune(input)
		input = strings.TrimSpace(string(runes[:maxRunes]))
	}
	return input
}

// ValidateStringLength checks if the rune count of input is within bounds
func ValidateStringLength(input string, minLen, maxLen int) bool {
	n := utf8.RuneCountInString(input)
	return n >= minLen && n <= maxLen
}

// SanitizeHTML removes all HTML tags
func SanitizeHTML(input string) string {
	input = scriptRegex.ReplaceAllString(input, "")
	input = styleRegex.ReplaceAllString(input, "")
	return htmlRegex.ReplaceAllString(input, "")
}

// StripControlCharacters removes control characters except newlines
func StripControlCharacters(input string) string {
	var result strings.Builder
	for _, r := range input {
		if r == '\n' || !unicode.IsControl(r) {
			result.WriteRune(r)
		}
	}
	return result.String()
}
