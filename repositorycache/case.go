package repositorycache

import (
	"strings"
	"unicode"
)

// toSnake turns a reflected type name into a key namespace. "OrderItem"
// becomes "order_item", "HTTPRequest" becomes "http_request" and any run of
// other characters, such as the brackets of a generic instance, separates
// words.
func toSnake(name string) string {
	runes := []rune(name)
	var (
		words []string
		cur   []rune
	)
	flush := func() {
		if len(cur) > 0 {
			words = append(words, strings.ToLower(string(cur)))
			cur = cur[:0]
		}
	}

	for i, r := range runes {
		var last rune
		if len(cur) > 0 {
			last = cur[len(cur)-1]
		}
		switch {
		case unicode.IsUpper(r):
			nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
			if last != 0 && (!unicode.IsUpper(last) || nextLower) {
				flush()
			}
		case unicode.IsDigit(r):
			if last != 0 && !unicode.IsDigit(last) {
				flush()
			}
		case unicode.IsLetter(r):
			if last != 0 && unicode.IsDigit(last) {
				flush()
			}
		default:
			flush()
			continue
		}
		cur = append(cur, r)
	}
	flush()
	return strings.Join(words, "_")
}
