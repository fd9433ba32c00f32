package order

import (
	"net/url"
	"strings"
	"unicode"
)

// WhatsAppLink builds a wa.me deep link with the message prefilled.
func WhatsAppLink(phone string, lines []string) string {
	digits := strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) {
			return r
		}
		return -1
	}, phone)
	text := strings.ReplaceAll(url.QueryEscape(strings.Join(lines, "\n")), "+", "%20")
	return "https://wa.me/" + digits + "?text=" + text
}
