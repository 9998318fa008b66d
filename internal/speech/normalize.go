package speech

import (
	"regexp"
	"strings"
)

var (
	ansiCodes     = regexp.MustCompile(`\x1b\[[0-9;]*m`)
	bracketPrefix = regexp.MustCompile(`^\[[A-Za-z]+\]\s*`)
	ellipsis      = regexp.MustCompile(`\.{3,}|…`)
	markdown      = regexp.MustCompile("[*#_`]+")
	decimalPoint  = regexp.MustCompile(`(\d)\.(\d)`)
	celsius       = regexp.MustCompile(`\s*°\s*C(?:elsius)?\b`)
	degree        = regexp.MustCompile(`\s*°`)
	percent       = regexp.MustCompile(`(\d)\s*%`)
	kilowattHour  = regexp.MustCompile(`(?i)\bkwh\b`)
)

// Normalize rewrites a sentence unit into text the Spanish voice reads
// naturally: decimals become "punto", °C becomes "grados", % becomes
// "porciento", kWh is spelled out, and ellipses and markdown are dropped.
// It is applied to synthesis input only, never to displayed text.
func Normalize(text string) string {
	s := ansiCodes.ReplaceAllString(text, "")
	s = bracketPrefix.ReplaceAllString(s, "")
	s = ellipsis.ReplaceAllString(s, " ")
	s = markdown.ReplaceAllString(s, "")
	s = decimalPoint.ReplaceAllString(s, "${1} punto ${2}")
	s = celsius.ReplaceAllString(s, " grados")
	s = degree.ReplaceAllString(s, " grados")
	s = percent.ReplaceAllString(s, "${1} porciento")
	s = kilowattHour.ReplaceAllString(s, "kilovatios hora")
	s = strings.Join(strings.Fields(s), " ")
	return strings.TrimSpace(s)
}
