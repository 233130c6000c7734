// Package lead inspects message text for contact information or buying
// intent. Detection is deterministic and does no I/O.
package lead

import (
	"regexp"
	"strings"
)

// Signals is the result of inspecting one message.
type Signals struct {
	IsLead    bool
	Email     string
	Phone     string
	HasIntent bool
}

var (
	emailPattern = regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`)

	// Tolerates a leading country code and digit groups separated by
	// spaces, dots, dashes or parentheses.
	phonePattern = regexp.MustCompile(`\+?\d{1,3}[\s.\-]?\(?\d{1,4}\)?(?:[\s.\-]?\d{2,4}){2,4}`)
)

// intentPhrases are matched case-insensitively against the message text.
// The list is specific to the Spanish-speaking deployment locale.
var intentPhrases = []string{
	"presupuesto",
	"precio",
	"cotiza",
	"cuanto cuesta",
	"cuánto cuesta",
	"cuanto sale",
	"cuánto sale",
	"agendar",
	"me interesa",
	"quiero comprar",
}

// Detect inspects text for an email address, a phone number, and purchase
// intent. IsLead is true when any of the three is present.
func Detect(text string) Signals {
	var s Signals

	s.Email = emailPattern.FindString(text)

	// First digit run that looks like a phone number wins. Short digit
	// groups (quantities, dates) are filtered by a minimum digit count.
	for _, m := range phonePattern.FindAllString(text, -1) {
		if digitCount(m) >= 8 {
			s.Phone = strings.TrimSpace(m)
			break
		}
	}

	lower := strings.ToLower(text)
	for _, phrase := range intentPhrases {
		if strings.Contains(lower, phrase) {
			s.HasIntent = true
			break
		}
	}

	s.IsLead = s.Email != "" || s.Phone != "" || s.HasIntent
	return s
}

func digitCount(s string) int {
	n := 0
	for _, r := range s {
		if r >= '0' && r <= '9' {
			n++
		}
	}
	return n
}
