package chat

import (
	"regexp"
	"strconv"
	"strings"
)

// Selection is a parsed reply to a pending clarification.
type Selection struct {
	// Option is the chosen option, nil for cancellations.
	Option *ClarificationOption
	// Cancelled is true for an explicit cancellation phrase.
	Cancelled bool
}

var (
	numericReplyRe = regexp.MustCompile(`^\s*#?(\d{1,2})\s*[.)]?\s*$`)
	refCodeRe      = regexp.MustCompile(`(?i)\b(?:ref\.?\s*)?(\d{3,4}-[A-Za-z0-9]+)\b`)
)

// cancelPhrases is the fixed set of explicit cancellations, English and
// Tagalog, compared after lowercasing and punctuation trimming.
var cancelPhrases = map[string]bool{
	"none of the above": true,
	"none":              true,
	"cancel":            true,
	"never mind":        true,
	"nevermind":         true,
	"forget it":         true,
	"wala sa mga iyan":  true,
	"wala":              true,
	"huwag na":          true,
	"wag na":            true,
}

// ParseSelection tries the selection parsers in order: cancellation, numeric,
// ref code. A nil result means the reply matched none of them.
func ParseSelection(reply string, options []ClarificationOption) *Selection {
	trimmed := strings.ToLower(strings.Trim(strings.TrimSpace(reply), `.,!?"'`))
	if cancelPhrases[trimmed] {
		return &Selection{Cancelled: true}
	}

	if m := numericReplyRe.FindStringSubmatch(reply); m != nil {
		n, _ := strconv.Atoi(m[1])
		for i := range options {
			if options[i].Number == n {
				return &Selection{Option: &options[i]}
			}
		}
		return nil
	}

	if m := refCodeRe.FindStringSubmatch(reply); m != nil {
		code := m[1]
		for i := range options {
			if strings.EqualFold(options[i].AIPRefCode, code) {
				return &Selection{Option: &options[i]}
			}
		}
	}

	return nil
}

// interrogatives open a fresh question in English or Tagalog.
var interrogatives = map[string]bool{
	"what": true, "how": true, "when": true, "where": true, "who": true,
	"why": true, "which": true, "is": true, "are": true, "was": true,
	"does": true, "do": true, "did": true, "can": true, "show": true,
	"list": true, "compare": true, "magkano": true, "ano": true,
	"ilan": true, "saan": true, "kailan": true, "paano": true,
	"sino": true, "bakit": true, "alin": true,
}

// looksLikeFreshQuestion decides whether a reply that matched no selection
// parser abandons the pending clarification. Policy (a product decision, not
// derivable from the data): anything longer than four words, containing a
// question mark, or opening with an interrogative word is a new question;
// shorter opaque replies get the clarification prompt re-issued instead.
func looksLikeFreshQuestion(reply string) bool {
	trimmed := strings.TrimSpace(reply)
	if strings.Contains(trimmed, "?") {
		// A bare "?"-ish fragment ("what?", "huh?") is confusion, not a
		// question.
		if len(strings.Fields(trimmed)) > 1 {
			return true
		}
	}
	fields := strings.Fields(strings.ToLower(trimmed))
	if len(fields) > 4 {
		return true
	}
	if len(fields) > 1 && interrogatives[strings.Trim(fields[0], `.,!?"'`)] {
		return true
	}
	return false
}
