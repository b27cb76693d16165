package scope

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/openlgu/badyet/internal/jurisdiction"
)

// CueResult is the output of scope-cue extraction for one question.
type CueResult struct {
	// HasOwnJurisdictionCue is true when the question refers to the asking
	// citizen's own jurisdiction ("in our barangay", "sa aming barangay")
	// without naming it.
	HasOwnJurisdictionCue bool
	// RequestedScopes are named jurisdiction mentions, deduplicated
	// case-insensitively per (type, name), in first-occurrence order.
	RequestedScopes []Cue
}

// CueExtractor extracts jurisdiction mentions from a question. Pluggable so a
// tokenizer-based implementation can replace the regex one without touching
// the resolver.
type CueExtractor interface {
	Extract(question string) CueResult
}

// cuePattern captures a candidate place-name span for one jurisdiction type.
type cuePattern struct {
	typ jurisdiction.Type
	re  *regexp.Regexp
}

// Patterns are ordered: noun-prefix forms (English and Tagalog) first, the
// capitalized "X City" suffix form last. They run per segment (see
// segmentRe), so a capture extends to the segment end and is normalized
// afterwards.
var cuePatterns = []cuePattern{
	{jurisdiction.TypeBarangay, regexp.MustCompile(`(?i)\b(?:barangay|brgy|bgy)\s+(.+)$`)},
	{jurisdiction.TypeCity, regexp.MustCompile(`(?i)\b(?:city|lungsod|siyudad)\s+(?:of|ng)\s+(.+)$`)},
	{jurisdiction.TypeMunicipality, regexp.MustCompile(`(?i)\b(?:municipality|town|bayan|munisipyo)\s+(?:of|ng)\s+(.+)$`)},
	{jurisdiction.TypeCity, regexp.MustCompile(`\b([A-ZÑ][A-Za-zÑñ'’.-]*(?:\s+[A-ZÑ][A-Za-zÑñ'’.-]*)*)\s+[Cc]ity\b`)},
}

// segmentRe splits a question at mention boundaries: punctuation and
// connector words (English and Tagalog) that separate one mention from the
// next.
var segmentRe = regexp.MustCompile(`(?i)[,.?!;:()]+|\s+(?:and|or|vs\.?|versus|at|o|na|kumpara|compared)\s+`)

// tailBoundaryRe cuts prepositional and temporal tails off a captured span
// ("Mabini for 2024", "Bagong Silang ngayong taon").
var tailBoundaryRe = regexp.MustCompile(`(?i)\s+(?:for|in|on|during|from|since|this|last|next|sa|noong|ngayong|taong|para|mula)\s+`)

// abbrevRe normalizes "brgy."/"bgy." before segmentation so the period is not
// taken for sentence punctuation.
var abbrevRe = regexp.MustCompile(`(?i)\b(brgy|bgy)\.`)

// noiseWords as the first token of a span indicate a generic reference, not a
// place name ("our barangay", "this city").
var noiseWords = map[string]bool{
	"our": true, "my": true, "your": true, "their": true, "this": true,
	"that": true, "the": true, "every": true, "each": true, "all": true,
	"any": true, "a": true, "an": true, "other": true, "another": true,
	"barangay": true, "city": true, "municipality": true, "town": true,
	"aming": true, "ating": true, "namin": true, "natin": true,
	"ito": true, "iyan": true, "bawat": true, "lahat": true,
	// domain nouns typed after "barangay" without naming one
	"budget": true, "funds": true, "fund": true, "aip": true,
	"captain": true, "hall": true, "council": true, "officials": true,
	"project": true, "projects": true, "program": true, "programs": true,
	"badyet": true, "pondo": true, "proyekto": true,
}

// leadingJunk tokens are stripped from the front of a span; the "X City"
// suffix pattern can pick up a capitalized sentence opener ("In Quezon City").
var leadingJunk = map[string]bool{
	"in": true, "of": true, "at": true, "for": true, "from": true,
	"to": true, "on": true, "about": true, "near": true,
	"sa": true, "ang": true, "si": true, "ni": true,
}

// nameInfix tokens may stay lowercase inside a capitalized place name
// ("San Juan del Monte").
var nameInfix = map[string]bool{
	"de": true, "del": true, "dela": true, "la": true, "las": true,
	"los": true, "ng": true,
}

// ownCueRes match "own jurisdiction" phrasings without a named mention.
var ownCueRes = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(?:our|my)\s+(?:own\s+)?barangay\b`),
	regexp.MustCompile(`(?i)\bhere\s+in\s+(?:the\s+)?barangay\b`),
	regexp.MustCompile(`(?i)\bsa\s+(?:aming|ating)\s+barangay\b`),
	regexp.MustCompile(`(?i)\bsa\s+barangay\s+(?:namin|natin)\b`),
	regexp.MustCompile(`(?i)\bdito\s+sa\s+(?:amin|atin)\b`),
}

const maxCueTokens = 5

// RegexExtractor is the default CueExtractor. It relies on the closed
// jurisdiction vocabulary rather than NLP; precision over recall.
type RegexExtractor struct{}

// NewRegexExtractor creates the default extractor.
func NewRegexExtractor() *RegexExtractor { return &RegexExtractor{} }

func (e *RegexExtractor) Extract(question string) CueResult {
	var result CueResult

	// Own-jurisdiction phrases are removed before named extraction so that
	// "our barangay budget" does not surface "budget" as a name.
	text := question
	for _, re := range ownCueRes {
		if re.MatchString(text) {
			result.HasOwnJurisdictionCue = true
			text = re.ReplaceAllString(text, " ")
		}
	}

	segments := segmentRe.Split(abbrevRe.ReplaceAllString(text, "$1"), -1)

	seen := map[string]bool{}
	for _, p := range cuePatterns {
		for _, seg := range segments {
			for _, m := range p.re.FindAllStringSubmatch(seg, -1) {
				name := normalizeSpan(m[1])
				if name == "" {
					continue
				}
				key := string(p.typ) + "\x00" + strings.ToLower(name)
				if seen[key] {
					continue
				}
				seen[key] = true
				result.RequestedScopes = append(result.RequestedScopes, Cue{Type: p.typ, Name: name})
			}
		}
	}

	return result
}

// normalizeSpan cuts a captured span at the first tail boundary, trims junk,
// and drops generic references. When a span starts with a capitalized token,
// it is additionally cut at the first non-capitalized token, which strips
// trailing verbs and objects ("Mabini spend on roads" -> "Mabini").
func normalizeSpan(span string) string {
	if loc := tailBoundaryRe.FindStringIndex(span); loc != nil {
		span = span[:loc[0]]
	}
	span = strings.Trim(span, ` "'“”‘’`)

	tokens := strings.Fields(span)
	for len(tokens) > 0 && leadingJunk[strings.ToLower(tokens[0])] {
		tokens = tokens[1:]
	}
	if len(tokens) == 0 {
		return ""
	}

	if startsUpper(tokens[0]) {
		kept := tokens[:1]
		for _, tok := range tokens[1:] {
			if !startsUpper(tok) && !nameInfix[strings.ToLower(tok)] {
				break
			}
			kept = append(kept, tok)
		}
		tokens = kept
	} else {
		// A genuinely lowercase-typed name is short and fully lowercase;
		// anything else ("should publish its AIP") is sentence tail, not a
		// place name.
		if len(tokens) > 3 {
			return ""
		}
		for _, tok := range tokens {
			if startsUpper(tok) {
				return ""
			}
		}
	}

	if len(tokens) > maxCueTokens {
		return ""
	}
	first := strings.ToLower(strings.Trim(tokens[0], ".,"))
	if noiseWords[first] {
		return ""
	}
	return strings.Join(tokens, " ")
}

func startsUpper(tok string) bool {
	for _, r := range tok {
		return unicode.IsUpper(r)
	}
	return false
}
