package chat

import (
	"regexp"
	"strconv"
)

// Intent classifies what resolution path a question needs.
type Intent string

const (
	// IntentTotalInvestment is the fixed aggregation intent answered from
	// structured totals, never the pipeline.
	IntentTotalInvestment Intent = "total_investment"
	// IntentLineItem is a question about a specific budget row.
	IntentLineItem Intent = "line_item"
	// IntentContractor asks for contractor/bidder facts the AIP documents
	// structurally do not contain.
	IntentContractor Intent = "contractor_lookup"
	// IntentDataEdit asks the assistant to change data.
	IntentDataEdit Intent = "data_edit"
	// IntentGeneral is everything else, resolved by pipeline retrieval.
	IntentGeneral Intent = "general"
)

var (
	contractorRe = regexp.MustCompile(`(?i)\b(?:contractors?|bidders?|bidding|winning\s+bid|suppliers?|kontraktor|nanalo\s+sa\s+bid)`)
	dataEditRe   = regexp.MustCompile(`(?i)^\s*(?:please\s+|paki)?(?:update|edit|delete|remove|change|correct|add|insert|itama|burahin|baguhin)\b`)
	totalsRe     = regexp.MustCompile(`(?i)\btotal\s+(?:annual\s+)?investment|\btotal\s+aip\b|\bkabuuang\s+(?:pondo|badyet|puhunan|investment)`)
	lineItemRe   = regexp.MustCompile(`(?i)\b\d{3,4}-[A-Za-z0-9]+\b|\b(?:line\s+items?|projects?|programs?|proyekto|programa)\b`)
	yearRe       = regexp.MustCompile(`\b(20\d{2})\b`)
)

// ClassifyIntent assigns one intent per question. Contractor and data-edit
// checks come first so their refusals fire before any scope resolution.
func ClassifyIntent(question string) Intent {
	switch {
	case contractorRe.MatchString(question):
		return IntentContractor
	case dataEditRe.MatchString(question):
		return IntentDataEdit
	case totalsRe.MatchString(question):
		return IntentTotalInvestment
	case lineItemRe.MatchString(question):
		return IntentLineItem
	default:
		return IntentGeneral
	}
}

// ExtractFiscalYear pulls the first four-digit year from a question, 0 if
// none. The deterministic totals path requires it.
func ExtractFiscalYear(question string) int {
	m := yearRe.FindStringSubmatch(question)
	if m == nil {
		return 0
	}
	year, _ := strconv.Atoi(m[1])
	return year
}
