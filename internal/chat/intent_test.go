package chat

import "testing"

func TestClassifyIntent(t *testing.T) {
	tests := []struct {
		question string
		want     Intent
	}{
		{"Who won the bidding for the new barangay hall?", IntentContractor},
		{"Sino ang kontraktor ng daycare center?", IntentContractor},
		{"List the suppliers for road projects", IntentContractor},
		{"Please update the amount for 1012-A", IntentDataEdit},
		{"delete the duplicate line item", IntentDataEdit},
		{"Pakibaguhin ang halaga ng proyekto", IntentDataEdit},
		{"itama ang pangalan ng barangay", IntentDataEdit},
		{"What is the total investment program for 2024?", IntentTotalInvestment},
		{"Magkano ang kabuuang badyet ngayong taon?", IntentTotalInvestment},
		{"total AIP of Quezon City", IntentTotalInvestment},
		{"How much is project 1012-A?", IntentLineItem},
		{"Details of the feeding program", IntentLineItem},
		{"What road projects does the city have?", IntentLineItem},
		{"Ano ang proyekto sa barangay namin?", IntentLineItem},
		{"How does the AIP process work?", IntentGeneral},
		{"When are budget hearings held?", IntentGeneral},
	}

	for _, tt := range tests {
		if got := ClassifyIntent(tt.question); got != tt.want {
			t.Errorf("ClassifyIntent(%q) = %q, want %q", tt.question, got, tt.want)
		}
	}
}

func TestContractorPrecedesTotals(t *testing.T) {
	// A question carrying both cues must refuse, not aggregate.
	got := ClassifyIntent("What is the total investment paid to contractors in 2024?")
	if got != IntentContractor {
		t.Errorf("got %q, want contractor_lookup", got)
	}
}

func TestExtractFiscalYear(t *testing.T) {
	tests := []struct {
		question string
		want     int
	}{
		{"total investment program for 2024", 2024},
		{"budget noong 2023?", 2023},
		{"total investment program", 0},
		{"project 1012-A details", 0}, // ref codes are not years
		{"compare 2023 and 2024", 2023},
	}

	for _, tt := range tests {
		if got := ExtractFiscalYear(tt.question); got != tt.want {
			t.Errorf("ExtractFiscalYear(%q) = %d, want %d", tt.question, got, tt.want)
		}
	}
}
