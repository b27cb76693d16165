package lineitem

import (
	"fmt"

	"github.com/dustin/go-humanize"
)

// LineItem is one structured AIP budget row.
type LineItem struct {
	ID             string  `json:"id"`
	JurisdictionID string  `json:"jurisdiction_id"`
	AIPRefCode     string  `json:"aip_ref_code"`
	ProgramTitle   string  `json:"program_title"`
	Description    string  `json:"description,omitempty"`
	FiscalYear     int     `json:"fiscal_year"`
	Sector         string  `json:"sector,omitempty"`
	AmountPS       float64 `json:"amount_ps"`
	AmountMOOE     float64 `json:"amount_mooe"`
	AmountCO       float64 `json:"amount_co"`
	AmountTotal    float64 `json:"amount_total"`
	ScheduleStart  string  `json:"schedule_start,omitempty"`
	ScheduleEnd    string  `json:"schedule_end,omitempty"`
	Published      bool    `json:"published"`

	// BarangayName is the owning jurisdiction's canonical name, joined in on
	// read.
	BarangayName string `json:"barangay_name,omitempty"`
}

// Match is one structured semantic-search hit, ordered by ascending distance.
type Match struct {
	LineItemID   string  `json:"line_item_id"`
	AIPRefCode   string  `json:"aip_ref_code"`
	ProgramTitle string  `json:"program_title"`
	FiscalYear   int     `json:"fiscal_year"`
	BarangayName string  `json:"barangay_name"`
	AmountTotal  float64 `json:"amount_total"`
	Distance     float64 `json:"distance"`
	Score        float64 `json:"score"`
}

// FormatPeso renders an amount the way the dashboards do.
func FormatPeso(amount float64) string {
	return "PHP " + humanize.CommafWithDigits(amount, 2)
}

// SearchText is the text a line item is embedded under.
func (li LineItem) SearchText() string {
	text := fmt.Sprintf("%s (%s, FY %d)", li.ProgramTitle, li.AIPRefCode, li.FiscalYear)
	if li.BarangayName != "" {
		text += " - " + li.BarangayName
	}
	if li.Description != "" {
		text += ": " + li.Description
	}
	return text
}
