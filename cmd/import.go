package cmd

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/openlgu/badyet/internal/config"
	"github.com/openlgu/badyet/internal/db"
	"github.com/openlgu/badyet/internal/jurisdiction"
	"github.com/openlgu/badyet/internal/lineitem"
)

var (
	importJurisdictions string
	importLineItems     string
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import jurisdictions and AIP line items from CSV files",
	Long: `Loads the jurisdiction directory and published AIP line items into the
local database. Rows are upserted, so re-importing a corrected export is
safe.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if importJurisdictions == "" && importLineItems == "" {
			return fmt.Errorf("nothing to import: pass --jurisdictions and/or --line-items")
		}

		cfg, err := config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}

		database, err := db.Open(cfg.Database.Path)
		if err != nil {
			return fmt.Errorf("opening database: %w", err)
		}
		defer database.Close()

		if importJurisdictions != "" {
			n, err := importJurisdictionsCSV(cmd, database, importJurisdictions)
			if err != nil {
				return err
			}
			fmt.Fprintf(os.Stderr, "Imported %d jurisdictions\n", n)
		}
		if importLineItems != "" {
			n, err := importLineItemsCSV(cmd, database, importLineItems)
			if err != nil {
				return err
			}
			fmt.Fprintf(os.Stderr, "Imported %d line items\n", n)
		}
		return nil
	},
}

func init() {
	importCmd.Flags().StringVar(&importJurisdictions, "jurisdictions", "", "CSV of jurisdictions (id,name,type,parent_id,published)")
	importCmd.Flags().StringVar(&importLineItems, "line-items", "", "CSV of AIP line items")
	rootCmd.AddCommand(importCmd)
}

// readCSV opens a CSV file and returns its header plus a record iterator.
func readCSV(path string) (*os.File, *csv.Reader, map[string]int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("opening %s: %w", path, err)
	}
	r := csv.NewReader(f)
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if err != nil {
		f.Close()
		return nil, nil, nil, fmt.Errorf("reading header of %s: %w", path, err)
	}
	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.ToLower(strings.TrimSpace(h))] = i
	}
	return f, r, cols, nil
}

func field(record []string, cols map[string]int, name string) string {
	i, ok := cols[name]
	if !ok || i >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[i])
}

func importJurisdictionsCSV(cmd *cobra.Command, database *db.DB, path string) (int, error) {
	f, r, cols, err := readCSV(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	for _, required := range []string{"name", "type"} {
		if _, ok := cols[required]; !ok {
			return 0, fmt.Errorf("%s: missing required column %q", path, required)
		}
	}

	store := jurisdiction.NewStore(database)
	bar := progressbar.NewOptions(-1,
		progressbar.OptionSetDescription("Importing jurisdictions"),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)

	count := 0
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return count, fmt.Errorf("%s: row %d: %w", path, count+2, err)
		}

		j := jurisdiction.Jurisdiction{
			ID:        field(record, cols, "id"),
			Name:      field(record, cols, "name"),
			Type:      jurisdiction.Type(strings.ToLower(field(record, cols, "type"))),
			ParentID:  field(record, cols, "parent_id"),
			Published: parseBool(field(record, cols, "published")),
		}
		if j.Name == "" {
			return count, fmt.Errorf("%s: row %d: name is required", path, count+2)
		}
		if _, err := store.Upsert(cmd.Context(), j); err != nil {
			return count, fmt.Errorf("%s: row %d: %w", path, count+2, err)
		}
		count++
		bar.Add(1)
	}
	bar.Finish()
	return count, nil
}

func importLineItemsCSV(cmd *cobra.Command, database *db.DB, path string) (int, error) {
	f, r, cols, err := readCSV(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	for _, required := range []string{"jurisdiction_id", "aip_ref_code", "program_title", "fiscal_year"} {
		if _, ok := cols[required]; !ok {
			return 0, fmt.Errorf("%s: missing required column %q", path, required)
		}
	}

	store := lineitem.NewStore(database)
	bar := progressbar.NewOptions(-1,
		progressbar.OptionSetDescription("Importing line items"),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)

	count := 0
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return count, fmt.Errorf("%s: row %d: %w", path, count+2, err)
		}

		fiscalYear, err := strconv.Atoi(field(record, cols, "fiscal_year"))
		if err != nil {
			return count, fmt.Errorf("%s: row %d: bad fiscal_year: %w", path, count+2, err)
		}

		li := lineitem.LineItem{
			ID:             field(record, cols, "id"),
			JurisdictionID: field(record, cols, "jurisdiction_id"),
			AIPRefCode:     field(record, cols, "aip_ref_code"),
			ProgramTitle:   field(record, cols, "program_title"),
			Description:    field(record, cols, "description"),
			FiscalYear:     fiscalYear,
			Sector:         field(record, cols, "sector"),
			AmountPS:       parseAmount(field(record, cols, "amount_ps")),
			AmountMOOE:     parseAmount(field(record, cols, "amount_mooe")),
			AmountCO:       parseAmount(field(record, cols, "amount_co")),
			AmountTotal:    parseAmount(field(record, cols, "amount_total")),
			ScheduleStart:  field(record, cols, "schedule_start"),
			ScheduleEnd:    field(record, cols, "schedule_end"),
			Published:      parseBool(field(record, cols, "published")),
		}
		if li.AmountTotal == 0 {
			li.AmountTotal = li.AmountPS + li.AmountMOOE + li.AmountCO
		}
		if _, err := store.Upsert(cmd.Context(), li); err != nil {
			return count, fmt.Errorf("%s: row %d: %w", path, count+2, err)
		}
		count++
		bar.Add(1)
	}
	bar.Finish()
	return count, nil
}

func parseBool(s string) bool {
	switch strings.ToLower(s) {
	case "1", "true", "yes", "y":
		return true
	}
	return false
}

// parseAmount accepts plain and comma-grouped peso amounts.
func parseAmount(s string) float64 {
	s = strings.ReplaceAll(strings.TrimPrefix(s, "PHP "), ",", "")
	if s == "" {
		return 0
	}
	v, _ := strconv.ParseFloat(s, 64)
	return v
}
