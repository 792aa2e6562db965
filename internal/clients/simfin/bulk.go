package simfin

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/bobmcallan/putscan/internal/models"
)

// bulkColumns is the required header set for the SimFin bulk derived export.
// Column order is taken from the header row, not assumed.
var bulkColumns = []string{
	"Ticker",
	"Report Date",
	"Piotroski F-Score",
	"Altman Z-Score",
	"Return on Assets",
	"Debt to Equity",
	"Current Ratio",
	"Market Cap",
	"Total Assets",
	"Total Liabilities",
	"Total Equity",
	"Revenue",
	"Net Income",
	"Operating Cash Flow",
	"Shares Outstanding",
}

// ParseBulkCSV parses a SimFin bulk derived export (semicolon-delimited, one
// row per company) into validated fundamentals rows. Any malformed row fails
// the whole parse; a partial bulk load would leave the store silently
// inconsistent.
func (c *Client) ParseBulkCSV(r io.Reader) ([]models.Fundamentals, error) {
	reader := csv.NewReader(r)
	reader.Comma = ';'
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read bulk CSV header: %w", err)
	}

	idx := make(map[string]int, len(header))
	for i, name := range header {
		idx[strings.TrimSpace(name)] = i
	}
	for _, col := range bulkColumns {
		if _, ok := idx[col]; !ok {
			return nil, fmt.Errorf("bulk CSV missing column %q", col)
		}
	}

	var rows []models.Fundamentals
	line := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("bulk CSV line %d: %w", line, err)
		}

		row, err := parseBulkRow(record, idx)
		if err != nil {
			return nil, fmt.Errorf("bulk CSV line %d: %w", line, err)
		}
		rows = append(rows, row)
	}

	c.logger.Info().Int("rows", len(rows)).Msg("Parsed bulk fundamentals CSV")
	return rows, nil
}

func parseBulkRow(record []string, idx map[string]int) (models.Fundamentals, error) {
	field := func(col string) string {
		return strings.TrimSpace(record[idx[col]])
	}

	symbol := strings.ToUpper(field("Ticker"))
	if symbol == "" {
		return models.Fundamentals{}, fmt.Errorf("empty ticker")
	}

	reportDate, err := time.Parse("2006-01-02", field("Report Date"))
	if err != nil {
		return models.Fundamentals{}, fmt.Errorf("invalid report date for %s: %w", symbol, err)
	}

	fscore, err := strconv.Atoi(field("Piotroski F-Score"))
	if err != nil {
		return models.Fundamentals{}, fmt.Errorf("invalid F-Score for %s: %w", symbol, err)
	}
	if fscore < 0 || fscore > 9 {
		return models.Fundamentals{}, fmt.Errorf("F-Score %d out of range for %s", fscore, symbol)
	}

	floats := make(map[string]float64)
	for _, col := range []string{
		"Altman Z-Score", "Return on Assets", "Debt to Equity", "Current Ratio",
		"Market Cap", "Total Assets", "Total Liabilities", "Total Equity",
		"Revenue", "Net Income", "Operating Cash Flow",
	} {
		v, err := strconv.ParseFloat(field(col), 64)
		if err != nil {
			return models.Fundamentals{}, fmt.Errorf("invalid %s for %s: %w", col, symbol, err)
		}
		floats[col] = v
	}

	shares, err := strconv.ParseInt(field("Shares Outstanding"), 10, 64)
	if err != nil {
		return models.Fundamentals{}, fmt.Errorf("invalid shares outstanding for %s: %w", symbol, err)
	}

	return models.Fundamentals{
		Symbol:            symbol,
		ReportDate:        reportDate,
		PiotroskiFScore:   fscore,
		AltmanZScore:      floats["Altman Z-Score"],
		ROA:               floats["Return on Assets"],
		DebtToEquity:      floats["Debt to Equity"],
		CurrentRatio:      floats["Current Ratio"],
		MarketCapBillions: floats["Market Cap"] / 1e9,
		TotalAssets:       floats["Total Assets"],
		TotalLiabilities:  floats["Total Liabilities"],
		TotalEquity:       floats["Total Equity"],
		Revenue:           floats["Revenue"],
		NetIncome:         floats["Net Income"],
		OperatingCashFlow: floats["Operating Cash Flow"],
		SharesOutstanding: shares,
	}, nil
}
