// Package reports turns report rows into tables and exports them.
// CSV and XLSX are rendered here from the rows currently loaded; PDF and
// email delivery are rendered by the backend.
package reports

import (
	"strconv"
	"time"

	"github.com/gloriousnetworker/dcarbon-portal/internal/components/portalapi"
)

// Kind names a report.
type Kind string

const (
	KindCustomers           Kind = "customers"
	KindGeneration          Kind = "generation"
	KindCommissionStatement Kind = "commission_statement"
	KindRECStatement        Kind = "rec_statement"
)

// Kinds lists every report kind.
var Kinds = []Kind{KindCustomers, KindGeneration, KindCommissionStatement, KindRECStatement}

// ParseKind returns the kind named s.
func ParseKind(s string) (Kind, bool) {
	for _, k := range Kinds {
		if string(k) == s {
			return k, true
		}
	}
	return "", false
}

// IsStatement reports whether the kind is a per-period statement.
func (k Kind) IsStatement() bool {
	return k == KindCommissionStatement || k == KindRECStatement
}

// Table is a report ready for export. Cells hold strings, ints, floats or times.
type Table struct {
	Title   string   `json:"title"`
	Columns []string `json:"columns"`
	Rows    [][]any  `json:"rows"`
}

// Money is a currency amount in dollars.
type Money float64

func (m Money) String() string { return "$" + strconv.FormatFloat(float64(m), 'f', 2, 64) }

// MarshalJSON writes the formatted amount.
func (m Money) MarshalJSON() ([]byte, error) { return []byte(strconv.Quote(m.String())), nil }

// CustomerTable builds the customer report table.
func CustomerTable(rows []portalapi.CustomerReportRow) Table {
	t := Table{Title: "Customers", Columns: []string{"Name", "Email", "Role", "Status", "Facilities", "Joined"}}
	for _, r := range rows {
		t.Rows = append(t.Rows, []any{r.Name, r.Email, r.Role, r.Status, r.Facilities, r.JoinedAt})
	}
	return t
}

// GenerationTable builds the generation report table.
func GenerationTable(rows []portalapi.GenerationReportRow) Table {
	t := Table{Title: "Generation", Columns: []string{"Facility", "Meter ID", "Period", "Generated (kWh)", "RECs"}}
	for _, r := range rows {
		t.Rows = append(t.Rows, []any{r.FacilityName, r.MeterID, r.Period, r.GeneratedKWh, r.RECs})
	}
	return t
}

// CommissionTable builds the commission statement table.
func CommissionTable(rows []portalapi.CommissionStatementRow) Table {
	t := Table{Title: "Commission Statement", Columns: []string{"Period", "Facility", "RECs Sold", "Revenue", "Commission Rate", "Commission"}}
	for _, r := range rows {
		t.Rows = append(t.Rows, []any{r.Period, r.FacilityName, r.RECsSold, Money(r.Revenue), r.CommissionRate, Money(r.Commission)})
	}
	return t
}

// RECTable builds the quarterly REC statement table.
func RECTable(rows []portalapi.RECStatementRow) Table {
	t := Table{Title: "REC Statement", Columns: []string{"Facility", "Period", "RECs Generated", "RECs Sold", "Average Price", "Revenue"}}
	for _, r := range rows {
		p := Period{Year: r.Year, Quarter: r.Quarter}
		t.Rows = append(t.Rows, []any{r.FacilityName, p.String(), r.RECsGenerated, r.RECsSold, Money(r.AveragePrice), Money(r.Revenue)})
	}
	return t
}

// cellString formats one cell for text output.
func cellString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case Money:
		return x.String()
	case time.Time:
		if x.IsZero() {
			return ""
		}
		return x.UTC().Format("2006-01-02")
	case interface{ String() string }:
		return x.String()
	default:
		return ""
	}
}
