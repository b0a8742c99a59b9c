package importer

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/warp/sim-inventory/inventory"
	"github.com/xuri/excelize/v2"
)

// zipMagic opens every xlsx file (it is a zip container).
var zipMagic = []byte("PK\x03\x04")

var utf8BOM = []byte("\xEF\xBB\xBF")

// Record is one non-blank data row. Values are the raw cell text; IMSI is
// nil when the column is missing or the cell is empty.
type Record struct {
	Line            int
	SerialNumber    string
	IMSI            *string
	Status          string
	SimTypeID       string
	SimTypeName     string
	PurchaseProduct string
	CustomerID      string
	CustomerName    string
	ReceivedDate    string
}

type column int

const (
	colIgnored column = iota
	colSerialNumber
	colIMSI
	colStatus
	colSimTypeID
	colSimTypeName
	colPurchaseProduct
	colCustomerID
	colCustomerName
	colReceivedDate
)

// headerAliases is keyed by normalizeHeader output.
var headerAliases = map[string]column{
	"serialnumber":    colSerialNumber,
	"serial":          colSerialNumber,
	"imsi":            colIMSI,
	"status":          colStatus,
	"simtypeid":       colSimTypeID,
	"simtypename":     colSimTypeName,
	"simtype":         colSimTypeName,
	"purchaseproduct": colPurchaseProduct,
	"customerid":      colCustomerID,
	"customername":    colCustomerName,
	"receiveddate":    colReceivedDate,
}

func normalizeHeader(h string) string {
	h = strings.TrimSpace(strings.TrimPrefix(h, string(utf8BOM)))
	h = strings.NewReplacer(" ", "", "_", "", "-", "").Replace(h)
	return strings.ToLower(h)
}

// Parse reads an xlsx workbook (first sheet) or a CSV file. The first row
// is the header; rows whose cells are all blank are ignored and do not
// consume a line number.
func Parse(data []byte) ([]Record, error) {
	var (
		rows [][]string
		err  error
	)
	if bytes.HasPrefix(data, zipMagic) {
		rows, err = readXLSX(data)
	} else {
		rows, err = readCSV(data)
	}
	if err != nil {
		return nil, inventory.InvalidInputError("unreadable import file: %v", err)
	}
	return toRecords(rows)
}

func readXLSX(data []byte) ([][]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data), excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("failed to open Excel file: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook has no sheets")
	}
	// Raw values keep dates as serial numbers and long IMSIs unformatted.
	rows, err := f.GetRows(sheets[0], excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("unable to read sheet %q: %w", sheets[0], err)
	}
	return rows, nil
}

func readCSV(data []byte) ([][]string, error) {
	r := csv.NewReader(bytes.NewReader(bytes.TrimPrefix(data, utf8BOM)))
	r.FieldsPerRecord = -1
	return r.ReadAll()
}

func toRecords(rows [][]string) ([]Record, error) {
	headerAt := -1
	for i, row := range rows {
		if !blank(row) {
			headerAt = i
			break
		}
	}
	if headerAt < 0 {
		return nil, inventory.InvalidInputError("import file has no header row")
	}

	columns := make([]column, len(rows[headerAt]))
	hasSerial := false
	for i, h := range rows[headerAt] {
		columns[i] = headerAliases[normalizeHeader(h)]
		hasSerial = hasSerial || columns[i] == colSerialNumber
	}
	if !hasSerial {
		return nil, inventory.InvalidInputError("import file has no serialNumber column")
	}

	var records []Record
	for _, row := range rows[headerAt+1:] {
		if blank(row) {
			continue
		}
		rec := Record{Line: len(records) + 1}
		for i, cell := range row {
			if i >= len(columns) {
				break
			}
			switch columns[i] {
			case colSerialNumber:
				rec.SerialNumber = cell
			case colIMSI:
				if cell != "" {
					v := cell
					rec.IMSI = &v
				}
			case colStatus:
				rec.Status = cell
			case colSimTypeID:
				rec.SimTypeID = cell
			case colSimTypeName:
				rec.SimTypeName = cell
			case colPurchaseProduct:
				rec.PurchaseProduct = cell
			case colCustomerID:
				rec.CustomerID = cell
			case colCustomerName:
				rec.CustomerName = cell
			case colReceivedDate:
				rec.ReceivedDate = cell
			}
		}
		records = append(records, rec)
	}
	return records, nil
}

func blank(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

// =============================================================================
// CELL CONVERSION
// =============================================================================

var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
	"01/02/2006",
	"2006/01/02",
}

// parseReceivedDate accepts the textual layouts above (interpreted as UTC
// when they carry no zone) or an Excel serial date number.
func parseReceivedDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, raw, time.UTC); err == nil {
			return checkYear(raw, t.UTC())
		}
	}
	if serial, err := strconv.ParseFloat(raw, 64); err == nil && serial > 0 {
		t, err := excelize.ExcelDateToTime(serial, false)
		if err == nil {
			return checkYear(raw, t.UTC())
		}
	}
	return time.Time{}, inventory.InvalidInputError("invalid receivedDate %q", raw)
}

// checkYear keeps timestamps within four-digit years, which the store's
// fixed-width time encoding requires.
func checkYear(raw string, t time.Time) (time.Time, error) {
	if y := t.Year(); y < 1 || y > 9999 {
		return time.Time{}, inventory.InvalidInputError("invalid receivedDate %q", raw)
	}
	return t, nil
}

// parseID accepts "12" and the "12.0" some spreadsheet exports produce.
func parseID(field, raw string) (int64, error) {
	raw = strings.TrimSpace(raw)
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return n, nil
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil && f == float64(int64(f)) {
		return int64(f), nil
	}
	return 0, inventory.InvalidInputError("invalid %s %q", field, raw)
}
