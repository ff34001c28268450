package recipients

import (
	"encoding/csv"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// Record is one recipient row. Fields are keyed by lower-cased column
// name and never include the email column.
type Record struct {
	Email  string
	Fields map[string]string
	Row    int // 1-based row in the source, header included
}

// Field returns the named field or "".
func (r Record) Field(name string) string {
	return r.Fields[name]
}

// Result is the outcome of a successful load.
type Result struct {
	Records    []Record
	Warnings   []string
	Headerless bool
}

// headerAliases maps spreadsheet column spellings onto canonical names.
var headerAliases = map[string][]string{
	"email":   {"email", "e-mail", "mail", "email_address", "emailaddress", "email address"},
	"company": {"company", "company_name", "companyname", "organization", "organisation"},
}

// headerlessColumns are the columns assumed when the first row is data.
var headerlessColumns = []string{"email", "company"}

// Load reads comma-separated recipients from r and checks that the header
// carries every column in required. A leading UTF-8 byte order mark is
// ignored. When no row survives, the result is still returned along with
// ErrNoRecipients so its warnings can be shown.
func Load(r io.Reader, required []string) (*Result, error) {
	cr := csv.NewReader(transform.NewReader(r, unicode.BOMOverride(unicode.UTF8.NewDecoder())))
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true

	var rows [][]string
	var lines []int
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedInput, err)
		}
		line, _ := cr.FieldPos(0)
		rows = append(rows, row)
		lines = append(lines, line)
	}
	return fromRows(rows, lines, required)
}

// LoadXLSX reads recipients from the first sheet of an Excel workbook.
func LoadXLSX(r io.Reader, required []string) (*Result, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedInput, err)
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrEmptyInput
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedInput, err)
	}
	lines := make([]int, len(rows))
	for i := range rows {
		lines[i] = i + 1
	}
	return fromRows(rows, lines, required)
}

// LoadFile picks the reader by the extension of name: .xlsx is a
// workbook, anything else comma-separated text.
func LoadFile(name string, r io.Reader, required []string) (*Result, error) {
	if strings.EqualFold(filepath.Ext(name), ".xlsx") {
		return LoadXLSX(r, required)
	}
	return Load(r, required)
}

// fromRows runs the shared pipeline; lines[i] is the source line of rows[i].
func fromRows(rows [][]string, lines []int, required []string) (*Result, error) {
	first := firstNonBlank(rows)
	if first < 0 {
		return nil, ErrEmptyInput
	}

	res := &Result{}
	columns, dataStart := headerless(), first
	if hasHeader(rows[first]) {
		columns, dataStart = normalizeHeader(rows[first]), first+1
	} else {
		res.Headerless = true
	}

	if missing := missingColumns(columns, required); len(missing) > 0 {
		return nil, &MissingColumnsError{Missing: missing}
	}

	emailCol := indexOf(columns, "email")
	for i := dataStart; i < len(rows); i++ {
		row := rows[i]
		if isBlank(row) {
			continue
		}
		rowNum := lines[i]

		email := cell(row, emailCol)
		if email == "" || !strings.Contains(email, "@") {
			res.Warnings = append(res.Warnings, fmt.Sprintf("row %d: missing or invalid email %q, skipped", rowNum, email))
			continue
		}

		fields := make(map[string]string, len(columns))
		for col, name := range columns {
			if col == emailCol || name == "" {
				continue
			}
			if _, dup := fields[name]; dup {
				continue
			}
			fields[name] = cell(row, col)
		}

		res.Records = append(res.Records, Record{Email: email, Fields: fields, Row: rowNum})
	}

	if len(res.Records) == 0 {
		return res, ErrNoRecipients
	}
	return res, nil
}

// hasHeader reports whether row looks like column names rather than data.
// Cells holding an address are data, so "x@gmail.com" is not a header.
func hasHeader(row []string) bool {
	for _, c := range row {
		c = strings.ToLower(c)
		if strings.Contains(c, "@") {
			continue
		}
		if strings.Contains(c, "email") || strings.Contains(c, "mail") {
			return true
		}
	}
	return false
}

func headerless() []string {
	return append([]string(nil), headerlessColumns...)
}

func normalizeHeader(row []string) []string {
	columns := make([]string, len(row))
	for i, h := range row {
		columns[i] = canonical(h)
	}
	return columns
}

func canonical(header string) string {
	h := strings.ToLower(strings.TrimSpace(header))
	for name, aliases := range headerAliases {
		for _, alias := range aliases {
			if h == alias {
				return name
			}
		}
	}
	return strings.ReplaceAll(h, " ", "_")
}

func missingColumns(columns, required []string) []string {
	var missing []string
	for _, req := range required {
		if indexOf(columns, canonical(req)) < 0 {
			missing = append(missing, req)
		}
	}
	return missing
}

func indexOf(columns []string, name string) int {
	for i, c := range columns {
		if c == name {
			return i
		}
	}
	return -1
}

func cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func isBlank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

func firstNonBlank(rows [][]string) int {
	for i, row := range rows {
		if !isBlank(row) {
			return i
		}
	}
	return -1
}
