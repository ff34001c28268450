// Package recipients parses recipient spreadsheets (CSV or XLSX) into
// ordered records and checks them against the columns a template needs.
//
// The first row is a header when it mentions "email" or "mail"; otherwise
// every row is data with the email in the first column and the company in
// the second. Rows without a usable email are skipped with a warning.
package recipients
