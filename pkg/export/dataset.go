// Package export renders tabular datasets into the download formats the
// API serves: CSV, XLSX workbooks and simple PDF tables.
package export

// Dataset is format-independent tabular content. Rows are keyed by
// header name; missing cells render empty.
type Dataset struct {
	Headers []string
	Rows    []map[string]string
}
