// Package export renders tabular data into downloadable documents.
package export

// Dataset is a titled, row-ordered table. Rows shorter than Headers render blank cells.
type Dataset struct {
	Title   string
	Headers []string
	Rows    [][]string
}

// Exporter renders a dataset into one document format.
type Exporter interface {
	Render(data Dataset) ([]byte, error)
	ContentType() string
	Extension() string
}

func cell(row []string, i int) string {
	if i < len(row) {
		return row[i]
	}
	return ""
}
