package cli

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/pflag"

	"github.com/Aashu-1911/sutra-backend/internal/timetable"
)

type outputFormat string

const (
	formatMarkdown outputFormat = "markdown"
	formatCSV      outputFormat = "csv"
	formatJSON     outputFormat = "json"
)

var _ pflag.Value = (*outputFormat)(nil)

func (f *outputFormat) String() string { return string(*f) }

func (f *outputFormat) Set(raw string) error {
	switch v := outputFormat(strings.ToLower(strings.TrimSpace(raw))); v {
	case formatMarkdown, "md":
		*f = formatMarkdown
	case formatCSV, formatJSON:
		*f = v
	default:
		return fmt.Errorf("unknown format %q (want markdown, csv or json)", raw)
	}
	return nil
}

func (f *outputFormat) Type() string { return "format" }

func writeTable(w io.Writer, format outputFormat, table timetable.Table, envelope any) error {
	switch format {
	case formatCSV:
		cw := csv.NewWriter(w)
		if err := cw.Write(table.Headers); err != nil {
			return err
		}
		if err := cw.WriteAll(table.Rows); err != nil {
			return err
		}
		return cw.Error()
	case formatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(envelope)
	default:
		_, err := io.WriteString(w, table.Markdown())
		return err
	}
}
