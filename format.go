package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/tonimelisma/galaxykit-go/internal/galaxy"
)

// statusf prints a status message to w unless quiet mode is set.
func statusf(w io.Writer, quiet bool, format string, args ...any) {
	if !quiet {
		fmt.Fprintf(w, format, args...)
	}
}

// Statusf prints a status message to stderr unless quiet mode is set.
func (cc *CLIContext) Statusf(format string, args ...any) {
	statusf(cc.Err, cc.Flags.Quiet, format, args...)
}

// formatTime returns a compact timestamp for display. Unparseable values
// are returned unchanged; empty stays empty.
func formatTime(raw string) string {
	if raw == "" {
		return ""
	}

	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return raw
	}

	now := time.Now()

	if t.Year() == now.Year() {
		return t.Format("Jan _2 15:04:05")
	}

	return t.Format("Jan _2  2006")
}

// printTable writes aligned columns to the given writer.
// headers and each row must have the same length.
func printTable(w io.Writer, headers []string, rows [][]string) {
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = len(h)
	}

	for _, row := range rows {
		for i, cell := range row {
			if len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
	}

	printRow(w, headers, widths)

	for _, row := range rows {
		printRow(w, row, widths)
	}
}

// printRow writes a single padded row.
func printRow(w io.Writer, cells []string, widths []int) {
	parts := make([]string, len(cells))
	for i, cell := range cells {
		parts[i] = fmt.Sprintf("%-*s", widths[i], cell)
	}

	fmt.Fprintln(w, strings.TrimRight(strings.Join(parts, "  "), " "))
}

// formatList renders one line per record: the identifier value, then
// key=value for every other key with a non-empty value, keys sorted.
func formatList(records []galaxy.Record, identifier string) string {
	lines := make([]string, 0, len(records))

	for _, rec := range records {
		keys := make([]string, 0, len(rec))
		for k, v := range rec {
			if k != identifier && truthy(v) {
				keys = append(keys, k)
			}
		}

		sort.Strings(keys)

		fields := make([]string, 0, len(keys)+1)
		fields = append(fields, rec.String(identifier))

		for _, k := range keys {
			fields = append(fields, k+"="+displayValue(rec[k]))
		}

		lines = append(lines, strings.Join(fields, " "))
	}

	return strings.Join(lines, "\n")
}

// truthy reports whether a decoded JSON value is worth printing.
func truthy(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case string:
		return x != ""
	case float64:
		return x != 0
	case json.Number:
		return x.String() != "0"
	case []any:
		return len(x) > 0
	case map[string]any:
		return len(x) > 0
	default:
		return true
	}
}

func displayValue(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case []any, map[string]any:
		data, err := json.Marshal(x)
		if err != nil {
			return fmt.Sprint(x)
		}

		return string(data)
	default:
		return fmt.Sprint(x)
	}
}

// toRecords converts typed API documents to Records through their JSON form.
func toRecords[T any](items []T) ([]galaxy.Record, error) {
	data, err := json.Marshal(items)
	if err != nil {
		return nil, fmt.Errorf("encoding records: %w", err)
	}

	var out []galaxy.Record
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("decoding records: %w", err)
	}

	return out, nil
}

// printJSON writes v as indented JSON.
func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	return enc.Encode(v)
}

// printRecords prints records as JSON under --json, else as formatList.
func (cc *CLIContext) printRecords(records []galaxy.Record, identifier string) error {
	if cc.Flags.JSON {
		return printJSON(cc.Out, records)
	}

	if len(records) == 0 {
		return nil
	}

	_, err := fmt.Fprintln(cc.Out, formatList(records, identifier))

	return err
}

// printTyped is printRecords for typed documents.
func printTyped[T any](cc *CLIContext, items []T, identifier string) error {
	if cc.Flags.JSON {
		return printJSON(cc.Out, items)
	}

	records, err := toRecords(items)
	if err != nil {
		return err
	}

	return cc.printRecords(records, identifier)
}

// printDocument prints a single document as JSON. Documents have no list
// form, so --json only changes indentation.
func (cc *CLIContext) printDocument(v any) error {
	if cc.Flags.JSON {
		return printJSON(cc.Out, v)
	}

	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding output: %w", err)
	}

	_, err = fmt.Fprintln(cc.Out, string(data))

	return err
}
