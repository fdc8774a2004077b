package service

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// maxProductFileBytes caps how much of one product document is read for indexing.
const maxProductFileBytes = 5 << 20

// ErrUnsupportedFileType is returned for product documents whose extension has no extractor.
var ErrUnsupportedFileType = errors.New("unsupported product file type")

// ExtractFileText reads a product document from a local path and returns its plain text.
// Supported: .txt, .md, .csv (cells joined by spaces, one line per row), .json (string leaves).
func ExtractFileText(path string) (string, error) {
	ext := strings.ToLower(filepath.Ext(path))

	switch ext {
	case ".txt", ".md", ".csv", ".json":
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFileType, ext)
	}

	f, err := os.Open(path) //nolint:gosec // path comes from the catalog's blob store
	if err != nil {
		return "", fmt.Errorf("open product file: %w", err)
	}
	defer func() { _ = f.Close() }()

	data, err := io.ReadAll(io.LimitReader(f, maxProductFileBytes))
	if err != nil {
		return "", fmt.Errorf("read product file: %w", err)
	}

	switch ext {
	case ".csv":
		return csvText(data)
	case ".json":
		return jsonText(data)
	default:
		return string(data), nil
	}
}

func csvText(data []byte) (string, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	rows, err := r.ReadAll()
	if err != nil {
		return "", fmt.Errorf("parse csv: %w", err)
	}

	var b strings.Builder

	for _, row := range rows {
		line := strings.TrimSpace(strings.Join(row, " "))
		if line == "" {
			continue
		}

		b.WriteString(line)
		b.WriteByte('\n')
	}

	return b.String(), nil
}

func jsonText(data []byte) (string, error) {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return "", fmt.Errorf("parse json: %w", err)
	}

	var parts []string

	collectStrings(v, &parts)

	return strings.Join(parts, "\n"), nil
}

// collectStrings walks v depth-first. Object keys are visited in sorted order so output is stable.
func collectStrings(v any, out *[]string) {
	switch t := v.(type) {
	case string:
		if s := strings.TrimSpace(t); s != "" {
			*out = append(*out, s)
		}
	case []any:
		for _, e := range t {
			collectStrings(e, out)
		}
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}

		sort.Strings(keys)

		for _, k := range keys {
			collectStrings(t[k], out)
		}
	}
}
