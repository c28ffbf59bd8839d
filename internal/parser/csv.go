package parser

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"investsql/internal/models"
)

// sniffSize is how much of the file is inspected to guess the delimiter
const sniffSize = 1024

var candidateDelimiters = []rune{',', ';', '\t', '|'}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// ReceiptReader reads investment receipt CSV exports
type ReceiptReader struct {
	logger *slog.Logger
}

// NewReceiptReader creates a reader that logs to l (or slog's default when nil)
func NewReceiptReader(l *slog.Logger) *ReceiptReader {
	if l == nil {
		l = slog.Default()
	}
	return &ReceiptReader{logger: l}
}

// ReadFile opens path and reads every non-blank row
func (rr *ReceiptReader) ReadFile(path string) ([]models.Receipt, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open csv: %w", err)
	}
	defer f.Close()

	receipts, err := rr.Read(f)
	if err != nil {
		return nil, err
	}
	rr.logger.Info("csv_read", "path", path, "rows", len(receipts))
	return receipts, nil
}

// Read parses CSV content with a header row. The delimiter is detected
// from the first bytes of input.
func (rr *ReceiptReader) Read(r io.Reader) ([]models.Receipt, error) {
	br := bufio.NewReaderSize(r, sniffSize*4)

	if head, err := br.Peek(len(utf8BOM)); err == nil && bytes.Equal(head, utf8BOM) {
		br.Discard(len(utf8BOM))
	}

	sample, err := br.Peek(sniffSize)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
		return nil, fmt.Errorf("read csv sample: %w", err)
	}
	delim := SniffDelimiter(sample)
	rr.logger.Debug("csv_delimiter_detected", "delimiter", string(delim))

	cr := csv.NewReader(br)
	cr.Comma = delim
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	idx := indexHeader(header)

	var receipts []models.Receipt
	dataRow := 0
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv row %d: %w", dataRow+1, err)
		}
		dataRow++

		if isBlankRecord(record) {
			continue
		}

		receipts = append(receipts, idx.receipt(dataRow, record))
	}

	return receipts, nil
}

// SniffDelimiter guesses the field separator of a CSV sample. The winner is
// the candidate present in the most lines with the same count on each line.
// It falls back to a comma.
func SniffDelimiter(sample []byte) rune {
	lines := strings.Split(strings.ReplaceAll(string(sample), "\r\n", "\n"), "\n")
	// The last line may be cut off by the sample window
	if len(lines) > 1 {
		lines = lines[:len(lines)-1]
	}

	best := ','
	bestScore := 0
	for _, d := range candidateDelimiters {
		counts := make(map[int]int)
		for _, line := range lines {
			if strings.TrimSpace(line) == "" {
				continue
			}
			if n := countUnquoted(line, d); n > 0 {
				counts[n]++
			}
		}
		// Score by the most common non-zero count
		score := 0
		for _, c := range counts {
			if c > score {
				score = c
			}
		}
		if score > bestScore {
			best, bestScore = d, score
		}
	}
	return best
}

// countUnquoted counts d in line, ignoring double-quoted sections
func countUnquoted(line string, d rune) int {
	n := 0
	quoted := false
	for _, r := range line {
		switch {
		case r == '"':
			quoted = !quoted
		case r == d && !quoted:
			n++
		}
	}
	return n
}

// headerIndex maps column names to positions
type headerIndex struct {
	names []string
	exact map[string]int
	lower map[string]int
}

func indexHeader(header []string) headerIndex {
	idx := headerIndex{
		names: make([]string, len(header)),
		exact: make(map[string]int, len(header)),
		lower: make(map[string]int, len(header)),
	}
	for i, h := range header {
		h = strings.TrimSpace(h)
		idx.names[i] = h
		if _, ok := idx.exact[h]; !ok {
			idx.exact[h] = i
		}
		if _, ok := idx.lower[strings.ToLower(h)]; !ok {
			idx.lower[strings.ToLower(h)] = i
		}
	}
	return idx
}

func (idx headerIndex) lookup(name string) (int, bool) {
	if i, ok := idx.exact[name]; ok {
		return i, true
	}
	i, ok := idx.lower[strings.ToLower(name)]
	return i, ok
}

func (idx headerIndex) get(record []string, name string) string {
	i, ok := idx.lookup(name)
	if !ok || i >= len(record) {
		return ""
	}
	return record[i]
}

func (idx headerIndex) receipt(row int, record []string) models.Receipt {
	r := models.Receipt{
		Row:    row,
		Name:   idx.get(record, models.ColumnName),
		Email:  idx.get(record, models.ColumnEmail),
		Phone:  idx.get(record, models.ColumnPhone),
		Amount: idx.get(record, models.ColumnAmount),
		Date:   idx.get(record, models.ColumnDate),
	}

	known := make(map[int]bool)
	for _, name := range []string{models.ColumnName, models.ColumnEmail, models.ColumnPhone, models.ColumnAmount, models.ColumnDate} {
		if i, ok := idx.lookup(name); ok {
			known[i] = true
		}
	}
	for i, name := range idx.names {
		if known[i] || name == "" || i >= len(record) {
			continue
		}
		if r.Extra == nil {
			r.Extra = make(map[string]string)
		}
		r.Extra[name] = record[i]
	}
	return r
}

func isBlankRecord(record []string) bool {
	for _, v := range record {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
