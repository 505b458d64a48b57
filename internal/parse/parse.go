// Package parse превращает полуструктурированный вывод системных утилит
// (WMIC /value, CSV, выровненные колонки) в упорядоченные записи.
//
// Все парсеры тотальные: некорректные строки пропускаются с предупреждением,
// разбор остальных строк продолжается.
package parse

import (
	"encoding/csv"
	"fmt"
	"strings"
	"unicode"
)

// Record поля одного объекта (диск, служба, процесс).
type Record map[string]string

// Get возвращает значение поля или fallback, если поле пустое.
func (r Record) Get(field, fallback string) string {
	if v, ok := r[field]; ok && v != "" {
		return v
	}
	return fallback
}

// Warning описывает пропущенную строку исходного вывода.
type Warning struct {
	Line   int
	Text   string
	Reason string
}

func (w Warning) String() string {
	return fmt.Sprintf("line %d skipped (%s): %s", w.Line, w.Reason, w.Text)
}

func splitLines(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "")
	return strings.Split(text, "\n")
}

// KeyValueBlocks разбирает блоки строк KEY=VALUE, разделенные пустыми строками.
// Строки без '=' игнорируются; последний блок без завершающей пустой строки
// тоже попадает в результат.
func KeyValueBlocks(text string) []Record {
	var (
		out     []Record
		current = Record{}
	)
	for _, raw := range splitLines(text) {
		line := strings.TrimSpace(raw)
		if line == "" {
			if len(current) > 0 {
				out = append(out, current)
				current = Record{}
			}
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		current[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}
	if len(current) > 0 {
		out = append(out, current)
	}
	return out
}

// DelimitedSpec настраивает разбор табличного вывода с разделителем.
type DelimitedSpec struct {
	// Delim разделитель полей; по умолчанию ','.
	Delim rune
	// Headers задает имена колонок; если пусто, заголовком служит первая непустая строка.
	Headers []string
}

// Delimited разбирает CSV-подобный вывод. Строки с числом полей, отличным от
// числа заголовков, пропускаются и дают ровно одно предупреждение.
func Delimited(text string, spec DelimitedSpec) ([]Record, []Warning) {
	delim := spec.Delim
	if delim == 0 {
		delim = ','
	}
	headers := append([]string(nil), spec.Headers...)

	var (
		out      []Record
		warnings []Warning
	)
	for i, raw := range splitLines(text) {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		fields, err := splitDelimited(line, delim)
		if err != nil {
			warnings = append(warnings, Warning{Line: i + 1, Text: line, Reason: err.Error()})
			continue
		}
		if headers == nil {
			headers = fields
			continue
		}
		if len(fields) != len(headers) {
			warnings = append(warnings, Warning{
				Line:   i + 1,
				Text:   line,
				Reason: fmt.Sprintf("expected %d fields, got %d", len(headers), len(fields)),
			})
			continue
		}
		rec := make(Record, len(headers))
		for j, h := range headers {
			rec[h] = fields[j]
		}
		out = append(out, rec)
	}
	return out, warnings
}

func splitDelimited(line string, delim rune) ([]string, error) {
	r := csv.NewReader(strings.NewReader(line))
	r.Comma = delim
	r.LazyQuotes = true
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true
	fields, err := r.Read()
	if err != nil {
		return nil, err
	}
	for i := range fields {
		fields[i] = strings.TrimSpace(fields[i])
	}
	return fields, nil
}

// ColumnSpec настраивает разбор колонок, выровненных пробелами.
type ColumnSpec struct {
	Headers []string
	// SkipHeader пропускает первую непустую строку (шапку утилиты).
	SkipHeader bool
}

// Columns делит каждую строку максимум на len(Headers) полей; последнее поле
// сохраняет внутренние пробелы (описание службы, командная строка процесса).
func Columns(text string, spec ColumnSpec) ([]Record, []Warning) {
	n := len(spec.Headers)
	if n == 0 {
		return nil, nil
	}
	var (
		out      []Record
		warnings []Warning
		skipped  = !spec.SkipHeader
	)
	for i, raw := range splitLines(text) {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		if !skipped {
			skipped = true
			continue
		}
		fields := SplitFieldsN(line, n)
		if len(fields) < n {
			warnings = append(warnings, Warning{
				Line:   i + 1,
				Text:   line,
				Reason: fmt.Sprintf("expected %d fields, got %d", n, len(fields)),
			})
			continue
		}
		rec := make(Record, n)
		for j, h := range spec.Headers {
			rec[h] = fields[j]
		}
		out = append(out, rec)
	}
	return out, warnings
}

// SplitFieldsN делит строку по пробельным символам не более чем на n частей.
func SplitFieldsN(s string, n int) []string {
	s = strings.TrimSpace(s)
	if s == "" || n <= 0 {
		return nil
	}
	var fields []string
	for len(fields) < n-1 {
		idx := strings.IndexFunc(s, unicode.IsSpace)
		if idx < 0 {
			break
		}
		fields = append(fields, s[:idx])
		s = strings.TrimLeftFunc(s[idx:], unicode.IsSpace)
		if s == "" {
			return fields
		}
	}
	return append(fields, s)
}
