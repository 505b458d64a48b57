package table

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/mattn/go-runewidth"

	"sysconsole/internal/parse"
)

const (
	// NA подставляется вместо отсутствующих и невычислимых значений.
	NA = "N/A"
	// NoRecords сообщение по умолчанию для пустой выборки.
	NoRecords = "No records found."

	gib = 1 << 30
)

// Converter вычисляет отображаемое значение ячейки.
type Converter func(value string, rec parse.Record) string

// Column описывает колонку: исходное поле, заголовок, ширину и конвертер.
type Column struct {
	Field   string
	Header  string
	Width   int
	Convert Converter
}

// Spec набор колонок в порядке отображения.
type Spec struct {
	Columns []Column
	// Empty выводится вместо таблицы, если записей нет.
	Empty string
}

// Render строит таблицу фиксированной ширины: шапка, разделитель, строки.
func (s Spec) Render(records []parse.Record) string {
	if len(records) == 0 {
		if s.Empty != "" {
			return s.Empty
		}
		return NoRecords
	}

	lines := make([]string, 0, len(records)+2)
	header := make([]string, len(s.Columns))
	sep := make([]string, len(s.Columns))
	for i, col := range s.Columns {
		header[i] = cell(col.Header, col.Width)
		sep[i] = strings.Repeat("-", col.Width)
	}
	lines = append(lines, joinRow(header), joinRow(sep))

	for _, rec := range records {
		row := make([]string, len(s.Columns))
		for i, col := range s.Columns {
			v := rec[col.Field]
			if col.Convert != nil {
				v = col.Convert(v, rec)
			} else if v == "" {
				v = NA
			}
			row[i] = cell(v, col.Width)
		}
		lines = append(lines, joinRow(row))
	}
	return strings.Join(lines, "\n")
}

// Render форматирует записи по колонкам с сообщением по умолчанию.
func Render(records []parse.Record, cols ...Column) string {
	return Spec{Columns: cols}.Render(records)
}

// cell обрезает значение по ширине колонки (с учетом ширины рун) и дополняет пробелами.
func cell(v string, width int) string {
	if width <= 0 {
		return v
	}
	v = strings.Join(strings.Fields(v), " ")
	return runewidth.FillRight(runewidth.Truncate(v, width, ""), width)
}

func joinRow(cells []string) string {
	return strings.TrimRight(strings.Join(cells, " "), " ")
}

func parseNumber(v string) (float64, bool) {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0, false
	}
	n, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

func formatGiB(bytes float64) string {
	return fmt.Sprintf("%.2f", bytes/gib)
}

// GiB переводит байты в GiB с двумя знаками; 0 и мусор дают N/A.
func GiB(value string, _ parse.Record) string {
	n, ok := parseNumber(value)
	if !ok || n <= 0 {
		return NA
	}
	return formatGiB(n)
}

// KiBToGiB переводит килобайты (FreePhysicalMemory у WMIC) в GiB.
func KiBToGiB(value string, _ parse.Record) string {
	n, ok := parseNumber(value)
	if !ok || n <= 0 {
		return NA
	}
	return formatGiB(n * 1024)
}

// UsedGiB вычисляет занятый объем size-free в GiB.
func UsedGiB(sizeField, freeField string) Converter {
	return func(_ string, rec parse.Record) string {
		size, ok := parseNumber(rec[sizeField])
		if !ok || size <= 0 {
			return NA
		}
		free, ok := parseNumber(rec[freeField])
		if !ok || free < 0 || free > size {
			return NA
		}
		return formatGiB(size - free)
	}
}

// UsedPercent вычисляет процент занятого (size-free)/size; size=0 дает N/A.
func UsedPercent(sizeField, freeField string) Converter {
	return func(_ string, rec parse.Record) string {
		size, ok := parseNumber(rec[sizeField])
		if !ok || size <= 0 {
			return NA
		}
		free, ok := parseNumber(rec[freeField])
		if !ok || free < 0 || free > size {
			return NA
		}
		return fmt.Sprintf("%.2f%%", (size-free)/size*100)
	}
}

// Basename оставляет часть значения после последнего sep.
func Basename(sep string) Converter {
	return func(value string, _ parse.Record) string {
		if value == "" {
			return NA
		}
		if i := strings.LastIndex(value, sep); i >= 0 {
			return value[i+len(sep):]
		}
		return value
	}
}

// Default подставляет fallback для пустого значения.
func Default(fallback string) Converter {
	return func(value string, _ parse.Record) string {
		if value == "" {
			return fallback
		}
		return value
	}
}
