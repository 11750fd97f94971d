package feed

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"
	"github.com/storefront/landedcost/internal/domain/integration"
)

// CSV column names
const (
	ColExternalID  = "external_id"
	ColName        = "name"
	ColImageURLs   = "image_urls"
	ColVideoURL    = "video_url"
	ColSize        = "size"
	ColColor       = "color"
	ColExternalSKU = "external_sku"
	ColUnitCost    = "unit_cost"
	ColCurrency    = "currency"
	ColStock       = "stock"
	ColWeightKg    = "weight_kg"
	ColLengthCm    = "length_cm"
	ColWidthCm     = "width_cm"
	ColHeightCm    = "height_cm"
)

// ImageSeparator splits the image_urls column
const ImageSeparator = "|"

var requiredColumns = []string{ColExternalID, ColName}

// variantColumns carry per-variant values; a row that leaves all of them
// empty contributes the product without a variant
var variantColumns = []string{
	ColSize, ColColor, ColExternalSKU, ColUnitCost, ColCurrency, ColStock,
	ColWeightKg, ColLengthCm, ColWidthCm, ColHeightCm,
}

// CSVReader reads one row per variant. Rows sharing an external_id are
// grouped into one product in first-seen order; product-level columns are
// taken from the first row of each group.
type CSVReader struct{}

// Read implements Reader
func (CSVReader) Read(r io.Reader) ([]integration.SupplierProduct, error) {
	br := bufio.NewReader(r)
	if err := skipBOM(br); err != nil {
		return nil, err
	}
	if err := validateUTF8(br); err != nil {
		return nil, err
	}

	cr := csv.NewReader(br)
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, ErrEmptyFeed
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	columns := make(map[string]int, len(header))
	for i, h := range header {
		columns[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, c := range requiredColumns {
		if _, ok := columns[c]; !ok {
			return nil, &ParseError{Line: 1, Column: c, Message: "required column is missing"}
		}
	}

	var products []integration.SupplierProduct
	index := make(map[string]int)
	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var csvErr *csv.ParseError
			if errors.As(err, &csvErr) {
				return nil, &ParseError{Line: csvErr.Line, Message: csvErr.Err.Error()}
			}
			return nil, fmt.Errorf("failed to read feed: %w", err)
		}
		line, _ := cr.FieldPos(0)

		row := csvRow{line: line, columns: columns, record: record}
		if row.empty() {
			continue
		}

		id := row.get(ColExternalID)
		pos, seen := index[id]
		if !seen {
			products = append(products, integration.SupplierProduct{
				ExternalID: id,
				Name:       row.get(ColName),
				ImageURLs:  splitImages(row.get(ColImageURLs)),
				VideoURL:   row.get(ColVideoURL),
			})
			pos = len(products) - 1
			index[id] = pos
		}

		if !row.hasVariant() {
			continue
		}
		v, err := row.variant()
		if err != nil {
			return nil, err
		}
		products[pos].Variants = append(products[pos].Variants, v)
	}
	return products, nil
}

type csvRow struct {
	line    int
	columns map[string]int
	record  []string
}

func (r csvRow) get(col string) string {
	i, ok := r.columns[col]
	if !ok || i >= len(r.record) {
		return ""
	}
	return strings.TrimSpace(r.record[i])
}

func (r csvRow) empty() bool {
	for _, v := range r.record {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

func (r csvRow) hasVariant() bool {
	for _, c := range variantColumns {
		if r.get(c) != "" {
			return true
		}
	}
	return false
}

func (r csvRow) variant() (integration.SupplierVariant, error) {
	v := integration.SupplierVariant{
		Size:        r.get(ColSize),
		Color:       r.get(ColColor),
		ExternalSKU: r.get(ColExternalSKU),
		Currency:    r.get(ColCurrency),
	}

	decimals := []struct {
		col string
		dst *decimal.Decimal
	}{
		{ColUnitCost, &v.UnitCost},
		{ColWeightKg, &v.WeightKg},
		{ColLengthCm, &v.LengthCm},
		{ColWidthCm, &v.WidthCm},
		{ColHeightCm, &v.HeightCm},
	}
	for _, d := range decimals {
		raw := r.get(d.col)
		if raw == "" {
			continue
		}
		parsed, err := decimal.NewFromString(raw)
		if err != nil {
			return v, &ParseError{Line: r.line, Column: d.col, Message: fmt.Sprintf("invalid decimal %q", raw)}
		}
		*d.dst = parsed
	}

	if raw := r.get(ColStock); raw != "" {
		stock, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return v, &ParseError{Line: r.line, Column: ColStock, Message: fmt.Sprintf("invalid integer %q", raw)}
		}
		v.Stock = stock
	}
	return v, nil
}

func splitImages(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ImageSeparator)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func validateUTF8(br *bufio.Reader) error {
	const checkSize = 4096
	head, err := br.Peek(checkSize)
	if err != nil && err != io.EOF {
		return fmt.Errorf("failed to read feed: %w", err)
	}
	if len(head) == 0 {
		return ErrEmptyFeed
	}
	if !utf8.Valid(trimPartialRune(head)) {
		return ErrInvalidEncoding
	}
	return nil
}

// trimPartialRune drops a multi-byte sequence cut off by the peek window
func trimPartialRune(b []byte) []byte {
	for i := 1; i <= utf8.UTFMax && i <= len(b); i++ {
		if utf8.RuneStart(b[len(b)-i]) {
			if !utf8.FullRune(b[len(b)-i:]) {
				return b[:len(b)-i]
			}
			return b
		}
	}
	return b
}
