package discount

import (
	"compress/gzip"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"storefront/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// recordColumns is the expected CSV column count.
const recordColumns = 6

// parseRecords decodes a gzipped CSV stream into discount codes. Rows that
// fail to parse abort the whole load; a partially imported promotion file is
// worse than a rejected one.
func parseRecords(r io.Reader) ([]model.DiscountCode, error) {
	gzipReader, err := gzip.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to create gzip reader: %w", err)
	}
	defer gzipReader.Close()

	reader := csv.NewReader(gzipReader)
	reader.FieldsPerRecord = recordColumns

	var codes []model.DiscountCode
	line := 0
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read discount file: %w", err)
		}
		line++

		// Skip an optional header row.
		if line == 1 && strings.EqualFold(row[0], "code") {
			continue
		}

		code, err := parseRecord(row)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		codes = append(codes, code)
	}

	return codes, nil
}

// parseRecord converts one CSV row into a discount code.
func parseRecord(row []string) (model.DiscountCode, error) {
	code := model.NormalizeDiscountCode(row[0])
	if code == "" {
		return model.DiscountCode{}, fmt.Errorf("empty discount code")
	}

	discountType := model.DiscountType(strings.ToUpper(strings.TrimSpace(row[1])))
	switch discountType {
	case model.DiscountPercentage, model.DiscountFixedAmount, model.DiscountFreeShipping:
	default:
		return model.DiscountCode{}, fmt.Errorf("unknown discount type %q", row[1])
	}

	value, err := decimal.NewFromString(strings.TrimSpace(row[2]))
	if err != nil {
		return model.DiscountCode{}, fmt.Errorf("invalid discount value %q: %w", row[2], err)
	}
	if value.IsNegative() {
		return model.DiscountCode{}, fmt.Errorf("negative discount value %q", row[2])
	}
	if discountType == model.DiscountPercentage && value.GreaterThan(decimal.NewFromInt(100)) {
		return model.DiscountCode{}, fmt.Errorf("percentage discount %q exceeds 100", row[2])
	}

	result := model.DiscountCode{
		ID:     uuid.New(),
		Code:   code,
		Type:   discountType,
		Value:  value,
		Active: true,
	}

	if v := strings.TrimSpace(row[3]); v != "" {
		minOrder, err := strconv.ParseInt(v, 10, 64)
		if err != nil || minOrder < 0 {
			return model.DiscountCode{}, fmt.Errorf("invalid min_order_cents %q", row[3])
		}
		result.MinOrderCents = &minOrder
	}

	if v := strings.TrimSpace(row[4]); v != "" {
		maxUses, err := strconv.Atoi(v)
		if err != nil || maxUses < 1 {
			return model.DiscountCode{}, fmt.Errorf("invalid max_uses %q", row[4])
		}
		result.MaxUses = &maxUses
	}

	if v := strings.TrimSpace(row[5]); v != "" {
		expiresAt, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return model.DiscountCode{}, fmt.Errorf("invalid expires_at %q: %w", row[5], err)
		}
		result.ExpiresAt = &expiresAt
	}

	return result, nil
}
