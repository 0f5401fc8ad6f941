// Command gendiscounts writes a sample gzipped CSV discount-code file in the
// format accepted by the bulk importer:
//
//	code,type,value,min_order_cents,max_uses,expires_at
//
// Usage: go run ./scripts/gendiscounts -out discounts.csv.gz -count 100
package main

import (
	"compress/gzip"
	"encoding/csv"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"strconv"
	"time"
)

func main() {
	out := flag.String("out", "discounts.csv.gz", "output file path")
	count := flag.Int("count", 100, "number of codes to generate")
	flag.Parse()

	if err := run(*out, *count); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(path string, count int) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer file.Close()

	gz := gzip.NewWriter(file)
	defer gz.Close()

	writer := csv.NewWriter(gz)
	defer writer.Flush()

	if err := writer.Write([]string{"code", "type", "value", "min_order_cents", "max_uses", "expires_at"}); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	expiry := time.Now().AddDate(0, 6, 0).UTC().Format(time.RFC3339)

	for i := 0; i < count; i++ {
		var record []string
		switch i % 3 {
		case 0:
			percent := strconv.Itoa(5 + rand.Intn(6)*5)
			record = []string{fmt.Sprintf("PCT%04d", i), "PERCENTAGE", percent, "", "", expiry}
		case 1:
			amount := strconv.Itoa((5 + rand.Intn(20)) * 100)
			minOrder := strconv.Itoa((50 + rand.Intn(100)) * 100)
			record = []string{fmt.Sprintf("FIX%04d", i), "FIXED_AMOUNT", amount, minOrder, "1000", expiry}
		case 2:
			record = []string{fmt.Sprintf("SHIP%04d", i), "FREE_SHIPPING", "0", "2500", "", expiry}
		}

		if err := writer.Write(record); err != nil {
			return fmt.Errorf("failed to write record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("failed to flush csv: %w", err)
	}

	fmt.Printf("wrote %d discount codes to %s\n", count, path)
	return nil
}
