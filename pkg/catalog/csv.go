package catalog

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"
)

// scraperColumns is the fixed 14-column schema every scraper emits. Missing
// values are empty strings, never omitted columns.
var scraperColumns = []string{
	"manufacturer",
	"code",
	"name",
	"start_date",
	"end_date",
	"manufacturer_description",
	"tags",
	"synonyms",
	"coe",
	"type",
	"manufacturer_url",
	"image_path",
	"image_url",
	"stock_type",
}

// DecodeCSV parses scraper CSV output into the same result shape as the JSON
// decoders. The header row is validated against the fixed schema.
func DecodeCSV(r io.Reader) (DecodeResult, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = len(scraperColumns)

	header, err := reader.Read()
	if err == io.EOF {
		return DecodeResult{}, fmt.Errorf("%w: empty input", ErrDecodingFailed)
	}
	if err != nil {
		return DecodeResult{}, fmt.Errorf("%w: %v", ErrDecodingFailed, err)
	}
	for i, want := range scraperColumns {
		if strings.TrimSpace(header[i]) != want {
			return DecodeResult{}, fmt.Errorf("%w: column %d is %q, want %q", ErrDecodingFailed, i, header[i], want)
		}
	}

	var result DecodeResult
	now := time.Now().UTC()
	for index := 0; ; index++ {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			result.Skipped = append(result.Skipped, SkippedItem{Index: index, Reason: err.Error()})
			continue
		}
		record := ItemRecord{
			Manufacturer:    row[0],
			Code:            row[1],
			Name:            row[2],
			Description:     row[5],
			Tags:            splitListField(row[6]),
			Synonyms:        splitListField(row[7]),
			COE:             row[8],
			ManufacturerURL: row[10],
			ImagePath:       row[11],
			ImageURL:        row[12],
			StockType:       firstNonEmpty(row[13], row[9]),
		}
		item, err := record.ToDomain(now)
		if err != nil {
			result.Skipped = append(result.Skipped, SkippedItem{Index: index, Reason: err.Error()})
			continue
		}
		result.Items = append(result.Items, item)
	}
	return result, nil
}

// splitListField parses the scrapers' quoted comma-separated list encoding,
// e.g. `"blue", "transparent"`.
func splitListField(value string) []string {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	return strings.Split(value, ",")
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
