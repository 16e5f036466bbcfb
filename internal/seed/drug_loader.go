package seed

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"clinic/m/internal/inventory"
)

// drugColumns is the expected CSV header.
var drugColumns = []string{
	"name", "category", "strength", "unit", "purchase_form", "purchase_price",
	"units_per_purchase", "sale_form", "pos_markup", "prescription_markup", "min_stock", "expiry_date",
}

// LoadDrugs creates one drug per CSV row through the inventory service, so
// every row is validated and audited like an API submission. Bad rows are
// logged and skipped.
func LoadDrugs(ctx context.Context, svc *inventory.Service, actor inventory.Actor, csvPath string, log zerolog.Logger) (int, error) {
	file, err := os.Open(csvPath)
	if err != nil {
		return 0, fmt.Errorf("open drug catalog %s: %w", csvPath, err)
	}
	defer file.Close()
	return loadDrugs(ctx, svc, actor, file, log)
}

func loadDrugs(ctx context.Context, svc *inventory.Service, actor inventory.Actor, r io.Reader, log zerolog.Logger) (int, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return 0, fmt.Errorf("read drug header: %w", err)
	}
	index := make(map[string]int, len(header))
	for i, h := range header {
		index[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, col := range drugColumns[:2] {
		if _, ok := index[col]; !ok {
			return 0, fmt.Errorf("drug catalog is missing column %q", col)
		}
	}

	rows := 0
	line := 1
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			log.Warn().Err(err).Int("line", line).Msg("unable to read drug row")
			continue
		}
		field := func(name string) string {
			if i, ok := index[name]; ok && i < len(record) {
				return strings.TrimSpace(record[i])
			}
			return ""
		}

		basics := inventory.DrugBasics{
			Name:     field("name"),
			Category: field("category"),
			Strength: field("strength"),
			Unit:     field("unit"),
		}
		p := inventory.DrugPricing{
			PurchaseForm:       field("purchase_form"),
			PurchasePrice:      parseFloat(field("purchase_price")),
			UnitsPerPurchase:   parseInt(field("units_per_purchase")),
			SaleForm:           field("sale_form"),
			PosMarkup:          parseFloat(field("pos_markup")),
			PrescriptionMarkup: parseFloat(field("prescription_markup")),
			MinStock:           parseInt(field("min_stock")),
			ExpiryDate:         field("expiry_date"),
		}
		cmd, err := inventory.NewDrugBuilder().WithBasics(basics).WithPricing(p).Build()
		if err != nil {
			log.Warn().Err(err).Int("line", line).Str("name", basics.Name).Msg("skipping invalid drug row")
			continue
		}
		if _, err := svc.CreateDrug(ctx, actor, cmd); err != nil {
			log.Warn().Err(err).Int("line", line).Str("name", basics.Name).Msg("unable to insert drug")
			continue
		}
		rows++
	}

	log.Info().Int("rows", rows).Msg("seeded drug catalog")
	return rows, nil
}

func parseFloat(s string) float64 {
	if s == "" {
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return -1
	}
	return v
}

func parseInt(s string) int64 {
	if s == "" {
		return 0
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return -1
	}
	return v
}
