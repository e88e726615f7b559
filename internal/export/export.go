// Package export writes scraped offers as spreadsheets.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/xuri/excelize/v2"

	"github.com/pauljones0/meli-offers-bot/internal/models"
)

const sheetName = "Offers"

// utf8BOM makes spreadsheet apps detect the encoding of accented titles.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

var header = []string{"id", "headline", "title", "price", "price_from", "coupon", "permalink", "image", "discount_pct", "store"}

// WriteCSV writes offers as UTF-8 CSV with a BOM and a header row.
func WriteCSV(w io.Writer, offers []models.Offer) error {
	if _, err := w.Write(utf8BOM); err != nil {
		return err
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, o := range offers {
		if err := cw.Write([]string{
			o.ID,
			o.Headline,
			o.Title,
			formatFloat(o.Price),
			formatFloat(o.PriceFrom),
			o.Coupon,
			o.Permalink,
			o.Image,
			strconv.Itoa(o.DiscountPct),
			o.Store,
		}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteXLSX writes offers to a single "Offers" sheet.
func WriteXLSX(w io.Writer, offers []models.Offer) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	for i, h := range header {
		if err := setCell(f, i+1, 1, h); err != nil {
			return err
		}
	}

	for r, o := range offers {
		row := []any{
			o.ID,
			o.Headline,
			o.Title,
			floatValue(o.Price),
			floatValue(o.PriceFrom),
			o.Coupon,
			o.Permalink,
			o.Image,
			o.DiscountPct,
			o.Store,
		}
		for c, v := range row {
			if v == nil {
				continue
			}
			if err := setCell(f, c+1, r+2, v); err != nil {
				return err
			}
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func setCell(f *excelize.File, col, row int, v any) error {
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return fmt.Errorf("cell name: %w", err)
	}
	if err := f.SetCellValue(sheetName, cell, v); err != nil {
		return fmt.Errorf("set cell %s: %w", cell, err)
	}
	return nil
}

func formatFloat(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', 2, 64)
}

func floatValue(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}
