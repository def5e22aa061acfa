package inventory

import (
	"bytes"
	"context"
	"encoding/csv"
	"strconv"
	"time"
)

var salesHeader = []string{"timestamp", "product_name", "quantity", "total", "profit"}

// ExportSalesCSV renders the Sales table in append order.
func (s *Service) ExportSalesCSV(ctx context.Context) ([]byte, error) {
	sales, err := s.store.ListSales(ctx)
	if err != nil {
		return nil, err
	}

	rows := make([][]string, 0, len(sales)+1)
	rows = append(rows, salesHeader)
	for _, sl := range sales {
		rows = append(rows, []string{
			sl.Timestamp.UTC().Format(time.DateTime),
			sl.ProductName,
			strconv.Itoa(sl.Quantity),
			sl.Total.StringFixed(2),
			sl.Profit.StringFixed(2),
		})
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.WriteAll(rows); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}
