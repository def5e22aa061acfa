package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/victornm/kiosk/internal/domain"
	"github.com/victornm/kiosk/internal/errors"
	"github.com/victornm/kiosk/internal/inventory"
	"github.com/victornm/kiosk/internal/ranking"
)

type (
	Product struct {
		Barcode      string `json:"barcode"`
		Name         string `json:"name"`
		Category     string `json:"category"`
		SalePrice    string `json:"sale_price"`
		CostPrice    string `json:"cost_price"`
		Quantity     int    `json:"quantity"`
		ReorderLevel int    `json:"reorder_level"`
		Low          bool   `json:"low"`
	}

	Sale struct {
		SaleID      string    `json:"sale_id"`
		Timestamp   time.Time `json:"timestamp"`
		ProductName string    `json:"product_name"`
		Quantity    int       `json:"quantity"`
		Total       string    `json:"total"`
		Profit      string    `json:"profit"`
	}

	Stats struct {
		Items       int    `json:"items"`
		TotalPieces int    `json:"total_pieces"`
		TotalValue  string `json:"total_value"`
		Currency    string `json:"currency"`
		Display     string `json:"display"`
	}

	TopSellers struct {
		Entries []TopSellerEntry `json:"entries"`
	}

	TopSellerEntry struct {
		ProductName string `json:"product_name"`
		Quantity    int64  `json:"quantity"`
	}

	AddProductRequest struct {
		Barcode      string          `json:"barcode"`
		Name         string          `json:"name"`
		Category     string          `json:"category"`
		SalePrice    decimal.Decimal `json:"sale_price"`
		CostPrice    decimal.Decimal `json:"cost_price"`
		Quantity     int             `json:"quantity"`
		ReorderLevel int             `json:"reorder_level"`
	}

	RecordSaleRequest struct {
		Barcode  string `json:"barcode"`
		Quantity int    `json:"quantity"`
	}

	RecordSaleResponse struct {
		Sale      Sale `json:"sale"`
		Remaining int  `json:"remaining"`
		LowStock  bool `json:"low_stock"`
	}
)

func (a *API) ListProducts(c *gin.Context) {
	ps, err := a.is.ListProducts(c)
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, toProducts(ps))
}

func (a *API) GetProduct(c *gin.Context) {
	p, err := a.is.Lookup(c, c.Param("barcode"))
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, toProduct(*p))
}

func (a *API) AddProduct(c *gin.Context) {
	var req AddProductRequest
	if !bindJSON(c, &req) {
		return
	}

	p, err := a.is.AddProduct(c, inventory.AddProductRequest{
		Barcode:      req.Barcode,
		Name:         req.Name,
		Category:     domain.Category(req.Category),
		SalePrice:    req.SalePrice,
		CostPrice:    req.CostPrice,
		Quantity:     req.Quantity,
		ReorderLevel: req.ReorderLevel,
	})
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, toProduct(*p))
}

func (a *API) RecordSale(c *gin.Context) {
	var req RecordSaleRequest
	if !bindJSON(c, &req) {
		return
	}

	res, err := a.is.RecordSale(c, inventory.RecordSaleRequest{
		Barcode:  req.Barcode,
		Quantity: req.Quantity,
	})
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, RecordSaleResponse{
		Sale:      toSale(res.Sale),
		Remaining: res.Remaining,
		LowStock:  res.LowStock,
	})
}

func (a *API) ExportSales(c *gin.Context) {
	b, err := a.is.ExportSalesCSV(c)
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.Header("Content-Disposition", `attachment; filename="sales.csv"`)
	c.Data(http.StatusOK, "text/csv; charset=utf-8", b)
}

func (a *API) GetStats(c *gin.Context) {
	st, err := a.is.Stats(c)
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, Stats{
		Items:       st.Items,
		TotalPieces: st.TotalPieces,
		TotalValue:  st.TotalValue.StringFixed(2),
		Currency:    st.Currency,
		Display:     st.Display,
	})
}

func (a *API) ListLowStock(c *gin.Context) {
	ps, err := a.is.LowStock(c)
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, toProducts(ps))
}

func (a *API) GetTopSellers(c *gin.Context) {
	var limit int
	if q := c.Query("limit"); q != "" {
		n, err := strconv.Atoi(q)
		if err != nil || n < 1 {
			abortWithError(c, errors.InvalidArgument("limit must be a positive integer"))
			return
		}
		limit = n
	}

	ts, err := a.rs.GetTopSellers(c, ranking.GetTopSellersRequest{Limit: limit})
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, toTopSellers(*ts))
}

func toProducts(ps []domain.Product) []Product {
	res := make([]Product, 0, len(ps))
	for _, p := range ps {
		res = append(res, toProduct(p))
	}
	return res
}

func toProduct(p domain.Product) Product {
	return Product{
		Barcode:      p.Barcode,
		Name:         p.Name,
		Category:     string(p.Category),
		SalePrice:    p.SalePrice.StringFixed(2),
		CostPrice:    p.CostPrice.StringFixed(2),
		Quantity:     p.Quantity,
		ReorderLevel: p.ReorderLevel,
		Low:          p.Low(),
	}
}

func toSale(sl domain.Sale) Sale {
	return Sale{
		SaleID:      sl.SaleID,
		Timestamp:   sl.Timestamp,
		ProductName: sl.ProductName,
		Quantity:    sl.Quantity,
		Total:       sl.Total.StringFixed(2),
		Profit:      sl.Profit.StringFixed(2),
	}
}

func toTopSellers(ts domain.TopSellers) TopSellers {
	res := TopSellers{Entries: make([]TopSellerEntry, 0, len(ts.Entries))}
	for _, e := range ts.Entries {
		res.Entries = append(res.Entries, TopSellerEntry{
			ProductName: e.ProductName,
			Quantity:    int64(e.Quantity),
		})
	}
	return res
}
