package telemetry_test

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/fatih/color"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/victornm/kiosk/internal/domain"
	"github.com/victornm/kiosk/internal/event"
	"github.com/victornm/kiosk/internal/telemetry"
)

func TestNewLogger(t *testing.T) {
	color.NoColor = true

	tests := map[string]struct {
		c       telemetry.LogConfig
		wantErr bool
		assert  func(t *testing.T, out string)
	}{
		"json": {
			c: telemetry.LogConfig{Level: "info", Format: telemetry.LogFormatJSON},
			assert: func(t *testing.T, out string) {
				var m map[string]any
				require.NoError(t, json.Unmarshal([]byte(out), &m))
				assert.Equal(t, "sale recorded", m["msg"])
				assert.Equal(t, "tea-01", m["barcode"])
			},
		},
		"text": {
			c: telemetry.LogConfig{Level: "info", Format: telemetry.LogFormatText},
			assert: func(t *testing.T, out string) {
				assert.Contains(t, out, `msg="sale recorded"`)
				assert.Contains(t, out, "barcode=tea-01")
			},
		},
		"pretty": {
			c: telemetry.LogConfig{Level: "info", Format: telemetry.LogFormatPretty},
			assert: func(t *testing.T, out string) {
				assert.Contains(t, out, "INFO: sale recorded")
				assert.Contains(t, out, "inventory.barcode=tea-01")
			},
		},
		"level filters info": {
			c: telemetry.LogConfig{Level: "warn", Format: telemetry.LogFormatPretty},
			assert: func(t *testing.T, out string) {
				assert.Empty(t, out)
			},
		},
		"unknown format": {
			c:       telemetry.LogConfig{Level: "info", Format: "xml"},
			wantErr: true,
		},
		"unknown level": {
			c:       telemetry.LogConfig{Level: "loud", Format: telemetry.LogFormatJSON},
			wantErr: true,
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			var buf bytes.Buffer
			l, err := telemetry.NewLogger(&buf, tt.c)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)

			if tt.c.Format == telemetry.LogFormatPretty {
				l = l.WithGroup("inventory")
			}
			l.InfoContext(context.Background(), "sale recorded", "barcode", "tea-01")

			tt.assert(t, buf.String())
		})
	}
}

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := telemetry.NewMetrics(reg)

	eb := event.NewBus()
	m.Subscribe(eb)

	ctx := context.Background()
	eb.Publish(ctx, domain.EventProductCreated{})
	eb.Publish(ctx, domain.EventSaleRecorded{Sale: domain.Sale{Quantity: 3, Total: decimal.RequireFromString("37.50")}})
	eb.Publish(ctx, domain.EventSaleRecorded{Sale: domain.Sale{Quantity: 2, Total: decimal.RequireFromString("60")}})
	eb.Publish(ctx, domain.EventStockLow{Product: domain.Product{Category: domain.CategoryFood}})
	eb.Publish(ctx, domain.EventQuizSubmitted{Reason: domain.SubmitReasonExpired, Result: domain.Result{Score: 5, MaxScore: 10}})
	eb.Publish(ctx, domain.EventQuizSubmitted{Reason: domain.SubmitReasonManual})
	eb.Stop()

	assert.Equal(t, 1.0, testutil.ToFloat64(m.ProductsCreated))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.SalesRecorded))
	assert.Equal(t, 5.0, testutil.ToFloat64(m.PiecesSold))
	assert.InDelta(t, 97.5, testutil.ToFloat64(m.Revenue), 1e-9)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.StockLow.WithLabelValues("food")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.QuizSubmitted.WithLabelValues(domain.SubmitReasonExpired)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.QuizSubmitted.WithLabelValues(domain.SubmitReasonManual)))
	assert.Equal(t, 1, testutil.CollectAndCount(m.QuizScore))
}
