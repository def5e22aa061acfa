package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"google.golang.org/grpc/codes"

	"github.com/victornm/kiosk/internal/domain"
	"github.com/victornm/kiosk/internal/errors"
	"github.com/victornm/kiosk/internal/event"
	"github.com/victornm/kiosk/internal/inventory"
	"github.com/victornm/kiosk/internal/ranking"
	"github.com/victornm/kiosk/internal/session"
)

type Config struct {
	EventBus     *event.Bus
	Inventory    *inventory.Service
	Ranking      *ranking.Service
	Session      *session.Service
	Redis        Redis
	PubsubPrefix string
}

type Redis interface {
	Publish(ctx context.Context, channel string, message any) *redis.IntCmd
}

type API struct {
	is  *inventory.Service
	rs  *ranking.Service
	qss *session.Service

	redis  Redis
	prefix string
}

func New(c Config) *API {
	a := &API{
		is:     c.Inventory,
		rs:     c.Ranking,
		qss:    c.Session,
		redis:  c.Redis,
		prefix: c.PubsubPrefix,
	}

	// Register event handlers
	c.EventBus.Subscribe(domain.EventNameStockLow, func(ctx context.Context, e event.Event) error {
		return a.PublishStockLow(ctx, e.(domain.EventStockLow))
	})
	c.EventBus.Subscribe(domain.EventNameTopSellersUpdated, func(ctx context.Context, e event.Event) error {
		return a.PublishTopSellersUpdated(ctx, e.(domain.EventTopSellersUpdated))
	})

	return a
}

// Register mounts the HTTP routes on r.
func (a *API) Register(r gin.IRouter) {
	r.GET("/healthz", a.Health)

	v1 := r.Group("/api/v1")

	inv := v1.Group("/inventory")
	inv.GET("", a.ListProducts)
	inv.POST("", a.AddProduct)
	inv.GET("/stats", a.GetStats)
	inv.GET("/low-stock", a.ListLowStock)
	inv.GET("/top-sellers", a.GetTopSellers)
	inv.GET("/:barcode", a.GetProduct)

	sales := v1.Group("/sales")
	sales.POST("", a.RecordSale)
	sales.GET("", a.ExportSales)

	qs := v1.Group("/quiz/sessions")
	qs.POST("", a.CreateSession)
	qs.GET("/:id", a.GetSession)
	qs.POST("/:id/navigate", a.Navigate)
	qs.POST("/:id/login", a.Login)
	qs.POST("/:id/logout", a.Logout)
	qs.PUT("/:id/answers/:index", a.Answer)
	qs.POST("/:id/submit", a.Submit)
	qs.POST("/:id/reset", a.Reset)
	qs.POST("/:id/questions", a.AddQuestion)
	qs.DELETE("/:id/questions/:index", a.DeleteQuestion)
	qs.PUT("/:id/settings/timer", a.SetQuizTime)
}

func (a *API) Health(c *gin.Context) {
	if err := a.is.Ping(c); err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// abortWithError renders err as {code, message}. Only the message of a typed
// error reaches the client; causes are logged for server-side failures.
func abortWithError(c *gin.Context, err error) {
	e := errors.Convert(err)

	if e.Code == errors.CodeInternal || e.Code == errors.CodeUnavailable {
		slog.ErrorContext(c, "api: request failed",
			"method", c.Request.Method,
			"route", c.FullPath(),
			"error", err,
		)
	}

	c.AbortWithStatusJSON(e.HTTPStatusCode(), ErrorResponse{
		Code:    codes.Code(e.Code).String(),
		Message: e.Message,
	})
}

func bindJSON(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		abortWithError(c, errors.InvalidArgument("malformed request body: %v", err))
		return false
	}
	return true
}
