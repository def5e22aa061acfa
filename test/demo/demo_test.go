//go:build integration_test

package demo

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/victornm/kiosk/internal/api"
	"github.com/victornm/kiosk/internal/domain"
)

// A kiosk must be running with the default ports and Redis prefix, e.g.
// `CONFIG_PATH=config.yaml go run ./cmd serve`.
const (
	httpAddr = "http://localhost:8080"
	grpcAddr = "localhost:9090"
	channel  = "kiosk:inventory"
)

func TestHealth(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, err := grpc.NewClient(grpcAddr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	hc := healthpb.NewHealthClient(conn)
	for _, svc := range []string{"kiosk.inventory", "kiosk.quiz"} {
		resp, err := hc.Check(ctx, &healthpb.HealthCheckRequest{Service: svc})
		require.NoError(t, err, svc)
		require.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.Status, svc)
	}
}

// TestConcurrentSales sells more than the stock from many registers at once:
// exactly the available quantity is sold, the rest is rejected.
func TestConcurrentSales(t *testing.T) {
	const (
		stock     = 20
		registers = 30
	)

	var (
		wg       = new(sync.WaitGroup)
		barcode  = uuid.NewString()
		sold     atomic.Int32
		rejected atomic.Int32
	)

	lowStock := subscribe(t, makeRedis(t), wg, domain.EventNameStockLow)

	status, body := call(t, http.MethodPost, "/api/v1/inventory", map[string]any{
		"barcode":       barcode,
		"name":          "Demo tea " + barcode[:8],
		"category":      "food",
		"sale_price":    "12.50",
		"cost_price":    "9.75",
		"quantity":      stock,
		"reorder_level": 5,
	})
	require.Equal(t, http.StatusCreated, status, string(body))

	var eg errgroup.Group
	for i := 0; i < registers; i++ {
		eg.Go(func() error {
			status, body, err := send(http.MethodPost, "/api/v1/sales", map[string]any{"barcode": barcode, "quantity": 1})
			if err != nil {
				return fmt.Errorf("register %d: %w", i, err)
			}

			switch status {
			case http.StatusCreated:
				sold.Add(1)
			case http.StatusUnprocessableEntity:
				rejected.Add(1)
			default:
				return fmt.Errorf("register %d: unexpected status %d: %s", i, status, body)
			}
			return nil
		})
	}
	require.NoError(t, eg.Wait())

	require.EqualValues(t, stock, sold.Load())
	require.EqualValues(t, registers-stock, rejected.Load())

	status, body = call(t, http.MethodGet, "/api/v1/inventory/"+barcode, nil)
	require.Equal(t, http.StatusOK, status, string(body))

	var p api.Product
	require.NoError(t, json.Unmarshal(body, &p))
	require.Equal(t, 0, p.Quantity)
	require.True(t, p.Low)

	select {
	case n := <-lowStock:
		t.Logf("low stock notification: %s", n)
	case <-time.After(5 * time.Second):
		t.Fatal("no stock.low notification")
	}

	wg.Wait()
}

func TestQuizRun(t *testing.T) {
	status, body := call(t, http.MethodPost, "/api/v1/quiz/sessions", nil)
	require.Equal(t, http.StatusCreated, status, string(body))

	var v api.View
	require.NoError(t, json.Unmarshal(body, &v))
	base := "/api/v1/quiz/sessions/" + v.SessionID

	status, body = call(t, http.MethodPost, base+"/navigate", api.NavigateRequest{Page: "quiz"})
	if status == http.StatusUnprocessableEntity {
		t.Skipf("no questions authored yet: %s", body)
	}
	require.Equal(t, http.StatusOK, status, string(body))
	require.NoError(t, json.Unmarshal(body, &v))
	require.Equal(t, "running", v.Timer)

	status, body = call(t, http.MethodPost, base+"/submit", nil)
	require.Equal(t, http.StatusOK, status, string(body))
	require.NoError(t, json.Unmarshal(body, &v))
	require.Equal(t, "results_shown", v.Timer)
	require.Equal(t, len(v.Result.Questions), v.Result.Unanswered+v.Result.Pending)

	t.Logf("score %d/%d", v.Result.Score, v.Result.MaxScore)
}

func call(t *testing.T, method, path string, body any) (int, []byte) {
	t.Helper()

	status, b, err := send(method, path, body)
	require.NoError(t, err)
	return status, b
}

func send(method, path string, body any) (int, []byte, error) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return 0, nil, err
		}
	}

	req, err := http.NewRequest(method, httpAddr+path, &buf)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	var out bytes.Buffer
	if _, err := out.ReadFrom(resp.Body); err != nil {
		return 0, nil, err
	}

	return resp.StatusCode, out.Bytes(), nil
}

// subscribe forwards the data of the first notification named event on the
// inventory channel.
func subscribe(t *testing.T, rc redis.UniversalClient, wg *sync.WaitGroup, event string) <-chan json.RawMessage {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)

	sub := rc.Subscribe(ctx, channel)
	t.Cleanup(func() { sub.Close() })

	_, err := sub.Receive(ctx)
	require.NoError(t, err, "subscribe")

	c := make(chan json.RawMessage, 16)
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer close(c)

		msg, err := sub.ReceiveMessage(ctx)
		for ; err == nil; msg, err = sub.ReceiveMessage(ctx) {
			var n struct {
				Event string          `json:"event"`
				Data  json.RawMessage `json:"data"`
			}
			if err := json.Unmarshal([]byte(msg.Payload), &n); err != nil {
				t.Logf("unmarshal notification: %v", err)
				continue
			}

			if n.Event == event {
				c <- n.Data
				return
			}
		}
		t.Log(err)
	}()

	return c
}

func makeRedis(t *testing.T) redis.UniversalClient {
	r := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs: []string{"localhost:6379"},
	})
	t.Cleanup(func() { r.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := r.Ping(ctx).Err(); err != nil {
		t.Fatal(err)
	}

	return r
}
