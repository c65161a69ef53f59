package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rajasatyajit/balanca-checkout/config"
	"github.com/rajasatyajit/balanca-checkout/internal/gateway"
	"github.com/rajasatyajit/balanca-checkout/internal/logger"
	"github.com/rajasatyajit/balanca-checkout/internal/payment"
	"github.com/rajasatyajit/balanca-checkout/internal/ratelimit"
	"github.com/rajasatyajit/balanca-checkout/internal/store"
)

// getFreePort returns an available TCP port
func getFreePort(t *testing.T) int {
	l, err := net.Listen("tcp", ":0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port
}

func TestStartMetricsServer_Smoke(t *testing.T) {
	logger.Init("error", "text")
	port := getFreePort(t)
	go startMetricsServer(port, "/metrics")
	url := fmt.Sprintf("http://localhost:%d/metrics", port)

	deadline := time.Now().Add(3 * time.Second)
	var lastErr error
	for time.Now().Before(deadline) {
		resp, err := http.Get(url)
		if err == nil {
			resp.Body.Close()
			// NoOp handler returns 404 Not Found
			if resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusOK {
				return
			}
		}
		lastErr = err
		time.Sleep(100 * time.Millisecond)
	}
	t.Fatalf("metrics server not reachable: %v", lastErr)
}

func testConfig() *config.Config {
	return &config.Config{
		Server:  config.ServerConfig{ReadTimeout: 5 * time.Second},
		Gateway: config.GatewayConfig{Provider: config.ProviderSandbox, RPS: 100, SandboxPolls: 1},
		Payment: config.PaymentConfig{AmountCents: 500, ExpiresIn: time.Hour, Description: "Acesso", ExternalIDPrefix: "balanca-web"},
		HTTP:    config.HTTPConfig{AllowedOrigins: []string{"*"}, CreateRateLimitPerMinute: 10},
	}
}

func TestRouter_SandboxCheckout(t *testing.T) {
	logger.Init("error", "text")
	cfg := testConfig()
	gw, err := gateway.New(cfg.Gateway)
	if err != nil {
		t.Fatalf("gateway.New: %v", err)
	}
	st := store.NewInMemoryStore()
	srv := httptest.NewServer(newRouter(cfg, payment.NewService(gw, st, cfg.Payment), st, gw, ratelimit.NewMemoryLimiter()))
	defer srv.Close()

	body := `{"name":"Ana","email":"a@b.com","phone":"11912345678","cpf":"12345678909"}`
	resp, err := http.Post(srv.URL+"/create-payment", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	if resp.Header.Get("Access-Control-Allow-Origin") != "*" {
		t.Error("expected CORS header")
	}
	var intent struct {
		PaymentID string `json:"paymentId"`
	}
	json.NewDecoder(resp.Body).Decode(&intent)

	statuses := []string{"PENDING", "SUCCESS"}
	for _, expected := range statuses {
		r, err := http.Get(srv.URL + "/payment-status/" + intent.PaymentID)
		if err != nil {
			t.Fatalf("status: %v", err)
		}
		var out struct {
			Status string `json:"status"`
		}
		json.NewDecoder(r.Body).Decode(&out)
		r.Body.Close()
		if out.Status != expected {
			t.Errorf("expected %s, got %s", expected, out.Status)
		}
	}

	// sandbox has no webhook parser
	r, _ := http.Post(srv.URL+"/webhooks/sandbox", "application/json", strings.NewReader(`{}`))
	r.Body.Close()
	if r.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404 for sandbox webhook, got %d", r.StatusCode)
	}
}

func TestNewLimiter_FallsBackWithoutRedis(t *testing.T) {
	logger.Init("error", "text")
	if _, ok := newLimiter(context.Background(), config.RedisConfig{}).(*ratelimit.MemoryLimiter); !ok {
		t.Error("expected memory limiter without REDIS_URL")
	}
	if _, ok := newLimiter(context.Background(), config.RedisConfig{URL: "not a url"}).(*ratelimit.MemoryLimiter); !ok {
		t.Error("expected memory limiter for invalid REDIS_URL")
	}
}
