package integration

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	chi "github.com/go-chi/chi/v5"

	"github.com/rajasatyajit/balanca-checkout/config"
	"github.com/rajasatyajit/balanca-checkout/internal/api"
	"github.com/rajasatyajit/balanca-checkout/internal/checkout"
	apperrors "github.com/rajasatyajit/balanca-checkout/internal/errors"
	"github.com/rajasatyajit/balanca-checkout/internal/gateway"
	"github.com/rajasatyajit/balanca-checkout/internal/models"
	"github.com/rajasatyajit/balanca-checkout/internal/payment"
	"github.com/rajasatyajit/balanca-checkout/internal/store"
	sdk "github.com/rajasatyajit/balanca-checkout/sdk/go"
)

func newSandboxServer(t *testing.T, settleAfter int) *httptest.Server {
	t.Helper()
	st := store.NewInMemoryStore()
	svc := payment.NewService(gateway.NewSandbox(settleAfter), st, config.PaymentConfig{
		AmountCents:      500,
		ExpiresIn:        time.Hour,
		Description:      "Acesso Vitalício",
		ExternalIDPrefix: "balanca-web",
	})
	r := chi.NewRouter()
	api.NewHandler(svc, st, nil, "test", "test-time", "test-commit").RegisterRoutes(r)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

// A session driven through the SDK against the real HTTP surface settles
// once the sandbox reports the charge paid.
func TestCheckoutFlow_SessionOverHTTP(t *testing.T) {
	srv := newSandboxServer(t, 3)
	session := checkout.NewSession(sdk.New(srv.URL), checkout.Options{PollInterval: 5 * time.Millisecond})
	defer session.Close()

	if err := session.Submit(models.BuyerInfo{Name: "Ana", Email: "a@b.com", Phone: "(11) 91234-5678", CPF: "123.456.789-09"}); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	snap, err := session.Wait(ctx)
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if snap.State != checkout.StateSuccess {
		t.Fatalf("expected success, got %s (%v)", snap.State, snap.Err)
	}
}

func TestCheckoutFlow_UnknownPayment(t *testing.T) {
	srv := newSandboxServer(t, 0)
	_, err := sdk.New(srv.URL).PaymentStatus(context.Background(), "sbx_missing")
	if !errors.Is(err, apperrors.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestCheckoutFlow_ServerRejectsBadInput(t *testing.T) {
	srv := newSandboxServer(t, 0)
	_, err := sdk.New(srv.URL).CreatePayment(context.Background(), models.BuyerInfo{Name: "Ana"})
	var apiErr *sdk.APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != 400 {
		t.Fatalf("expected 400 APIError, got %v", err)
	}
	if apiErr.Message != "Todos os campos são obrigatórios." {
		t.Errorf("unexpected message %q", apiErr.Message)
	}
}
