package sdk

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rajasatyajit/balanca-checkout/internal/checkout"
	apperrors "github.com/rajasatyajit/balanca-checkout/internal/errors"
	"github.com/rajasatyajit/balanca-checkout/internal/models"
)

var _ checkout.Proxy = (*Client)(nil)

func TestCreatePayment(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/create-payment" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		var buyer models.BuyerInfo
		if err := json.NewDecoder(r.Body).Decode(&buyer); err != nil || buyer.CPF != "12345678909" {
			t.Errorf("unexpected body %+v %v", buyer, err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"paymentId":"pix_1","qrCode":"data:image/png;base64,AAAA","copiaECola":"000201"}`))
	}))
	defer srv.Close()

	intent, err := New(srv.URL).CreatePayment(context.Background(), models.BuyerInfo{Name: "Ana", Email: "a@b.com", Phone: "11912345678", CPF: "12345678909"})
	if err != nil {
		t.Fatalf("CreatePayment: %v", err)
	}
	if intent.ID != "pix_1" || intent.CopiaECola != "000201" {
		t.Errorf("unexpected intent %+v", intent)
	}
}

func TestCreatePayment_Errors(t *testing.T) {
	tests := []struct {
		name     string
		code     int
		body     string
		message  string
		errIs    error
		hasField string
	}{
		{"Validation", 400, `{"error":"Verifique os dados informados.","fields":{"cpf":"CPF inválido"}}`, "Verifique os dados informados.", apperrors.ErrInvalidInput, "cpf"},
		{"Gateway failure", 500, `{"error":"Erro ao gerar o PIX.","details":"gateway unavailable"}`, "Erro ao gerar o PIX.", nil, ""},
		{"Rate limited", 429, `{"error":"Muitas tentativas."}`, "Muitas tentativas.", apperrors.ErrRateLimit, ""},
		{"No body", 502, ``, FallbackCreateMessage, nil, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.code)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := New(srv.URL).CreatePayment(context.Background(), models.BuyerInfo{})
			var apiErr *APIError
			if !errors.As(err, &apiErr) {
				t.Fatalf("expected APIError, got %v", err)
			}
			if apiErr.StatusCode != tt.code || apiErr.Message != tt.message {
				t.Errorf("unexpected error %+v", apiErr)
			}
			if tt.errIs != nil && !errors.Is(err, tt.errIs) {
				t.Errorf("expected %v", tt.errIs)
			}
			if tt.hasField != "" && apiErr.Fields[tt.hasField] == "" {
				t.Errorf("expected field error for %s", tt.hasField)
			}
		})
	}
}

func TestPaymentStatus(t *testing.T) {
	tests := []struct {
		name     string
		code     int
		body     string
		expected models.Status
		errIs    error
	}{
		{"Pending", 200, `{"status":"PENDING"}`, models.StatusPending, nil},
		{"Success", 200, `{"status":"SUCCESS"}`, models.StatusSuccess, nil},
		{"Not found", 404, `{"error":"Pagamento não encontrado."}`, "", apperrors.ErrNotFound},
		{"Garbage status", 200, `{"status":"PAID"}`, "", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/payment-status/pix_1" {
					t.Errorf("unexpected path %s", r.URL.Path)
				}
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.code)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			status, err := New(srv.URL).PaymentStatus(context.Background(), "pix_1")
			if tt.expected == "" {
				if err == nil {
					t.Fatal("expected error")
				}
				if tt.errIs != nil && !errors.Is(err, tt.errIs) {
					t.Errorf("expected %v, got %v", tt.errIs, err)
				}
				return
			}
			if err != nil || status != tt.expected {
				t.Errorf("expected %s, got %s %v", tt.expected, status, err)
			}
		})
	}
}
