package payment

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rajasatyajit/balanca-checkout/config"
	apperrors "github.com/rajasatyajit/balanca-checkout/internal/errors"
	"github.com/rajasatyajit/balanca-checkout/internal/gateway"
	"github.com/rajasatyajit/balanca-checkout/internal/models"
	"github.com/rajasatyajit/balanca-checkout/internal/store"
)

type fakeGateway struct {
	createCalls int32
	statusCalls int32
	lastReq     gateway.CreateRequest

	createFn func(req gateway.CreateRequest) (*models.PaymentIntent, error)
	statusFn func(id string) (models.Status, error)
}

func (f *fakeGateway) Name() string { return "fake" }

func (f *fakeGateway) CreateIntent(ctx context.Context, req gateway.CreateRequest) (*models.PaymentIntent, error) {
	atomic.AddInt32(&f.createCalls, 1)
	f.lastReq = req
	if f.createFn != nil {
		return f.createFn(req)
	}
	return &models.PaymentIntent{ID: "pix_char_1", QRCode: "data:image/png;base64,AA", CopiaECola: "000201"}, nil
}

func (f *fakeGateway) GetStatus(ctx context.Context, id string) (models.Status, error) {
	atomic.AddInt32(&f.statusCalls, 1)
	if f.statusFn != nil {
		return f.statusFn(id)
	}
	return models.StatusPending, nil
}

func testPaymentConfig() config.PaymentConfig {
	return config.PaymentConfig{
		AmountCents:      500,
		ExpiresIn:        time.Hour,
		Description:      "Acesso Vitalício - Balança Web Simples",
		ExternalIDPrefix: "balanca-web",
	}
}

func validBuyer() models.BuyerInfo {
	return models.BuyerInfo{Name: "Ana", Email: "a@b.com", Phone: "(11) 91234-5678", CPF: "123.456.789-09"}
}

func TestCreateIntent_Success(t *testing.T) {
	gw := &fakeGateway{}
	st := store.NewInMemoryStore()
	svc := NewService(gw, st, testPaymentConfig())

	intent, err := svc.CreateIntent(context.Background(), validBuyer())
	if err != nil {
		t.Fatalf("CreateIntent: %v", err)
	}
	if intent.ID != "pix_char_1" {
		t.Errorf("unexpected intent %+v", intent)
	}
	if gw.createCalls != 1 {
		t.Errorf("expected one upstream call, got %d", gw.createCalls)
	}
	if gw.lastReq.Customer.Phone != "11912345678" || gw.lastReq.Customer.CPF != "12345678909" {
		t.Errorf("expected digits-only phone and cpf, got %+v", gw.lastReq.Customer)
	}
	if gw.lastReq.AmountCents != 500 || gw.lastReq.ExpiresIn != time.Hour {
		t.Errorf("unexpected amount/expiry %+v", gw.lastReq)
	}
	if !strings.HasPrefix(gw.lastReq.ExternalID, "balanca-web-") {
		t.Errorf("unexpected external id %s", gw.lastReq.ExternalID)
	}

	rec, err := st.GetIntent(context.Background(), "pix_char_1")
	if err != nil {
		t.Fatalf("expected intent to be recorded: %v", err)
	}
	if rec.Provider != "fake" || rec.ExternalID != gw.lastReq.ExternalID || rec.Status != models.StatusPending {
		t.Errorf("unexpected record %+v", rec)
	}
}

func TestCreateIntent_ExternalIDsAreUnique(t *testing.T) {
	svc := NewService(&fakeGateway{}, store.NewInMemoryStore(), testPaymentConfig())
	a, b := svc.newExternalID(), svc.newExternalID()
	if a == b {
		t.Errorf("expected distinct correlation ids, got %s twice", a)
	}
}

func TestCreateIntent_MissingFields(t *testing.T) {
	gw := &fakeGateway{}
	svc := NewService(gw, store.NewInMemoryStore(), testPaymentConfig())

	buyer := validBuyer()
	buyer.CPF = ""
	_, err := svc.CreateIntent(context.Background(), buyer)

	var verr apperrors.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if verr.Field != "cpf" || verr.Message != MsgMissingFields {
		t.Errorf("unexpected validation error %+v", verr)
	}
	if gw.createCalls != 0 {
		t.Error("gateway must not be called for invalid input")
	}
}

func TestCreateIntent_MalformedFields(t *testing.T) {
	gw := &fakeGateway{}
	svc := NewService(gw, store.NewInMemoryStore(), testPaymentConfig())

	buyer := validBuyer()
	buyer.Email = "not-an-email"
	_, err := svc.CreateIntent(context.Background(), buyer)

	var fe apperrors.FieldErrors
	if !errors.As(err, &fe) || fe["email"] == "" {
		t.Fatalf("expected email field error, got %v", err)
	}
	if gw.createCalls != 0 {
		t.Error("gateway must not be called for invalid input")
	}
}

func TestCreateIntent_GatewayFailure(t *testing.T) {
	gw := &fakeGateway{createFn: func(req gateway.CreateRequest) (*models.PaymentIntent, error) {
		return nil, &apperrors.GatewayError{Provider: "fake", Operation: "create", StatusCode: 500, Detail: "secret body"}
	}}
	st := store.NewInMemoryStore()
	svc := NewService(gw, st, testPaymentConfig())

	_, err := svc.CreateIntent(context.Background(), validBuyer())
	if !errors.Is(err, apperrors.ErrGateway) {
		t.Fatalf("expected gateway error, got %v", err)
	}
	if gw.createCalls != 1 {
		t.Errorf("create must not be retried, got %d calls", gw.createCalls)
	}
}

func TestGetStatus_MapsGatewayResults(t *testing.T) {
	tests := []struct {
		name     string
		statusFn func(id string) (models.Status, error)
		expected models.Status
		errIs    error
	}{
		{"Pending", func(string) (models.Status, error) { return models.StatusPending, nil }, models.StatusPending, nil},
		{"Success", func(string) (models.Status, error) { return models.StatusSuccess, nil }, models.StatusSuccess, nil},
		{"Not found", func(id string) (models.Status, error) {
			return "", &apperrors.NotFoundError{Resource: "payment", ID: id}
		}, "", apperrors.ErrNotFound},
		{"Gateway failure", func(string) (models.Status, error) {
			return "", &apperrors.GatewayError{Provider: "fake", Operation: "status", StatusCode: 502}
		}, "", apperrors.ErrGateway},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewService(&fakeGateway{statusFn: tt.statusFn}, store.NewInMemoryStore(), testPaymentConfig())
			status, err := svc.GetStatus(context.Background(), "pix_char_1")
			if tt.errIs != nil {
				if !errors.Is(err, tt.errIs) {
					t.Fatalf("expected %v, got %v", tt.errIs, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("GetStatus: %v", err)
			}
			if status != tt.expected {
				t.Errorf("expected %s, got %s", tt.expected, status)
			}
		})
	}
}

func TestGetStatus_RoundTripAndTerminalSuccess(t *testing.T) {
	var paid atomic.Bool
	gw := &fakeGateway{statusFn: func(string) (models.Status, error) {
		if paid.Load() {
			return models.StatusSuccess, nil
		}
		return models.StatusPending, nil
	}}
	st := store.NewInMemoryStore()
	svc := NewService(gw, st, testPaymentConfig())
	ctx := context.Background()

	intent, err := svc.CreateIntent(ctx, validBuyer())
	if err != nil {
		t.Fatalf("CreateIntent: %v", err)
	}
	if status, err := svc.GetStatus(ctx, intent.ID); err != nil || status != models.StatusPending {
		t.Fatalf("expected PENDING right after creation, got %s %v", status, err)
	}

	paid.Store(true)
	if status, _ := svc.GetStatus(ctx, intent.ID); status != models.StatusSuccess {
		t.Fatalf("expected SUCCESS, got %s", status)
	}
	rec, _ := st.GetIntent(ctx, intent.ID)
	if rec.Status != models.StatusSuccess || rec.PaidAt == nil {
		t.Errorf("expected record marked paid, got %+v", rec)
	}

	calls := atomic.LoadInt32(&gw.statusCalls)
	if status, _ := svc.GetStatus(ctx, intent.ID); status != models.StatusSuccess {
		t.Errorf("SUCCESS must be terminal, got %s", status)
	}
	if atomic.LoadInt32(&gw.statusCalls) != calls {
		t.Error("expected settled intent to be answered from the store")
	}
}

func TestGetStatus_CoalescesConcurrentPolls(t *testing.T) {
	release := make(chan struct{})
	gw := &fakeGateway{statusFn: func(string) (models.Status, error) {
		<-release
		return models.StatusPending, nil
	}}
	svc := NewService(gw, store.NewInMemoryStore(), testPaymentConfig())

	const callers = 8
	var wg sync.WaitGroup
	errs := make(chan error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.GetStatus(context.Background(), "pix_char_1")
			errs <- err
		}()
	}
	// let every caller join the in-flight request before releasing it
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Errorf("unexpected error %v", err)
		}
	}
	if n := atomic.LoadInt32(&gw.statusCalls); n != 1 {
		t.Errorf("expected one upstream request, got %d", n)
	}
}

func TestGetStatus_CallerCancellation(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	gw := &fakeGateway{statusFn: func(string) (models.Status, error) {
		<-release
		return models.StatusPending, nil
	}}
	svc := NewService(gw, store.NewInMemoryStore(), testPaymentConfig())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := svc.GetStatus(ctx, "pix_char_1"); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
}

func TestApplyWebhook(t *testing.T) {
	gw := &fakeGateway{}
	st := store.NewInMemoryStore()
	svc := NewService(gw, st, testPaymentConfig())
	ctx := context.Background()
	st.SaveIntent(ctx, models.IntentRecord{ID: "pix_char_1"})

	svc.ApplyWebhook(ctx, &gateway.WebhookEvent{Type: "withdraw.done", IntentID: "pix_char_1", Ignored: true})
	if rec, _ := st.GetIntent(ctx, "pix_char_1"); rec.Status != models.StatusPending {
		t.Fatalf("ignored event must not settle, got %s", rec.Status)
	}

	svc.ApplyWebhook(ctx, &gateway.WebhookEvent{Type: "billing.paid", IntentID: "pix_char_1", Status: models.StatusSuccess})
	status, err := svc.GetStatus(ctx, "pix_char_1")
	if err != nil || status != models.StatusSuccess {
		t.Fatalf("expected SUCCESS after webhook, got %s %v", status, err)
	}
	if gw.statusCalls != 0 {
		t.Error("expected no upstream poll after webhook settlement")
	}

	// unknown intents are logged, not fatal
	svc.ApplyWebhook(ctx, &gateway.WebhookEvent{Type: "billing.paid", IntentID: "other", Status: models.StatusSuccess})
}
