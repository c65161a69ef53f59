package gateway

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	qrcode "github.com/skip2/go-qrcode"

	"github.com/rajasatyajit/balanca-checkout/config"
	apperrors "github.com/rajasatyajit/balanca-checkout/internal/errors"
	"github.com/rajasatyajit/balanca-checkout/internal/models"
)

// Sandbox is an in-process gateway for local development. A charge reports
// PAID once it has been polled settleAfter times.
type Sandbox struct {
	mu          sync.Mutex
	settleAfter int
	charges     map[string]*sandboxCharge
}

type sandboxCharge struct {
	polls int
	paid  bool
}

func NewSandbox(settleAfter int) *Sandbox {
	if settleAfter < 0 {
		settleAfter = 0
	}
	return &Sandbox{settleAfter: settleAfter, charges: make(map[string]*sandboxCharge)}
}

func (s *Sandbox) Name() string { return config.ProviderSandbox }

func (s *Sandbox) CreateIntent(ctx context.Context, req CreateRequest) (*models.PaymentIntent, error) {
	if err := ctx.Err(); err != nil {
		return nil, &apperrors.GatewayError{Provider: s.Name(), Operation: "create", Err: err}
	}
	id := "sbx_" + uuid.NewString()
	code := fmt.Sprintf("00020126580014br.gov.bcb.pix0136%s5204000053039865405%.2f5802BR5911BALANCA WEB6009SAO PAULO62%02d%s6304",
		id[4:], float64(req.AmountCents)/100, len(req.ExternalID), req.ExternalID)
	png, err := qrcode.Encode(code, qrcode.Medium, qrImageSize)
	if err != nil {
		return nil, &apperrors.GatewayError{Provider: s.Name(), Operation: "create", Err: err}
	}

	s.mu.Lock()
	s.charges[id] = &sandboxCharge{}
	s.mu.Unlock()

	return &models.PaymentIntent{ID: id, QRCode: PNGDataURI(png), CopiaECola: code}, nil
}

func (s *Sandbox) GetStatus(ctx context.Context, id string) (models.Status, error) {
	if err := ctx.Err(); err != nil {
		return "", &apperrors.GatewayError{Provider: s.Name(), Operation: "status", Err: err}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.charges[id]
	if !ok {
		return "", &apperrors.NotFoundError{Resource: "payment", ID: id}
	}
	c.polls++
	raw := "PENDING"
	if c.paid || c.polls > s.settleAfter {
		c.paid = true
		raw = "PAID"
	}
	status, _ := sandboxStatuses.Normalize(raw)
	return status, nil
}

// MarkPaid settles a charge immediately
func (s *Sandbox) MarkPaid(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.charges[id]
	if !ok {
		return &apperrors.NotFoundError{Resource: "payment", ID: id}
	}
	c.paid = true
	return nil
}
