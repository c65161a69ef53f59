package models

import (
	"strings"
	"time"

	"github.com/rajasatyajit/balanca-checkout/pkg/utils"
)

// Status is the normalized payment status exposed by the proxy
type Status string

const (
	StatusPending Status = "PENDING"
	StatusSuccess Status = "SUCCESS"
)

// Valid reports whether s is one of the wire values
func (s Status) Valid() bool {
	return s == StatusPending || s == StatusSuccess
}

// BuyerInfo is the checkout form payload
type BuyerInfo struct {
	Name  string `json:"name" validate:"required"`
	Email string `json:"email" validate:"required,loose_email"`
	Phone string `json:"phone" validate:"required,phone_digits"`
	CPF   string `json:"cpf" validate:"required,cpf_digits"`
}

// Normalized returns a copy with trimmed text and digits-only phone and CPF,
// the shape gateways accept
func (b BuyerInfo) Normalized() BuyerInfo {
	return BuyerInfo{
		Name:  strings.TrimSpace(b.Name),
		Email: strings.TrimSpace(b.Email),
		Phone: utils.Digits(b.Phone),
		CPF:   utils.Digits(b.CPF),
	}
}

// MissingFields lists the json names of absent fields, in form order
func (b BuyerInfo) MissingFields() []string {
	var missing []string
	for _, f := range []struct{ name, value string }{
		{"name", b.Name}, {"email", b.Email}, {"phone", b.Phone}, {"cpf", b.CPF},
	} {
		if strings.TrimSpace(f.value) == "" {
			missing = append(missing, f.name)
		}
	}
	return missing
}

// PaymentIntent is what the checkout needs to display a PIX charge
type PaymentIntent struct {
	ID         string `json:"paymentId"`
	QRCode     string `json:"qrCode"`
	CopiaECola string `json:"copiaECola"`
}

// IntentRecord is the server-side bookkeeping row for an issued intent
type IntentRecord struct {
	ID          string     `json:"id" db:"id"`
	Provider    string     `json:"provider" db:"provider"`
	ExternalID  string     `json:"external_id" db:"external_id"`
	AmountCents int64      `json:"amount_cents" db:"amount_cents"`
	BuyerEmail  string     `json:"buyer_email" db:"buyer_email"`
	Status      Status     `json:"status" db:"status"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	PaidAt      *time.Time `json:"paid_at,omitempty" db:"paid_at"`
}
