// Command checkout runs one PIX checkout against a proxy from the terminal:
// it validates the buyer, prints the QR code and waits for confirmation.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	qrcode "github.com/skip2/go-qrcode"

	"github.com/rajasatyajit/balanca-checkout/internal/checkout"
	"github.com/rajasatyajit/balanca-checkout/internal/logger"
	"github.com/rajasatyajit/balanca-checkout/internal/models"
	sdk "github.com/rajasatyajit/balanca-checkout/sdk/go"
)

func main() {
	var (
		baseURL    = flag.String("api", envOr("CHECKOUT_API_URL", "http://localhost:4000"), "payment proxy base URL")
		name       = flag.String("name", "", "buyer name")
		email      = flag.String("email", "", "buyer e-mail")
		phone      = flag.String("phone", "", "buyer phone")
		cpf        = flag.String("cpf", "", "buyer CPF")
		interval   = flag.Duration("poll", checkout.DefaultPollInterval, "status poll interval")
		maxPending = flag.Duration("timeout", 0, "give up after waiting this long for payment (0 waits forever)")
	)
	flag.Parse()
	logger.Init(envOr("LOG_LEVEL", "warn"), "text")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	buyer := models.BuyerInfo{Name: *name, Email: *email, Phone: *phone, CPF: *cpf}
	opts := checkout.Options{PollInterval: *interval, MaxPending: *maxPending}
	os.Exit(run(ctx, os.Stdout, sdk.New(*baseURL), buyer, opts))
}

func run(ctx context.Context, out io.Writer, proxy checkout.Proxy, buyer models.BuyerInfo, opts checkout.Options) int {
	session := checkout.NewSession(proxy, opts)
	defer session.Close()

	updates, unsubscribe := session.Subscribe()
	defer unsubscribe()

	if err := session.Submit(buyer); err != nil {
		printFieldErrors(out, session.Snapshot())
		return 2
	}

	for {
		select {
		case <-ctx.Done():
			fmt.Fprintln(out, "Checkout cancelado.")
			return 130
		case snap, ok := <-updates:
			if !ok {
				return 1
			}
			render(out, snap)
			if snap.State.Terminal() {
				if snap.State == checkout.StateSuccess {
					return 0
				}
				return 1
			}
		}
	}
}

func render(out io.Writer, snap checkout.Snapshot) {
	switch snap.State {
	case checkout.StateGenerating:
		fmt.Fprintln(out, snap.Narrative.Message)
	case checkout.StatePending:
		fmt.Fprintln(out, snap.Narrative.Title)
		fmt.Fprintln(out, "Abra o app do seu banco e escaneie o código:")
		if snap.Intent != nil {
			if qr, err := qrcode.New(snap.Intent.CopiaECola, qrcode.Medium); err == nil {
				fmt.Fprint(out, qr.ToSmallString(false))
			}
			fmt.Fprintln(out, "Ou use o PIX Copia e Cola:")
			fmt.Fprintln(out, snap.Intent.CopiaECola)
		}
		fmt.Fprintln(out, snap.Narrative.Message)
	default:
		if snap.Narrative.Title != "" {
			fmt.Fprintln(out, snap.Narrative.Title)
		}
		fmt.Fprintln(out, snap.Narrative.Message)
		var apiErr *sdk.APIError
		if errors.As(snap.Err, &apiErr) {
			logger.Debug("Checkout failed", "status", apiErr.StatusCode, "message", apiErr.Message, "request_id", apiErr.RequestID)
		}
	}
}

func printFieldErrors(out io.Writer, snap checkout.Snapshot) {
	for _, field := range []string{"name", "email", "phone", "cpf"} {
		if msg, ok := snap.FieldErrors[field]; ok {
			fmt.Fprintf(out, "%s: %s\n", field, msg)
		}
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

