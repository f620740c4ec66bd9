package notify

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/reybrally/fulfillment-service/internal/adapters/mail"
	"github.com/reybrally/fulfillment-service/internal/app/orders"
	domain "github.com/reybrally/fulfillment-service/internal/domain/fulfillment"
	"github.com/reybrally/fulfillment-service/internal/logging"
	"github.com/reybrally/fulfillment-service/internal/metrics"
	"github.com/reybrally/fulfillment-service/internal/validation"
)

const (
	CodeTTL = 10 * time.Minute
	// MaxAttachmentBase64 is the largest base64-encoded invoice accepted (2.25 MiB).
	MaxAttachmentBase64 = 2359296
	codeDigits          = 6
)

var (
	ErrAttachmentTooLarge = errors.New("attachment too large")
	ErrNoRecipient        = errors.New("receiver has no email address")
)

type Mailer interface {
	Send(ctx context.Context, msg mail.Message) error
}

type CodeStore interface {
	Save(ctx context.Context, subject, code string, ttl time.Duration) error
	Consume(ctx context.Context, subject, code string) (bool, error)
}

type Service struct {
	mailer  Mailer
	codes   CodeStore
	shop    string
	newCode func() (string, error)
}

func NewService(mailer Mailer, codes CodeStore, shopName string) *Service {
	if shopName == "" {
		shopName = "Store"
	}
	return &Service{mailer: mailer, codes: codes, shop: shopName, newCode: randomCode}
}

type otpRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type verifyRequest struct {
	Email string `json:"email" validate:"required,email"`
	Code  string `json:"code" validate:"required,len=6,numeric"`
}

// SendOTP mails a fresh one-time code, replacing any earlier one for email.
func (s *Service) SendOTP(ctx context.Context, email string) error {
	email = normalizeEmail(email)
	if err := check(otpRequest{Email: email}); err != nil {
		return err
	}
	code, err := s.newCode()
	if err != nil {
		return fmt.Errorf("%w: generate code: %v", orders.ErrUnexpected, err)
	}
	if err := s.codes.Save(ctx, email, code, CodeTTL); err != nil {
		return err
	}

	err = s.mailer.Send(ctx, mail.Message{
		To:      []string{email},
		Subject: s.shop + " verification code",
		Text: fmt.Sprintf("Your verification code is %s.\r\nIt expires in %d minutes.",
			code, int(CodeTTL.Minutes())),
	})
	metrics.ObserveEmail("otp", err)
	if err != nil {
		logging.LogError("otp email failed", err, logrus.Fields{"email": email})
		return fmt.Errorf("%w: %w", orders.ErrVendor, err)
	}
	return nil
}

// VerifyOTP reports whether code is the live code for email. A successful
// check consumes it.
func (s *Service) VerifyOTP(ctx context.Context, email, code string) (bool, error) {
	email = normalizeEmail(email)
	if err := check(verifyRequest{Email: email, Code: strings.TrimSpace(code)}); err != nil {
		return false, err
	}
	return s.codes.Consume(ctx, email, strings.TrimSpace(code))
}

type InvoiceRequest struct {
	To       string `json:"to" validate:"required,email"`
	OrderRef string `json:"orderRef" validate:"required"`
	// PDF is the base64 encoded invoice.
	PDF string `json:"pdf" validate:"required"`
}

// SendInvoice mails req.PDF as an attachment. Oversized attachments are
// refused before anything is sent.
func (s *Service) SendInvoice(ctx context.Context, req InvoiceRequest) error {
	if err := check(req); err != nil {
		return err
	}
	if len(req.PDF) > MaxAttachmentBase64 {
		return fmt.Errorf("%w: %d bytes encoded, limit %d", ErrAttachmentTooLarge, len(req.PDF), MaxAttachmentBase64)
	}
	pdf, err := base64.StdEncoding.DecodeString(req.PDF)
	if err != nil {
		return fmt.Errorf("%w: pdf is not valid base64", orders.ErrInvalidData)
	}

	err = s.mailer.Send(ctx, mail.Message{
		To:      []string{req.To},
		Subject: fmt.Sprintf("%s invoice for order %s", s.shop, req.OrderRef),
		Text:    "Thank you for your order. Your invoice is attached.",
		Attachments: []mail.Attachment{{
			FileName:    "invoice-" + req.OrderRef + ".pdf",
			ContentType: "application/pdf",
			Data:        pdf,
		}},
	})
	metrics.ObserveEmail("invoice", err)
	if err != nil {
		logging.LogError("invoice email failed", err, logrus.Fields{"order_ref": req.OrderRef})
		return fmt.Errorf("%w: %w", orders.ErrVendor, err)
	}
	logging.LogInfo("invoice email sent", logrus.Fields{"order_ref": req.OrderRef})
	return nil
}

// SendShipmentNotice tells the payment's receiver their tracking number.
func (s *Service) SendShipmentNotice(ctx context.Context, p domain.Payment, shipment domain.DHLShipment) error {
	to := normalizeEmail(p.OrderData.ReceiverDetails.Email)
	if to == "" {
		return fmt.Errorf("%w: %w", orders.ErrInvalidData, ErrNoRecipient)
	}
	name := p.OrderData.ReceiverDetails.FullName
	if name == "" {
		name = "customer"
	}

	err := s.mailer.Send(ctx, mail.Message{
		To:      []string{to},
		Subject: fmt.Sprintf("Your %s order has shipped", s.shop),
		Text: fmt.Sprintf("Hello %s,\r\n\r\nYour order %s has shipped with DHL Express.\r\nTracking number: %s\r\n",
			name, p.MerchantTxnID, shipment.TrackingNumber),
	})
	metrics.ObserveEmail("shipment", err)
	if err != nil {
		logging.LogError("shipment notice failed", err, logrus.Fields{"merchant_txn_id": p.MerchantTxnID})
		return fmt.Errorf("%w: %w", orders.ErrVendor, err)
	}
	return nil
}

func check(v any) error {
	if err := validation.Struct(v); err != nil {
		return fmt.Errorf("%w: %w", orders.ErrInvalidData, err)
	}
	return nil
}

func normalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func randomCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", codeDigits, n.Int64()), nil
}
