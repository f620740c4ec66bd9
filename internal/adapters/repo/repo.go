package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/reybrally/fulfillment-service/internal/app/orders"
	domain "github.com/reybrally/fulfillment-service/internal/domain/fulfillment"
)

type UserBagRepo struct {
	pool *pgxpool.Pool
}

func NewUserBagRepo(pool *pgxpool.Pool) *UserBagRepo { return &UserBagRepo{pool: pool} }

type UserBagRow struct {
	ID           string
	UserID       string
	TrackingInfo []byte
	Version      int64
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (b *UserBagRow) ToDomain() (domain.UserBag, error) {
	out := domain.UserBag{
		ID:        b.ID,
		UserID:    b.UserID,
		Version:   b.Version,
		CreatedAt: b.CreatedAt,
		UpdatedAt: b.UpdatedAt,
	}
	if err := json.Unmarshal(b.TrackingInfo, &out.TrackingInfo); err != nil {
		return domain.UserBag{}, fmt.Errorf("%w: tracking_info of %s: %v", orders.ErrInvalidData, b.ID, err)
	}
	return out, nil
}

type PaymentRow struct {
	UserBagID          string
	MerchantTxnID      string
	GatewayReferenceNo string
	Status             string
	Amount             string
	OrderData          []byte
	CreatedAt          time.Time
}

func (p *PaymentRow) ToDomain() (domain.Payment, error) {
	amount, err := decimal.NewFromString(p.Amount)
	if err != nil {
		return domain.Payment{}, fmt.Errorf("%w: amount of %s: %v", orders.ErrInvalidData, p.MerchantTxnID, err)
	}
	out := domain.Payment{
		MerchantTxnID:      p.MerchantTxnID,
		GatewayReferenceNo: p.GatewayReferenceNo,
		Status:             p.Status,
		Amount:             amount,
		CreatedAt:          p.CreatedAt,
	}
	if len(p.OrderData) > 0 {
		if err := json.Unmarshal(p.OrderData, &out.OrderData); err != nil {
			return domain.Payment{}, fmt.Errorf("%w: order_data of %s: %v", orders.ErrInvalidData, p.MerchantTxnID, err)
		}
	}
	return out, nil
}

// mapError translates driver errors into the service's sentinel errors.
func mapError(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
		return fmt.Errorf("%w: %w", orders.ErrTimeout, err)
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return orders.ErrNotFound
	}
	var pgerr *pgconn.PgError
	if errors.As(err, &pgerr) {
		switch pgerr.Code {
		case "23503": // FK violation
			return fmt.Errorf("%w: %s", orders.ErrInvalidReference, pgerr.Message)
		case "23514", "23502", "22001", "22P02":
			return fmt.Errorf("%w: %s", orders.ErrInvalidData, pgerr.Message)
		case "23505":
			return fmt.Errorf("%w: %s", orders.ErrConflict, pgerr.Message)
		case "40001", "40P01":
			return fmt.Errorf("%w: %s", orders.ErrRetryable, pgerr.Message)
		}
	}
	return err
}
