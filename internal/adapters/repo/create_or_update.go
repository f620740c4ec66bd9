package repo

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/reybrally/fulfillment-service/internal/app/orders"
	domain "github.com/reybrally/fulfillment-service/internal/domain/fulfillment"
	"github.com/reybrally/fulfillment-service/internal/logging"
)

const (
	qUpsertUserBag = `
INSERT INTO user_bags (id, user_id, tracking_info, version, created_at, updated_at)
VALUES ($1, $2, $3, 1, COALESCE($4, now()), now())
ON CONFLICT (id) DO UPDATE SET
    user_id       = EXCLUDED.user_id,
    tracking_info = EXCLUDED.tracking_info,
    version       = user_bags.version + 1,
    updated_at    = now()
RETURNING id, user_id, tracking_info, version, created_at, updated_at;`

	qUpsertPayment = `
INSERT INTO payments (
    user_bag_id, merchant_txn_id, gateway_reference_no, status, amount, order_data, created_at
) VALUES ($1, $2, $3, $4, $5::numeric, $6, COALESCE($7, now()))
ON CONFLICT (user_bag_id, merchant_txn_id) DO UPDATE SET
    gateway_reference_no = EXCLUDED.gateway_reference_no,
    status               = EXCLUDED.status,
    amount               = EXCLUDED.amount,
    order_data           = EXCLUDED.order_data
RETURNING user_bag_id, merchant_txn_id, gateway_reference_no, status, amount::text, order_data, created_at;`
)

// UpsertUserBag writes b and its payments in one transaction. Every write
// bumps the stored version; b.Version is ignored.
func (r *UserBagRepo) UpsertUserBag(ctx context.Context, b domain.UserBag) (domain.UserBag, error) {
	if b.ID == "" {
		return domain.UserBag{}, fmt.Errorf("%w: user bag id is required", orders.ErrInvalidData)
	}
	tracking, err := json.Marshal(b.TrackingInfo)
	if err != nil {
		return domain.UserBag{}, fmt.Errorf("%w: tracking info: %v", orders.ErrInvalidData, err)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return domain.UserBag{}, mapError(ctx, err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var row UserBagRow
	if err := tx.QueryRow(ctx, qUpsertUserBag, b.ID, b.UserID, tracking, nullTime(b.CreatedAt)).Scan(
		&row.ID, &row.UserID, &row.TrackingInfo, &row.Version, &row.CreatedAt, &row.UpdatedAt,
	); err != nil {
		logging.LogError("Error upserting user bag", err, logrus.Fields{"user_bag_id": b.ID})
		return domain.UserBag{}, mapError(ctx, err)
	}
	out, err := row.ToDomain()
	if err != nil {
		return domain.UserBag{}, err
	}

	out.Payments = make([]domain.Payment, 0, len(b.Payments))
	for i := range b.Payments {
		p := b.Payments[i]
		orderData, err := json.Marshal(p.OrderData)
		if err != nil {
			return domain.UserBag{}, fmt.Errorf("%w: order data: %v", orders.ErrInvalidData, err)
		}

		var pRow PaymentRow
		if err := tx.QueryRow(ctx, qUpsertPayment,
			b.ID, p.MerchantTxnID, p.GatewayReferenceNo, p.Status, p.Amount.String(), orderData, nullTime(p.CreatedAt),
		).Scan(&pRow.UserBagID, &pRow.MerchantTxnID, &pRow.GatewayReferenceNo, &pRow.Status,
			&pRow.Amount, &pRow.OrderData, &pRow.CreatedAt); err != nil {
			logging.LogError("Error upserting payment", err, logrus.Fields{
				"user_bag_id":     b.ID,
				"merchant_txn_id": p.MerchantTxnID,
			})
			return domain.UserBag{}, mapError(ctx, err)
		}
		payment, err := pRow.ToDomain()
		if err != nil {
			return domain.UserBag{}, err
		}
		out.Payments = append(out.Payments, payment)
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.UserBag{}, mapError(ctx, err)
	}
	logging.LogInfo("user bag saved", logrus.Fields{"user_bag_id": b.ID, "payments": len(out.Payments)})
	return out, nil
}

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
