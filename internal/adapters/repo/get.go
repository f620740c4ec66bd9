package repo

import (
	"context"

	"github.com/sirupsen/logrus"

	domain "github.com/reybrally/fulfillment-service/internal/domain/fulfillment"
	"github.com/reybrally/fulfillment-service/internal/logging"
)

const qUserBagByID = `
SELECT id, user_id, tracking_info, version, created_at, updated_at
FROM user_bags
WHERE id = $1;`

const qPaymentsByBags = `
SELECT user_bag_id, merchant_txn_id, gateway_reference_no, status, amount::text, order_data, created_at
FROM payments
WHERE user_bag_id = ANY($1)
ORDER BY user_bag_id, created_at, merchant_txn_id;`

func (r *UserBagRepo) GetUserBag(ctx context.Context, id string) (domain.UserBag, error) {
	var row UserBagRow
	err := r.pool.QueryRow(ctx, qUserBagByID, id).Scan(
		&row.ID, &row.UserID, &row.TrackingInfo, &row.Version, &row.CreatedAt, &row.UpdatedAt,
	)
	if err != nil {
		err = mapError(ctx, err)
		logging.LogDebug("user bag lookup failed", logrus.Fields{"user_bag_id": id, "error": err.Error()})
		return domain.UserBag{}, err
	}
	bag, err := row.ToDomain()
	if err != nil {
		return domain.UserBag{}, err
	}

	payments, err := r.paymentsFor(ctx, []string{id})
	if err != nil {
		return domain.UserBag{}, err
	}
	bag.Payments = payments[id]
	return bag, nil
}

func (r *UserBagRepo) paymentsFor(ctx context.Context, ids []string) (map[string][]domain.Payment, error) {
	out := make(map[string][]domain.Payment, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := r.pool.Query(ctx, qPaymentsByBags, ids)
	if err != nil {
		logging.LogError("Error executing payments query", err, logrus.Fields{"user_bags": len(ids)})
		return nil, mapError(ctx, err)
	}
	defer rows.Close()

	for rows.Next() {
		var p PaymentRow
		if err := rows.Scan(&p.UserBagID, &p.MerchantTxnID, &p.GatewayReferenceNo, &p.Status,
			&p.Amount, &p.OrderData, &p.CreatedAt); err != nil {
			logging.LogError("Error scanning payment row", err, nil)
			return nil, mapError(ctx, err)
		}
		payment, err := p.ToDomain()
		if err != nil {
			logging.LogWarn("skipping unreadable payment", logrus.Fields{
				"user_bag_id": p.UserBagID, "merchant_txn_id": p.MerchantTxnID, "error": err.Error(),
			})
			continue
		}
		out[p.UserBagID] = append(out[p.UserBagID], payment)
	}
	if err := rows.Err(); err != nil {
		logging.LogError("Error iterating over payment rows", err, nil)
		return nil, mapError(ctx, err)
	}
	return out, nil
}
