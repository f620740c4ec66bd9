package repo

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/reybrally/fulfillment-service/internal/app/orders"
	domain "github.com/reybrally/fulfillment-service/internal/domain/fulfillment"
	"github.com/reybrally/fulfillment-service/internal/logging"
)

// Legacy rows may hold a single tracking object instead of a list; the
// statement wraps it before appending.
const qAppendTracking = `
UPDATE user_bags SET
    tracking_info = (CASE jsonb_typeof(tracking_info)
                        WHEN 'array'  THEN tracking_info
                        WHEN 'object' THEN jsonb_build_array(tracking_info)
                        ELSE '[]'::jsonb
                     END) || jsonb_build_array($3::jsonb),
    version    = version + 1,
    updated_at = now()
WHERE id = $1 AND version = $2;`

const qUserBagExists = `SELECT EXISTS (SELECT 1 FROM user_bags WHERE id = $1);`

func (r *UserBagRepo) AppendTracking(ctx context.Context, id string, expectedVersion int64, rec domain.TrackingRecord) (domain.UserBag, error) {
	payload, err := json.Marshal(rec)
	if err != nil {
		return domain.UserBag{}, fmt.Errorf("%w: tracking record: %v", orders.ErrInvalidData, err)
	}

	ct, err := r.pool.Exec(ctx, qAppendTracking, id, expectedVersion, payload)
	if err != nil {
		logging.LogError("Error appending tracking record", err, logrus.Fields{"user_bag_id": id})
		return domain.UserBag{}, mapError(ctx, err)
	}
	if ct.RowsAffected() == 0 {
		var exists bool
		if err := r.pool.QueryRow(ctx, qUserBagExists, id).Scan(&exists); err != nil {
			return domain.UserBag{}, mapError(ctx, err)
		}
		if !exists {
			return domain.UserBag{}, orders.ErrNotFound
		}
		return domain.UserBag{}, fmt.Errorf("%w: expected version %d", orders.ErrVersionConflict, expectedVersion)
	}
	return r.GetUserBag(ctx, id)
}
