package repo

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/reybrally/fulfillment-service/internal/app/orders"
	domain "github.com/reybrally/fulfillment-service/internal/domain/fulfillment"
	"github.com/reybrally/fulfillment-service/internal/logging"
)

const maxListLimit = 1000

func (r *UserBagRepo) ListUserBags(ctx context.Context, f orders.ListFilter) ([]domain.UserBag, error) {
	var (
		sb   strings.Builder
		args []any
		n    = 1
	)

	sb.WriteString(`
    SELECT id, user_id, tracking_info, version, created_at, updated_at
    FROM user_bags
    WHERE 1=1
  `)

	if f.CreatedFrom != nil {
		sb.WriteString(fmt.Sprintf(" AND created_at >= $%d", n))
		args = append(args, *f.CreatedFrom)
		n++
	}
	if f.CreatedTo != nil {
		sb.WriteString(fmt.Sprintf(" AND created_at <= $%d", n))
		args = append(args, *f.CreatedTo)
		n++
	}
	if f.UserID != "" {
		sb.WriteString(fmt.Sprintf(" AND user_id = $%d", n))
		args = append(args, f.UserID)
		n++
	}
	sb.WriteString(" ORDER BY created_at, id")

	limit := f.Limit
	if limit <= 0 || limit > maxListLimit {
		limit = maxListLimit
	}
	sb.WriteString(fmt.Sprintf(" LIMIT $%d", n))
	args = append(args, limit)

	rows, err := r.pool.Query(ctx, sb.String(), args...)
	if err != nil {
		logging.LogError("Error executing user bag list query", err, logrus.Fields{"args": args})
		return nil, mapError(ctx, err)
	}
	defer rows.Close()

	var (
		bags []domain.UserBag
		ids  []string
	)
	for rows.Next() {
		var row UserBagRow
		if err := rows.Scan(&row.ID, &row.UserID, &row.TrackingInfo, &row.Version, &row.CreatedAt, &row.UpdatedAt); err != nil {
			logging.LogError("Error scanning user bag row", err, nil)
			return nil, mapError(ctx, err)
		}
		bag, err := row.ToDomain()
		if err != nil {
			logging.LogWarn("skipping unreadable user bag", logrus.Fields{"user_bag_id": row.ID, "error": err.Error()})
			continue
		}
		bags = append(bags, bag)
		ids = append(ids, bag.ID)
	}
	if err := rows.Err(); err != nil {
		logging.LogError("Error iterating over user bag rows", err, nil)
		return nil, mapError(ctx, err)
	}

	payments, err := r.paymentsFor(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range bags {
		bags[i].Payments = payments[bags[i].ID]
	}
	logging.LogDebug("user bags listed", logrus.Fields{"count": len(bags)})
	return bags, nil
}
