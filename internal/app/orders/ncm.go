package orders

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"golang.org/x/text/cases"

	"github.com/reybrally/fulfillment-service/internal/adapters/ncm"
	domain "github.com/reybrally/fulfillment-service/internal/domain/fulfillment"
	"github.com/reybrally/fulfillment-service/internal/logging"
	"github.com/reybrally/fulfillment-service/internal/metrics"
)

// codCharge is always zero: cash on delivery is disabled for NCM orders.
const codCharge = "0"

// NCMOrderForm is what the operator submits. Receiver fields left blank are
// filled from the payment's receiver details.
type NCMOrderForm struct {
	UserBagID          string `json:"userBagId" validate:"required"`
	GatewayReferenceNo string `json:"gatewayReferenceNo" validate:"required"`
	Name               string `json:"name" validate:"required"`
	Phone              string `json:"phone" validate:"required"`
	Phone2             string `json:"phone2"`
	Address            string `json:"address" validate:"required"`
	City               string `json:"city" validate:"required_without=Branch"`
	Branch             string `json:"branch"`
	FromBranch         string `json:"fromBranch"`
	Package            string `json:"package"`
	Instruction        string `json:"instruction"`
}

func (f *NCMOrderForm) fillFrom(r domain.ReceiverDetails) {
	if f.Name == "" {
		f.Name = r.FullName
	}
	if f.Phone == "" {
		f.Phone = r.Phone
	}
	if f.Address == "" {
		f.Address = r.Address
	}
	if f.City == "" {
		f.City = r.City
	}
}

// CreateNCMOrder places a courier order for the payment identified by the
// form's gateway reference and records it on the bag.
func (s *Service) CreateNCMOrder(ctx context.Context, form NCMOrderForm) (domain.NCMOrder, error) {
	if form.UserBagID == "" || form.GatewayReferenceNo == "" {
		return domain.NCMOrder{}, validateStruct(form)
	}
	bag, err := s.store.GetUserBag(ctx, form.UserBagID)
	if err != nil {
		return domain.NCMOrder{}, err
	}
	p, ok := bag.PaymentByGatewayRef(form.GatewayReferenceNo)
	if !ok {
		return domain.NCMOrder{}, ErrPaymentNotFound
	}
	if domain.DeriveStatus(p, bag) == domain.StatusShipped {
		return domain.NCMOrder{}, ErrAlreadyShipped
	}

	form.fillFrom(p.OrderData.ReceiverDetails)
	if err := validateStruct(form); err != nil {
		return domain.NCMOrder{}, err
	}

	fields := logrus.Fields{"user_bag_id": bag.ID, "gateway_reference_no": form.GatewayReferenceNo}

	branch := form.Branch
	if branch == "" {
		branches, err := s.courier.Branches(ctx)
		if err != nil {
			return domain.NCMOrder{}, vendorError(ctx, err)
		}
		branch = MatchBranch(branches, form.City)
		if branch == "" {
			logging.LogInfo("no ncm branch matches destination city", logrus.Fields{
				"user_bag_id": bag.ID, "city": form.City,
			})
			return domain.NCMOrder{}, fmt.Errorf("%w: no branch covers %q", ErrBranchRequired, form.City)
		}
	}
	from := form.FromBranch
	if from == "" {
		from = s.opts.NCMFromBranch
	}

	resp, err := s.courier.CreateOrder(ctx, ncm.OrderRequest{
		Name:        form.Name,
		Phone:       form.Phone,
		Phone2:      form.Phone2,
		CODCharge:   codCharge,
		Address:     form.Address,
		FromBranch:  from,
		Branch:      branch,
		Package:     form.Package,
		VendorRefID: form.GatewayReferenceNo,
		Instruction: form.Instruction,
	})
	if err != nil {
		logging.LogError("ncm order creation failed", err, fields)
		return domain.NCMOrder{}, vendorError(ctx, err)
	}

	now := s.opts.Now().UTC()
	order := domain.NCMOrder{
		Type:               domain.TrackingTypeNCM,
		NCMOrderID:         resp.OrderID.String(),
		GatewayReferenceNo: form.GatewayReferenceNo,
		Timestamp:          now,
	}
	fields["ncm_order_id"] = order.NCMOrderID

	if _, err := s.appendTracking(ctx, bag, domain.NewNCMRecord(order)); err != nil {
		logging.LogError("ncm order created but user bag not updated", err, fields)
		return order, fmt.Errorf("ncm order %s created but not recorded: %w", order.NCMOrderID, err)
	}

	metrics.ShipmentsCreatedTotal.WithLabelValues("ncm").Inc()
	logging.LogInfo("ncm order recorded", fields)

	s.publish(ctx, Event{
		Type:       EventNCMOrderCreated,
		UserBagID:  bag.ID,
		Carrier:    "ncm",
		PaymentRef: form.GatewayReferenceNo,
		Tracking:   order.NCMOrderID,
		OccurredAt: now,
	})
	return order, nil
}

// MatchBranch returns the name of the first branch whose name or covered areas
// contain city, compared case-insensitively. It returns "" when nothing matches.
func MatchBranch(branches []ncm.Branch, city string) string {
	fold := cases.Fold()
	needle := fold.String(strings.TrimSpace(city))
	if needle == "" {
		return ""
	}
	for _, b := range branches {
		if strings.Contains(fold.String(b.Name), needle) || strings.Contains(fold.String(b.AreasCovered), needle) {
			return b.Name
		}
	}
	return ""
}
