package orders

import "errors"

var (
	ErrNotFound         = errors.New("user bag not found")
	ErrPaymentNotFound  = errors.New("payment not found")
	ErrDocumentNotFound = errors.New("shipment document not found")
	ErrInvalidData      = errors.New("invalid data")
	ErrInvalidReference = errors.New("invalid reference")
	ErrConflict         = errors.New("conflict")
	ErrVersionConflict  = errors.New("user bag was modified concurrently")
	ErrAlreadyShipped   = errors.New("payment already shipped")
	ErrBranchRequired   = errors.New("courier branch must be selected manually")
	ErrVendor           = errors.New("courier request failed")
	ErrRetryable        = errors.New("retryable")
	ErrTimeout          = errors.New("timeout")
	ErrUnexpected       = errors.New("unexpected error")
)
