package booking

import "errors"

var (
	ErrNoVehicle           = errors.New("booking: no vehicle selected")
	ErrUnknownCategory     = errors.New("booking: category not in fare estimates")
	ErrPaymentPrecondition = errors.New("booking: pickup, destination and vehicle are required before payment")
	ErrCompleted           = errors.New("booking: already completed")
)
