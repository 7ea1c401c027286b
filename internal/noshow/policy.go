package noshow

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrInvalidPolicyValue is returned for out-of-range policy configuration.
	ErrInvalidPolicyValue = errors.New("invalid policy value")

	// ErrInvalidPrice is returned for negative prices.
	ErrInvalidPrice = errors.New("invalid price")
)

// Mode selects when the policy charges.
type Mode string

const (
	// ModeDeposit charges a share of the price at booking time.
	ModeDeposit Mode = "deposit"
	// ModeCancellation charges only for late cancellations and no-shows.
	ModeCancellation Mode = "cancellation"
)

const (
	MinCancellationHours = 1
	MaxCancellationHours = 48
)

// Policy is a tenant's deposit/cancellation configuration.
type Policy struct {
	Enabled           bool `json:"enabled"`
	Mode              Mode `json:"mode"`
	Percentage        int  `json:"percentage"`
	CancellationHours int  `json:"cancellation_hours"`
}

// DefaultPolicy is used for tenants that never configured one.
func DefaultPolicy() Policy {
	return Policy{
		Enabled:           false,
		Mode:              ModeCancellation,
		Percentage:        50,
		CancellationHours: 24,
	}
}

// Validate rejects unknown modes, percentages outside [0, 100] and cancellation
// windows outside [1, 48] hours. The zero Policy is a valid disabled policy.
func (p Policy) Validate() error {
	if p == (Policy{}) {
		return nil
	}
	if p.Mode != ModeDeposit && p.Mode != ModeCancellation {
		return fmt.Errorf("%w: mode %q", ErrInvalidPolicyValue, p.Mode)
	}
	if p.Percentage < 0 || p.Percentage > 100 {
		return fmt.Errorf("%w: percentage %d not in [0, 100]", ErrInvalidPolicyValue, p.Percentage)
	}
	if p.CancellationHours < MinCancellationHours || p.CancellationHours > MaxCancellationHours {
		return fmt.Errorf("%w: cancellation_hours %d not in [%d, %d]",
			ErrInvalidPolicyValue, p.CancellationHours, MinCancellationHours, MaxCancellationHours)
	}
	return nil
}

// Result is the amount owed under a policy.
type Result struct {
	Mode        Mode  `json:"mode"`
	AmountCents int64 `json:"amount_cents"`
}

// Evaluate computes the payment due for a booking priced at priceCents when
// hoursUntil hours remain before the appointment. Deposits ignore lead time;
// cancellation fees apply only inside the cancellation window.
func Evaluate(p Policy, priceCents int64, hoursUntil float64) (Result, error) {
	if err := p.Validate(); err != nil {
		return Result{}, err
	}
	if priceCents < 0 {
		return Result{}, fmt.Errorf("%w: %d cents", ErrInvalidPrice, priceCents)
	}
	res := Result{Mode: p.Mode}
	if !p.Enabled {
		return res, nil
	}
	share := priceCents * int64(p.Percentage) / 100
	switch p.Mode {
	case ModeDeposit:
		res.AmountCents = share
	case ModeCancellation:
		if hoursUntil < float64(p.CancellationHours) {
			res.AmountCents = share
		}
	}
	return res, nil
}

// HoursUntil returns the lead time between at and the appointment start.
func HoursUntil(appointment, at time.Time) float64 {
	return appointment.Sub(at).Hours()
}
