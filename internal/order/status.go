package order

import "fmt"

type Status string

const (
	StatusPending        Status = "pending"
	StatusConfirmed      Status = "confirmed"
	StatusPreparing      Status = "preparing"
	StatusReadyForPickup Status = "ready_for_pickup"
	StatusInDelivery     Status = "in_delivery"
	StatusDelivered      Status = "delivered"
	StatusCancelled      Status = "cancelled"
	StatusRefunded       Status = "refunded"
)

// transitions is the closed adjacency table. The flow is forward-only:
// pending -> confirmed -> preparing -> ready_for_pickup | in_delivery ->
// delivered. cancelled is reachable from any non-terminal state, refunded
// only after delivered or cancelled.
var transitions = map[Status][]Status{
	StatusPending:        {StatusConfirmed, StatusCancelled},
	StatusConfirmed:      {StatusPreparing, StatusCancelled},
	StatusPreparing:      {StatusReadyForPickup, StatusInDelivery, StatusCancelled},
	StatusReadyForPickup: {StatusDelivered, StatusCancelled},
	StatusInDelivery:     {StatusDelivered, StatusCancelled},
	StatusDelivered:      {StatusRefunded},
	StatusCancelled:      {StatusRefunded},
	StatusRefunded:       {},
}

func ParseStatus(s string) (Status, error) {
	st := Status(s)
	if _, ok := transitions[st]; !ok {
		return "", fmt.Errorf("%w: unknown status %q", ErrValidation, s)
	}
	return st, nil
}

func AllowedNext(s Status) []Status {
	return transitions[s]
}

func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

func (s Status) Terminal() bool {
	return len(transitions[s]) == 0 || s == StatusDelivered || s == StatusCancelled
}
