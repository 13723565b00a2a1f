package models

import "fmt"

// State is a product's position in its custody/sale flow.
//
// Created → ForSale → Paid → Shipped → Received is the happy path.
// Violated and Recalled are sink states: no operation leads out of them.
// Delivered is defined for forward compatibility but no operation currently
// produces it; it is kept so stored state values stay stable when a
// post-receipt delivery confirmation step is added.
type State string

const (
	StateCreated   State = "created"
	StateForSale   State = "for_sale"
	StatePaid      State = "paid"
	StateShipped   State = "shipped"
	StateReceived  State = "received"
	StateDelivered State = "delivered"
	StateRecalled  State = "recalled"
	StateViolated  State = "violated"
)

var knownStates = map[State]bool{
	StateCreated:   true,
	StateForSale:   true,
	StatePaid:      true,
	StateShipped:   true,
	StateReceived:  true,
	StateDelivered: true,
	StateRecalled:  true,
	StateViolated:  true,
}

// ParseState validates and returns a State.
func ParseState(s string) (State, error) {
	st := State(s)
	if !knownStates[st] {
		return "", fmt.Errorf("unknown product state: %s", s)
	}
	return st, nil
}

func (s State) String() string {
	return string(s)
}

// IsSink reports whether the state has no outgoing lifecycle transitions.
func (s State) IsSink() bool {
	return s == StateRecalled || s == StateViolated
}
