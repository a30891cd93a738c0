package domain

import "context"

type CircuitRepository interface {
	SetCircuit(ctx context.Context, circuit Circuit) error
	GetCircuit(ctx context.Context, id CircuitID) (*Circuit, error)
	GetAllCircuits(ctx context.Context) ([]Circuit, error)
	// IncrementCounters adds one verification to the circuit's audit
	// totals, counting it as valid when valid is true.
	IncrementCounters(ctx context.Context, id CircuitID, valid bool) error
	Close()
}
