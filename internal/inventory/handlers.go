package inventory

import "context"

// MovementObserver receives stock movements after they commit.
type MovementObserver interface {
	HandleStockMovement(ctx context.Context, evt MovementEvent)
}
