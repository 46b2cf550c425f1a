package inventory

import "time"

// Movement kinds reported to observers.
const (
	MovementIssue   = "issue"
	MovementUnissue = "unissue"
	MovementReceipt = "receipt"
)

// MovementEvent describes a committed change of a consumable's quantity.
type MovementEvent struct {
	Kind         string
	ConsumableID string
	Delta        int
	Quantity     int
	ReorderLevel int
	At           time.Time
}
