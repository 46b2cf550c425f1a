package procurement

import "time"

// PurchaseReceivedEvent is raised after a receipt has been posted to inventory.
type PurchaseReceivedEvent struct {
	PurchaseID  string
	Type        PurchaseType
	Quantity    int
	Cost        float64
	InventoryID string
	Created     bool
	ReceivedAt  time.Time
}
