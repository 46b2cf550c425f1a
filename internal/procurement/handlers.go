package procurement

import "context"

// ReceiptObserver receives procurement events after they commit.
type ReceiptObserver interface {
	HandlePurchaseReceived(ctx context.Context, evt PurchaseReceivedEvent)
}
