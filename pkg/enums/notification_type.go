package enums

// NotificationType labels persisted notifications pushed to users.
type NotificationType string

const (
	NotificationTypeOrderPaid        NotificationType = "order_paid"
	NotificationTypeOrderCancelled   NotificationType = "order_cancelled"
	NotificationTypeOrderDelivered   NotificationType = "order_delivered"
	NotificationTypeDeliveryAssigned NotificationType = "delivery_assigned"
	NotificationTypeRefundProcessed  NotificationType = "refund_processed"
	NotificationTypeRefundFailed     NotificationType = "refund_failed"
	NotificationTypeLowStock         NotificationType = "low_stock"
	NotificationTypeDisputeOpened    NotificationType = "dispute_opened"
)

// String implements fmt.Stringer.
func (n NotificationType) String() string {
	return string(n)
}
