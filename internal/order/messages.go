package order

// statusMessages is the static table used to synthesize notification content
// at each transition. A missing entry simply means nobody is notified for
// that side.
type statusMessage struct {
	Customer string
	Shop     string
}

var statusMessages = map[Status]statusMessage{
	StatusPending: {
		Customer: "Your order has been placed and is awaiting confirmation.",
		Shop:     "New order received! Please confirm it.",
	},
	StatusConfirmed: {
		Customer: "Your order has been confirmed by the shop.",
		Shop:     "Order confirmed. Please prepare it.",
	},
	StatusPreparing: {
		Customer: "Your order is being prepared.",
		Shop:     "Order is being prepared.",
	},
	StatusReadyForPickup: {
		Customer: "Your order is ready! You can come pick it up.",
		Shop:     "Order ready for pickup.",
	},
	StatusInDelivery: {
		Customer: "Your order is out for delivery.",
		Shop:     "Order out for delivery.",
	},
	StatusDelivered: {
		Customer: "Your order has been delivered. Thank you for your trust!",
		Shop:     "Order delivered successfully.",
	},
	StatusCancelled: {
		Customer: "Your order has been cancelled.",
		Shop:     "Order cancelled.",
	},
}
