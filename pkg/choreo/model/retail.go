package model

// OrderState is the lifecycle state of an order.
type OrderState string

// Order lifecycle states. Transitions are monotonic in the happy path,
// but nothing enforces ordering: a service applies whatever transition
// its inbound event implies, even if an earlier one was missed.
const (
	OrderInitialized      OrderState = "INITIALIZED"
	OrderCreated          OrderState = "CREATED"
	OrderValidated        OrderState = "VALIDATED"
	OrderFailed           OrderState = "FAILED"
	OrderShipped          OrderState = "SHIPPED"
	OrderPaymentProcessed OrderState = "PAYMENT_PROCESSED"
)

// DeliveryAddress is the shipping destination of an order.
type DeliveryAddress struct {
	Street     string `json:"street"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postalCode"`
	Country    string `json:"country"`
}

// PaymentInfo carries the card details attached to an order.
type PaymentInfo struct {
	CardNumber     string `json:"cardNumber"`
	ExpirationDate string `json:"expirationDate"`
	CVV            int    `json:"cvv"`
}

// Order is the retail order entity. The order service owns the
// authoritative copy; downstream services advance local copies.
type Order struct {
	ID              string          `json:"id"`
	CustomerID      string          `json:"customerId"`
	State           OrderState      `json:"state"`
	Product         string          `json:"product"`
	Quantity        int             `json:"quantity"`
	Price           float64         `json:"price"`
	DeliveryAddress DeliveryAddress `json:"deliveryAddress"`
	PaymentInfo     PaymentInfo     `json:"paymentInfo"`
}

// StockReservation is published when inventory is reserved for an order.
// Ephemeral, correlated to the order by orderId only.
type StockReservation struct {
	ReservationID   int    `json:"reservationId"`
	OrderID         string `json:"orderId"`
	CustomerID      string `json:"customerId"`
	ProductID       string `json:"productId"`
	Quantity        int    `json:"quantity"`
	ReservationTime string `json:"reservationTime"`
	ExpiryTime      string `json:"expiryTime"`
}

// Payment is published when a payment is created or confirmed for an
// order. Ephemeral, correlated by orderId.
type Payment struct {
	ID      string  `json:"id"`
	OrderID string  `json:"orderId"`
	Ccy     string  `json:"ccy"`
	Amount  float64 `json:"amount"`
}

// Shipping is published when a shipment is created or updated for an
// order. TrackingNumber is zero until the carrier assigns one.
type Shipping struct {
	ID             string `json:"id"`
	OrderID        string `json:"orderId"`
	TrackingNumber int    `json:"trackingNumber"`
}
