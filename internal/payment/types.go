package payment

type TransactionRequest struct {
	Transaction TransactionDetails `json:"transaction"`
	Customer    Customer           `json:"customer"`
}

type TransactionDetails struct {
	Amount    string `json:"amount"`
	Currency  string `json:"currency"`
	Reference string `json:"reference"`
}

type Customer struct {
	Email   string `json:"email"`
	IP      string `json:"ip"`
	Country string `json:"country"`
	Locale  string `json:"locale"`
}

// Method is one way of paying offered by the gateway, with the URL of its
// hosted payment page.
type Method struct {
	Name        string `json:"name"`
	DisplayName string `json:"display_name"`
	Country     string `json:"country"`
	URL         string `json:"url"`
}

type Methods struct {
	Banklinks []Method `json:"banklinks"`
	Cards     []Method `json:"cards"`
	Other     []Method `json:"other"`
	PayLater  []Method `json:"payLater"`
}

type Transaction struct {
	ID             string  `json:"id"`
	Status         string  `json:"status"`
	PaymentMethods Methods `json:"payment_methods"`
}
