package domain

// Product is a catalog entry. Price is in minor currency units.
type Product struct {
	ID          string `json:"_id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Price       int64  `json:"price"`
	Amount      string `json:"amount"`
	Category    string `json:"category"`
	ImagePath   string `json:"imagePath"`
	Added       int64  `json:"added"`
}
