package domain

import (
	"encoding/json"
	"fmt"
	"sort"
)

// CartLine is one product in a cart. LineTotal is Quantity x Product.Price as
// of the last mutation of the line.
type CartLine struct {
	Product   Product `json:"item"`
	Quantity  int     `json:"qty"`
	LineTotal int64   `json:"price"`
}

// Cart is the session-scoped aggregate. TotalQuantity and TotalPrice always
// equal the sums over Lines; every mutation applies its delta to both.
type Cart struct {
	Lines         map[string]*CartLine `json:"items"`
	TotalQuantity int                  `json:"totalQty"`
	TotalPrice    int64                `json:"totalPrice"`
}

func NewCart() *Cart {
	return &Cart{Lines: make(map[string]*CartLine)}
}

// Add puts qty units of product into the line stored under ref, creating the
// line when needed. Quantities below 1 are treated as 1.
func (c *Cart) Add(product Product, ref string, qty int) {
	if qty < 1 {
		qty = 1
	}
	if c.Lines == nil {
		c.Lines = make(map[string]*CartLine)
	}

	line, ok := c.Lines[ref]
	if !ok {
		line = &CartLine{}
		c.Lines[ref] = line
	}

	before := line.LineTotal
	line.Product = product
	line.Quantity += qty
	line.LineTotal = line.Product.Price * int64(line.Quantity)

	c.TotalQuantity += qty
	c.TotalPrice += line.LineTotal - before
}

// Remove drops every line whose product has the given id and reports whether
// anything was removed.
func (c *Cart) Remove(productID string) bool {
	removed := false
	for ref, line := range c.Lines {
		if line.Product.ID != productID {
			continue
		}
		c.TotalQuantity -= line.Quantity
		c.TotalPrice -= line.LineTotal
		delete(c.Lines, ref)
		removed = true
	}
	return removed
}

// ChangeQuantity sets the quantity of every line holding productID and
// reports whether any line matched. No lower bound is enforced here; callers
// reject quantities below 1.
func (c *Cart) ChangeQuantity(productID string, qty int) bool {
	matched := false
	for _, line := range c.Lines {
		if line.Product.ID != productID {
			continue
		}
		matched = true
		c.TotalQuantity -= line.Quantity
		c.TotalPrice -= line.LineTotal

		line.Quantity = qty
		line.LineTotal = int64(qty) * line.Product.Price

		c.TotalQuantity += line.Quantity
		c.TotalPrice += line.LineTotal
	}
	return matched
}

// LineList returns a snapshot of the cart lines ordered by their key.
func (c *Cart) LineList() []CartLine {
	refs := make([]string, 0, len(c.Lines))
	for ref := range c.Lines {
		refs = append(refs, ref)
	}
	sort.Strings(refs)

	lines := make([]CartLine, 0, len(refs))
	for _, ref := range refs {
		lines = append(lines, *c.Lines[ref])
	}
	return lines
}

func (c *Cart) IsEmpty() bool {
	return c == nil || c.TotalQuantity <= 0 || len(c.Lines) == 0
}

// SerializeCart encodes the cart in the form stored on an order.
func SerializeCart(c *Cart) (string, error) {
	data, err := json.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("marshal cart: %w", err)
	}
	return string(data), nil
}

func DeserializeCart(data string) (*Cart, error) {
	cart := NewCart()
	if err := json.Unmarshal([]byte(data), cart); err != nil {
		return nil, fmt.Errorf("unmarshal cart: %w", err)
	}
	if cart.Lines == nil {
		cart.Lines = make(map[string]*CartLine)
	}
	return cart, nil
}
