package session

import "github.com/joao-fontenele/storefront/internal/domain"

const (
	FlashError   = "error"
	FlashSuccess = "success"
)

// Session is the per-visitor state kept between requests.
type Session struct {
	Cart  *domain.Cart        `json:"cart,omitempty"`
	Flash map[string][]string `json:"flash,omitempty"`
}

func (s *Session) AddFlash(kind, message string) {
	if s.Flash == nil {
		s.Flash = make(map[string][]string)
	}
	s.Flash[kind] = append(s.Flash[kind], message)
}

// PopFlash returns the pending notices and clears them.
func (s *Session) PopFlash() map[string][]string {
	flash := s.Flash
	s.Flash = nil
	if flash == nil {
		return map[string][]string{}
	}
	return flash
}

// CartOrNew returns the session cart, creating an empty one if needed.
func (s *Session) CartOrNew() *domain.Cart {
	if s.Cart == nil {
		s.Cart = domain.NewCart()
	}
	return s.Cart
}

func (s *Session) CartQuantity() int {
	if s.Cart == nil {
		return 0
	}
	return s.Cart.TotalQuantity
}

func (s *Session) ClearCart() {
	s.Cart = nil
}

func (s *Session) isEmpty() bool {
	return s.Cart == nil && len(s.Flash) == 0
}
