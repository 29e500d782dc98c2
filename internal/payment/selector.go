package payment

import (
	"errors"

	"github.com/joao-fontenele/storefront/internal/domain"
)

var ErrNoPaymentMethod = errors.New("no usable payment method")

// MethodSelector picks the payment page a buyer is redirected to.
type MethodSelector interface {
	Select(methods Methods) (Method, error)
}

// FirstNonCard prefers the gateway's "other" methods, then bank links, then
// pay-later offers, and never picks a card method. Within a group the
// gateway's order is kept.
type FirstNonCard struct{}

func (FirstNonCard) Select(methods Methods) (Method, error) {
	for _, group := range [][]Method{methods.Other, methods.Banklinks, methods.PayLater} {
		for _, m := range group {
			if m.URL != "" {
				return m, nil
			}
		}
	}
	return Method{}, ErrNoPaymentMethod
}

// ByName selects the first method with the given name from any group,
// falling back to Fallback when none matches.
type ByName struct {
	Name     string
	Fallback MethodSelector
}

func (s ByName) Select(methods Methods) (Method, error) {
	for _, group := range [][]Method{methods.Banklinks, methods.Other, methods.PayLater, methods.Cards} {
		for _, m := range group {
			if m.Name == s.Name && m.URL != "" {
				return m, nil
			}
		}
	}
	if s.Fallback != nil {
		return s.Fallback.Select(methods)
	}
	return Method{}, ErrNoPaymentMethod
}

// FormatAmount renders an amount in minor units as a decimal string with two
// fraction digits, e.g. 2350 -> "23.50".
func FormatAmount(minor int64) string {
	return domain.FormatPrice(minor)
}
