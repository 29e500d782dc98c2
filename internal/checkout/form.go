package checkout

import (
	"strings"

	"github.com/go-playground/validator/v10"
)

// OrderForm is the customer data posted from the checkout page.
type OrderForm struct {
	Terms       bool
	FirstName   string `validate:"required"`
	LastName    string `validate:"required"`
	Email       string `validate:"required"`
	Phone       string `validate:"required"`
	Destination string `validate:"required"`
}

func (f OrderForm) trimmed() OrderForm {
	f.FirstName = strings.TrimSpace(f.FirstName)
	f.LastName = strings.TrimSpace(f.LastName)
	f.Email = strings.TrimSpace(f.Email)
	f.Phone = strings.TrimSpace(f.Phone)
	f.Destination = strings.TrimSpace(f.Destination)
	return f
}

type formValidator struct {
	validate   *validator.Validate
	unselected string
}

func newFormValidator(unselected string) *formValidator {
	return &formValidator{
		validate:   validator.New(validator.WithRequiredStructEnabled()),
		unselected: unselected,
	}
}

// check applies the rules in order: terms, required fields, email format.
func (v *formValidator) check(form OrderForm) (OrderForm, error) {
	if !form.Terms {
		return form, invalid(MsgTermsRejected)
	}

	form = form.trimmed()
	if err := v.validate.Struct(form); err != nil || form.Destination == v.unselected {
		return form, invalid(MsgFieldsRequired)
	}

	if err := v.validate.Var(form.Email, "email"); err != nil {
		return form, invalid(MsgInvalidEmail)
	}

	return form, nil
}

// IsEmail reports whether s is a syntactically valid email address.
func (v *formValidator) IsEmail(s string) bool {
	return v.validate.Var(strings.TrimSpace(s), "required,email") == nil
}
