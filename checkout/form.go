package checkout

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/cardflow-labs/pci-checkout/internal/expiry"
)

// Form is the flat set of billing fields a customer fills in for a
// new-card checkout. Field order here is the order missing fields are
// reported in.
type Form struct {
	ExpMonth  string `json:"expMonth" validate:"notblank"`
	ExpYear   string `json:"expYear" validate:"notblank"`
	Email     string `json:"email" validate:"notblank"`
	FirstName string `json:"firstName" validate:"notblank"`
	LastName  string `json:"lastName" validate:"notblank"`
	Address1  string `json:"address1" validate:"notblank"`
	City      string `json:"city" validate:"notblank"`
	State     string `json:"state" validate:"notblank"`
	Zip       string `json:"zip" validate:"notblank"`
	Country   string `json:"country" validate:"notblank"`
}

var formValidator = newFormValidator()

func newFormValidator() *validator.Validate {
	v := validator.New()
	// Whitespace-only input counts as blank.
	v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	// Report fields under their wire names.
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			return field.Name
		}
		return name
	})
	return v
}

// MissingFields returns the blank field names in declaration order.
func (f Form) MissingFields() []string {
	err := formValidator.Struct(f)
	if err == nil {
		return nil
	}
	errs, ok := err.(validator.ValidationErrors)
	if !ok {
		return []string{"form"}
	}
	missing := make([]string, 0, len(errs))
	for _, fe := range errs {
		missing = append(missing, fe.Field())
	}
	return missing
}

// Validate enforces the pre-submission invariant: every field non-blank,
// violations aggregated into a single message naming each missing field.
func (f Form) Validate() error {
	if missing := f.MissingFields(); len(missing) > 0 {
		return fmt.Errorf("Missing required fields: %s", strings.Join(missing, ", "))
	}
	return nil
}

// ValidateExpiry rejects expiry values that are malformed or already in
// the past. It runs only after Validate, so both fields are non-blank.
func (f Form) ValidateExpiry(now time.Time) error {
	yymm, err := expiry.FromMonthYear(f.ExpMonth, f.ExpYear)
	if err != nil {
		return fmt.Errorf("Card expiration is invalid: %v.", err)
	}
	expired, err := expiry.IsExpired(yymm, now, nil)
	if err != nil {
		return fmt.Errorf("Card expiration is invalid: %v.", err)
	}
	if expired {
		return fmt.Errorf("Card is expired.")
	}
	return nil
}
