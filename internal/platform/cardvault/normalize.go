package cardvault

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/brisapay/gateway/internal/platform/providers"
)

// Integrators send card payloads with all kinds of field spellings. Each
// canonical field lists the aliases we accept, checked in order.
var fieldAliases = map[string][]string{
	"number":      {"number", "card_number", "cardNumber", "pan"},
	"holder_name": {"holder_name", "holderName", "cardholder_name", "cardholderName", "name"},
	"exp_month":   {"exp_month", "expMonth", "expiry_month", "expiryMonth", "expiration_month", "expirationMonth", "month"},
	"exp_year":    {"exp_year", "expYear", "expiry_year", "expiryYear", "expiration_year", "expirationYear", "year"},
	"cvv":         {"cvv", "cvc", "ccv", "security_code", "securityCode"},
}

func lookup(fields map[string]any, canonical string) (any, bool) {
	for _, alias := range fieldAliases[canonical] {
		if v, ok := fields[alias]; ok {
			return v, true
		}
	}
	return nil, false
}

func asString(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatInt(int64(t), 10)
	case int:
		return strconv.Itoa(t)
	default:
		return ""
	}
}

func asInt(v any) (int, bool) {
	switch t := v.(type) {
	case float64:
		return int(t), true
	case int:
		return t, true
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(t))
		if err != nil {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}

func digitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// NormalizeFields maps a loosely-typed card payload onto CardFields. A
// missing or malformed field produces a ValidationError naming the
// canonical field, so the caller can surface it verbatim.
func NormalizeFields(fields map[string]any) (*providers.CardFields, error) {
	card := &providers.CardFields{}

	v, ok := lookup(fields, "number")
	if !ok {
		return nil, providers.NewValidationError("card.number", "is required")
	}
	card.Number = digitsOnly(asString(v))
	if len(card.Number) < 12 {
		return nil, providers.NewValidationError("card.number", "must be a valid card number")
	}

	v, ok = lookup(fields, "holder_name")
	if !ok || asString(v) == "" {
		return nil, providers.NewValidationError("card.holder_name", "is required")
	}
	card.HolderName = asString(v)

	v, ok = lookup(fields, "exp_month")
	if !ok {
		return nil, providers.NewValidationError("card.exp_month", "is required")
	}
	month, valid := asInt(v)
	if !valid || month < 1 || month > 12 {
		return nil, providers.NewValidationError("card.exp_month", "must be between 1 and 12")
	}
	card.ExpMonth = month

	v, ok = lookup(fields, "exp_year")
	if !ok {
		return nil, providers.NewValidationError("card.exp_year", "is required")
	}
	year, valid := asInt(v)
	if !valid {
		return nil, providers.NewValidationError("card.exp_year", "must be a year")
	}
	// Two digit years are taken as the current century.
	if year < 100 {
		year += (time.Now().Year() / 100) * 100
	}
	if year < time.Now().Year() {
		return nil, providers.NewValidationError("card.exp_year", fmt.Sprintf("%d is in the past", year))
	}
	card.ExpYear = year

	v, ok = lookup(fields, "cvv")
	if !ok {
		return nil, providers.NewValidationError("card.cvv", "is required")
	}
	card.CVV = digitsOnly(asString(v))
	if len(card.CVV) < 3 || len(card.CVV) > 4 {
		return nil, providers.NewValidationError("card.cvv", "must be 3 or 4 digits")
	}

	return card, nil
}
