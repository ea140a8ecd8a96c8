package checkout

import (
	"fmt"
	"net/mail"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"
)

type Form struct {
	CustomerName    string `json:"customerName"`
	CustomerEmail   string `json:"customerEmail"`
	CustomerPhone   string `json:"customerPhone"`
	DeliveryAddress string `json:"deliveryAddress"`
	DeliveryCity    string `json:"deliveryCity"`
	Notes           string `json:"notes"`
}

// ValidationError maps form fields to user-facing messages.
type ValidationError struct {
	Fields map[string]string `json:"fields"`
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e *ValidationError) add(field, msg string) {
	if e.Fields == nil {
		e.Fields = make(map[string]string)
	}
	if prev, exists := e.Fields[field]; exists {
		msg = prev + "; " + msg
	}
	e.Fields[field] = msg
}

func (e *ValidationError) empty() bool {
	return len(e.Fields) == 0
}

func (f *Form) normalize() {
	f.CustomerName = strings.TrimSpace(f.CustomerName)
	f.CustomerEmail = strings.ToLower(strings.TrimSpace(f.CustomerEmail))
	f.CustomerPhone = strings.TrimSpace(f.CustomerPhone)
	f.DeliveryAddress = strings.TrimSpace(f.DeliveryAddress)
	f.DeliveryCity = strings.TrimSpace(f.DeliveryCity)
	f.Notes = strings.TrimSpace(f.Notes)
}

// Validate trims the form in place and reports every invalid field at once.
func (f *Form) Validate() error {
	f.normalize()

	var verr ValidationError
	required(&verr, "customerName", f.CustomerName, 120)
	required(&verr, "customerEmail", f.CustomerEmail, 254)
	required(&verr, "customerPhone", f.CustomerPhone, 20)
	required(&verr, "deliveryAddress", f.DeliveryAddress, 200)
	required(&verr, "deliveryCity", f.DeliveryCity, 80)
	if utf8.RuneCountInString(f.Notes) > 500 {
		verr.add("notes", "must be at most 500 characters")
	}

	if f.CustomerEmail != "" {
		addr, err := mail.ParseAddress(f.CustomerEmail)
		if err != nil || addr.Address != f.CustomerEmail {
			verr.add("customerEmail", "is not a valid email address")
		}
	}
	if f.CustomerPhone != "" && !validPhone(f.CustomerPhone) {
		verr.add("customerPhone", "must contain 8 to 15 digits")
	}

	if verr.empty() {
		return nil
	}
	return &verr
}

func required(verr *ValidationError, field, value string, max int) {
	switch {
	case value == "":
		verr.add(field, "is required")
	case utf8.RuneCountInString(value) > max:
		verr.add(field, fmt.Sprintf("must be at most %d characters", max))
	}
}

// validPhone accepts digits with an optional leading + and common separators.
func validPhone(v string) bool {
	digits := 0
	for i, r := range v {
		switch {
		case unicode.IsDigit(r):
			digits++
		case r == '+' && i == 0:
		case r == ' ' || r == '-' || r == '(' || r == ')':
		default:
			return false
		}
	}
	return digits >= 8 && digits <= 15
}
