package server

import (
	"fmt"
	"net/mail"
)

const maxFieldLength = 255

// validateRegister checks the registration payload before it is
// forwarded. Field errors are keyed by field name, Laravel-style, so
// existing clients keep working.
func validateRegister(payload map[string]any) map[string][]string {
	errs := make(map[string][]string)

	for _, field := range []string{"name", "email", "username"} {
		value, ok := stringField(payload, field)
		switch {
		case !ok || value == "":
			errs[field] = append(errs[field], fmt.Sprintf("The %s field is required.", field))
		case len(value) > maxFieldLength:
			errs[field] = append(errs[field], fmt.Sprintf("The %s may not be greater than %d characters.", field, maxFieldLength))
		}
	}

	if email, ok := stringField(payload, "email"); ok && email != "" {
		if _, err := mail.ParseAddress(email); err != nil {
			errs["email"] = append(errs["email"], "The email must be a valid email address.")
		}
	}

	password, ok := stringField(payload, "password")
	switch {
	case !ok || password == "":
		errs["password"] = append(errs["password"], "The password field is required.")
	case len(password) < 8:
		errs["password"] = append(errs["password"], "The password must be at least 8 characters.")
	}

	if len(errs) == 0 {
		return nil
	}
	return errs
}

// validateLogin checks the login payload.
func validateLogin(payload map[string]any) map[string][]string {
	errs := make(map[string][]string)

	email, ok := stringField(payload, "email")
	switch {
	case !ok || email == "":
		errs["email"] = append(errs["email"], "The email field is required.")
	default:
		if _, err := mail.ParseAddress(email); err != nil {
			errs["email"] = append(errs["email"], "The email must be a valid email address.")
		}
	}

	if password, ok := stringField(payload, "password"); !ok || password == "" {
		errs["password"] = append(errs["password"], "The password field is required.")
	}

	if len(errs) == 0 {
		return nil
	}
	return errs
}

func stringField(payload map[string]any, key string) (string, bool) {
	value, ok := payload[key]
	if !ok {
		return "", false
	}
	s, ok := value.(string)
	return s, ok
}
