package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

type sessionSettings struct {
	JWTSecret string `validate:"required"`
}

type identityProviderSettings struct {
	BaseURL  string `validate:"required,url"`
	Realm    string `validate:"required"`
	ClientID string `validate:"required"`
}

// Validate checks the settings the process cannot start without.
func Validate(c Config) error {
	v := validator.New(validator.WithRequiredStructEnabled())

	if err := v.Struct(sessionSettings{JWTSecret: c.GetJWTSecret()}); err != nil {
		return formatValidationErrors(err)
	}

	if !c.IsIdentityProviderEnabled() {
		return nil
	}

	if err := v.Struct(identityProviderSettings{
		BaseURL:  c.GetIdentityProviderBaseURL(),
		Realm:    c.GetIdentityProviderRealm(),
		ClientID: c.GetIdentityProviderClientID(),
	}); err != nil {
		return formatValidationErrors(err)
	}
	return nil
}

func formatValidationErrors(err error) error {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return err
	}

	messages := make([]string, 0, len(validationErrors))
	for _, fe := range validationErrors {
		messages = append(messages, fmt.Sprintf("%s failed on '%s'", fe.Field(), fe.Tag()))
	}
	return fmt.Errorf("configuration errors: %s", strings.Join(messages, ", "))
}
