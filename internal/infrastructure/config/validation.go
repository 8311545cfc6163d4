package config

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

// cellQRPattern matches warehouse cell labels such as "W1:03" or "S2:11":
// a zone prefix, the floor number, a colon and the position index.
var cellQRPattern = regexp.MustCompile(`^[A-Z]+\d+:\d+$`)

// Validator is a wrapper around go-playground/validator
type Validator struct {
	validate *validator.Validate
}

// NewValidator creates a new validator instance with custom validation rules
func NewValidator() *Validator {
	v := validator.New()

	// cell_qr validates warehouse cell labels, used for lifter entry cells
	// and any other configured node references.
	_ = v.RegisterValidation("cell_qr", func(fl validator.FieldLevel) bool {
		return cellQRPattern.MatchString(fl.Field().String())
	})

	return &Validator{
		validate: v,
	}
}

// Validate validates a struct using validation tags
func (v *Validator) Validate(i interface{}) error {
	if err := v.validate.Struct(i); err != nil {
		return v.formatValidationError(err)
	}
	return nil
}

// formatValidationError converts validator errors into readable messages
func (v *Validator) formatValidationError(err error) error {
	if validationErrs, ok := err.(validator.ValidationErrors); ok {
		var messages []string
		for _, e := range validationErrs {
			msg := fmt.Sprintf("%s: failed '%s'", e.Namespace(), e.Tag())
			if e.Param() != "" {
				msg += fmt.Sprintf("=%s", e.Param())
			}
			msg += fmt.Sprintf(" (got '%v')", e.Value())
			messages = append(messages, msg)
		}
		return fmt.Errorf("invalid configuration:\n  %s", strings.Join(messages, "\n  "))
	}
	return err
}

// ValidateConfig validates the entire configuration
func ValidateConfig(cfg *Config) error {
	v := NewValidator()
	return v.Validate(cfg)
}
