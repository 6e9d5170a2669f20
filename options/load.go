package options

import (
	"errors"
	"fmt"
	"math/bits"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// validate is the shared validator instance for option structs.
var validate *validator.Validate

func init() {
	validate = validator.New(validator.WithRequiredStructEnabled())
	if err := validate.RegisterValidation("pow2", isPowerOfTwo); err != nil {
		panic(err)
	}
}

func isPowerOfTwo(fl validator.FieldLevel) bool {
	v := fl.Field().Int()
	return v > 0 && bits.OnesCount64(uint64(v)) == 1
}

// Load reads a YAML file on top of the defaults and validates the result.
// An empty path returns the validated defaults.
func Load(path string) (*EngineOptions, error) {
	opts := Default()
	if path == "" {
		return opts, opts.Validate()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read options file: %w", err)
	}
	if err := yaml.Unmarshal(data, opts); err != nil {
		return nil, fmt.Errorf("parse options file %s: %w", path, err)
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return opts, nil
}

// Validate checks every field against its constraints and reports all
// violations in a single error.
func (o *EngineOptions) Validate() error {
	err := validate.Struct(o)
	if err == nil {
		return nil
	}

	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return fmt.Errorf("validate options: %w", err)
	}

	msgs := make([]string, 0, len(validationErrors))
	for _, e := range validationErrors {
		msgs = append(msgs, formatValidationMessage(e))
	}
	return fmt.Errorf("invalid options: %s", strings.Join(msgs, "; "))
}

// formatValidationMessage creates a human-readable message from a validator error.
func formatValidationMessage(e validator.FieldError) string {
	field := strings.TrimPrefix(e.Namespace(), "EngineOptions.")
	switch e.Tag() {
	case "required":
		return field + " is required"
	case "min", "gte":
		return fmt.Sprintf("%s must be at least %s", field, e.Param())
	case "max", "lte":
		return fmt.Sprintf("%s must be at most %s", field, e.Param())
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", field, e.Param())
	case "lt":
		return fmt.Sprintf("%s must be less than %s", field, e.Param())
	case "ltfield":
		return fmt.Sprintf("%s must be less than %s", field, e.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", field, e.Param())
	case "pow2":
		return field + " must be a power of two"
	case "hostname_port":
		return field + " must be host:port"
	default:
		return fmt.Sprintf("%s failed %s validation", field, e.Tag())
	}
}
