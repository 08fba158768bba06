// Package validation wraps go-playground/validator with the gateway's
// custom tags and error formatting.
package validation

import (
	stderrors "errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"monoova-gateway/internal/common/errors"
)

// Validator provides struct validation using go-playground/validator
type Validator struct {
	validator *validator.Validate
}

// FieldError is a single validation failure
type FieldError struct {
	Field   string `json:"field"`
	Tag     string `json:"tag"`
	Param   string `json:"param,omitempty"`
	Message string `json:"message"`
}

// New creates a validator. Field names in messages come from the env tag,
// then the json tag, then the Go field name.
func New() *Validator {
	v := validator.New()
	registerGatewayValidators(v)

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		if name := fld.Tag.Get("env"); name != "" {
			return name
		}
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})

	return &Validator{validator: v}
}

// ValidateStruct validates s and returns a validation AppError describing every failed field
func (v *Validator) ValidateStruct(s interface{}) error {
	if err := v.validator.Struct(s); err != nil {
		return formatErrors(err)
	}
	return nil
}

// Fields returns the individual failures in err, if err came from ValidateStruct
func Fields(err error) []FieldError {
	var appErr *errors.AppError
	if !stderrors.As(err, &appErr) {
		return nil
	}
	fields, _ := appErr.Context["fields"].([]FieldError)
	return fields
}

func formatErrors(err error) error {
	var fieldErrs validator.ValidationErrors
	if !stderrors.As(err, &fieldErrs) {
		return errors.ValidationError(err.Error())
	}

	fields := make([]FieldError, 0, len(fieldErrs))
	messages := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		msg := formatFieldError(fe)
		fields = append(fields, FieldError{
			Field:   fe.Field(),
			Tag:     fe.Tag(),
			Param:   fe.Param(),
			Message: msg,
		})
		messages = append(messages, msg)
	}

	return errors.ValidationError(strings.Join(messages, "; ")).WithContext("fields", fields)
}

func formatFieldError(err validator.FieldError) string {
	switch err.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", err.Field())
	case "url":
		return fmt.Sprintf("%s must be a valid URL", err.Field())
	case "min":
		return fmt.Sprintf("%s must be at least %s", err.Field(), err.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", err.Field(), err.Param())
	case "len":
		return fmt.Sprintf("%s must be exactly %s characters", err.Field(), err.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", err.Field(), err.Param())
	case "hostname_port":
		return fmt.Sprintf("%s must be host:port", err.Field())
	case "url_path":
		return fmt.Sprintf("%s must be an absolute path", err.Field())
	case "required_if":
		return fmt.Sprintf("%s is required when %s", err.Field(), err.Param())
	default:
		return fmt.Sprintf("%s failed validation: %s", err.Field(), err.Tag())
	}
}

func registerGatewayValidators(v *validator.Validate) {
	_ = v.RegisterValidation("url_path", func(fl validator.FieldLevel) bool {
		path := fl.Field().String()
		return strings.HasPrefix(path, "/") && !strings.Contains(path, "://")
	})
}

var defaultValidator = New()

// ValidateStruct validates a struct using the package validator
func ValidateStruct(s interface{}) error {
	return defaultValidator.ValidateStruct(s)
}
