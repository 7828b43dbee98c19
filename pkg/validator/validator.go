package validator

import (
	"errors"
	"reflect"
	"regexp"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

var (
	nonPhoneChars = regexp.MustCompile(`[^0-9+]`)
	phonePatterns = []*regexp.Regexp{
		regexp.MustCompile(`^(\+213|0)(5|6|7)[0-9]{8}$`), // mobile
		regexp.MustCompile(`^(\+213|0)(2|3|4)[0-9]{7}$`), // landline
	}
)

// MaxPasswordBytes is the longest password bcrypt will hash.
const MaxPasswordBytes = 72

// Validator wraps go-playground/validator with the platform's custom rules.
type Validator struct {
	validate          *validator.Validate
	passwordMinLength int
}

// NewValidator registers the "password" and "dzphone" tags.
func NewValidator(passwordMinLength int) *Validator {
	v := validator.New()

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return strings.ToLower(fld.Name)
		}
		return name
	})

	out := &Validator{validate: v, passwordMinLength: passwordMinLength}
	_ = v.RegisterValidation("password", func(fl validator.FieldLevel) bool {
		return out.ValidPassword(fl.Field().String())
	})
	_ = v.RegisterValidation("dzphone", func(fl validator.FieldLevel) bool {
		return ValidPhone(fl.Field().String())
	})
	return out
}

// ValidPassword requires the minimum length plus at least one letter and one
// digit, and rejects anything over MaxPasswordBytes.
func (v *Validator) ValidPassword(password string) bool {
	if len(password) < v.passwordMinLength || len(password) > MaxPasswordBytes {
		return false
	}
	var letter, digit bool
	for _, r := range password {
		switch {
		case (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z'):
			letter = true
		case r >= '0' && r <= '9':
			digit = true
		}
	}
	return letter && digit
}

// ValidPhone accepts Algerian mobile and landline numbers, ignoring
// separators.
func ValidPhone(phone string) bool {
	phone = nonPhoneChars.ReplaceAllString(phone, "")
	for _, p := range phonePatterns {
		if p.MatchString(phone) {
			return true
		}
	}
	return false
}

// Validate validates s and returns field errors keyed by json name.
func (v *Validator) Validate(s any) map[string]string {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}

	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return map[string]string{"_": err.Error()}
	}

	out := make(map[string]string, len(validationErrors))
	for _, fe := range validationErrors {
		out[fe.Field()] = v.message(fe)
	}
	return out
}

// PasswordTooLongMessage is reported for passwords over MaxPasswordBytes.
const PasswordTooLongMessage = "Password must be at most 72 bytes"

func (v *Validator) message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "Field is required"
	case "email":
		return "Invalid email format"
	case "password":
		if s, ok := fe.Value().(string); ok && len(s) > MaxPasswordBytes {
			return PasswordTooLongMessage
		}
		return "Password must be at least " + strconv.Itoa(v.passwordMinLength) + " characters and contain letters and numbers"
	case "dzphone":
		return "Invalid phone number format"
	case "min":
		return "Must be at least " + fe.Param() + " characters"
	case "oneof":
		if fe.Field() == "user_type" {
			return "Invalid user type"
		}
		if fe.Field() == "preferred_language" {
			return "Unsupported language"
		}
		return "Must be one of: " + fe.Param()
	default:
		return "Invalid value"
	}
}
