// Package validate checks form input before it is sent to the backend.
package validate

import (
	"errors"
	"reflect"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
)

// custom validation tags
const (
	mobileTag  = "mobile_in"
	pincodeTag = "pincode"
	adultTag   = "adult"
)

// MinAge is the youngest age accepted at signup.
const MinAge = 18

var (
	mobileRe  = regexp.MustCompile(`^[6-9]\d{9}$`)
	pincodeRe = regexp.MustCompile(`^\d{6}$`)
	// emailRe mirrors the loose check the signup form has always used.
	emailRe = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

	v    *validator.Validate
	once sync.Once
	// now is swapped in tests.
	now = time.Now
)

// Errors maps a json field name to a human-readable message.
type Errors map[string]string

func (e Errors) Error() string {
	keys := make([]string, 0, len(e))
	for k := range e {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Fields returns the per-field messages of err when it is a validation failure.
func Fields(err error) (Errors, bool) {
	var e Errors
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

func instance() *validator.Validate {
	once.Do(func() {
		v = validator.New(validator.WithRequiredStructEnabled())
		// Use JSON tag names for errors instead of Go struct names.
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			if name == "" {
				return fld.Name
			}
			return name
		})
		_ = v.RegisterValidation(mobileTag, func(fl validator.FieldLevel) bool {
			return mobileRe.MatchString(strings.TrimSpace(fl.Field().String()))
		})
		_ = v.RegisterValidation(pincodeTag, func(fl validator.FieldLevel) bool {
			return pincodeRe.MatchString(strings.TrimSpace(fl.Field().String()))
		})
		_ = v.RegisterValidation(adultTag, func(fl validator.FieldLevel) bool {
			dob, err := ParseDate(fl.Field().String())
			if err != nil {
				return false
			}
			return Age(dob, now()) >= MinAge
		})
		// the built-in email rule is stricter than what the backend accepts
		_ = v.RegisterValidation("email", func(fl validator.FieldLevel) bool {
			return emailRe.MatchString(strings.TrimSpace(fl.Field().String()))
		})
	})
	return v
}

// Struct validates s against its `validate` tags.
func Struct(s any) error {
	err := instance().Struct(s)
	if err == nil {
		return nil
	}
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return err
	}
	out := make(Errors, len(ve))
	for _, fe := range ve {
		if _, seen := out[fe.Field()]; !seen {
			out[fe.Field()] = message(fe)
		}
	}
	return out
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "This field is required"
	case "email":
		return "Enter a valid email address"
	case mobileTag:
		return "Enter a valid 10-digit Indian mobile number"
	case pincodeTag:
		return "Enter a 6-digit PIN code"
	case adultTag:
		return "You must be at least 18 years old"
	case "eqfield":
		return "Passwords do not match"
	case "min":
		if fe.Kind() == reflect.String {
			return "Use at least " + fe.Param() + " characters"
		}
		return "Must be at least " + fe.Param()
	case "max":
		if fe.Kind() == reflect.String {
			return "Use at most " + fe.Param() + " characters"
		}
		return "Must be at most " + fe.Param()
	case "gte":
		return "Must be at least " + fe.Param()
	case "lte":
		return "Must be at most " + fe.Param()
	case "url":
		return "Enter a valid URL"
	case "oneof":
		return "Must be one of: " + fe.Param()
	case "timezone":
		return "Enter a valid IANA time zone"
	case "datetime":
		return "Use the format " + fe.Param()
	default:
		return "Invalid value"
	}
}

// ParseDate accepts YYYY-MM-DD or an RFC 3339 timestamp.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}

// Age returns the number of whole years between dob and at.
func Age(dob, at time.Time) int {
	years := at.Year() - dob.Year()
	if at.Month() < dob.Month() || (at.Month() == dob.Month() && at.Day() < dob.Day()) {
		years--
	}
	return years
}
