package validate

import (
	"portald/pkg/types"
)

// MinAddressLen is the shortest composed address accepted at signup.
const MinAddressLen = 10

// Signup validates the signup form, including the composed address length
// and terms acceptance.
func Signup(f types.SignupForm) error {
	errs := Errors{}
	if err := Struct(f); err != nil {
		fe, ok := Fields(err)
		if !ok {
			return err
		}
		errs = fe
	}
	if len([]rune(f.ComposedAddress())) < MinAddressLen {
		if _, set := errs["address"]; !set {
			errs["address"] = "Address should be at least 10 characters"
		}
	}
	if !f.TermsAccepted {
		errs["termsAccepted"] = "You must accept the terms"
	}
	if len(errs) == 0 {
		return nil
	}
	return errs
}

// Login validates login credentials.
func Login(req types.LoginRequest) error { return Struct(req) }
