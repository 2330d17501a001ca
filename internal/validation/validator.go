// Package validation owns the go-playground/validator instance used for
// request DTOs (through gin's binding tags) and for the guest e-mail rule.
package validation

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// guestEmailPattern is deliberately loose: something@something.something,
// no whitespace and a single @ on each side.
var guestEmailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// Validator returns the shared validator with the custom tags registered.
func Validator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		if err := registerCustom(validate); err != nil {
			panic(fmt.Sprintf("validation: registering custom validators: %v", err))
		}
	})
	return validate
}

func registerCustom(v *validator.Validate) error {
	if err := v.RegisterValidation("notblank", notBlank); err != nil {
		return err
	}
	return v.RegisterValidation("guestemail", guestEmail)
}

func notBlank(fl validator.FieldLevel) bool {
	return strings.TrimSpace(fl.Field().String()) != ""
}

func guestEmail(fl validator.FieldLevel) bool {
	return guestEmailPattern.MatchString(fl.Field().String())
}

// RegisterGinValidations adds the custom tags to gin's binding validator so
// `binding:"notblank"` works on request structs.
func RegisterGinValidations() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return errors.New("validation: gin binding engine is not go-playground/validator")
	}
	return registerCustom(v)
}

// IsGuestEmail reports whether s is acceptable as a guest commenter's e-mail.
func IsGuestEmail(s string) bool {
	return Validator().Var(s, "guestemail") == nil
}

// IsBlank reports whether s is empty after trimming whitespace.
func IsBlank(s string) bool {
	return Validator().Var(s, "notblank") != nil
}

// FirstField returns the name of the first field that failed validation, or "".
func FirstField(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		return verrs[0].Field()
	}
	return ""
}
