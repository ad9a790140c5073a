package validate

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ccodeRe matches a dialing country code: a plus sign and 1 to 4 digits.
var ccodeRe = regexp.MustCompile(`^\+[0-9]{1,4}$`)

// v is the package-level singleton validator. Custom tags are registered here,
// before the first call to Struct.
var v = newValidator()

func newValidator() *validator.Validate {
	val := validator.New()
	// ccode validates dialing country codes like "+1" or "+86".
	_ = val.RegisterValidation("ccode", func(fl validator.FieldLevel) bool {
		return ccodeRe.MatchString(fl.Field().String())
	})
	return val
}

// Struct validates the given struct using its validate tags.
// Returns a human-readable error string or nil.
func Struct(s interface{}) error {
	if err := v.Struct(s); err != nil {
		ve, ok := err.(validator.ValidationErrors)
		if !ok {
			return err
		}
		var msgs []string
		for _, fe := range ve {
			msgs = append(msgs, fmt.Sprintf("field '%s' failed '%s'", fe.Field(), fe.Tag()))
		}
		return fmt.Errorf("%s", strings.Join(msgs, "; "))
	}
	return nil
}
