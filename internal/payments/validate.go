package payments

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// validationError turns validator output into one ErrValidation with a
// readable "field: problem" list.
func validationError(err error) error {
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return ErrValidation.Wrap(err)
	}
	msgs := make([]string, 0, len(ve))
	for _, fe := range ve {
		msgs = append(msgs, fieldPath(fe.Namespace())+": "+messageForTag(fe.Tag(), fe.Param()))
	}
	sort.Strings(msgs)
	return ErrValidation.Withf("%s", strings.Join(msgs, "; "))
}

// "CreateInput.Customer.Email" -> "Customer.Email"
func fieldPath(ns string) string {
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

func messageForTag(tag, param string) string {
	switch tag {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email"
	case "min":
		return fmt.Sprintf("must have at least %s entries", param)
	case "max":
		return fmt.Sprintf("must be at most %s characters", param)
	case "gt":
		return fmt.Sprintf("must be greater than %s", param)
	default:
		return "is invalid"
	}
}
