package validate

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var v = validator.New(validator.WithRequiredStructEnabled())

// Struct validates s against its validate tags and returns a readable error
// listing every field that failed.
func Struct(s any) error {
	return readable(v.Struct(s))
}

// StructExcept is Struct without the named fields, given relative to s.
func StructExcept(s any, fields ...string) error {
	return readable(v.StructExcept(s, fields...))
}

func readable(err error) error {
	if err == nil {
		return nil
	}

	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return err
	}

	msgs := make([]string, 0, len(ve))
	for _, fe := range ve {
		msgs = append(msgs, fmt.Sprintf("field '%s' failed '%s'", fe.Namespace(), fe.Tag()))
	}
	return errors.New(strings.Join(msgs, "; "))
}
