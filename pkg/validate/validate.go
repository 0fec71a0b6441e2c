// Package validate wraps go-playground/validator with English messages so
// rejected input can be reported back to a caller as plain sentences.
package validate

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	entranslations "github.com/go-playground/validator/v10/translations/en"
)

// Error is returned for input that fails struct validation.
type Error struct {
	Fields   map[string]string // field name -> translated message
	messages []string
}

func (e *Error) Error() string {
	return "validation failed: " + strings.Join(e.messages, "; ")
}

var (
	once  sync.Once
	v     *validator.Validate
	trans ut.Translator
)

func setup() {
	v = validator.New(validator.WithRequiredStructEnabled())

	// Report json names rather than Go field names.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})

	english := en.New()
	uni := ut.New(english, english)
	var found bool
	trans, found = uni.GetTranslator("en")
	if !found {
		panic("validate: english translator not registered")
	}
	if err := entranslations.RegisterDefaultTranslations(v, trans); err != nil {
		panic(fmt.Sprintf("validate: register translations: %v", err))
	}
}

// Struct validates s using its `validate` tags. It returns nil or *Error.
func Struct(s any) error {
	once.Do(setup)

	err := v.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	out := &Error{Fields: make(map[string]string, len(verrs))}
	for _, fe := range verrs {
		msg := fe.Translate(trans)
		out.Fields[fe.Field()] = msg
		out.messages = append(out.messages, msg)
	}
	return out
}
