package core

import (
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
)

var (
	// custom validation tags & texts
	leaveTypeTag  = "leavetype"
	leaveTypeText = "{0} must be one of the known leave types"

	requiredTag  = "required"
	requiredText = "{0} is required"

	validatorOnce sync.Once
	validate      *validator.Validate
	translator    ut.Translator
)

// Validator returns the process wide validator with English messages.
func Validator() (*validator.Validate, ut.Translator) {
	validatorOnce.Do(func() {
		english := en.New()
		translator, _ = ut.New(english, english).GetTranslator("en")
		validate = validator.New()
		InitValidators(validate, translator)
	})
	return validate, translator
}

// InitValidators registers the default English translations and the custom rules.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = en_translations.RegisterDefaultTranslations(validate, translator)

	// Use form tag names for errors instead of Go struct names.
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("form"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return fld.Name
		}
		return name
	})

	_ = validate.RegisterValidation(leaveTypeTag, func(fl validator.FieldLevel) bool {
		return LeaveType(fl.Field().String()).Valid()
	})
	RegisterCustomTranslation(validate, translator, leaveTypeTag, leaveTypeText)

	RegisterCustomTranslation(validate, translator, requiredTag, requiredText, true)
}

// RegisterCustomTranslation registers a custom translation for the specified validation tag.
func RegisterCustomTranslation(validate *validator.Validate, translator ut.Translator, tag, text string, override ...bool) {
	var ovrd bool
	if len(override) > 0 {
		ovrd = override[0]
	}
	_ = validate.RegisterTranslation(
		tag, translator,
		func(t ut.Translator) error { return t.Add(tag, text, ovrd) },
		func(t ut.Translator, fe validator.FieldError) string {
			s, _ := t.T(tag, fe.Field())
			return s
		},
	)
}

// Validate checks struct tags and converts failures into a ValidationError.
func Validate(v any) error {
	validate, translator := Validator()
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return NewValidationError(err)
	}
	fields := make([]FieldError, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, FieldError{Field: fe.Field(), Error: fe.Translate(translator)})
	}
	return NewValidationError(verrs, fields...)
}

// SanitizeInput trims, caps the length in runes and drops angle brackets.
func SanitizeInput(s string, maxLen int) string {
	s = strings.TrimSpace(s)
	if maxLen > 0 {
		if r := []rune(s); len(r) > maxLen {
			s = string(r[:maxLen])
		}
	}
	s = strings.Map(func(r rune) rune {
		if r == '<' || r == '>' {
			return -1
		}
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
	return s
}
