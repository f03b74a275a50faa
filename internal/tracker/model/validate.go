package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ErrValidation is returned when caller-supplied input is rejected at the
// boundary. It never reaches the scoring engine.
type ErrValidation struct{ Msg string }

func (e *ErrValidation) Error() string { return e.Msg }

// validate shares the "binding" tags gin uses so HTTP and non-HTTP callers
// see the same rules.
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.SetTagName("binding")
	if err := RegisterValidations(v); err != nil {
		panic(err)
	}
	return v
}

// RegisterValidations installs the custom rules and JSON field naming on v.
// The HTTP layer calls it on gin's validator engine.
func RegisterValidations(v *validator.Validate) error {
	v.RegisterTagNameFunc(jsonFieldName)
	if err := v.RegisterValidation("finite", validateFinite); err != nil {
		return fmt.Errorf("register finite: %w", err)
	}
	v.RegisterStructValidation(validateProjectDates, CreateProjectRequest{})
	return nil
}

// Validate checks req against its binding tags and returns *ErrValidation
// describing the first failure.
func Validate(req any) error {
	if err := validate.Struct(req); err != nil {
		return AsValidation(err)
	}
	return nil
}

// AsValidation converts binding and decoding errors into *ErrValidation.
// Other errors are returned unchanged.
func AsValidation(err error) error {
	if err == nil {
		return nil
	}
	var ve *ErrValidation
	if errors.As(err, &ve) {
		return ve
	}

	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		return &ErrValidation{Msg: describe(fieldErrs[0])}
	}

	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		return &ErrValidation{Msg: fmt.Sprintf("%s must be a %s", typeErr.Field, typeErr.Type)}
	}
	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) {
		return &ErrValidation{Msg: "malformed JSON body"}
	}
	var numErr *strconv.NumError
	if errors.As(err, &numErr) {
		return &ErrValidation{Msg: fmt.Sprintf("%q is not a number", numErr.Num)}
	}
	var invalid *validator.InvalidValidationError
	if errors.As(err, &invalid) || errors.Is(err, io.EOF) {
		return &ErrValidation{Msg: "request body is required"}
	}
	return &ErrValidation{Msg: err.Error()}
}

func describe(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
	case "datetime":
		return field + " must be a YYYY-MM-DD date"
	case "finite":
		return field + " must be a finite number"
	case "after_start":
		return field + " must not be before start_date"
	default:
		return field + " is invalid"
	}
}

func jsonFieldName(f reflect.StructField) string {
	name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
	if name == "-" {
		return ""
	}
	if name == "" {
		return f.Name
	}
	return name
}

func validateFinite(fl validator.FieldLevel) bool {
	f := fl.Field()
	switch f.Kind() {
	case reflect.Float32, reflect.Float64:
		x := f.Float()
		return !math.IsNaN(x) && !math.IsInf(x, 0)
	default:
		return true
	}
}

// validateProjectDates relies on YYYY-MM-DD ordering matching calendar order.
func validateProjectDates(sl validator.StructLevel) {
	req := sl.Current().Interface().(CreateProjectRequest)
	if req.StartDate == "" || req.EndDate == "" {
		return
	}
	if req.EndDate < req.StartDate {
		sl.ReportError(req.EndDate, "end_date", "EndDate", "after_start", "")
	}
}
