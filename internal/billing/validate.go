// Package billing holds the pure fee rules of the academy: tax computation,
// late-fee penalties, automation rules and payment reference minting.
// Nothing in this package touches the database.
package billing

import (
	"errors"
	"reflect"
	"strconv"
	"strings"

	"academy/internal/apperror"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

var (
	hundred  = decimal.NewFromInt(100)
	validate = newValidator()
)

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// report json names, not Go field names
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// checkStruct runs tag validation and folds the result into ve.
func checkStruct(ve *apperror.ValidationError, s interface{}) {
	err := validate.Struct(s)
	if err == nil {
		return
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		ve.Add("_", err.Error())
		return
	}
	for _, fe := range fieldErrs {
		ve.Add(fieldPath(fe.Namespace()), describe(fe))
	}
}

// fieldPath drops the root struct name from a validator namespace.
func fieldPath(ns string) string {
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "oneof":
		return "must be one of: " + fe.Param()
	case "min", "gte":
		return "must be at least " + fe.Param()
	case "max", "lte":
		return "must be at most " + fe.Param()
	case "unique":
		return "must not contain duplicates"
	default:
		return "failed " + fe.Tag() + " check"
	}
}

// checkPercent adds a field error when d is outside [0,100].
func checkPercent(ve *apperror.ValidationError, field string, d decimal.Decimal) {
	if d.IsNegative() || d.GreaterThan(hundred) {
		ve.Add(field, "must be between 0 and 100")
	}
}

func checkNonNegative(ve *apperror.ValidationError, field string, d decimal.Decimal) {
	if d.IsNegative() {
		ve.Add(field, "must not be negative")
	}
}

func round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

func itoa(i int) string {
	return strconv.Itoa(i)
}
