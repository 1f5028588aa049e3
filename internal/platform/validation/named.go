package validation

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

// NamedValidator is a key into the fixed table of reusable custom checks.
type NamedValidator string

const (
	ValidatorEmail          NamedValidator = "email"
	ValidatorPhone          NamedValidator = "phone"
	ValidatorDate           NamedValidator = "date"
	ValidatorTime           NamedValidator = "time"
	ValidatorNumber         NamedValidator = "number"
	ValidatorPositiveNumber NamedValidator = "positiveNumber"
	ValidatorPercentage     NamedValidator = "percentage"
)

// namedTags maps each named validator onto a go-playground tag expression.
var namedTags = map[NamedValidator]string{
	ValidatorEmail:          "email",
	ValidatorPhone:          "phone",
	ValidatorDate:           "datetime=2006-01-02",
	ValidatorTime:           "datetime=15:04",
	ValidatorNumber:         "numeric",
	ValidatorPositiveNumber: "positive_number",
	ValidatorPercentage:     "percentage",
}

// IsKnown reports whether n names a validator in the fixed table.
func (n NamedValidator) IsKnown() bool {
	_, ok := namedTags[n]
	return ok
}

// NamedValidators lists the keys of the fixed table.
func NamedValidators() []NamedValidator {
	return []NamedValidator{
		ValidatorEmail, ValidatorPhone, ValidatorDate, ValidatorTime,
		ValidatorNumber, ValidatorPositiveNumber, ValidatorPercentage,
	}
}

var phonePattern = regexp.MustCompile(`^[\d\s\-\+\(\)]{10,}$`)

var (
	tagValidatorOnce sync.Once
	tagValidator     *validator.Validate
)

// Validator returns the shared go-playground validator with the chart
// specific tags (phone, positive_number, percentage, max_decimals)
// registered. Request DTOs across the service validate through it.
func Validator() *validator.Validate {
	tagValidatorOnce.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
		_ = v.RegisterValidation("phone", func(fl validator.FieldLevel) bool {
			return phonePattern.MatchString(fl.Field().String())
		})
		_ = v.RegisterValidation("positive_number", func(fl validator.FieldLevel) bool {
			f, err := strconv.ParseFloat(strings.TrimSpace(fl.Field().String()), 64)
			return err == nil && f > 0
		})
		_ = v.RegisterValidation("percentage", func(fl validator.FieldLevel) bool {
			f, err := strconv.ParseFloat(strings.TrimSpace(fl.Field().String()), 64)
			return err == nil && f >= 0 && f <= 100
		})
		_ = v.RegisterValidation("max_decimals", maxDecimals)
		tagValidator = v
	})
	return tagValidator
}

// maxDecimals checks a float field has at most Param() fractional digits.
func maxDecimals(fl validator.FieldLevel) bool {
	limit, err := strconv.Atoi(fl.Param())
	if err != nil {
		return false
	}
	s := strconv.FormatFloat(fl.Field().Float(), 'f', -1, 64)
	dot := strings.IndexByte(s, '.')
	if dot < 0 {
		return true
	}
	return len(s)-dot-1 <= limit
}

// checkNamed runs a named validator. Blank values pass so that optional
// fields are only rejected when filled in incorrectly.
func checkNamed(name NamedValidator, value interface{}) (ok bool, known bool) {
	tag, known := namedTags[name]
	if !known {
		return false, false
	}
	s := strings.TrimSpace(stringify(value))
	if s == "" {
		return true, true
	}
	return Validator().Var(s, tag) == nil, true
}

// ValidateStruct runs tag validation on a request DTO and flattens the
// failures into one error naming each field by its JSON path.
func ValidateStruct(s interface{}) error {
	err := Validator().Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := fe.Namespace()
		if i := strings.IndexByte(field, '.'); i >= 0 {
			field = field[i+1:]
		}
		if fe.Param() != "" {
			msgs = append(msgs, fmt.Sprintf("%s failed %s=%s", field, fe.Tag(), fe.Param()))
		} else {
			msgs = append(msgs, fmt.Sprintf("%s failed %s", field, fe.Tag()))
		}
	}
	return errors.New(strings.Join(msgs, "; "))
}
