package validator

import (
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Validator instance
var validate *validator.Validate

func init() {
	validate = validator.New()

	// Use JSON tag names in error messages
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	// Register custom validations
	registerCustomValidations()
}

func registerCustomValidations() {
	// Listing package tags
	validate.RegisterValidation("package_type", func(fl validator.FieldLevel) bool {
		v := fl.Field().String()
		validTypes := []string{"pack_1", "pack_5", "pack_10"}
		for _, t := range validTypes {
			if v == t {
				return true
			}
		}
		return false
	})

	// Promotion tags
	validate.RegisterValidation("promotion_type", func(fl validator.FieldLevel) bool {
		v := fl.Field().String()
		validTypes := []string{"highlighted", "top_category", "vip"}
		for _, t := range validTypes {
			if v == t {
				return true
			}
		}
		return false
	})

	// Payment methods
	validate.RegisterValidation("payment_method", func(fl validator.FieldLevel) bool {
		v := fl.Field().String()
		return v == "balance" || v == "direct"
	})

	// Listing source
	validate.RegisterValidation("listing_source", func(fl validator.FieldLevel) bool {
		v := fl.Field().String()
		return v == "" || v == "marketplace" || v == "bot"
	})
}

// Validate validates a struct and returns a map of field errors
func Validate(s interface{}) map[string]string {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	errs, ok := err.(validator.ValidationErrors)
	if !ok {
		return map[string]string{"_": err.Error()}
	}

	fieldErrors := make(map[string]string, len(errs))
	for _, fe := range errs {
		fieldErrors[fe.Field()] = messageForTag(fe)
	}
	return fieldErrors
}

func messageForTag(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "this field is required"
	case "min":
		return "value is below the minimum of " + fe.Param()
	case "max":
		return "value exceeds the maximum of " + fe.Param()
	case "package_type":
		return "unknown package type"
	case "promotion_type":
		return "unknown promotion type"
	case "payment_method":
		return "payment method must be balance or direct"
	case "listing_source":
		return "source must be marketplace or bot"
	case "oneof":
		return "must be one of: " + fe.Param()
	default:
		return "failed validation: " + fe.Tag()
	}
}
