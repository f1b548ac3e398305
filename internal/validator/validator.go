package validator

import (
	"reflect"
	"strings"

	"github.com/SAP-F-2025/interview-session-service/internal/models"
	"github.com/go-playground/validator/v10"
)

// Session duration bounds in minutes.
const (
	MinSessionDuration = 5
	MaxSessionDuration = 300
)

// Validator is the main validator instance shared by services and handlers
type Validator struct {
	structValidator *validator.Validate
}

// New creates a new centralized validator instance
func New() *Validator {
	structValidator := validator.New()

	// Register all custom validators once
	registerCustomValidators(structValidator)

	return &Validator{
		structValidator: structValidator,
	}
}

// ValidateStruct validates struct tags only
func (v *Validator) ValidateStruct(s interface{}) error {
	return v.structValidator.Struct(s)
}

// Validate validates a request and converts field failures to ValidationErrors
func (v *Validator) Validate(s interface{}) error {
	if err := v.ValidateStruct(s); err != nil {
		if errs := ToValidationErrors(err); len(errs) > 0 {
			return errs
		}
		return err
	}
	return nil
}

// registerCustomValidators registers all custom validation functions
func registerCustomValidators(validate *validator.Validate) {
	validate.RegisterValidation("interview_type", validateInterviewType)
	validate.RegisterValidation("security_event_type", validateSecurityEventType)
	validate.RegisterValidation("response_category", validateResponseCategory)
	validate.RegisterValidation("session_duration", validateSessionDuration)

	// Custom tag name function for better error messages
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
}

// Custom validation functions
func validateInterviewType(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	for _, validType := range models.InterviewTypes {
		if string(validType) == value {
			return true
		}
	}
	return false
}

func validateSecurityEventType(fl validator.FieldLevel) bool {
	return models.SecurityEventType(fl.Field().String()).IsValid()
}

func validateResponseCategory(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	for _, category := range models.ResponseCategories {
		if string(category) == value {
			return true
		}
	}
	return false
}

func validateSessionDuration(fl validator.FieldLevel) bool {
	minutes := fl.Field().Int()
	return minutes >= MinSessionDuration && minutes <= MaxSessionDuration
}
