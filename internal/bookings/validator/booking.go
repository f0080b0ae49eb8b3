package validator

import (
	"errors"
	"fmt"
	"strings"

	"roombooking/pkg/logger"
	"roombooking/pkg/model"

	"github.com/go-playground/validator/v10"
)

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (v ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", v.Field, v.Message)
}

type ValidationErrors []ValidationError

func (v ValidationErrors) Error() string {
	if len(v) == 0 {
		return ""
	}
	var messages []string
	for _, err := range v {
		messages = append(messages, err.Error())
	}
	return fmt.Sprintf("validation failed: %d error(s): [%s]", len(v), strings.Join(messages, "; "))
}

type BookingValidator struct {
	validate *validator.Validate
	logger   *logger.Logger
}

func NewBookingValidator(log *logger.Logger) *BookingValidator {
	v := validator.New()

	if err := v.RegisterValidation("booking_status", validateBookingStatus); err != nil {
		log.Fatal("Failed to register 'booking_status' validator",
			"error", err,
		)
	}
	if err := v.RegisterValidation("actor_role", validateActorRole); err != nil {
		log.Fatal("Failed to register 'actor_role' validator",
			"error", err,
		)
	}

	log.Info("Booking validator initialized successfully")

	return &BookingValidator{
		validate: v,
		logger:   log,
	}
}

func validateBookingStatus(fl validator.FieldLevel) bool {
	return model.BookingStatus(fl.Field().String()).Valid()
}

func validateActorRole(fl validator.FieldLevel) bool {
	return model.Role(fl.Field().String()).Valid()
}

func (v *BookingValidator) ValidateCreate(req *model.CreateBookingRequest) error {
	return v.validateStruct(req)
}

func (v *BookingValidator) ValidateEdit(req *model.EditBookingRequest) error {
	return v.validateStruct(req)
}

func (v *BookingValidator) ValidateFilter(filter *model.BookingFilter) error {
	if err := v.validateStruct(filter); err != nil {
		return err
	}
	if filter.From != nil && filter.To != nil && !filter.To.After(*filter.From) {
		return ValidationErrors{
			ValidationError{
				Field:   "To",
				Message: "to must be after from",
			},
		}
	}
	return nil
}

func (v *BookingValidator) ValidateActor(actor model.Actor) error {
	return v.validateStruct(actor)
}

func (v *BookingValidator) validateStruct(s any) error {
	if err := v.validate.Struct(s); err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) {
			return v.translateValidationErrors(validationErrs)
		}
		return err
	}
	return nil
}

func (v *BookingValidator) translateValidationErrors(errs validator.ValidationErrors) ValidationErrors {
	var validationErrors ValidationErrors

	for _, err := range errs {
		message := err.Error()

		switch err.Tag() {
		case "required":
			message = fmt.Sprintf("%s is required", err.Field())
		case "max":
			message = fmt.Sprintf("%s must be at most %s", err.Field(), err.Param())
		case "mongodb":
			message = fmt.Sprintf("%s must be a valid MongoDB ObjectID", err.Field())
		case "booking_status":
			message = fmt.Sprintf("%s must be one of: pending, approved, rejected, canceled", err.Field())
		case "actor_role":
			message = fmt.Sprintf("%s must be one of: student, lecturer, admin", err.Field())
		}

		validationErrors = append(validationErrors, ValidationError{
			Field:   err.Field(),
			Message: message,
		})
	}

	return validationErrors
}
