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
	Field   string
	Message string
}

func (v ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", v.Field, v.Message)
}

type ValidationErrors []ValidationError

func (v ValidationErrors) Error() string {
	msgs := make([]string, 0, len(v))
	for _, e := range v {
		msgs = append(msgs, e.Error())
	}
	return strings.Join(msgs, "; ")
}

type RoomValidator struct {
	validate *validator.Validate
	logger   *logger.Logger
}

func NewRoomValidator(log *logger.Logger) *RoomValidator {
	v := validator.New()

	if err := v.RegisterValidation("room_status", validateRoomStatus); err != nil {
		log.Fatal("Failed to register 'room_status' validator",
			"error", err,
		)
	}

	return &RoomValidator{
		validate: v,
		logger:   log,
	}
}

func validateRoomStatus(fl validator.FieldLevel) bool {
	return model.RoomStatus(fl.Field().String()).Valid()
}

func (v *RoomValidator) Validate(room *model.Room) error {
	return v.validateStruct(room)
}

func (v *RoomValidator) ValidateStatusUpdate(update *model.RoomStatusUpdate) error {
	return v.validateStruct(update)
}

func (v *RoomValidator) validateStruct(s any) error {
	if err := v.validate.Struct(s); err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) {
			return translateValidationErrors(validationErrs)
		}
		return err
	}
	return nil
}

func translateValidationErrors(errs validator.ValidationErrors) ValidationErrors {
	var out ValidationErrors
	for _, err := range errs {
		message := err.Error()
		switch err.Tag() {
		case "required":
			message = fmt.Sprintf("%s is required", err.Field())
		case "min":
			message = fmt.Sprintf("%s must be at least %s", err.Field(), err.Param())
		case "max":
			message = fmt.Sprintf("%s must be at most %s", err.Field(), err.Param())
		case "room_status":
			message = fmt.Sprintf("%s must be one of: available, maintenance", err.Field())
		}
		out = append(out, ValidationError{Field: err.Field(), Message: message})
	}
	return out
}
