package utils

import (
	"errors"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"taskory/models"
)

var validate = newValidator()

var projectKeyPattern = regexp.MustCompile(`^[A-Z][A-Z0-9]{1,9}$`)

func newValidator() *validator.Validate {
	v := validator.New()

	// role: one of the known account roles
	_ = v.RegisterValidation("role", func(fl validator.FieldLevel) bool {
		return models.ValidRole(fl.Field().String())
	})

	// projectkey: short uppercase identifier like "ALP" or "TASK1"
	_ = v.RegisterValidation("projectkey", func(fl validator.FieldLevel) bool {
		return projectKeyPattern.MatchString(fl.Field().String())
	})

	return v
}

func ValidateStruct(s interface{}) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	// Format validation errors
	var msgs []string
	for _, err := range err.(validator.ValidationErrors) {
		field := strings.ToLower(err.Field())
		tag := err.Tag()
		param := err.Param()

		switch tag {
		case "required":
			msgs = append(msgs, field+" is required")
		case "min":
			msgs = append(msgs, field+" must be at least "+param+" characters")
		case "max":
			msgs = append(msgs, field+" must be at most "+param+" characters")
		case "email":
			msgs = append(msgs, field+" must be a valid email")
		case "role":
			msgs = append(msgs, field+" must be one of admin, project_manager, developer, viewer")
		case "projectkey":
			msgs = append(msgs, field+" must be 2-10 uppercase letters/digits starting with a letter")
		default:
			msgs = append(msgs, field+" is invalid")
		}
	}

	return errors.New(strings.Join(msgs, ", "))
}
