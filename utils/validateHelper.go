package utils

import (
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// shared validator; it caches struct metadata so there is one per process
func GetValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// ValidateStruct checks `validate` tags, returning validator.ValidationErrors on failure
func ValidateStruct(s interface{}) error {
	return GetValidator().Struct(s)
}
