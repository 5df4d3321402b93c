package handlers

import (
	"bitbucket.org/mmdatafocus/recon_backend/models"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// RegisterValidators installs the enum validations used by binding tags.
// Call once before routes are registered.
func RegisterValidators() {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return
	}
	_ = v.RegisterValidation("direction", func(fl validator.FieldLevel) bool {
		return models.Direction(fl.Field().String()).Valid()
	})
	_ = v.RegisterValidation("matchtype", func(fl validator.FieldLevel) bool {
		t := models.MatchType(fl.Field().String())
		return t == models.MatchTypeFull || t == models.MatchTypePartial
	})
}
