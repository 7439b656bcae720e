package quest

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/optioeducation/optio/core"
)

var (
	pillarTag  = "pillar"
	pillarText = "invalid pillar"
)

// InitValidators registers the quest package's custom validators and translations.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(pillarTag, pillarValidation)
	core.RegisterCustomTranslation(validate, translator, pillarTag, pillarText)
}

// pillarValidation checks that the provided pillar is a known learning pillar.
func pillarValidation(fl validator.FieldLevel) bool {
	val := fl.Field().String()
	for _, p := range Pillars {
		if p == val {
			return true
		}
	}
	return false
}
