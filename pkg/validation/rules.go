package validation

import (
	"github.com/go-playground/validator/v10"

	"portal-realtime/pkg/channel"
)

// registerRules registers the tags used in struct tags across the module.
func registerRules(v *validator.Validate) error {
	if err := v.RegisterValidation("channel_name", isChannelName); err != nil {
		return err
	}
	if err := v.RegisterValidation("event_name", isEventName); err != nil {
		return err
	}
	return nil
}

func isChannelName(fl validator.FieldLevel) bool {
	return channel.Valid(fl.Field().String())
}

func isEventName(fl validator.FieldLevel) bool {
	return channel.ValidEvent(fl.Field().String())
}
