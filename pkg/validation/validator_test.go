package validation

import (
	"testing"

	"github.com/aarondl/null/v8"
	"github.com/stretchr/testify/assert"
)

type publishForm struct {
	Channel string      `validate:"required,channel_name"`
	Event   string      `validate:"required,event_name"`
	ActorID null.String `validate:"omitempty,max=8"`
}

func TestCustomRules(t *testing.T) {
	v := New()

	assert.NoError(t, v.Validate(publishForm{Channel: "project-1", Event: "comment.added"}))
	assert.Error(t, v.Validate(publishForm{Channel: "room-1", Event: "comment.added"}))
	assert.Error(t, v.Validate(publishForm{Channel: "project-1", Event: "Bad Event"}))
}

func TestNullTypesAreUnwrapped(t *testing.T) {
	v := New()

	assert.NoError(t, v.Validate(publishForm{Channel: "business-1", Event: "new-notification", ActorID: null.String{}}))
	assert.NoError(t, v.Validate(publishForm{Channel: "business-1", Event: "new-notification", ActorID: null.StringFrom("u1")}))
	assert.Error(t, v.Validate(publishForm{Channel: "business-1", Event: "new-notification", ActorID: null.StringFrom("much-too-long")}))
}
