// Package channel names the broadcast scopes of the relay and the events sent on them.
package channel

import (
	"fmt"
	"regexp"
	"strings"

	apperrors "portal-realtime/pkg/errors"
)

type Scope string

const (
	ScopeProject  Scope = "project"
	ScopeBusiness Scope = "business"
)

const (
	EventCommentAdded    = "comment.added"
	EventNewNotification = "new-notification"
)

var (
	idPattern    = regexp.MustCompile(`^[A-Za-z0-9_-]{1,128}$`)
	eventPattern = regexp.MustCompile(`^[a-z][a-z0-9_.-]{0,63}$`)
)

// Name identifies one channel on the relay, e.g. "project-42".
type Name struct {
	Scope Scope
	ID    string
}

func (n Name) String() string {
	return string(n.Scope) + "-" + n.ID
}

func Project(projectID string) string {
	return Name{Scope: ScopeProject, ID: projectID}.String()
}

func Business(businessID string) string {
	return Name{Scope: ScopeBusiness, ID: businessID}.String()
}

// Parse splits a channel name into its scope and scope id.
func Parse(name string) (Name, error) {
	for _, scope := range []Scope{ScopeProject, ScopeBusiness} {
		prefix := string(scope) + "-"
		if !strings.HasPrefix(name, prefix) {
			continue
		}
		id := strings.TrimPrefix(name, prefix)
		if !idPattern.MatchString(id) {
			return Name{}, fmt.Errorf("%q: %w", name, apperrors.ErrInvalidChannel)
		}
		return Name{Scope: scope, ID: id}, nil
	}
	return Name{}, fmt.Errorf("%q: %w", name, apperrors.ErrInvalidChannel)
}

func Valid(name string) bool {
	_, err := Parse(name)
	return err == nil
}

// ValidEvent reports whether event is a well-formed event name.
func ValidEvent(event string) bool {
	return eventPattern.MatchString(event)
}
