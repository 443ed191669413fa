package app

import (
	"encoding/json"

	"depohub/pkg/domain"
)

// ParseExhibitUploaded attempts to read body as an exhibit-uploaded
// notification. Returns ok=false when the body is not JSON or the type
// discriminator does not match; malformed input is never an error here.
func ParseExhibitUploaded(body string) (domain.ExhibitNotification, bool) {
	var n domain.ExhibitNotification
	if err := json.Unmarshal([]byte(body), &n); err != nil {
		return domain.ExhibitNotification{}, false
	}
	if n.NotificationType != domain.NotificationExhibitUploaded {
		return domain.ExhibitNotification{}, false
	}
	return n, true
}

// ParseExceptionNotification attempts to read body as one of the upstream
// failure notifications (lambda exception, exceeded size, invalid bucket
// structure).
func ParseExceptionNotification(body string) (domain.ErrorNotification, bool) {
	var n domain.ErrorNotification
	if err := json.Unmarshal([]byte(body), &n); err != nil {
		return domain.ErrorNotification{}, false
	}
	switch n.NotificationType {
	case domain.NotificationLambdaException,
		domain.NotificationExceededSize,
		domain.NotificationInvalidS3Structure:
		return n, true
	default:
		return domain.ErrorNotification{}, false
	}
}
