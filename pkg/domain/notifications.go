package domain

// NotificationType discriminates the inner pub/sub message body.
type NotificationType string

const (
	NotificationExhibitUploaded    NotificationType = "ExhibitUploaded"
	NotificationLambdaException    NotificationType = "ExceptionInLambda"
	NotificationExceededSize       NotificationType = "ExceededSize"
	NotificationInvalidS3Structure NotificationType = "InvalidS3Structure"
)

// NotificationEnvelope is the outer signed pub/sub delivery wrapping a
// notification body. It is immutable once received and consumed exactly once
// by the handler chain.
type NotificationEnvelope struct {
	MessageID          string `json:"MessageId"`
	Signature          string `json:"Signature"`
	Message            string `json:"Message"`
	IsSubscriptionType bool   `json:"IsSubscriptionType"`
	SubscribeURL       string `json:"SubscribeURL,omitempty"`
}

// DocumentContext carries the document fields attached to upload
// notifications. AddedBy and DepositionId are UUID strings.
type DocumentContext struct {
	Name         string `json:"Name"`
	DisplayName  string `json:"DisplayName"`
	FilePath     string `json:"FilePath"`
	Size         int64  `json:"Size"`
	AddedBy      string `json:"AddedBy"`
	DocumentType string `json:"DocumentType"`
	Type         string `json:"Type"`
	DepositionID string `json:"DepositionId"`
}

// ExhibitNotification is the parsed exhibit-uploaded message body.
type ExhibitNotification struct {
	NotificationType NotificationType `json:"NotificationType"`
	Context          DocumentContext  `json:"Context"`
}

// ErrorContext describes an upstream pipeline failure; Document is the
// partially-known context of the file involved, when the producer had one.
type ErrorContext struct {
	Error    string           `json:"Error"`
	Document *DocumentContext `json:"Document,omitempty"`
}

// ErrorNotification is a parsed error message body (lambda exception,
// exceeded size, invalid bucket structure).
type ErrorNotification struct {
	NotificationType NotificationType `json:"NotificationType"`
	Context          ErrorContext     `json:"Context"`
}

// NotificationAction tells the client what happened to the entity.
type NotificationAction string

const (
	ActionCreate NotificationAction = "Create"
	ActionError  NotificationAction = "Error"
)

// EntityType names the entity a push notification is about.
type EntityType string

const EntityExhibit EntityType = "Exhibit"

// PushData addresses the affected resources.
type PushData struct {
	ResourceID string `json:"ResourceId"`
	DocumentID string `json:"DocumentId,omitempty"`
}

// PushContent is the user-visible part of a push notification.
type PushContent struct {
	Message string   `json:"Message"`
	Data    PushData `json:"Data"`
}

// PushNotification is the real-time event delivered to a single addressed
// user identity.
type PushNotification struct {
	Action     NotificationAction `json:"Action"`
	EntityType EntityType         `json:"EntityType"`
	Content    PushContent        `json:"Content"`
}
