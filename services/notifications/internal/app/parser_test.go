package app

import (
	"testing"

	"depohub/pkg/domain"
)

func TestParseExhibitUploaded(t *testing.T) {
	body := `{
		"NotificationType": "ExhibitUploaded",
		"Context": {
			"Name": "a.pdf", "DisplayName": "a.pdf",
			"FilePath": "depositions/d1/exhibits/a.pdf",
			"Size": 100, "AddedBy": "u1",
			"DocumentType": "Exhibit", "Type": "Exhibit",
			"DepositionId": "d1"
		}
	}`
	n, ok := ParseExhibitUploaded(body)
	if !ok {
		t.Fatal("expected exhibit body to parse")
	}
	if n.Context.DepositionID != "d1" || n.Context.AddedBy != "u1" || n.Context.Size != 100 {
		t.Fatalf("unexpected context: %+v", n.Context)
	}
}

func TestParseExhibitUploadedRejectsOtherKinds(t *testing.T) {
	if _, ok := ParseExhibitUploaded(`{"NotificationType":"ExceptionInLambda","Context":{}}`); ok {
		t.Fatal("error notification must not parse as exhibit")
	}
}

func TestParseMalformedBodyNeverErrors(t *testing.T) {
	for _, body := range []string{"", "not json", "{", `["array"]`, `{"NotificationType": 7}`} {
		if _, ok := ParseExhibitUploaded(body); ok {
			t.Fatalf("body %q must not parse as exhibit", body)
		}
		if _, ok := ParseExceptionNotification(body); ok {
			t.Fatalf("body %q must not parse as error notification", body)
		}
	}
}

func TestParseExceptionNotificationKinds(t *testing.T) {
	for _, kind := range []domain.NotificationType{
		domain.NotificationLambdaException,
		domain.NotificationExceededSize,
		domain.NotificationInvalidS3Structure,
	} {
		body := `{"NotificationType":"` + string(kind) + `","Context":{"Error":"boom"}}`
		n, ok := ParseExceptionNotification(body)
		if !ok {
			t.Fatalf("kind %s should parse", kind)
		}
		if n.Context.Error != "boom" {
			t.Fatalf("kind %s: unexpected context %+v", kind, n.Context)
		}
	}
	if _, ok := ParseExceptionNotification(`{"NotificationType":"ExhibitUploaded","Context":{}}`); ok {
		t.Fatal("exhibit body must not parse as error notification")
	}
}
