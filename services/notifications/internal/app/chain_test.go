package app

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"depohub/pkg/domain"
	"depohub/pkg/store"
)

type sentPush struct {
	identity string
	payload  []byte
}

type fakeNotifier struct {
	mu    sync.Mutex
	err   error
	sends []sentPush
}

func (f *fakeNotifier) SendToUser(_ context.Context, identity string, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sends = append(f.sends, sentPush{identity: identity, payload: payload})
	return nil
}

func (f *fakeNotifier) sent() []sentPush {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sentPush(nil), f.sends...)
}

type fakeConfirmer struct {
	mu    sync.Mutex
	err   error
	calls []string
}

func (f *fakeConfirmer) Confirm(_ context.Context, url string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, url)
	return f.err
}

type testFixture struct {
	app      *App
	auth     *MessageAuthenticator
	store    *store.MemoryStore
	notifier *fakeNotifier
	confirm  *fakeConfirmer
}

func newFixture(t *testing.T) *testFixture {
	t.Helper()
	mem := store.NewMemoryStore()
	notifier := &fakeNotifier{}
	confirm := &fakeConfirmer{}
	a, err := New(Config{
		Store:           mem,
		SignatureSecret: "test-secret",
		MaxExhibitBytes: 10 * 1024 * 1024,
		Notifier:        notifier,
		Confirmer:       confirm,
		Logger:          slog.Default(),
	})
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	return &testFixture{
		app:      a,
		auth:     NewMessageAuthenticator("test-secret"),
		store:    mem,
		notifier: notifier,
		confirm:  confirm,
	}
}

func (f *testFixture) signedEnvelope(t *testing.T, id, body string) domain.NotificationEnvelope {
	t.Helper()
	env := domain.NotificationEnvelope{MessageID: id, Message: body}
	env.Signature = f.auth.Sign(env)
	return env
}

func (f *testFixture) seedUploader(t *testing.T) domain.User {
	t.Helper()
	user := domain.User{
		ID:        "user-1",
		Email:     "uploader@example.com",
		Role:      domain.RoleAttorney,
		CreatedAt: time.Now().UTC(),
	}
	if err := f.store.SaveUser(user); err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return user
}

func exhibitBody(userID, depositionID string, size int64) string {
	return fmt.Sprintf(`{
		"NotificationType": "ExhibitUploaded",
		"Context": {
			"Name": "a.pdf", "DisplayName": "a.pdf",
			"FilePath": "depositions/%s/exhibits/a.pdf",
			"Size": %d, "AddedBy": %q,
			"DocumentType": "Exhibit", "Type": "Exhibit",
			"DepositionId": %q
		}
	}`, depositionID, size, userID, depositionID)
}

func TestExhibitUploadPersistsAndPushes(t *testing.T) {
	f := newFixture(t)
	user := f.seedUploader(t)
	env := f.signedEnvelope(t, "msg-1", exhibitBody(user.ID, "depo-1", 100))

	if err := f.app.Process(context.Background(), env); err != nil {
		t.Fatalf("process: %v", err)
	}

	docs, err := f.store.ListDocumentsByDeposition("depo-1")
	if err != nil || len(docs) != 1 {
		t.Fatalf("expected 1 persisted document, got %d (%v)", len(docs), err)
	}
	doc := docs[0]
	if doc.AddedByID != user.ID || doc.Type != domain.DocumentTypeExhibit {
		t.Fatalf("unexpected document: %+v", doc)
	}

	sends := f.notifier.sent()
	if len(sends) != 1 {
		t.Fatalf("expected 1 push, got %d", len(sends))
	}
	if sends[0].identity != user.Email {
		t.Fatalf("push addressed to %q, want %q", sends[0].identity, user.Email)
	}
	var push domain.PushNotification
	if err := json.Unmarshal(sends[0].payload, &push); err != nil {
		t.Fatalf("decode push: %v", err)
	}
	if push.Action != domain.ActionCreate || push.EntityType != domain.EntityExhibit {
		t.Fatalf("unexpected push: %+v", push)
	}
	if push.Content.Data.ResourceID != "depo-1" || push.Content.Data.DocumentID != doc.ID {
		t.Fatalf("push addresses wrong resources: %+v", push.Content.Data)
	}
}

func TestInvalidSignatureAbortsWithoutSideEffects(t *testing.T) {
	f := newFixture(t)
	user := f.seedUploader(t)
	env := domain.NotificationEnvelope{
		MessageID: "msg-1",
		Message:   exhibitBody(user.ID, "depo-1", 100),
		Signature: "Zm9yZ2Vk",
	}

	err := f.app.Process(context.Background(), env)
	if err == nil {
		t.Fatal("expected processing error for forged signature")
	}
	if !IsHandleError(err) {
		t.Fatalf("expected domain handle error, got: %v", err)
	}
	if docs, _ := f.store.ListDocumentsByDeposition("depo-1"); len(docs) != 0 {
		t.Fatal("forged message must not persist anything")
	}
	if len(f.notifier.sent()) != 0 {
		t.Fatal("forged message must not push anything")
	}
}

func TestUnrecognizedShapeDropsQuietly(t *testing.T) {
	f := newFixture(t)
	env := f.signedEnvelope(t, "msg-1", `{"NotificationType":"SomethingNew","Context":{}}`)

	if err := f.app.Process(context.Background(), env); err != nil {
		t.Fatalf("unknown shape must not error: %v", err)
	}
	if len(f.notifier.sent()) != 0 {
		t.Fatal("unknown shape must not push")
	}
}

func TestMalformedBodyDropsQuietly(t *testing.T) {
	f := newFixture(t)
	env := f.signedEnvelope(t, "msg-1", "this is not json")

	if err := f.app.Process(context.Background(), env); err != nil {
		t.Fatalf("malformed body must not error: %v", err)
	}
	if len(f.notifier.sent()) != 0 {
		t.Fatal("malformed body must not push")
	}
}

func TestSubscriptionConfirmationClaims(t *testing.T) {
	f := newFixture(t)
	env := domain.NotificationEnvelope{
		MessageID:          "msg-1",
		Message:            exhibitBody("user-1", "depo-1", 100),
		IsSubscriptionType: true,
		SubscribeURL:       "https://pubsub.example.com/confirm/abc",
	}
	env.Signature = f.auth.Sign(env)

	if err := f.app.Process(context.Background(), env); err != nil {
		t.Fatalf("process: %v", err)
	}
	if len(f.confirm.calls) != 1 || f.confirm.calls[0] != env.SubscribeURL {
		t.Fatalf("expected one confirmation call, got %v", f.confirm.calls)
	}
	// a subscription message never reaches the business handlers, even when
	// its body would parse
	if docs, _ := f.store.ListDocumentsByDeposition("depo-1"); len(docs) != 0 {
		t.Fatal("subscription message must not persist documents")
	}
}

func TestSubscriptionConfirmationFailureIsRetryable(t *testing.T) {
	f := newFixture(t)
	f.confirm.err = fmt.Errorf("connection refused")
	env := domain.NotificationEnvelope{
		MessageID:          "msg-1",
		IsSubscriptionType: true,
		SubscribeURL:       "https://pubsub.example.com/confirm/abc",
	}
	env.Signature = f.auth.Sign(env)

	err := f.app.Process(context.Background(), env)
	if err == nil {
		t.Fatal("expected confirmation failure to propagate")
	}
	if IsHandleError(err) {
		t.Fatalf("confirmation failure must stay retryable, got domain error: %v", err)
	}
}

func TestOversizedExhibitIsADataError(t *testing.T) {
	f := newFixture(t)
	user := f.seedUploader(t)
	env := f.signedEnvelope(t, "msg-1", exhibitBody(user.ID, "depo-1", 100*1024*1024))

	err := f.app.Process(context.Background(), env)
	if err == nil || !IsHandleError(err) {
		t.Fatalf("expected domain handle error, got: %v", err)
	}
	if docs, _ := f.store.ListDocumentsByDeposition("depo-1"); len(docs) != 0 {
		t.Fatal("oversized exhibit must not persist")
	}
}

func TestUnknownUploaderIsADataError(t *testing.T) {
	f := newFixture(t)
	env := f.signedEnvelope(t, "msg-1", exhibitBody("nobody", "depo-1", 100))

	err := f.app.Process(context.Background(), env)
	if err == nil || !IsHandleError(err) {
		t.Fatalf("expected domain handle error, got: %v", err)
	}
	if len(f.notifier.sent()) != 0 {
		t.Fatal("failed persist must not push")
	}
}

func TestRedeliveredMessageIsSkipped(t *testing.T) {
	f := newFixture(t)
	user := f.seedUploader(t)
	env := f.signedEnvelope(t, "msg-1", exhibitBody(user.ID, "depo-1", 100))

	if err := f.app.Process(context.Background(), env); err != nil {
		t.Fatalf("first delivery: %v", err)
	}
	if err := f.app.Process(context.Background(), env); err != nil {
		t.Fatalf("redelivery: %v", err)
	}
	if docs, _ := f.store.ListDocumentsByDeposition("depo-1"); len(docs) != 1 {
		t.Fatalf("redelivery must not duplicate the document, got %d", len(docs))
	}
	if sends := f.notifier.sent(); len(sends) != 1 {
		t.Fatalf("redelivery must not push again, got %d pushes", len(sends))
	}
}

func TestPushFailureDoesNotFailProcessing(t *testing.T) {
	f := newFixture(t)
	user := f.seedUploader(t)
	f.notifier.err = fmt.Errorf("backplane down")
	env := f.signedEnvelope(t, "msg-1", exhibitBody(user.ID, "depo-1", 100))

	if err := f.app.Process(context.Background(), env); err != nil {
		t.Fatalf("committed document with failed push must not error: %v", err)
	}
	if docs, _ := f.store.ListDocumentsByDeposition("depo-1"); len(docs) != 1 {
		t.Fatal("document should be persisted despite push failure")
	}
}
