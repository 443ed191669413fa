package app

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"strconv"

	"depohub/pkg/domain"
)

// MessageAuthenticator verifies envelope signatures against a shared secret.
// Validate never panics on untrusted input: any malformed or mismatched
// signature is simply false.
type MessageAuthenticator struct {
	secret []byte
}

func NewMessageAuthenticator(secret string) *MessageAuthenticator {
	return &MessageAuthenticator{secret: []byte(secret)}
}

// Validate recomputes the HMAC-SHA256 signature over the envelope's signed
// fields and compares it in constant time.
func (a *MessageAuthenticator) Validate(env domain.NotificationEnvelope) bool {
	if env.Signature == "" {
		return false
	}
	got, err := base64.StdEncoding.DecodeString(env.Signature)
	if err != nil {
		return false
	}
	want := a.compute(env)
	return hmac.Equal(got, want)
}

// Sign produces the signature a producer must attach to env.
func (a *MessageAuthenticator) Sign(env domain.NotificationEnvelope) string {
	return base64.StdEncoding.EncodeToString(a.compute(env))
}

func (a *MessageAuthenticator) compute(env domain.NotificationEnvelope) []byte {
	mac := hmac.New(sha256.New, a.secret)
	mac.Write([]byte(env.MessageID))
	mac.Write([]byte{'\n'})
	mac.Write([]byte(env.Message))
	mac.Write([]byte{'\n'})
	mac.Write([]byte(strconv.FormatBool(env.IsSubscriptionType)))
	mac.Write([]byte{'\n'})
	mac.Write([]byte(env.SubscribeURL))
	return mac.Sum(nil)
}
