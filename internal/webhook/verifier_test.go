package webhook_test

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valinor-ai/usersync/internal/webhook"
)

func TestNewSvixVerifier_RejectsBadSecret(t *testing.T) {
	_, err := webhook.NewSvixVerifier("")
	assert.Error(t, err)

	_, err = webhook.NewSvixVerifier("whsec_%%%not-base64%%%")
	assert.Error(t, err)
}

func TestSvixVerifier_ValidSignature(t *testing.T) {
	wh := newSigner(t)
	body := userEvent("user.created", "user_1", "Ada", "Lovelace", "ada@example.com", "https://img/ada.png")
	headers := signedHeaders(t, wh, "msg_valid", time.Now(), body)

	verifier, err := webhook.NewSvixVerifier(testSecret)
	require.NoError(t, err)

	evt, err := verifier.Verify(headers, []byte(body))
	require.NoError(t, err)
	assert.Equal(t, webhook.EventUserCreated, evt.Type)
	assert.Equal(t, "msg_valid", evt.DeliveryID)

	data, err := evt.UserData()
	require.NoError(t, err)
	assert.Equal(t, "user_1", data.ID)
}

func TestSvixVerifier_MissingHeaders(t *testing.T) {
	wh := newSigner(t)
	body := deletedEvent("user_1")

	verifier, err := webhook.NewSvixVerifier(testSecret)
	require.NoError(t, err)

	for _, name := range []string{"svix-id", "svix-timestamp", "svix-signature"} {
		t.Run(name, func(t *testing.T) {
			headers := signedHeaders(t, wh, "msg_1", time.Now(), body)
			headers.Del(name)

			evt, err := verifier.Verify(headers, []byte(body))
			require.Error(t, err)
			assert.ErrorIs(t, err, webhook.ErrMissingHeaders)
			assert.Contains(t, err.Error(), name)
			assert.Nil(t, evt)
		})
	}
}

func TestSvixVerifier_TamperedBody(t *testing.T) {
	wh := newSigner(t)
	body := userEvent("user.created", "user_1", "A", "B", "a@b.com", "")
	headers := signedHeaders(t, wh, "msg_1", time.Now(), body)

	verifier, err := webhook.NewSvixVerifier(testSecret)
	require.NoError(t, err)

	tampered := userEvent("user.created", "user_evil", "A", "B", "a@b.com", "")
	evt, err := verifier.Verify(headers, []byte(tampered))
	require.Error(t, err)
	assert.ErrorIs(t, err, webhook.ErrVerification)
	assert.Nil(t, evt)
}

func TestSvixVerifier_WrongSecret(t *testing.T) {
	wh := newSigner(t)
	body := deletedEvent("user_1")
	headers := signedHeaders(t, wh, "msg_1", time.Now(), body)

	verifier, err := webhook.NewSvixVerifier("whsec_" + "b3RoZXItc2VjcmV0LW90aGVyLXNlY3JldA==")
	require.NoError(t, err)

	_, err = verifier.Verify(headers, []byte(body))
	assert.ErrorIs(t, err, webhook.ErrVerification)
}

func TestSvixVerifier_ExpiredTimestamp(t *testing.T) {
	wh := newSigner(t)
	body := deletedEvent("user_1")
	headers := signedHeaders(t, wh, "msg_old", time.Now().Add(-30*time.Minute), body)

	verifier, err := webhook.NewSvixVerifier(testSecret)
	require.NoError(t, err)

	_, err = verifier.Verify(headers, []byte(body))
	assert.ErrorIs(t, err, webhook.ErrVerification)
}

func TestSvixVerifier_MalformedSignatureHeader(t *testing.T) {
	body := deletedEvent("user_1")
	headers := make(http.Header)
	headers.Set("svix-id", "msg_1")
	headers.Set("svix-timestamp", "not-a-number")
	headers.Set("svix-signature", "v1,deadbeef")

	verifier, err := webhook.NewSvixVerifier(testSecret)
	require.NoError(t, err)

	_, err = verifier.Verify(headers, []byte(body))
	assert.ErrorIs(t, err, webhook.ErrVerification)
}

func TestSvixVerifier_SignedButNotJSON(t *testing.T) {
	wh := newSigner(t)
	body := `not json at all`
	headers := signedHeaders(t, wh, "msg_1", time.Now(), body)

	verifier, err := webhook.NewSvixVerifier(testSecret)
	require.NoError(t, err)

	_, err = verifier.Verify(headers, []byte(body))
	assert.ErrorIs(t, err, webhook.ErrInvalidPayload)
}

func TestSvixVerifier_SignedButNoType(t *testing.T) {
	wh := newSigner(t)
	body := `{"data":{"id":"user_1"}}`
	headers := signedHeaders(t, wh, "msg_1", time.Now(), body)

	verifier, err := webhook.NewSvixVerifier(testSecret)
	require.NoError(t, err)

	_, err = verifier.Verify(headers, []byte(body))
	assert.ErrorIs(t, err, webhook.ErrInvalidPayload)
}

func TestMissingHeaders(t *testing.T) {
	h := make(http.Header)
	h.Set("Svix-Id", "msg_1")
	h.Set("svix-signature", "  ")

	assert.Equal(t, []string{"svix-timestamp", "svix-signature"}, webhook.MissingHeaders(h))
}
