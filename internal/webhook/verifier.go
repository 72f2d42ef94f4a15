package webhook

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	svix "github.com/svix/svix-webhooks/go"
)

const (
	HeaderID        = "svix-id"
	HeaderTimestamp = "svix-timestamp"
	HeaderSignature = "svix-signature"
)

var requiredHeaders = []string{HeaderID, HeaderTimestamp, HeaderSignature}

var (
	ErrMissingHeaders = errors.New("missing svix headers")
	ErrVerification   = errors.New("webhook verification failed")
	ErrInvalidPayload = errors.New("invalid event payload")
)

// Verifier authenticates a delivery and, only on success, returns the
// decoded event.
type Verifier interface {
	Verify(headers http.Header, body []byte) (*Event, error)
}

// signatureChecker is the subset of *svix.Webhook used here.
type signatureChecker interface {
	Verify(payload []byte, headers http.Header) error
}

// SvixVerifier checks Svix signatures (HMAC-SHA256 over id.timestamp.body
// with timestamp tolerance) using the shared signing secret.
type SvixVerifier struct {
	checker signatureChecker
}

// NewSvixVerifier builds a verifier from a "whsec_..." signing secret. An
// undecodable secret is a configuration error.
func NewSvixVerifier(secret string) (*SvixVerifier, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("signing secret is empty")
	}
	wh, err := svix.NewWebhook(secret)
	if err != nil {
		return nil, fmt.Errorf("creating svix webhook verifier: %w", err)
	}
	return &SvixVerifier{checker: wh}, nil
}

// Verify checks the three svix headers, then the signature over the exact
// body bytes, and only then decodes the body.
func (v *SvixVerifier) Verify(headers http.Header, body []byte) (*Event, error) {
	if missing := MissingHeaders(headers); len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrMissingHeaders, strings.Join(missing, ", "))
	}

	if err := v.checker.Verify(body, headers); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrVerification, err)
	}

	var evt Event
	if err := json.Unmarshal(body, &evt); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidPayload, err)
	}
	if evt.Type == "" {
		return nil, fmt.Errorf("%w: type is required", ErrInvalidPayload)
	}
	evt.DeliveryID = headers.Get(HeaderID)
	return &evt, nil
}

// MissingHeaders lists the required svix headers absent from h.
func MissingHeaders(h http.Header) []string {
	var missing []string
	for _, name := range requiredHeaders {
		if strings.TrimSpace(h.Get(name)) == "" {
			missing = append(missing, name)
		}
	}
	return missing
}
