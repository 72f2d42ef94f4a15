package webhook_test

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	svix "github.com/svix/svix-webhooks/go"
	"github.com/valinor-ai/usersync/internal/audit"
	"github.com/valinor-ai/usersync/internal/users"
)

var testSecret = "whsec_" + base64.StdEncoding.EncodeToString([]byte("usersync-test-signing-secret-0123456789"))

func newSigner(t *testing.T) *svix.Webhook {
	t.Helper()
	wh, err := svix.NewWebhook(testSecret)
	require.NoError(t, err)
	return wh
}

func signedHeaders(t *testing.T, wh *svix.Webhook, msgID string, ts time.Time, body string) http.Header {
	t.Helper()
	sig, err := wh.Sign(msgID, ts, []byte(body))
	require.NoError(t, err)

	h := make(http.Header)
	h.Set("svix-id", msgID)
	h.Set("svix-timestamp", strconv.FormatInt(ts.Unix(), 10))
	h.Set("svix-signature", sig)
	return h
}

func signedRequest(t *testing.T, wh *svix.Webhook, msgID, body string) *http.Request {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/webhooks", strings.NewReader(body))
	for k, v := range signedHeaders(t, wh, msgID, time.Now(), body) {
		req.Header[k] = v
	}
	req.Header.Set("Content-Type", "application/json")
	return req
}

func userEvent(eventType, id, first, last, email, image string) string {
	return fmt.Sprintf(`{
  "object": "event",
  "type": %q,
  "timestamp": 1730000000000,
  "data": {
    "id": %q,
    "object": "user",
    "first_name": %q,
    "last_name": %q,
    "email_addresses": [{"id": "idn_1", "email_address": %q}],
    "primary_email_address_id": "idn_1",
    "image_url": %q
  }
}`, eventType, id, first, last, email, image)
}

func deletedEvent(id string) string {
	return fmt.Sprintf(`{"object":"event","type":"user.deleted","data":{"id":%q,"object":"user","deleted":true}}`, id)
}

// memStore is an in-memory UserStore with the same error contract as users.Store.
type memStore struct {
	mu    sync.Mutex
	rows  map[string]users.User
	calls int
	err   error
}

func newMemStore() *memStore {
	return &memStore{rows: map[string]users.User{}}
}

func (s *memStore) Create(_ context.Context, u users.User) (*users.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	if _, ok := s.rows[u.ID]; ok {
		return nil, fmt.Errorf("%w: %s: duplicate key value violates unique constraint \"users_pkey\"", users.ErrUserDuplicate, u.ID)
	}
	s.rows[u.ID] = u
	return &u, nil
}

func (s *memStore) Update(_ context.Context, u users.User) (*users.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	if _, ok := s.rows[u.ID]; !ok {
		return nil, fmt.Errorf("%w: %s", users.ErrUserNotFound, u.ID)
	}
	s.rows[u.ID] = u
	return &u, nil
}

func (s *memStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return s.err
	}
	if _, ok := s.rows[id]; !ok {
		return fmt.Errorf("%w: %s", users.ErrUserNotFound, id)
	}
	delete(s.rows, id)
	return nil
}

func (s *memStore) get(id string) (users.User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.rows[id]
	return u, ok
}

func (s *memStore) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// captureAudit records audit events synchronously.
type captureAudit struct {
	mu     sync.Mutex
	events []audit.Event
}

func (c *captureAudit) Log(_ context.Context, e audit.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, e)
}

func (c *captureAudit) Close() error { return nil }

func (c *captureAudit) actions() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.events))
	for _, e := range c.events {
		out = append(out, e.Action)
	}
	return out
}
