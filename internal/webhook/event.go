package webhook

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/valinor-ai/usersync/internal/users"
)

// EventType is the "type" tag of a provider event.
type EventType string

const (
	EventUserCreated EventType = "user.created"
	EventUserUpdated EventType = "user.updated"
	EventUserDeleted EventType = "user.deleted"
)

// Event is a verified webhook delivery. Values are only produced by a
// Verifier, after the signature over the raw body has been checked.
type Event struct {
	Type EventType       `json:"type"`
	Data json.RawMessage `json:"data"`

	// DeliveryID is the svix-id header of the delivery.
	DeliveryID string `json:"-"`
}

// EmailAddress is one entry of a user's email_addresses list.
type EmailAddress struct {
	ID           string `json:"id"`
	EmailAddress string `json:"email_address"`
}

// UserData is the data object of user.created and user.updated events.
type UserData struct {
	ID                    string         `json:"id"`
	FirstName             string         `json:"first_name"`
	LastName              string         `json:"last_name"`
	EmailAddresses        []EmailAddress `json:"email_addresses"`
	PrimaryEmailAddressID string         `json:"primary_email_address_id"`
	ImageURL              string         `json:"image_url"`
}

// DeletedData is the data object of user.deleted events.
type DeletedData struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	Deleted bool   `json:"deleted"`
}

// UserData decodes the event data as a user object.
func (e *Event) UserData() (UserData, error) {
	var d UserData
	if err := decodeData(e.Data, &d); err != nil {
		return UserData{}, err
	}
	if strings.TrimSpace(d.ID) == "" {
		return UserData{}, fmt.Errorf("%w: data.id is required", ErrInvalidPayload)
	}
	return d, nil
}

// DeletedData decodes the event data as a deleted-object stub.
func (e *Event) DeletedData() (DeletedData, error) {
	var d DeletedData
	if err := decodeData(e.Data, &d); err != nil {
		return DeletedData{}, err
	}
	if strings.TrimSpace(d.ID) == "" {
		return DeletedData{}, fmt.Errorf("%w: data.id is required", ErrInvalidPayload)
	}
	return d, nil
}

func decodeData(raw json.RawMessage, v any) error {
	if len(raw) == 0 || string(raw) == "null" {
		return fmt.Errorf("%w: data is required", ErrInvalidPayload)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidPayload, err)
	}
	return nil
}

// FullName joins first and last name with a single space.
func (d UserData) FullName() string {
	return strings.TrimSpace(strings.TrimSpace(d.FirstName) + " " + strings.TrimSpace(d.LastName))
}

// Email returns the first address in the list, or "" when there is none.
func (d UserData) Email() string {
	if len(d.EmailAddresses) == 0 {
		return ""
	}
	return d.EmailAddresses[0].EmailAddress
}

// User maps the payload onto a users row.
func (d UserData) User() users.User {
	return users.User{
		ID:       d.ID,
		Name:     d.FullName(),
		Email:    d.Email(),
		ImageURL: d.ImageURL,
	}
}
