package types

import (
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned by storage backends when a document does not exist.
var ErrNotFound = errors.New("not found")

// Contact represents a person or organization record
type Contact struct {
	ID          string            `json:"id" bson:"_id"`
	Phone       string            `json:"phone,omitempty" bson:"phone,omitempty"`
	Email       string            `json:"email,omitempty" bson:"email,omitempty"`
	Name        string            `json:"name,omitempty" bson:"name,omitempty"`
	Tags        []string          `json:"tags,omitempty" bson:"tags,omitempty"`
	Fields      map[string]string `json:"fields,omitempty" bson:"fields,omitempty"` // company, address, ...
	CreatedAt   time.Time         `json:"created_at" bson:"created_at"`
	LastUpdated time.Time         `json:"last_updated" bson:"last_updated"`
}

// Validate checks if the contact has valid field values
func (c *Contact) Validate() error {
	if c.ID == "" {
		return fmt.Errorf("contact id is required")
	}
	for _, tag := range c.Tags {
		if tag == "" {
			return fmt.Errorf("contact %s has an empty tag", c.ID)
		}
	}
	return nil
}

// Field returns a profile field value, or "" when unset
func (c *Contact) Field(name string) string {
	if c.Fields == nil {
		return ""
	}
	return c.Fields[name]
}

// Clone returns a deep copy of the contact
func (c *Contact) Clone() *Contact {
	out := *c
	if c.Tags != nil {
		out.Tags = append([]string(nil), c.Tags...)
	}
	if c.Fields != nil {
		out.Fields = make(map[string]string, len(c.Fields))
		for k, v := range c.Fields {
			out.Fields[k] = v
		}
	}
	return &out
}

// ContactPatch is the resulting contact document computed by a merge.
// It carries final values, not a delta: storage replaces the mergeable
// fields of the surviving contact with these.
type ContactPatch struct {
	Name        string            `json:"name,omitempty"`
	Email       string            `json:"email,omitempty"`
	Phone       string            `json:"phone,omitempty"`
	Tags        []string          `json:"tags"`
	Fields      map[string]string `json:"fields,omitempty"`
	LastUpdated time.Time         `json:"last_updated"`
}

// Apply returns a copy of the contact with the patch applied
func (p *ContactPatch) Apply(c *Contact) *Contact {
	out := c.Clone()
	out.Name = p.Name
	out.Email = p.Email
	out.Phone = p.Phone
	out.Tags = append([]string(nil), p.Tags...)
	out.Fields = make(map[string]string, len(p.Fields))
	for k, v := range p.Fields {
		out.Fields[k] = v
	}
	out.LastUpdated = p.LastUpdated
	return out
}

// ConversationCard is a thread of interaction tied to a contact.
// ContactID is a relation-only back-reference: the store does not cascade
// deletes and does not guarantee the referenced contact exists.
type ConversationCard struct {
	ID             string    `json:"id" bson:"_id"`
	ThreadID       string    `json:"thread_id,omitempty" bson:"thread_id,omitempty"`
	ContactID      string    `json:"contact_id,omitempty" bson:"contact_id,omitempty"`
	ContactNumber  string    `json:"contact_number,omitempty" bson:"contact_number,omitempty"`
	ContactName    string    `json:"contact_name,omitempty" bson:"contact_name,omitempty"`
	Email          string    `json:"email,omitempty" bson:"email,omitempty"`
	Messages       []Message `json:"messages,omitempty" bson:"messages,omitempty"`
	Notes          []Entry   `json:"notes,omitempty" bson:"notes,omitempty"`
	CheckIns       []Entry   `json:"check_ins,omitempty" bson:"check_ins,omitempty"`
	PaymentMethods []Entry   `json:"payment_methods,omitempty" bson:"payment_methods,omitempty"`
	CreatedAt      time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt      time.Time `json:"updated_at" bson:"updated_at"`
}

// Validate checks if the card has valid field values
func (c *ConversationCard) Validate() error {
	if c.ID == "" {
		return fmt.Errorf("card id is required")
	}
	return nil
}

// Message is a single entry in a card's message stream
type Message struct {
	ID        string    `json:"id,omitempty" bson:"id,omitempty"`
	Sender    string    `json:"sender" bson:"sender"`
	Text      string    `json:"text" bson:"text"`
	Direction string    `json:"direction,omitempty" bson:"direction,omitempty"` // inbound, outbound
	Timestamp Timestamp `json:"timestamp" bson:"timestamp"`
}

// DedupKey identifies a message by content: sender, text and timestamp.
func (m Message) DedupKey() string {
	return fmt.Sprintf("%s\x00%s\x00%d", m.Sender, m.Text, m.Timestamp.ToMillis())
}

// CardPatch is the set of fields written to the surviving card of a merge.
type CardPatch struct {
	ContactID      string    `json:"contact_id"`
	ContactName    string    `json:"contact_name,omitempty"`
	Email          string    `json:"email,omitempty"`
	Messages       []Message `json:"messages"`
	Notes          []Entry   `json:"notes"`
	CheckIns       []Entry   `json:"check_ins"`
	PaymentMethods []Entry   `json:"payment_methods"`
}

// Apply returns a copy of the card with the patch applied
func (p *CardPatch) Apply(c *ConversationCard) *ConversationCard {
	out := *c
	out.ContactID = p.ContactID
	out.ContactName = p.ContactName
	out.Email = p.Email
	out.Messages = append([]Message(nil), p.Messages...)
	out.Notes = append([]Entry(nil), p.Notes...)
	out.CheckIns = append([]Entry(nil), p.CheckIns...)
	out.PaymentMethods = append([]Entry(nil), p.PaymentMethods...)
	return &out
}
