// Package core defines the essential interfaces and data structures that form the
// backbone of the orchestration core: events, runnables, containers, projects
// and the collaborator contracts the core is driven through.
package core

import (
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"slices"
	"unicode/utf8"

	"github.com/google/uuid"
)

// Event is an immutable record of a trigger delivered for dispatch. All
// accessors return copies, so an Event can be shared freely between handlers.
type Event struct {
	id           string
	provider     string
	eventType    string
	projectID    string
	qualifiers   map[string]string
	labels       map[string]string
	shortTitle   string
	longTitle    string
	payload      []byte
	causeEventID string
	git          *GitConfig
}

// EventOption customizes an Event at construction time.
type EventOption func(*Event)

// WithEventID overrides the generated event ID.
func WithEventID(id string) EventOption {
	return func(e *Event) { e.id = id }
}

// WithProject routes the event to a project.
func WithProject(projectID string) EventOption {
	return func(e *Event) { e.projectID = projectID }
}

// WithCause records the ID of the event that caused this one.
func WithCause(eventID string) EventOption {
	return func(e *Event) { e.causeEventID = eventID }
}

// WithQualifiers sets the qualifiers used by providers to narrow subscriptions.
func WithQualifiers(q map[string]string) EventOption {
	return func(e *Event) { e.qualifiers = maps.Clone(q) }
}

// WithLabels sets free-form labels.
func WithLabels(l map[string]string) EventOption {
	return func(e *Event) { e.labels = maps.Clone(l) }
}

// WithTitles sets the human-readable titles.
func WithTitles(short, long string) EventOption {
	return func(e *Event) {
		e.shortTitle = short
		e.longTitle = long
	}
}

// WithGit sets git overrides (ref, commit, clone URL) carried by the event.
func WithGit(g GitConfig) EventOption {
	return func(e *Event) { e.git = &g }
}

// NewEvent creates an event. The payload is copied.
func NewEvent(provider, eventType string, payload []byte, opts ...EventOption) (Event, error) {
	if provider == "" {
		return Event{}, &ValidationError{Field: "provider", Reason: "must not be empty"}
	}
	if eventType == "" {
		return Event{}, &ValidationError{Field: "type", Reason: "must not be empty"}
	}
	e := Event{
		provider:  provider,
		eventType: eventType,
		payload:   slices.Clone(payload),
	}
	for _, opt := range opts {
		opt(&e)
	}
	if e.id == "" {
		e.id = uuid.NewString()
	}
	return e, nil
}

func (e Event) ID() string           { return e.id }
func (e Event) Provider() string     { return e.provider }
func (e Event) Type() string         { return e.eventType }
func (e Event) ProjectID() string    { return e.projectID }
func (e Event) ShortTitle() string   { return e.shortTitle }
func (e Event) LongTitle() string    { return e.longTitle }
func (e Event) CauseEventID() string { return e.causeEventID }

// Payload returns a copy of the raw payload.
func (e Event) Payload() []byte { return slices.Clone(e.payload) }

// Qualifiers returns a copy of the qualifiers.
func (e Event) Qualifiers() map[string]string { return maps.Clone(e.qualifiers) }

// Labels returns a copy of the labels.
func (e Event) Labels() map[string]string { return maps.Clone(e.labels) }

// Git returns the git overrides carried by the event, or nil.
func (e Event) Git() *GitConfig {
	if e.git == nil {
		return nil
	}
	g := *e.git
	return &g
}

// String implements fmt.Stringer for log output.
func (e Event) String() string {
	return fmt.Sprintf("%s:%s (%s)", e.provider, e.eventType, e.id)
}

// eventDocument is the JSON form of an Event, as written to event files by
// transports and read back by workers. Payloads that are not valid UTF-8 are
// carried base64-encoded in payloadBase64.
type eventDocument struct {
	ID            string            `json:"id,omitempty"`
	Source        string            `json:"source"`
	Type          string            `json:"type"`
	ProjectID     string            `json:"projectID,omitempty"`
	Qualifiers    map[string]string `json:"qualifiers,omitempty"`
	Labels        map[string]string `json:"labels,omitempty"`
	ShortTitle    string            `json:"shortTitle,omitempty"`
	LongTitle     string            `json:"longTitle,omitempty"`
	Payload       string            `json:"payload,omitempty"`
	PayloadBase64 []byte            `json:"payloadBase64,omitempty"`
	CauseEventID  string            `json:"causeEventID,omitempty"`
	Git           *GitConfig        `json:"git,omitempty"`
}

// MarshalJSON encodes the event in the event file format.
func (e Event) MarshalJSON() ([]byte, error) {
	doc := eventDocument{
		ID:           e.id,
		Source:       e.provider,
		Type:         e.eventType,
		ProjectID:    e.projectID,
		Qualifiers:   e.qualifiers,
		Labels:       e.labels,
		ShortTitle:   e.shortTitle,
		LongTitle:    e.longTitle,
		CauseEventID: e.causeEventID,
		Git:          e.git,
	}
	if utf8.Valid(e.payload) {
		doc.Payload = string(e.payload)
	} else {
		doc.PayloadBase64 = e.payload
	}
	return json.Marshal(doc)
}

// DecodeEvent reads one event in the event file format.
func DecodeEvent(r io.Reader) (Event, error) {
	var doc eventDocument
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return Event{}, fmt.Errorf("failed to decode event: %w", err)
	}
	opts := []EventOption{
		WithEventID(doc.ID),
		WithProject(doc.ProjectID),
		WithCause(doc.CauseEventID),
		WithQualifiers(doc.Qualifiers),
		WithLabels(doc.Labels),
		WithTitles(doc.ShortTitle, doc.LongTitle),
	}
	if doc.Git != nil {
		opts = append(opts, WithGit(*doc.Git))
	}
	payload := []byte(doc.Payload)
	if doc.PayloadBase64 != nil {
		if doc.Payload != "" {
			return Event{}, &ValidationError{Field: "payload", Reason: "payload and payloadBase64 are mutually exclusive"}
		}
		payload = doc.PayloadBase64
	}
	return NewEvent(doc.Source, doc.Type, payload, opts...)
}
