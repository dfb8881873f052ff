// Package event defines the wizard lifecycle events and records them into
// the activity log before handing them to the event bus.
package event

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Event types.
const (
	TypeWizardStarted    = "wizard_started"
	TypeStepAdvanced     = "step_advanced"
	TypeStepBlocked      = "step_blocked"
	TypeCategoryChanged  = "category_changed"
	TypeListingSubmitted = "listing_submitted"
	TypeSubmissionFailed = "submission_failed"
	TypeWizardClosed     = "wizard_closed"
)

// DomainEvent carries the canonical shape of every wizard event.
type DomainEvent struct {
	ID         string
	EventType  string
	OccurredAt time.Time
	WizardID   string
	PropertyID string
	Step       string
	Summary    string
	Payload    json.RawMessage
}

func newID() string { return uuid.New().String() }

func mustJSON(v any) json.RawMessage {
	b, _ := json.Marshal(v)
	return b
}

func short(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func newEvent(typ, wizardID, step, summary string, payload any) DomainEvent {
	return DomainEvent{
		ID:         newID(),
		EventType:  typ,
		OccurredAt: time.Now(),
		WizardID:   wizardID,
		Step:       step,
		Summary:    summary,
		Payload:    mustJSON(payload),
	}
}

// WizardStartedPayload carries event-specific data for WizardStarted.
type WizardStartedPayload struct {
	WizardID   string `json:"wizard_id"`
	PropertyID string `json:"property_id,omitempty"`
}

func NewWizardStarted(p WizardStartedPayload) DomainEvent {
	mode := "create"
	if p.PropertyID != "" {
		mode = "edit " + short(p.PropertyID)
	}
	evt := newEvent(TypeWizardStarted, p.WizardID, "", fmt.Sprintf("Wizard %s started (%s)", short(p.WizardID), mode), p)
	evt.PropertyID = p.PropertyID
	return evt
}

// StepPayload carries event-specific data for StepAdvanced and StepBlocked.
type StepPayload struct {
	WizardID string   `json:"wizard_id"`
	From     string   `json:"from"`
	To       string   `json:"to"`
	Fields   []string `json:"fields,omitempty"`
}

func NewStepAdvanced(p StepPayload) DomainEvent {
	return newEvent(TypeStepAdvanced, p.WizardID, p.To, fmt.Sprintf("Advanced from %s to %s", p.From, p.To), p)
}

func NewStepBlocked(p StepPayload) DomainEvent {
	return newEvent(TypeStepBlocked, p.WizardID, p.From,
		fmt.Sprintf("Blocked on %s with %d invalid fields", p.From, len(p.Fields)), p)
}

// CategoryChangedPayload carries event-specific data for CategoryChanged.
type CategoryChangedPayload struct {
	WizardID     string   `json:"wizard_id"`
	PropertyType string   `json:"property_type"`
	SubType      string   `json:"sub_type"`
	Purged       []string `json:"purged,omitempty"`
}

func NewCategoryChanged(p CategoryChangedPayload) DomainEvent {
	return newEvent(TypeCategoryChanged, p.WizardID, "",
		fmt.Sprintf("Category set to %s/%s, %d fields purged", p.PropertyType, p.SubType, len(p.Purged)), p)
}

// SubmissionPayload carries event-specific data for ListingSubmitted and
// SubmissionFailed.
type SubmissionPayload struct {
	WizardID   string `json:"wizard_id"`
	PropertyID string `json:"property_id,omitempty"`
	Created    bool   `json:"created"`
	Images     int    `json:"images"`
	Documents  int    `json:"documents"`
	Error      string `json:"error,omitempty"`
}

func NewListingSubmitted(p SubmissionPayload) DomainEvent {
	verb := "updated"
	if p.Created {
		verb = "created"
	}
	evt := newEvent(TypeListingSubmitted, p.WizardID, "", fmt.Sprintf("Listing %s %s", short(p.PropertyID), verb), p)
	evt.PropertyID = p.PropertyID
	return evt
}

func NewSubmissionFailed(p SubmissionPayload) DomainEvent {
	evt := newEvent(TypeSubmissionFailed, p.WizardID, "", "Submission failed: "+p.Error, p)
	evt.PropertyID = p.PropertyID
	return evt
}

// WizardClosedPayload carries event-specific data for WizardClosed.
type WizardClosedPayload struct {
	WizardID string `json:"wizard_id"`
	Reason   string `json:"reason"`
}

func NewWizardClosed(p WizardClosedPayload) DomainEvent {
	return newEvent(TypeWizardClosed, p.WizardID, "", fmt.Sprintf("Wizard %s closed (%s)", short(p.WizardID), p.Reason), p)
}
