package wizard

import (
	"context"
	"errors"
	"fmt"

	"github.com/matthewbaird/listingform/internal/types"
	"github.com/matthewbaird/listingform/internal/validate"
)

// Submitter is the persistence collaborator a payload is handed to.
// Implementations create the listing when p.PropertyID is empty and update
// it otherwise.
type Submitter interface {
	Submit(ctx context.Context, p *Payload) (Receipt, error)
}

// Receipt identifies the stored listing.
type Receipt struct {
	PropertyID string `json:"propertyId"`
	Created    bool   `json:"created"`
}

// SubmitError is a failed hand-off. Message is what the collaborator
// reported and is safe to show to the user.
type SubmitError struct {
	Message string
	Err     error
}

func (e *SubmitError) Error() string {
	return "submit listing: " + e.Message
}

func (e *SubmitError) Unwrap() error {
	return e.Err
}

// SubmitOutcome is the result of a submission attempt that was not refused
// outright. When validation failed, Submitted is false and Transition
// carries the step the wizard jumped to with its errors.
type SubmitOutcome struct {
	Submitted  bool       `json:"submitted"`
	Receipt    Receipt    `json:"receipt"`
	Transition Transition `json:"transition"`
}

// messager is implemented by collaborator errors that carry a user-facing
// message.
type messager interface {
	UserMessage() string
}

// BeginSubmit validates every step from the first. On the first failing
// step the wizard jumps there, marks its fields touched and returns a nil
// payload with the transition. Otherwise the payload is assembled, checked
// against the outbound contract, and the wizard enters PhaseSubmitting
// until FinishSubmit is called.
func (w *Wizard) BeginSubmit() (*Payload, Transition, error) {
	if err := w.editable(); err != nil {
		return nil, Transition{}, err
	}
	images := w.images.List()
	step, r, ok := w.validator.All(w.snap, images)
	if !ok {
		w.step = step
		w.result.Errors = r.Errors
		w.result.Touch(w.validator.Fields(step, w.snap)...)
		w.result.Touch(r.Fields()...)
		return nil, Transition{Step: step, ScrollToTop: true, Errors: w.result.Visible(), Toast: r.Toast()}, nil
	}

	p := assemble(w.propertyID, w.snap, images, w.docs.List())
	if err := CheckContract(p); err != nil {
		return nil, Transition{Step: w.step}, err
	}
	w.phase = PhaseSubmitting
	return p, Transition{Step: w.step}, nil
}

// FinishSubmit records the collaborator's answer. A failure leaves the
// snapshot and attachments untouched so the user can retry, and is
// returned as *SubmitError.
func (w *Wizard) FinishSubmit(rec Receipt, err error) (SubmitOutcome, error) {
	if w.phase != PhaseSubmitting {
		return SubmitOutcome{}, fmt.Errorf("finish submit: wizard is %s", w.phase)
	}
	if err != nil {
		w.phase = PhaseEditing
		msg := err.Error()
		var m messager
		if errors.As(err, &m) && m.UserMessage() != "" {
			msg = m.UserMessage()
		}
		return SubmitOutcome{Transition: Transition{Step: w.step}}, &SubmitError{Message: msg, Err: err}
	}
	w.phase = PhaseSubmitted
	if rec.PropertyID != "" {
		w.propertyID = rec.PropertyID
	}
	return SubmitOutcome{Submitted: true, Receipt: rec, Transition: Transition{Step: w.step}}, nil
}

// Submit runs BeginSubmit, hands the payload to s and records the answer.
func (w *Wizard) Submit(ctx context.Context, s Submitter) (SubmitOutcome, error) {
	p, tr, err := w.BeginSubmit()
	if err != nil {
		return SubmitOutcome{}, err
	}
	if p == nil {
		return SubmitOutcome{Transition: tr}, nil
	}
	rec, err := s.Submit(ctx, p)
	return w.FinishSubmit(rec, err)
}

// Hydrate loads a stored listing for editing. Every stored field, amenity
// and nearby place is restored; images come back without files and with
// exactly one cover. The wizard returns to the first step.
func (w *Wizard) Hydrate(rec types.PropertyRecord) error {
	if err := w.editable(); err != nil {
		return err
	}
	w.propertyID = rec.ID
	for _, k := range w.snap.Keys() {
		w.snap.Delete(k)
	}
	for k, v := range rec.Fields {
		w.snap.Set(k, v)
	}
	w.snap.Amenities.Set(rec.Amenities)
	w.snap.NearbyPlaces.Set(rec.NearbyPlaces)
	w.images.Hydrate(rec.Images)
	w.docs.Hydrate(rec.Documents)
	w.step = validate.StepBasic
	w.result = validate.Result{}
	w.phase = PhaseEditing
	w.revalidate()
	return nil
}
