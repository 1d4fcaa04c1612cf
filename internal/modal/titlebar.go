package modal

import (
	"errors"
	"fmt"

	"github.com/sadsciencee/modalkit/internal/envelope"
)

// ErrInvalidButton is reported when an update would create a button without
// both a label and a disabled state.
var ErrInvalidButton = errors.New("invalid title bar button")

// Slot names a title bar button position.
type Slot string

// Title bar slots.
const (
	SlotPrimary   Slot = "primary"
	SlotSecondary Slot = "secondary"
)

// TitleBar is the initial title bar of a host session.
type TitleBar struct {
	Title           string
	PrimaryButton   *envelope.Button
	SecondaryButton *envelope.Button
}

// ButtonPatch describes a change to one button. The zero value leaves the
// button unchanged; Remove clears it; otherwise set fields are merged onto
// the existing button.
type ButtonPatch struct {
	Remove   bool
	Label    *string
	Disabled *bool
}

// RemoveButton returns a patch that clears the button.
func RemoveButton() ButtonPatch {
	return ButtonPatch{Remove: true}
}

// SetButton returns a patch carrying both fields, valid for new buttons.
func SetButton(label string, disabled bool) ButtonPatch {
	return ButtonPatch{Label: &label, Disabled: &disabled}
}

// Relabel returns a patch that changes only the label.
func Relabel(label string) ButtonPatch {
	return ButtonPatch{Label: &label}
}

// SetDisabled returns a patch that changes only the disabled state.
func SetDisabled(disabled bool) ButtonPatch {
	return ButtonPatch{Disabled: &disabled}
}

// IsZero reports whether the patch leaves the button unchanged.
func (p ButtonPatch) IsZero() bool {
	return !p.Remove && p.Label == nil && p.Disabled == nil
}

// TitleBarUpdate is a partial title bar change. Nil Title keeps the current title.
type TitleBarUpdate struct {
	Title           *string
	PrimaryButton   ButtonPatch
	SecondaryButton ButtonPatch
}

// SetTitle returns an update that changes only the title.
func SetTitle(title string) TitleBarUpdate {
	return TitleBarUpdate{Title: &title}
}

// MergeTitleBar applies u to cur. An invalid slot is left as it was and
// reported; the rest of the update still applies. The variant never changes.
func MergeTitleBar(cur envelope.TitleBarState, u TitleBarUpdate) (envelope.TitleBarState, []error) {
	next := cur.Clone()
	if u.Title != nil {
		next.Title = *u.Title
	}

	var errs []error
	var err error
	if next.PrimaryButton, err = mergeButton(next.PrimaryButton, u.PrimaryButton); err != nil {
		errs = append(errs, fmt.Errorf("%s button: %w", SlotPrimary, err))
	}
	if next.SecondaryButton, err = mergeButton(next.SecondaryButton, u.SecondaryButton); err != nil {
		errs = append(errs, fmt.Errorf("%s button: %w", SlotSecondary, err))
	}
	return next, errs
}

func mergeButton(existing *envelope.Button, p ButtonPatch) (*envelope.Button, error) {
	switch {
	case p.Remove:
		return nil, nil
	case p.IsZero():
		return existing, nil
	case existing == nil:
		if p.Label == nil {
			return nil, fmt.Errorf("%w: button did not previously exist, a label is required", ErrInvalidButton)
		}
		if p.Disabled == nil {
			return nil, fmt.Errorf("%w: button did not previously exist, a disabled state is required", ErrInvalidButton)
		}
		return &envelope.Button{Label: *p.Label, Disabled: *p.Disabled}, nil
	}

	merged := *existing
	if p.Label != nil {
		merged.Label = *p.Label
	}
	if p.Disabled != nil {
		merged.Disabled = *p.Disabled
	}
	return &merged, nil
}

func (t TitleBar) state(variant envelope.Variant) envelope.TitleBarState {
	return envelope.TitleBarState{
		Variant:         variant,
		Title:           t.Title,
		PrimaryButton:   t.PrimaryButton,
		SecondaryButton: t.SecondaryButton,
	}.Clone()
}
