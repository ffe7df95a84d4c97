// Package scene defines the scene classification types consumed by the
// nudge engine. Classifications are produced by an external signal
// provider and processed by the trigger gate for proactive suggestions.
package scene

import (
	"errors"
	"fmt"
	"time"
)

// Category represents a recognized scene category.
type Category string

const (
	CategoryHome     Category = "HOME"
	CategoryOffice   Category = "OFFICE"
	CategoryCommute  Category = "COMMUTE"
	CategoryGym      Category = "GYM"
	CategorySleep    Category = "SLEEP"
	CategoryTravel   Category = "TRAVEL"
	CategoryDining   Category = "DINING"
	CategoryShopping Category = "SHOPPING"
	CategoryUnknown  Category = "UNKNOWN"
)

// ValidCategory returns true if c is a recognized scene category.
func ValidCategory(c string) bool {
	switch Category(c) {
	case CategoryHome, CategoryOffice, CategoryCommute, CategoryGym,
		CategorySleep, CategoryTravel, CategoryDining, CategoryShopping,
		CategoryUnknown:
		return true
	default:
		return false
	}
}

// Action represents the type of user feedback on a surfaced suggestion.
type Action string

const (
	ActionAccept     Action = "accept"
	ActionIgnore     Action = "ignore"
	ActionDismiss    Action = "dismiss"
	ActionModify     Action = "modify"
	ActionUndo       Action = "undo"
	ActionHelpful    Action = "helpful"
	ActionNotHelpful Action = "not_helpful"
	// ActionCancel is recorded when the user cancels an in-flight
	// suggestion before it completes.
	ActionCancel Action = "cancel"
)

// IsValid returns true if a is a recognized feedback action.
func (a Action) IsValid() bool {
	switch a {
	case ActionAccept, ActionIgnore, ActionDismiss, ActionModify,
		ActionUndo, ActionHelpful, ActionNotHelpful, ActionCancel:
		return true
	}
	return false
}

// Signal is a single weighted evidence datum contributing to a scene
// classification. Weight reflects source reliability in [0, 1].
type Signal struct {
	// Type identifies the signal source (e.g., "wifi", "motion", "time").
	Type string `json:"type"`

	// Value is the observed signal value.
	Value string `json:"value"`

	// Weight is the source reliability in [0, 1].
	Weight float64 `json:"weight"`

	// TsMs is the observation timestamp in Unix milliseconds.
	TsMs int64 `json:"ts"`
}

// Context represents one scene classification event from the signal
// provider. It is consumed once per gate evaluation and never persisted.
type Context struct {
	// TsMs is the classification timestamp in Unix milliseconds.
	TsMs int64 `json:"ts"`

	// Category is the classified scene category.
	Category Category `json:"category"`

	// Confidence is the provider's probability estimate in [0, 1].
	Confidence float64 `json:"confidence"`

	// Signals is the weighted evidence behind the classification.
	Signals []Signal `json:"signals,omitempty"`
}

var (
	errUnknownCategory  = errors.New("unknown scene category")
	errBadConfidence    = errors.New("confidence must be in [0, 1]")
	errBadSignalWeight  = errors.New("signal weight must be in [0, 1]")
	errMissingTimestamp = errors.New("timestamp is required")
)

// Validate checks that the context is well-formed. Out-of-range values
// are rejected here at the boundary, never coerced downstream.
func (c *Context) Validate() error {
	if c.TsMs <= 0 {
		return errMissingTimestamp
	}
	if !ValidCategory(string(c.Category)) {
		return fmt.Errorf("%w: %q", errUnknownCategory, c.Category)
	}
	if c.Confidence < 0 || c.Confidence > 1 {
		return fmt.Errorf("%w: got %v", errBadConfidence, c.Confidence)
	}
	for i, sig := range c.Signals {
		if sig.Weight < 0 || sig.Weight > 1 {
			return fmt.Errorf("%w: signal %d (%s) has weight %v",
				errBadSignalWeight, i, sig.Type, sig.Weight)
		}
	}
	return nil
}

// Time returns the classification timestamp as a time.Time.
func (c *Context) Time() time.Time {
	return time.UnixMilli(c.TsMs)
}
