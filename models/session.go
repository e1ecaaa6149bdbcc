package models

import "time"

// Step identifies where the conversation currently is.
type Step int

const (
	StepIdle Step = iota
	StepVenueList
	StepSlotList
	StepConfirm
)

func (s Step) String() string {
	switch s {
	case StepIdle:
		return "idle"
	case StepVenueList:
		return "venue_list"
	case StepSlotList:
		return "slot_list"
	case StepConfirm:
		return "confirm"
	}
	return "unknown"
}

// Session holds the context of the single active conversation between turns.
// Fields are only meaningful in the steps that set them; transitioning away
// from a step clears the fields that step owned.
type Session struct {
	Step Step

	// Set on entering venue_list, immutable until a full reset.
	Search SearchParams
	Venues []Venue

	// Set on entering slot_list.
	PickedVenue *Venue
	Slots       []Slot

	// Set on entering confirm. BookToken must not be used to commit a
	// booking after BookExpires.
	PickedSlot  *Slot
	BookToken   string
	BookExpires time.Time
}

// Reset returns the session to idle and discards all fields.
func (s *Session) Reset() {
	*s = Session{}
}

// ClearHold discards the slot selection and its hold credential, used when
// leaving confirm without booking.
func (s *Session) ClearHold() {
	s.PickedSlot = nil
	s.BookToken = ""
	s.BookExpires = time.Time{}
}
