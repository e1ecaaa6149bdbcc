package concierge

import (
	"fmt"
	"strings"

	"github.com/PaiKingDuck555/imessage-kit-concierge/models"
)

// Reply rendering. All of this is cosmetic; the state machine in
// conversation.go is the part that matters.

func renderVenueList(venues []models.Venue, params models.SearchParams) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Here's what I found for %s (%s, party of %d):\n", params.Query, params.Day, params.PartySize)
	for i, v := range venues {
		fmt.Fprintf(&sb, "%d. %s", i+1, v.Name)
		if v.Location != "" {
			fmt.Fprintf(&sb, " — %s", v.Location)
		}
		if len(v.Cuisine) > 0 {
			fmt.Fprintf(&sb, " (%s)", strings.Join(v.Cuisine, ", "))
		}
		if v.Rating > 0 {
			fmt.Fprintf(&sb, " ★%.1f", v.Rating)
			if v.ReviewCount > 0 {
				fmt.Fprintf(&sb, " (%d)", v.ReviewCount)
			}
		}
		if v.PriceTier > 0 {
			fmt.Fprintf(&sb, " %s", strings.Repeat("$", v.PriceTier))
		}
		sb.WriteString("\n")
	}
	sb.WriteString(`Reply with a number to see times, or "back" to start over.`)
	return sb.String()
}

func renderSlotList(venue models.Venue, slots []models.Slot, params models.SearchParams) string {
	if len(slots) == 0 {
		return fmt.Sprintf("No open slots at %s on %s for %d. Say \"back\" for the venue list.",
			venue.Name, params.Day, params.PartySize)
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "Times at %s on %s:\n", venue.Name, params.Day)
	for i, s := range slots {
		fmt.Fprintf(&sb, "%d. %s", i+1, s.Start)
		if s.End != "" {
			fmt.Fprintf(&sb, "–%s", s.End)
		}
		if s.ServiceType != "" {
			fmt.Fprintf(&sb, " (%s)", s.ServiceType)
		}
		sb.WriteString("\n")
	}
	sb.WriteString(`Reply with a number to hold it, or "back" for the venue list.`)
	return sb.String()
}

func renderSlotRange(limit int) string {
	if limit == 0 {
		return `No slots to pick from here - say "back" for the venue list or "reset" to start over.`
	}
	return fmt.Sprintf(`Pick a number between 1 and %d, or say "back".`, limit)
}

func renderNoVenues(params models.SearchParams) string {
	return fmt.Sprintf("Sorry, I couldn't find anything for %s in %s on %s. Try a different cuisine or area?",
		params.Query, params.Location, params.Day)
}

func renderConfirmPrompt(sess *models.Session, hold models.HoldResult) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Holding %s at %s on %s for %d.",
		sess.PickedSlot.Start, sess.PickedVenue.Name, sess.Search.Day, sess.Search.PartySize)
	if hold.PaymentAmount > 0 {
		fmt.Fprintf(&sb, " Heads up: $%.2f deposit.", hold.PaymentAmount)
	}
	if !hold.Expires.IsZero() {
		fmt.Fprintf(&sb, " The hold expires at %s.", hold.Expires.Format("15:04"))
	}
	sb.WriteString(` Book it? ("yes"/"no")`)
	return sb.String()
}

func renderBooked(venueName string, slot *models.Slot, params models.SearchParams, conf models.Confirmation) string {
	start := ""
	if slot != nil {
		start = slot.Start
	}
	msg := fmt.Sprintf("✅ Booked! %s on %s at %s for %d.", venueName, params.Day, start, params.PartySize)
	if conf.ReservationID != "" {
		msg += fmt.Sprintf(" Confirmation #%s.", conf.ReservationID)
	}
	return msg
}

func renderResetHint() string {
	return `I lost the thread there - let's start over. What are you in the mood for?`
}
