package concierge

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/PaiKingDuck555/imessage-kit-concierge/models"
	"github.com/PaiKingDuck555/imessage-kit-concierge/services/intent"
	"github.com/PaiKingDuck555/imessage-kit-concierge/services/reservation"
	"github.com/PaiKingDuck555/imessage-kit-concierge/utils"

	"go.uber.org/zap"
)

// DefaultConversationService is the booking conversation state machine.
type DefaultConversationService struct {
	Intent intent.IntentService
	Resy   reservation.ReservationService
	// Now is the wall clock used for hold-expiry checks; injectable for tests.
	Now func() time.Time
}

func NewDefaultConversationService(intentSvc intent.IntentService, resySvc reservation.ReservationService) *DefaultConversationService {
	return &DefaultConversationService{
		Intent: intentSvc,
		Resy:   resySvc,
		Now:    time.Now,
	}
}

func (svc *DefaultConversationService) Handle(ctx context.Context, sess *models.Session, text string) (string, error) {
	trimmed := strings.TrimSpace(text)

	// "reset"/"start over" wins over step-specific logic in every state.
	if isReset(trimmed) {
		sess.Reset()
		return "Okay, starting fresh! What are you in the mood for?", nil
	}

	// Unrecognized input in venue_list re-dispatches the original text as a
	// brand-new search. The loop keeps that path explicit and bounded: after
	// the fallback resets to idle, exactly one more pass runs the idle
	// handler, which never asks for a re-dispatch itself.
	for {
		switch sess.Step {
		case models.StepIdle:
			return svc.handleIdle(ctx, sess, trimmed)
		case models.StepVenueList:
			reply, redispatch, err := svc.handleVenueList(ctx, sess, trimmed)
			if err != nil {
				return "", err
			}
			if redispatch {
				continue
			}
			return reply, nil
		case models.StepSlotList:
			return svc.handleSlotList(ctx, sess, trimmed)
		case models.StepConfirm:
			return svc.handleConfirm(ctx, sess, trimmed)
		default:
			sess.Reset()
			return renderResetHint(), nil
		}
	}
}

func (svc *DefaultConversationService) handleIdle(ctx context.Context, sess *models.Session, text string) (string, error) {
	logger := utils.GetLogger()

	params, err := svc.Intent.Extract(ctx, text)
	if err != nil {
		return "", err
	}

	venues, err := svc.Resy.Search(ctx, params.Query, params.Location, params.Latitude, params.Longitude)
	if err != nil {
		return "", err
	}
	if len(venues) == 0 {
		return renderNoVenues(params), nil
	}

	sess.Search = params
	sess.Venues = venues
	sess.Step = models.StepVenueList

	logger.Info("Search complete",
		zap.String("query", params.Query),
		zap.String("day", params.Day),
		zap.Int("venues", len(venues)))
	return renderVenueList(venues, params), nil
}

// handleVenueList returns redispatch=true after resetting the session, in
// which case the caller re-runs the same text through the idle handler.
func (svc *DefaultConversationService) handleVenueList(ctx context.Context, sess *models.Session, text string) (string, bool, error) {
	if isBack(text) {
		sess.Reset()
		return "Okay, scrapped that search. What else can I find for you?", false, nil
	}

	idx, err := strconv.Atoi(text)
	if err != nil || idx < 1 || idx > len(sess.Venues) {
		// Not a valid pick: treat it as a new search with the same text.
		sess.Reset()
		return "", true, nil
	}

	venue := sess.Venues[idx-1]
	slots, err := svc.Resy.Availability(ctx, venue.ID, sess.Search.Day, sess.Search.PartySize, sess.Search.Latitude, sess.Search.Longitude)
	if err != nil {
		return "", false, err
	}

	sess.PickedVenue = &venue
	sess.Slots = slots
	sess.Step = models.StepSlotList
	return renderSlotList(venue, slots, sess.Search), false, nil
}

func (svc *DefaultConversationService) handleSlotList(ctx context.Context, sess *models.Session, text string) (string, error) {
	if isBack(text) {
		sess.PickedVenue = nil
		sess.Slots = nil
		sess.Step = models.StepVenueList
		return renderVenueList(sess.Venues, sess.Search), nil
	}

	limit := len(sess.Slots)
	idx, err := strconv.Atoi(text)
	if err != nil || idx < 1 || idx > limit {
		return renderSlotRange(limit), nil
	}

	slot := sess.Slots[idx-1]
	hold, err := svc.Resy.Hold(ctx, slot.ConfigToken, sess.Search.Day, sess.Search.PartySize)
	if err != nil {
		return "", err
	}
	if hold.BookToken == "" {
		// Someone grabbed the slot between listing and the hold request.
		return "Ah, that slot was just taken - pick another one?", nil
	}

	sess.PickedSlot = &slot
	sess.BookToken = hold.BookToken
	sess.BookExpires = hold.Expires
	sess.Step = models.StepConfirm
	return renderConfirmPrompt(sess, hold), nil
}

func (svc *DefaultConversationService) handleConfirm(ctx context.Context, sess *models.Session, text string) (string, error) {
	logger := utils.GetLogger()

	switch {
	case isNo(text):
		sess.ClearHold()
		sess.Step = models.StepSlotList
		return renderSlotList(*sess.PickedVenue, sess.Slots, sess.Search), nil

	case isYes(text):
		// Expiry is checked against the wall clock now, not at
		// hold-acquisition time: the hold may have lapsed while the user
		// was reading the confirmation.
		if !sess.BookExpires.IsZero() && svc.Now().After(sess.BookExpires) {
			sess.ClearHold()
			sess.Step = models.StepSlotList
			return "That hold expired while you were deciding. Pick a slot again?", nil
		}

		conf, err := svc.Resy.Book(ctx, sess.BookToken)
		if errors.Is(err, reservation.ErrPaymentRequired) {
			// Not terminal: keep venue and slots so the user can try a
			// different slot without re-searching.
			sess.ClearHold()
			sess.Step = models.StepSlotList
			return "This one needs a card on file, so I can't finish it from here - complete it in the Resy app, or pick a different slot.", nil
		}
		if err != nil {
			return "", err
		}

		venueName := ""
		if sess.PickedVenue != nil {
			venueName = sess.PickedVenue.Name
		}
		reply := renderBooked(venueName, sess.PickedSlot, sess.Search, conf)
		logger.Info("Booking committed",
			zap.String("venue", venueName),
			zap.String("reservationID", conf.ReservationID))
		sess.Reset()
		return reply, nil

	default:
		return `Just say "yes" to book, "no" to go back, or "reset" to start over.`, nil
	}
}

func isReset(text string) bool {
	switch strings.ToLower(text) {
	case "reset", "start over":
		return true
	}
	return false
}

func isBack(text string) bool {
	return strings.EqualFold(text, "back")
}

func isYes(text string) bool {
	switch strings.ToLower(text) {
	case "yes", "confirm", "book":
		return true
	}
	return false
}

func isNo(text string) bool {
	switch strings.ToLower(text) {
	case "no", "back":
		return true
	}
	return false
}
