package concierge

import (
	"context"
	"testing"
	"time"

	"github.com/PaiKingDuck555/imessage-kit-concierge/models"
	"github.com/PaiKingDuck555/imessage-kit-concierge/services/reservation"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeIntent struct {
	params models.SearchParams
	err    error
	calls  int
}

func (f *fakeIntent) Extract(ctx context.Context, text string) (models.SearchParams, error) {
	f.calls++
	if f.err != nil {
		return models.SearchParams{}, f.err
	}
	return f.params, nil
}

type fakeResy struct {
	searchFn       func(query, location string) ([]models.Venue, error)
	availabilityFn func(venueID int) ([]models.Slot, error)
	holdFn         func(configToken string) (models.HoldResult, error)
	bookFn         func(bookToken string) (models.Confirmation, error)

	availabilityCalls []int
	bookCalls         int
}

func (f *fakeResy) Search(ctx context.Context, query, location string, lat, lng float64) ([]models.Venue, error) {
	if f.searchFn == nil {
		return nil, nil
	}
	return f.searchFn(query, location)
}

func (f *fakeResy) Availability(ctx context.Context, venueID int, day string, partySize int, lat, lng float64) ([]models.Slot, error) {
	f.availabilityCalls = append(f.availabilityCalls, venueID)
	if f.availabilityFn == nil {
		return nil, nil
	}
	return f.availabilityFn(venueID)
}

func (f *fakeResy) Hold(ctx context.Context, configToken, day string, partySize int) (models.HoldResult, error) {
	if f.holdFn == nil {
		return models.HoldResult{}, nil
	}
	return f.holdFn(configToken)
}

func (f *fakeResy) Book(ctx context.Context, bookToken string) (models.Confirmation, error) {
	f.bookCalls++
	if f.bookFn == nil {
		return models.Confirmation{}, nil
	}
	return f.bookFn(bookToken)
}

var testParams = models.SearchParams{
	Query: "Italian", Location: "NYC", Latitude: 40.71, Longitude: -74.0,
	Day: "2024-06-02", PartySize: 4,
}

func testVenues(n int) []models.Venue {
	venues := make([]models.Venue, 0, n)
	for i := 0; i < n; i++ {
		venues = append(venues, models.Venue{ID: 100 + i, Name: "Venue", Location: "NYC"})
	}
	return venues
}

func newTestService(in *fakeIntent, resy *fakeResy) *DefaultConversationService {
	svc := NewDefaultConversationService(in, resy)
	svc.Now = func() time.Time { return time.Date(2024, 6, 1, 18, 0, 0, 0, time.UTC) }
	return svc
}

// Scenario A: a recognized search lands on venue_list with at most 5 venues.
func TestIdleSearchToVenueList(t *testing.T) {
	in := &fakeIntent{params: testParams}
	resy := &fakeResy{searchFn: func(q, loc string) ([]models.Venue, error) {
		assert.Equal(t, "Italian", q)
		assert.Equal(t, "NYC", loc)
		return testVenues(5), nil
	}}
	svc := newTestService(in, resy)
	sess := &models.Session{}

	reply, err := svc.Handle(context.Background(), sess, "Italian in NYC tomorrow for 4")
	require.NoError(t, err)
	assert.Equal(t, models.StepVenueList, sess.Step)
	assert.Len(t, sess.Venues, 5)
	assert.Equal(t, testParams, sess.Search)
	assert.Contains(t, reply, "1.")
	assert.Contains(t, reply, "5.")
}

func TestIdleSearchNoVenuesStaysIdle(t *testing.T) {
	in := &fakeIntent{params: testParams}
	resy := &fakeResy{}
	svc := newTestService(in, resy)
	sess := &models.Session{}

	reply, err := svc.Handle(context.Background(), sess, "Martian food on the moon")
	require.NoError(t, err)
	assert.Equal(t, models.StepIdle, sess.Step)
	assert.Empty(t, sess.Venues)
	assert.Contains(t, reply, "couldn't find")
}

// Scenario B: picking venue 2 queries availability for venues[1]; zero slots
// still advances to slot_list.
func TestVenuePickWithNoSlots(t *testing.T) {
	resy := &fakeResy{availabilityFn: func(venueID int) ([]models.Slot, error) {
		return nil, nil
	}}
	svc := newTestService(&fakeIntent{}, resy)
	sess := &models.Session{Step: models.StepVenueList, Search: testParams, Venues: testVenues(3)}

	reply, err := svc.Handle(context.Background(), sess, "2")
	require.NoError(t, err)
	assert.Equal(t, []int{101}, resy.availabilityCalls)
	assert.Equal(t, models.StepSlotList, sess.Step)
	require.NotNil(t, sess.PickedVenue)
	assert.Equal(t, 101, sess.PickedVenue.ID)
	assert.Empty(t, sess.Slots)
	assert.Contains(t, reply, "No open slots")
}

func TestVenueListUnrecognizedInputBecomesNewSearch(t *testing.T) {
	in := &fakeIntent{params: models.SearchParams{Query: "sushi", Location: "Tokyo", Day: "2024-06-03", PartySize: 2}}
	resy := &fakeResy{searchFn: func(q, loc string) ([]models.Venue, error) {
		return testVenues(2), nil
	}}
	svc := newTestService(in, resy)
	sess := &models.Session{Step: models.StepVenueList, Search: testParams, Venues: testVenues(3)}

	_, err := svc.Handle(context.Background(), sess, "actually, sushi in tokyo instead")
	require.NoError(t, err)
	// The original text went through intent extraction once.
	assert.Equal(t, 1, in.calls)
	assert.Equal(t, models.StepVenueList, sess.Step)
	assert.Equal(t, "sushi", sess.Search.Query)
	assert.Nil(t, sess.PickedVenue)
}

func TestVenueListOutOfRangeIndexNeverPicks(t *testing.T) {
	in := &fakeIntent{params: testParams}
	resy := &fakeResy{searchFn: func(q, loc string) ([]models.Venue, error) {
		return testVenues(3), nil
	}}
	svc := newTestService(in, resy)
	sess := &models.Session{Step: models.StepVenueList, Search: testParams, Venues: testVenues(3)}

	_, err := svc.Handle(context.Background(), sess, "9")
	require.NoError(t, err)
	assert.Nil(t, sess.PickedVenue)
	assert.Empty(t, resy.availabilityCalls)
	// "9" was redispatched as a brand-new search.
	assert.Equal(t, 1, in.calls)
}

func TestVenueListBackResets(t *testing.T) {
	svc := newTestService(&fakeIntent{}, &fakeResy{})
	sess := &models.Session{Step: models.StepVenueList, Search: testParams, Venues: testVenues(3)}

	_, err := svc.Handle(context.Background(), sess, "back")
	require.NoError(t, err)
	assert.Equal(t, models.StepIdle, sess.Step)
	assert.Empty(t, sess.Venues)
}

// Scenario C: hold returning no token keeps the user in slot_list.
func TestSlotTakenStaysInSlotList(t *testing.T) {
	resy := &fakeResy{holdFn: func(cfg string) (models.HoldResult, error) {
		return models.HoldResult{}, nil
	}}
	svc := newTestService(&fakeIntent{}, resy)
	venue := testVenues(1)[0]
	sess := &models.Session{
		Step: models.StepSlotList, Search: testParams, Venues: testVenues(1),
		PickedVenue: &venue,
		Slots:       []models.Slot{{Start: "19:00", ConfigToken: "cfg-1"}},
	}

	reply, err := svc.Handle(context.Background(), sess, "1")
	require.NoError(t, err)
	assert.Equal(t, models.StepSlotList, sess.Step)
	assert.Empty(t, sess.BookToken)
	assert.Nil(t, sess.PickedSlot)
	assert.Contains(t, reply, "just taken")
}

func TestSlotPickAdvancesToConfirm(t *testing.T) {
	expires := time.Date(2024, 6, 1, 18, 15, 0, 0, time.UTC)
	resy := &fakeResy{holdFn: func(cfg string) (models.HoldResult, error) {
		assert.Equal(t, "cfg-2", cfg)
		return models.HoldResult{BookToken: "bt-1", Expires: expires}, nil
	}}
	svc := newTestService(&fakeIntent{}, resy)
	venue := testVenues(1)[0]
	sess := &models.Session{
		Step: models.StepSlotList, Search: testParams, Venues: testVenues(1),
		PickedVenue: &venue,
		Slots: []models.Slot{
			{Start: "18:00", ConfigToken: "cfg-1"},
			{Start: "19:00", ConfigToken: "cfg-2"},
		},
	}

	reply, err := svc.Handle(context.Background(), sess, "2")
	require.NoError(t, err)
	assert.Equal(t, models.StepConfirm, sess.Step)
	assert.Equal(t, "bt-1", sess.BookToken)
	assert.Equal(t, expires, sess.BookExpires)
	require.NotNil(t, sess.PickedSlot)
	assert.Equal(t, "19:00", sess.PickedSlot.Start)
	assert.Contains(t, reply, "19:00")
}

func TestSlotListGarbageReprompts(t *testing.T) {
	svc := newTestService(&fakeIntent{}, &fakeResy{})
	venue := testVenues(1)[0]
	sess := &models.Session{
		Step: models.StepSlotList, Search: testParams, Venues: testVenues(1),
		PickedVenue: &venue,
		Slots:       []models.Slot{{Start: "19:00"}, {Start: "20:00"}},
	}

	reply, err := svc.Handle(context.Background(), sess, "seven thirty please")
	require.NoError(t, err)
	assert.Equal(t, models.StepSlotList, sess.Step)
	assert.Contains(t, reply, "between 1 and 2")
}

func TestSlotListBackRetainsVenues(t *testing.T) {
	svc := newTestService(&fakeIntent{}, &fakeResy{})
	venue := testVenues(3)[0]
	sess := &models.Session{
		Step: models.StepSlotList, Search: testParams, Venues: testVenues(3),
		PickedVenue: &venue,
		Slots:       []models.Slot{{Start: "19:00"}},
	}

	_, err := svc.Handle(context.Background(), sess, "back")
	require.NoError(t, err)
	assert.Equal(t, models.StepVenueList, sess.Step)
	assert.Len(t, sess.Venues, 3)
	assert.Nil(t, sess.PickedVenue)
	assert.Empty(t, sess.Slots)
}

func confirmSession(expires time.Time) *models.Session {
	venue := testVenues(1)[0]
	slot := models.Slot{Start: "19:00", ConfigToken: "cfg-1"}
	return &models.Session{
		Step: models.StepConfirm, Search: testParams, Venues: testVenues(1),
		PickedVenue: &venue,
		Slots:       []models.Slot{slot},
		PickedSlot:  &slot,
		BookToken:   "bt-1",
		BookExpires: expires,
	}
}

// Scenario D: an expired hold never reaches the commit call.
func TestConfirmExpiredHold(t *testing.T) {
	resy := &fakeResy{}
	svc := newTestService(&fakeIntent{}, resy)
	// Now() is 18:00; the hold expired a minute earlier.
	sess := confirmSession(time.Date(2024, 6, 1, 17, 59, 0, 0, time.UTC))

	reply, err := svc.Handle(context.Background(), sess, "yes")
	require.NoError(t, err)
	assert.Zero(t, resy.bookCalls)
	assert.Equal(t, models.StepSlotList, sess.Step)
	assert.Empty(t, sess.BookToken)
	assert.Contains(t, reply, "expired")
}

// Scenario E: 402 degrades to slot_list with venue context preserved.
func TestConfirmPaymentRequired(t *testing.T) {
	resy := &fakeResy{bookFn: func(tok string) (models.Confirmation, error) {
		return models.Confirmation{}, reservation.ErrPaymentRequired
	}}
	svc := newTestService(&fakeIntent{}, resy)
	sess := confirmSession(time.Date(2024, 6, 1, 18, 30, 0, 0, time.UTC))

	reply, err := svc.Handle(context.Background(), sess, "yes")
	require.NoError(t, err)
	assert.Equal(t, models.StepSlotList, sess.Step)
	assert.Nil(t, sess.PickedSlot)
	assert.Empty(t, sess.BookToken)
	assert.NotNil(t, sess.PickedVenue)
	assert.Contains(t, reply, "card on file")
}

func TestConfirmBooksAndResets(t *testing.T) {
	resy := &fakeResy{bookFn: func(tok string) (models.Confirmation, error) {
		assert.Equal(t, "bt-1", tok)
		return models.Confirmation{ReservationID: "777"}, nil
	}}
	svc := newTestService(&fakeIntent{}, resy)
	sess := confirmSession(time.Date(2024, 6, 1, 18, 30, 0, 0, time.UTC))

	reply, err := svc.Handle(context.Background(), sess, "yes")
	require.NoError(t, err)
	assert.Equal(t, models.StepIdle, sess.Step)
	assert.Empty(t, sess.BookToken)
	assert.Contains(t, reply, "777")
}

func TestConfirmBookingFailureLeavesConfirm(t *testing.T) {
	resy := &fakeResy{bookFn: func(tok string) (models.Confirmation, error) {
		return models.Confirmation{}, &reservation.RequestError{Status: 500, Body: "boom"}
	}}
	svc := newTestService(&fakeIntent{}, resy)
	sess := confirmSession(time.Date(2024, 6, 1, 18, 30, 0, 0, time.UTC))

	_, err := svc.Handle(context.Background(), sess, "yes")
	require.Error(t, err)
	// User can still retry "yes" or back out.
	assert.Equal(t, models.StepConfirm, sess.Step)
	assert.Equal(t, "bt-1", sess.BookToken)
}

func TestConfirmNoReturnsToSlotList(t *testing.T) {
	svc := newTestService(&fakeIntent{}, &fakeResy{})
	sess := confirmSession(time.Date(2024, 6, 1, 18, 30, 0, 0, time.UTC))

	_, err := svc.Handle(context.Background(), sess, "no")
	require.NoError(t, err)
	assert.Equal(t, models.StepSlotList, sess.Step)
	assert.Nil(t, sess.PickedSlot)
	assert.Empty(t, sess.BookToken)
}

func TestConfirmGarbageReprompts(t *testing.T) {
	svc := newTestService(&fakeIntent{}, &fakeResy{})
	sess := confirmSession(time.Date(2024, 6, 1, 18, 30, 0, 0, time.UTC))

	reply, err := svc.Handle(context.Background(), sess, "maybe later")
	require.NoError(t, err)
	assert.Equal(t, models.StepConfirm, sess.Step)
	assert.Contains(t, reply, `"yes"`)
}

// Scenario F: "reset" clears everything from any state.
func TestResetFromEveryStep(t *testing.T) {
	for _, text := range []string{"reset", "Start Over"} {
		for _, step := range []models.Step{models.StepIdle, models.StepVenueList, models.StepSlotList, models.StepConfirm} {
			svc := newTestService(&fakeIntent{}, &fakeResy{})
			sess := confirmSession(time.Date(2024, 6, 1, 18, 30, 0, 0, time.UTC))
			sess.Step = step

			_, err := svc.Handle(context.Background(), sess, text)
			require.NoError(t, err)
			assert.Equal(t, models.StepIdle, sess.Step)
			assert.Empty(t, sess.Venues)
			assert.Empty(t, sess.BookToken)
			assert.Nil(t, sess.PickedVenue)
		}
	}
}

func TestExtractionFailurePropagates(t *testing.T) {
	in := &fakeIntent{err: assert.AnError}
	svc := newTestService(in, &fakeResy{})
	sess := &models.Session{}

	_, err := svc.Handle(context.Background(), sess, "gibberish")
	require.Error(t, err)
	assert.Equal(t, models.StepIdle, sess.Step)
}
