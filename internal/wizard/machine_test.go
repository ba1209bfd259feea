package wizard

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/projectbot/internal/marketplace"
)

func ptr[T any](v T) *T { return &v }

// testCatalog: Home{Plumbing, Electrical{Wiring}}, Design.
func testCatalog() map[int64]marketplace.Category {
	return map[int64]marketplace.Category{
		1: {ID: 1, Name: "Home", Children: []int64{2, 3}},
		2: {ID: 2, Name: "Plumbing", ParentID: ptr(int64(1))},
		3: {ID: 3, Name: "Electrical", ParentID: ptr(int64(1)), Children: []int64{4}},
		4: {ID: 4, Name: "Wiring", ParentID: ptr(int64(3))},
		5: {ID: 5, Name: "Design"},
	}
}

type fakeMarket struct {
	mu sync.Mutex

	userErr   error
	catErr    error
	createErr error
	failNames map[string]bool
	catalog   map[int64]marketplace.Category

	users    []marketplace.UserParams
	uploads  []string
	projects []marketplace.ProjectPayload
	nextFile int64
}

func (f *fakeMarket) EnsureUser(_ context.Context, p marketplace.UserParams) (marketplace.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.userErr != nil {
		return marketplace.User{}, f.userErr
	}
	f.users = append(f.users, p)
	return marketplace.User{ID: 700 + p.TelegramID, TelegramID: p.TelegramID, Name: p.Name, Role: p.Role}, nil
}

func (f *fakeMarket) Categories(context.Context) (map[int64]marketplace.Category, error) {
	if f.catErr != nil {
		return nil, f.catErr
	}
	if f.catalog != nil {
		return f.catalog, nil
	}
	return testCatalog(), nil
}

func (f *fakeMarket) UploadFile(_ context.Context, u marketplace.Upload) (marketplace.FileRef, error) {
	if _, err := io.ReadAll(u.Content); err != nil {
		return marketplace.FileRef{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.uploads = append(f.uploads, u.Name)
	if f.failNames[u.Name] {
		return marketplace.FileRef{}, fmt.Errorf("%w: upload_file: status 502", marketplace.ErrUnavailable)
	}
	f.nextFile++
	return marketplace.FileRef{ID: 100 + f.nextFile}, nil
}

func (f *fakeMarket) CreateProject(_ context.Context, p marketplace.ProjectPayload) (marketplace.Project, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.projects = append(f.projects, p)
	if f.createErr != nil {
		return marketplace.Project{}, f.createErr
	}
	return marketplace.Project{ID: int64(len(f.projects)), Title: p.Title, Status: "open"}, nil
}

type fakeFiles struct{}

func (fakeFiles) Open(_ context.Context, id string) (io.ReadCloser, error) {
	if id == "missing" {
		return nil, errors.New("file not found")
	}
	return io.NopCloser(strings.NewReader("img:" + id)), nil
}

func newTestMachine(market *fakeMarket, cfg Config) *Machine {
	cfg.Location = tehran
	cfg.Clock = func() time.Time { return testNow }
	return NewMachine(market, fakeFiles{}, cfg)
}

func text(s string) Input {
	return Input{Kind: InputText, Text: s, From: Sender{ID: 42, Name: "Sara"}}
}

func location(lat, lng float64) Input {
	return Input{Kind: InputLocation, Location: &Coordinate{Lat: lat, Lng: lng}, From: Sender{ID: 42}}
}

func photo(id string) Input {
	return Input{Kind: InputPhoto, File: &Attachment{FileID: id, Name: id + ".jpg"}, From: Sender{ID: 42}}
}

func send(t *testing.T, m *Machine, s *Session, in ...Input) Reply {
	t.Helper()
	var rep Reply
	for _, i := range in {
		var err error
		rep, err = m.Handle(context.Background(), s, i)
		require.NoError(t, err)
		require.Equal(t, s.State, rep.State)
	}
	return rep
}

// toHub drives a fresh session to the details hub with a remote Plumbing job.
func toHub(t *testing.T, m *Machine) *Session {
	t.Helper()
	s := NewSession(42, testNow)
	send(t, m, s,
		text("I need a service"),
		text("Home"),
		text("Plumbing"),
		text("Continue"),
		text("fix leaking tap"),
		text("Remote"),
	)
	require.Equal(t, StateDetailsHub, s.State)
	return s
}

func TestScenarioRemoteSubmit(t *testing.T) {
	market := &fakeMarket{}
	m := newTestMachine(market, Config{})
	s := toHub(t, m)

	assert.Equal(t, RoleClient, s.Role)
	assert.Equal(t, int64(2), s.CategoryID)
	assert.Empty(t, s.CategoryPath)
	assert.Nil(t, s.Coordinate)
	assert.True(t, Render(s).Has(ActionSubmit))

	rep := send(t, m, s, text("Submit project"))
	assert.Equal(t, OutcomeSubmitted, rep.Outcome)
	assert.Contains(t, rep.Text, "Project #1")

	require.Len(t, market.projects, 1)
	p := market.projects[0]
	assert.Equal(t, "remote", p.ServiceLocation)
	assert.Empty(t, p.Location)
	assert.Equal(t, int64(2), p.Category)
	assert.Equal(t, "fix leaking tap", p.Description)
	assert.Equal(t, int64(742), p.User)

	assert.Equal(t, StateRoleSelect, s.State)
	assert.Zero(t, s.CategoryID)
	assert.Empty(t, s.Description)
	assert.Empty(t, s.LocationKind)
	assert.Equal(t, int64(42), s.TelegramID)
	assert.Zero(t, s.UserID)
	assert.Equal(t, int64(742), s.Account)
}

func TestScenarioContinueWithoutCoordinate(t *testing.T) {
	m := newTestMachine(&fakeMarket{}, Config{})
	s := NewSession(42, testNow)
	send(t, m, s,
		text("I need a service"),
		text("Design"),
		text("Continue"),
		text("logo for a bakery"),
		text("At my place"),
	)
	require.Equal(t, StateLocationCoordinate, s.State)

	rep := send(t, m, s, text("Continue"))
	assert.Equal(t, OutcomePrecondition, rep.Outcome)
	assert.Equal(t, StateLocationCoordinate, s.State)
	assert.Contains(t, rep.Text, msgNeedLocation)

	rep = send(t, m, s, text("somewhere downtown"))
	assert.Equal(t, OutcomeInvalidInput, rep.Outcome)
	assert.Nil(t, s.Coordinate)

	send(t, m, s, location(35.7, 51.4), text("Continue"))
	assert.Equal(t, StateDetailsHub, s.State)
	assert.True(t, s.CanSubmit())
}

func TestScenarioLocalizedDetails(t *testing.T) {
	m := newTestMachine(&fakeMarket{}, Config{})
	s := toHub(t, m)

	send(t, m, s, text("Deadline"), text("۷"))
	assert.Equal(t, StateDetailsHub, s.State)
	assert.Equal(t, 7, s.DeadlineDays)

	send(t, m, s, text("Start date"))
	rep := send(t, m, s, text("1403/13/01"))
	assert.Equal(t, OutcomeInvalidInput, rep.Outcome)
	assert.Equal(t, StateDetailsDate, s.State)
	assert.Empty(t, s.NeedDate)

	rep = send(t, m, s, text("1403/07/24"))
	assert.Equal(t, OutcomeInvalidInput, rep.Outcome)

	send(t, m, s, text("۱۴۰۳/۰۸/۰۱"))
	assert.Equal(t, StateDetailsHub, s.State)
	assert.Equal(t, "2024-10-22", s.NeedDate)

	send(t, m, s, text("Budget"), text("500,000 تومان"))
	require.NotNil(t, s.Budget)
	assert.Equal(t, int64(500000), *s.Budget)

	send(t, m, s, text("Quantity"), text("2 taps"))
	assert.Equal(t, "2 taps", s.QuantityLabel)

	p := Assemble(s, testNow)
	assert.Equal(t, "2024-10-23", p.DeadlineDate)
	assert.Equal(t, "2024-10-22", p.StartDate)
	assert.Equal(t, int64(500000), *p.Budget)
}

func TestQuickDatePick(t *testing.T) {
	m := newTestMachine(&fakeMarket{}, Config{})
	s := toHub(t, m)
	send(t, m, s, text("Start date"), text("Tomorrow"))
	assert.Equal(t, "2024-10-17", s.NeedDate)
}

func TestBackFromAnyDepthReachesRoleMenu(t *testing.T) {
	m := newTestMachine(&fakeMarket{}, Config{})
	s := NewSession(42, testNow)
	send(t, m, s, text("I need a service"), text("Home"), text("Electrical"))
	assert.Equal(t, []int64{1, 3}, s.CategoryPath)

	send(t, m, s, text("Wiring"))
	require.Equal(t, StateCategoryConfirm, s.State)
	assert.Empty(t, s.CategoryPath)

	send(t, m, s, text("Back"))
	assert.Equal(t, StateCategoryBrowse, s.State)
	assert.Equal(t, []int64{1, 3}, s.CategoryPath)
	assert.Zero(t, s.CategoryID)

	for i := 0; i < 10 && s.State != StateRoleSelect; i++ {
		before := len(s.CategoryPath)
		rep := send(t, m, s, text("Back"))
		assert.Equal(t, OutcomeOK, rep.Outcome)
		if s.State == StateCategoryBrowse {
			assert.Equal(t, before-1, len(s.CategoryPath))
		}
	}
	assert.Equal(t, StateRoleSelect, s.State)
	assert.Empty(t, s.CategoryPath)
	assert.Zero(t, s.UserID)
}

func TestBackKeepsSiblingFields(t *testing.T) {
	m := newTestMachine(&fakeMarket{}, Config{})
	s := NewSession(42, testNow)
	send(t, m, s,
		text("I need a service"), text("Design"), text("Continue"),
		text("logo"), text("At the contractor's place"), location(35.7, 51.4), text("Continue"),
		text("Budget"), text("100"),
	)
	require.Equal(t, StateDetailsHub, s.State)

	send(t, m, s, text("Back"))
	assert.Equal(t, StateLocationCoordinate, s.State)
	send(t, m, s, text("Back"))
	assert.Equal(t, StateLocationKind, s.State)
	send(t, m, s, text("Back"))
	assert.Equal(t, StateDescription, s.State)
	assert.True(t, Render(s).Has(ActionContinue))

	send(t, m, s, text("Continue"), text("At the contractor's place"))
	require.NotNil(t, s.Coordinate, "same kind keeps the point")
	require.NotNil(t, s.Budget)
	assert.Equal(t, "logo", s.Description)

	send(t, m, s, text("Back"), text("Remote"))
	assert.Equal(t, StateDetailsHub, s.State)
	assert.Nil(t, s.Coordinate)
	assert.Equal(t, LocationRemote, s.LocationKind)
}

func TestSwitchingSiteKindClearsCoordinate(t *testing.T) {
	m := newTestMachine(&fakeMarket{}, Config{})
	s := NewSession(42, testNow)
	send(t, m, s,
		text("I need a service"), text("Design"), text("Continue"),
		text("logo"), text("At my place"), location(35.7, 51.4),
		text("Back"), text("At the contractor's place"),
	)
	assert.Equal(t, StateLocationCoordinate, s.State)
	assert.Nil(t, s.Coordinate)
}

func TestDescriptionContinueNeedsText(t *testing.T) {
	m := newTestMachine(&fakeMarket{}, Config{})
	s := NewSession(42, testNow)
	send(t, m, s, text("I need a service"), text("Design"), text("Continue"))
	require.Equal(t, StateDescription, s.State)

	rep := send(t, m, s, text("Continue"))
	assert.Equal(t, OutcomePrecondition, rep.Outcome)
	assert.Equal(t, StateDescription, s.State)

	rep = send(t, m, s, text("   "))
	assert.Equal(t, OutcomeInvalidInput, rep.Outcome)
}

func TestFreeTextKeepsNavigationWords(t *testing.T) {
	m := newTestMachine(&fakeMarket{}, Config{})
	s := NewSession(42, testNow)
	send(t, m, s, text("I need a service"), text("Design"), text("Continue"))
	require.Equal(t, StateDescription, s.State)

	rep := send(t, m, s, text("Submit project"))
	assert.Equal(t, OutcomeOK, rep.Outcome)
	assert.Equal(t, "Submit project", s.Description)
	assert.Equal(t, StateLocationKind, s.State)

	send(t, m, s, text("Remote"))
	require.Equal(t, StateDetailsHub, s.State)
	for _, word := range []string{"Continue", "Submit project"} {
		s.QuantityLabel = ""
		send(t, m, s, text("Quantity"))
		require.Equal(t, StateDetailsQuantity, s.State)
		rep = send(t, m, s, text(word))
		assert.Equal(t, OutcomeOK, rep.Outcome)
		assert.Equal(t, word, s.QuantityLabel)
		assert.Equal(t, StateDetailsHub, s.State)
	}
}

func TestUnknownInputLeavesState(t *testing.T) {
	m := newTestMachine(&fakeMarket{}, Config{})
	s := NewSession(42, testNow)

	rep := send(t, m, s, text("hello"))
	assert.Equal(t, OutcomeInvalidInput, rep.Outcome)
	assert.Equal(t, StateRoleSelect, s.State)

	send(t, m, s, text("I need a service"))
	rep = send(t, m, s, text("Gardening"))
	assert.Equal(t, OutcomeInvalidInput, rep.Outcome)
	assert.Equal(t, StateCategoryBrowse, s.State)

	rep = send(t, m, s, location(1, 1))
	assert.Equal(t, OutcomeInvalidInput, rep.Outcome)
}

func TestHubOmitsPopulatedFields(t *testing.T) {
	m := newTestMachine(&fakeMarket{}, Config{})
	s := toHub(t, m)
	for _, a := range []Action{ActionFiles, ActionDate, ActionDeadline, ActionBudget, ActionQuantity} {
		assert.True(t, Render(s).Has(a), a)
	}

	send(t, m, s, text("Budget"), text("250"))
	assert.False(t, Render(s).Has(ActionBudget))

	rep := send(t, m, s, text("Budget"))
	assert.Equal(t, OutcomeInvalidInput, rep.Outcome)
	assert.Equal(t, StateDetailsHub, s.State)
}

func TestAttachmentsBounded(t *testing.T) {
	m := newTestMachine(&fakeMarket{}, Config{})
	s := toHub(t, m)
	send(t, m, s, text("Photos"))

	for i := 1; i <= MaxAttachments; i++ {
		rep := send(t, m, s, photo(fmt.Sprintf("p%d", i)))
		assert.Equal(t, OutcomeOK, rep.Outcome)
	}
	rep := send(t, m, s, photo("p6"))
	assert.Equal(t, OutcomeInvalidInput, rep.Outcome)
	require.Len(t, s.Attachments, MaxAttachments)
	assert.Equal(t, "p1", s.Attachments[0].FileID)
	assert.Equal(t, "p5", s.Attachments[4].FileID)

	send(t, m, s, text("Remove last"))
	assert.Len(t, s.Attachments, MaxAttachments-1)

	doc := Input{Kind: InputDocument, File: &Attachment{FileID: "d1", Name: "spec.pdf", MIME: "application/pdf"}}
	rep = send(t, m, s, doc)
	assert.Equal(t, OutcomeInvalidInput, rep.Outcome)
	assert.Len(t, s.Attachments, MaxAttachments-1)

	img := Input{Kind: InputDocument, File: &Attachment{FileID: "d2", Name: "scan.png", MIME: "image/png"}}
	send(t, m, s, img)
	assert.Len(t, s.Attachments, MaxAttachments)

	send(t, m, s, text("Done"))
	assert.Equal(t, StateDetailsHub, s.State)
	assert.False(t, Render(s).Has(ActionFiles))
}

func TestOversizedDocumentRejected(t *testing.T) {
	m := newTestMachine(&fakeMarket{}, Config{MaxUploadBytes: 10})
	s := toHub(t, m)
	send(t, m, s, text("Photos"))
	big := Input{Kind: InputDocument, File: &Attachment{FileID: "d", MIME: "image/png", Size: 11}}
	rep := send(t, m, s, big)
	assert.Equal(t, OutcomeInvalidInput, rep.Outcome)
	assert.Empty(t, s.Attachments)
}

func TestSubmitReportsEachUpload(t *testing.T) {
	market := &fakeMarket{failNames: map[string]bool{"p2.jpg": true}}
	m := newTestMachine(market, Config{UploadConcurrency: 3})
	s := toHub(t, m)
	send(t, m, s, text("Photos"), photo("p1"), photo("p2"), photo("missing"), text("Done"))

	rep := send(t, m, s, text("Submit project"))
	assert.Equal(t, OutcomeSubmitted, rep.Outcome)
	assert.Contains(t, rep.Text, "p1.jpg uploaded")
	assert.Contains(t, rep.Text, "p2.jpg was not uploaded: service unavailable")
	assert.Contains(t, rep.Text, "missing.jpg was not uploaded")

	require.Len(t, market.projects, 1)
	assert.Len(t, market.projects[0].Files, 1)
}

func TestSubmitFailsUploadOverLimitWithoutReportedSize(t *testing.T) {
	market := &fakeMarket{}
	m := newTestMachine(market, Config{MaxUploadBytes: 10})
	s := toHub(t, m)
	// Neither photo reports a size; "img:long-photo" is 14 bytes.
	send(t, m, s, text("Photos"), photo("p1"), photo("long-photo"), text("Done"))

	rep := send(t, m, s, text("Submit project"))
	assert.Equal(t, OutcomeSubmitted, rep.Outcome)
	assert.Contains(t, rep.Text, "p1.jpg uploaded")
	assert.Contains(t, rep.Text, "long-photo.jpg was not uploaded: file too large")
	assert.Equal(t, []string{"p1.jpg"}, market.uploads)
	require.Len(t, market.projects, 1)
	assert.Len(t, market.projects[0].Files, 1)
}

func TestSubmitBudgetRejectionRoutesToBudget(t *testing.T) {
	market := &fakeMarket{createErr: &marketplace.ValidationError{
		Status: 400,
		Fields: map[string][]string{"budget": {"Ensure this value is less than or equal to 1000000000."}},
	}}
	m := newTestMachine(market, Config{})
	s := toHub(t, m)
	send(t, m, s, text("Budget"), text("99999999999"))

	rep := send(t, m, s, text("Submit project"))
	assert.Equal(t, OutcomeInvalidInput, rep.Outcome)
	assert.Equal(t, StateDetailsBudget, s.State)
	assert.Nil(t, s.Budget)
	assert.Equal(t, "fix leaking tap", s.Description)
	assert.Contains(t, rep.Text, "less than or equal")

	market.createErr = nil
	send(t, m, s, text("5000"))
	assert.Equal(t, StateDetailsHub, s.State)
	rep = send(t, m, s, text("Submit project"))
	assert.Equal(t, OutcomeSubmitted, rep.Outcome)
}

func TestSubmitUnavailableKeepsSession(t *testing.T) {
	market := &fakeMarket{createErr: fmt.Errorf("%w: create_project: status 503", marketplace.ErrUnavailable)}
	m := newTestMachine(market, Config{})
	s := toHub(t, m)
	send(t, m, s, text("Photos"), photo("p1"), text("Done"), text("Quantity"), text("1 tap"))

	rep := send(t, m, s, text("Submit project"))
	assert.Equal(t, OutcomeUnavailable, rep.Outcome)
	assert.Equal(t, StateDetailsHub, s.State)
	assert.Equal(t, "1 tap", s.QuantityLabel)
	require.Len(t, s.Attachments, 1)
	require.NotNil(t, s.Attachments[0].Uploaded)

	market.createErr = nil
	rep = send(t, m, s, text("Submit project"))
	assert.Equal(t, OutcomeSubmitted, rep.Outcome)
	assert.Len(t, market.uploads, 1, "uploaded files are reused on retry")
	assert.Equal(t, market.projects[0], market.projects[1])
}

func TestSubmitRequiresGate(t *testing.T) {
	m := newTestMachine(&fakeMarket{}, Config{})
	s := toHub(t, m)
	s.Description = ""

	rep := send(t, m, s, text("Submit project"))
	assert.Equal(t, OutcomePrecondition, rep.Outcome)
	assert.Equal(t, StateDetailsHub, s.State)
}

func TestAssembleDeterministic(t *testing.T) {
	s := &Session{
		Catalog:      testCatalog(),
		UserID:       9,
		CategoryID:   4,
		Description:  "rewire the kitchen",
		LocationKind: LocationClientSite,
		Coordinate:   &Coordinate{Lat: 35.7, Lng: 51.4},
		Attachments: []Attachment{
			{FileID: "a", Uploaded: &marketplace.FileRef{ID: 11}},
			{FileID: "b"},
		},
		NeedDate:     "2024-10-20",
		DeadlineDays: 3,
		Budget:       ptr(int64(900)),
	}
	a := Assemble(s, testNow)
	b := Assemble(s, testNow)
	assert.Equal(t, a, b)

	assert.Equal(t, []float64{35.7, 51.4}, a.Location)
	assert.Equal(t, []int64{11}, a.Files)
	assert.Equal(t, "2024-10-19", a.DeadlineDate)
	assert.Equal(t, "client_site", a.ServiceLocation)
	assert.Equal(t, int64(9), a.User)

	*a.Budget = 1
	assert.Equal(t, int64(900), *s.Budget)
}

func TestRoleSelectUnavailable(t *testing.T) {
	market := &fakeMarket{catErr: fmt.Errorf("%w: get_categories: timeout", marketplace.ErrUnavailable)}
	m := newTestMachine(market, Config{})
	s := NewSession(42, testNow)

	rep := send(t, m, s, text("I need a service"))
	assert.Equal(t, OutcomeUnavailable, rep.Outcome)
	assert.Equal(t, StateRoleSelect, s.State)
	assert.Empty(t, s.Role)
	assert.Zero(t, s.UserID)

	market.catErr = nil
	send(t, m, s, text("I need a service"))
	assert.Equal(t, StateCategoryBrowse, s.State)
}

func TestRegistrationRequired(t *testing.T) {
	market := &fakeMarket{}
	m := newTestMachine(market, Config{RequirePhone: true})
	s := NewSession(42, testNow)

	rep := send(t, m, s, text("I am a contractor"))
	assert.Equal(t, OutcomeNeedsRegistration, rep.Outcome)
	assert.Equal(t, StateRoleSelect, s.State)
	assert.Empty(t, market.users)

	contact := Input{Kind: InputContact, Phone: "+989121234567", From: Sender{ID: 42}}
	send(t, m, s, contact)
	assert.Equal(t, "+989121234567", s.Phone)
	assert.False(t, Render(s).Has(ActionShareContact))

	send(t, m, s, text("I am a contractor"))
	assert.Equal(t, StateCategoryBrowse, s.State)
	assert.Equal(t, RoleContractor, s.Role)
	require.Len(t, market.users, 1)
	assert.Equal(t, "+989121234567", market.users[0].Phone)
}

func TestStateWithoutUserNeedsRegistration(t *testing.T) {
	m := newTestMachine(&fakeMarket{}, Config{})
	s := &Session{State: StateDetailsHub, TelegramID: 42, Description: "x"}

	rep := send(t, m, s, text("Submit project"))
	assert.Equal(t, OutcomeNeedsRegistration, rep.Outcome)
	assert.Equal(t, StateRoleSelect, s.State)
	assert.Empty(t, s.Description)
}

func TestCancelAndRestartFromEveryState(t *testing.T) {
	m := newTestMachine(&fakeMarket{}, Config{})
	for _, st := range States {
		s := toHub(t, m)
		s.State = st

		rep := send(t, m, s, text("Restart"))
		assert.Equal(t, OutcomeRestarted, rep.Outcome, st)
		assert.Equal(t, StateRoleSelect, s.State)
		assert.Empty(t, s.Description)

		s = toHub(t, m)
		s.State = st
		rep = send(t, m, s, text("cancel"))
		assert.Equal(t, OutcomeCancelled, rep.Outcome, st)
		assert.True(t, rep.Ended)
		assert.Empty(t, s.Description)
	}
}

func TestCoordinateInvariantAlongFlows(t *testing.T) {
	m := newTestMachine(&fakeMarket{}, Config{})
	steps := []Input{
		text("I need a service"), text("Design"), text("Continue"), text("logo"),
		text("At my place"), location(10, 10), text("Continue"),
		text("Back"), text("Back"), text("Remote"),
		text("Back"), text("At the contractor's place"), location(20, 20), text("Continue"),
	}
	s := NewSession(42, testNow)
	for _, in := range steps {
		send(t, m, s, in)
		if s.State == StateDetailsHub {
			assert.Equal(t, s.LocationKind.NeedsCoordinate(), s.Coordinate != nil, "kind %s", s.LocationKind)
		}
		if s.LocationKind == LocationRemote {
			assert.Nil(t, s.Coordinate)
		}
	}
	assert.Equal(t, StateDetailsHub, s.State)
	assert.Equal(t, &Coordinate{Lat: 20, Lng: 20}, s.Coordinate)
}
