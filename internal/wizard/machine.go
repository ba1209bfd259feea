// Package wizard implements the project creation conversation: session model,
// transition table, field validators, menus and payload assembly.
package wizard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/m3rciful/projectbot/core/logger"
	"github.com/m3rciful/projectbot/core/metrics"
	"github.com/m3rciful/projectbot/internal/marketplace"
)

// InputKind tells what the user sent.
type InputKind string

const (
	InputText     InputKind = "text"
	InputLocation InputKind = "location"
	InputPhoto    InputKind = "photo"
	InputDocument InputKind = "document"
	InputContact  InputKind = "contact"
)

// Sender identifies the Telegram user behind an input.
type Sender struct {
	ID   int64
	Name string
}

// Input is one user event translated by the transport.
type Input struct {
	Kind     InputKind
	Text     string
	Location *Coordinate
	File     *Attachment
	Phone    string
	From     Sender
}

// Reply is what the transport shows after an input was handled.
type Reply struct {
	State   State
	Outcome Outcome
	Text    string
	Menu    Menu
	// Ended means the conversation is over and the session should be dropped.
	Ended bool
}

// Config tunes a Machine.
type Config struct {
	// Location is the zone "today" is computed in.
	Location *time.Location
	// RequirePhone demands a shared phone number before a role can be chosen.
	RequirePhone bool
	// Clock overrides time.Now.
	Clock func() time.Time
	// UploadConcurrency bounds parallel attachment uploads.
	UploadConcurrency int
	// MaxUploadBytes rejects larger documents and caps upload reads. Zero disables.
	MaxUploadBytes int64
}

// Machine drives sessions through the project creation flow. It keeps no
// per-conversation state; callers serialize inputs of one conversation.
type Machine struct {
	market Marketplace
	files  FileSource
	cfg    Config
}

// NewMachine builds a machine around the marketplace API and a file source.
func NewMachine(market Marketplace, files FileSource, cfg Config) *Machine {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.UploadConcurrency <= 0 {
		cfg.UploadConcurrency = 2
	}
	return &Machine{market: market, files: files, cfg: cfg}
}

func (m *Machine) now() time.Time {
	return m.cfg.Clock().In(m.cfg.Location)
}

// Start resets s for a new project and returns the role menu.
func (m *Machine) Start(s *Session) Reply {
	s.Reset(m.now())
	return m.reply(s, OutcomeOK, "")
}

// View re-renders the current step without changing anything.
func (m *Machine) View(s *Session) Reply {
	return m.reply(s, OutcomeOK, "")
}

// Cancel ends the conversation. The caller drops the session.
func (m *Machine) Cancel(s *Session) Reply {
	from := s.State
	s.Reset(m.now())
	metrics.RecordTransition(string(from), string(StateRoleSelect), string(OutcomeCancelled))
	return Reply{State: StateRoleSelect, Outcome: OutcomeCancelled, Text: msgCancelled, Ended: true}
}

// Restart clears every field and shows the role menu again.
func (m *Machine) Restart(s *Session) Reply {
	from := s.State
	s.Reset(m.now())
	metrics.RecordTransition(string(from), string(StateRoleSelect), string(OutcomeRestarted))
	return m.reply(s, OutcomeRestarted, msgRestarted)
}

// navMenu holds the words understood in every state even when the current
// menu does not offer them.
var navMenu = Menu{Rows: [][]Choice{{
	{Action: ActionBack, Label: LabelBack},
	{Action: ActionContinue, Label: LabelContinue},
	{Action: ActionSubmit, Label: LabelSubmit},
	{Action: ActionCancel, Label: LabelCancel},
	{Action: ActionRestart, Label: LabelRestart},
}}}

// fallbackMenu returns the navigation words answered in state st when the
// current menu does not offer them. Free-text states keep only the Continue
// precondition check of DESCRIPTION and take every other word as input.
func fallbackMenu(st State) Menu {
	switch st {
	case StateDetailsQuantity:
		return Menu{}
	case StateDescription:
		return Menu{Rows: [][]Choice{{{Action: ActionContinue, Label: LabelContinue}}}}
	}
	return navMenu
}

// Handle applies one input to s. The returned error is non-nil only for a
// broken transition table or an unknown state; every user-level failure is
// reported through Reply.Outcome.
func (m *Machine) Handle(ctx context.Context, s *Session, in Input) (Reply, error) {
	if s == nil {
		return Reply{}, errors.New("wizard: nil session")
	}
	if !s.State.Valid() {
		return Reply{}, fmt.Errorf("wizard: unknown state %q", s.State)
	}
	if s.TelegramID == 0 {
		s.TelegramID = in.From.ID
	}
	from := s.State

	var (
		choice  Choice
		matched bool
		offered bool
	)
	if in.Kind == InputText {
		if choice, matched = Render(s).Match(in.Text); matched {
			offered = true
		} else {
			choice, matched = fallbackMenu(from).Match(in.Text)
		}
	}

	var (
		rep Reply
		err error
	)
	switch {
	case matched && choice.Action == ActionCancel:
		rep = m.Cancel(s)
	case matched && choice.Action == ActionRestart:
		rep = m.Restart(s)
	default:
		switch {
		case from != StateRoleSelect && s.UserID == 0:
			rep = m.needsRegistration(s)
		case matched && !offered:
			rep, err = m.unavailableChoice(s, choice)
		default:
			rep, err = m.dispatch(ctx, s, in, choice, matched)
		}
		if err == nil {
			s.UpdatedAt = m.cfg.Clock()
			metrics.RecordTransition(string(from), string(rep.State), string(rep.Outcome))
		}
	}
	if err != nil {
		logger.Error(ctx, "wizard", "transition",
			slog.String("status", "fail"),
			slog.String("from", string(from)),
			slog.String("err", err.Error()),
		)
		return Reply{}, err
	}

	logger.Debug(ctx, "wizard", "transition",
		slog.String("status", "ok"),
		slog.String("from", string(from)),
		slog.String("to", string(rep.State)),
		slog.String("input", string(in.Kind)),
		slog.String("outcome", string(rep.Outcome)),
	)
	return rep, nil
}

func (m *Machine) dispatch(ctx context.Context, s *Session, in Input, c Choice, matched bool) (Reply, error) {
	switch s.State {
	case StateRoleSelect:
		return m.roleSelect(ctx, s, in, c, matched)
	case StateCategoryBrowse:
		return m.categoryBrowse(s, c, matched)
	case StateCategoryConfirm:
		return m.categoryConfirm(s, c, matched)
	case StateDescription:
		return m.description(s, in, c, matched)
	case StateLocationKind:
		return m.locationKind(s, c, matched)
	case StateLocationCoordinate:
		return m.locationCoordinate(s, in, c, matched)
	case StateDetailsHub:
		return m.detailsHub(ctx, s, c, matched)
	case StateDetailsFiles:
		return m.detailsFiles(s, in, c, matched)
	case StateDetailsDate:
		return m.detailsDate(s, in, c, matched)
	case StateDetailsDeadline, StateDetailsBudget, StateDetailsQuantity:
		return m.detailsValue(s, in, c, matched)
	case StateSubmit:
		// Submit never outlives one input; a stored session in it goes back to the hub.
		return m.move(s, StateDetailsHub, OutcomeOK, "")
	}
	return Reply{}, fmt.Errorf("wizard: no handler for state %q", s.State)
}

// unavailableChoice answers navigation words the current menu does not offer.
func (m *Machine) unavailableChoice(s *Session, c Choice) (Reply, error) {
	switch c.Action {
	case ActionContinue:
		switch s.State {
		case StateDescription:
			return m.reply(s, OutcomePrecondition, msgNeedDescription), nil
		case StateLocationCoordinate:
			return m.reply(s, OutcomePrecondition, msgNeedLocation), nil
		}
	case ActionSubmit:
		if s.State == StateDetailsHub {
			return m.reply(s, OutcomePrecondition, msgMissingFields), nil
		}
	}
	return m.reply(s, OutcomeInvalidInput, msgPickFromMenu), nil
}

func (m *Machine) needsRegistration(s *Session) Reply {
	s.Reset(m.now())
	return m.reply(s, OutcomeNeedsRegistration, msgRegistrationLost)
}

func (m *Machine) roleSelect(ctx context.Context, s *Session, in Input, c Choice, matched bool) (Reply, error) {
	if in.Kind == InputContact {
		phone := strings.TrimSpace(in.Phone)
		if phone == "" {
			return m.reply(s, OutcomeInvalidInput, msgNeedPhone), nil
		}
		s.Phone = phone
		return m.reply(s, OutcomeOK, msgPhoneSaved), nil
	}
	if !matched {
		return m.reply(s, OutcomeInvalidInput, msgPickFromMenu), nil
	}

	var role Role
	switch c.Action {
	case ActionRoleClient:
		role = RoleClient
	case ActionRoleContractor:
		role = RoleContractor
	default:
		return m.reply(s, OutcomeInvalidInput, msgPickFromMenu), nil
	}
	if m.cfg.RequirePhone && s.Phone == "" {
		return m.reply(s, OutcomeNeedsRegistration, msgNeedPhone), nil
	}

	user, err := m.market.EnsureUser(ctx, marketplace.UserParams{
		Phone:      s.Phone,
		TelegramID: s.TelegramID,
		Name:       in.From.Name,
		Role:       string(role),
	})
	if err != nil {
		return m.unavailable(ctx, s, "create_user", err), nil
	}
	catalog, err := m.market.Categories(ctx)
	if err != nil {
		return m.unavailable(ctx, s, "get_categories", err), nil
	}
	fresh := Session{Catalog: catalog}
	if len(fresh.levelCategories(0)) == 0 {
		return m.reply(s, OutcomeUnavailable, msgNoCategories), nil
	}

	s.Role = role
	s.UserID = user.ID
	s.Account = user.ID
	s.Catalog = catalog
	s.CategoryID = 0
	s.CategoryPath = nil
	return m.move(s, StateCategoryBrowse, OutcomeOK, "")
}

func (m *Machine) categoryBrowse(s *Session, c Choice, matched bool) (Reply, error) {
	if !matched {
		return m.reply(s, OutcomeInvalidInput, msgPickCategory), nil
	}
	switch c.Action {
	case ActionBack:
		if n := len(s.CategoryPath); n > 0 {
			s.CategoryPath = s.CategoryPath[:n-1]
			return m.reply(s, OutcomeOK, ""), nil
		}
		if err := checkTransition(s.State, StateRoleSelect); err != nil {
			return Reply{}, err
		}
		s.Reset(m.now())
		return m.reply(s, OutcomeOK, ""), nil
	case ActionCategory:
		cat, ok := s.Catalog[c.Value]
		if !ok {
			return m.reply(s, OutcomeInvalidInput, msgPickCategory), nil
		}
		if !isLeaf(cat) {
			s.CategoryPath = append(s.CategoryPath, cat.ID)
			return m.reply(s, OutcomeOK, ""), nil
		}
		s.CategoryID = cat.ID
		s.CategoryPath = nil
		return m.move(s, StateCategoryConfirm, OutcomeOK, "")
	}
	return m.reply(s, OutcomeInvalidInput, msgPickCategory), nil
}

func (m *Machine) categoryConfirm(s *Session, c Choice, matched bool) (Reply, error) {
	if matched {
		switch c.Action {
		case ActionContinue:
			return m.move(s, StateDescription, OutcomeOK, "")
		case ActionBack:
			s.CategoryPath = s.ancestors(s.CategoryID)
			s.CategoryID = 0
			return m.move(s, StateCategoryBrowse, OutcomeOK, "")
		}
	}
	return m.reply(s, OutcomeInvalidInput, msgPickFromMenu), nil
}

func (m *Machine) description(s *Session, in Input, c Choice, matched bool) (Reply, error) {
	if matched {
		switch c.Action {
		case ActionContinue:
			return m.move(s, StateLocationKind, OutcomeOK, "")
		case ActionBack:
			return m.move(s, StateCategoryConfirm, OutcomeOK, "")
		}
	}
	if in.Kind != InputText {
		return m.reply(s, OutcomeInvalidInput, msgNeedDescription), nil
	}
	text, err := ParseText(in.Text)
	if err != nil {
		return m.reply(s, OutcomeInvalidInput, hint(err)), nil
	}
	s.Description = text
	return m.move(s, StateLocationKind, OutcomeOK, "")
}

func (m *Machine) locationKind(s *Session, c Choice, matched bool) (Reply, error) {
	if !matched {
		return m.reply(s, OutcomeInvalidInput, msgPickFromMenu), nil
	}
	switch c.Action {
	case ActionBack:
		return m.move(s, StateDescription, OutcomeOK, "")
	case ActionRemote:
		s.setLocationKind(LocationRemote)
		return m.move(s, StateDetailsHub, OutcomeOK, "")
	case ActionClientSite:
		s.setLocationKind(LocationClientSite)
		return m.move(s, StateLocationCoordinate, OutcomeOK, "")
	case ActionContractorSite:
		s.setLocationKind(LocationContractorSite)
		return m.move(s, StateLocationCoordinate, OutcomeOK, "")
	}
	return m.reply(s, OutcomeInvalidInput, msgPickFromMenu), nil
}

func (m *Machine) locationCoordinate(s *Session, in Input, c Choice, matched bool) (Reply, error) {
	if in.Kind == InputLocation && in.Location != nil {
		if err := ValidateCoordinate(*in.Location); err != nil {
			return m.reply(s, OutcomeInvalidInput, hint(err)), nil
		}
		pt := *in.Location
		s.Coordinate = &pt
		return m.reply(s, OutcomeOK, msgLocationSaved), nil
	}
	if matched {
		switch c.Action {
		case ActionContinue:
			if s.Coordinate == nil {
				return m.reply(s, OutcomePrecondition, msgNeedLocation), nil
			}
			return m.move(s, StateDetailsHub, OutcomeOK, "")
		case ActionBack:
			return m.move(s, StateLocationKind, OutcomeOK, "")
		}
	}
	return m.reply(s, OutcomeInvalidInput, msgLocationOnly), nil
}

func (m *Machine) detailsHub(ctx context.Context, s *Session, c Choice, matched bool) (Reply, error) {
	if !matched {
		return m.reply(s, OutcomeInvalidInput, msgPickFromMenu), nil
	}
	switch c.Action {
	case ActionBack:
		if s.LocationKind.NeedsCoordinate() {
			return m.move(s, StateLocationCoordinate, OutcomeOK, "")
		}
		return m.move(s, StateLocationKind, OutcomeOK, "")
	case ActionFiles:
		return m.move(s, StateDetailsFiles, OutcomeOK, "")
	case ActionDate:
		return m.move(s, StateDetailsDate, OutcomeOK, "")
	case ActionDeadline:
		return m.move(s, StateDetailsDeadline, OutcomeOK, "")
	case ActionBudget:
		return m.move(s, StateDetailsBudget, OutcomeOK, "")
	case ActionQuantity:
		return m.move(s, StateDetailsQuantity, OutcomeOK, "")
	case ActionSubmit:
		if !s.CanSubmit() {
			return m.reply(s, OutcomePrecondition, msgMissingFields), nil
		}
		return m.submit(ctx, s)
	}
	return m.reply(s, OutcomeInvalidInput, msgPickFromMenu), nil
}

func (m *Machine) detailsFiles(s *Session, in Input, c Choice, matched bool) (Reply, error) {
	switch in.Kind {
	case InputPhoto, InputDocument:
		if in.File == nil || in.File.FileID == "" {
			return m.reply(s, OutcomeInvalidInput, msgImagesOnly), nil
		}
		a := *in.File
		a.Uploaded = nil
		if in.Kind == InputPhoto && a.MIME == "" {
			a.MIME = "image/jpeg"
		}
		if !strings.HasPrefix(strings.ToLower(a.MIME), "image/") {
			return m.reply(s, OutcomeInvalidInput, msgImagesOnly), nil
		}
		if m.cfg.MaxUploadBytes > 0 && a.Size > m.cfg.MaxUploadBytes {
			return m.reply(s, OutcomeInvalidInput, msgFileTooLarge), nil
		}
		if len(s.Attachments) >= MaxAttachments {
			return m.reply(s, OutcomeInvalidInput, fmt.Sprintf(msgAttachmentLimit, MaxAttachments)), nil
		}
		s.Attachments = append(s.Attachments, a)
		return m.reply(s, OutcomeOK, fmt.Sprintf(msgAttachmentAdded, len(s.Attachments), MaxAttachments)), nil
	}
	if matched {
		switch c.Action {
		case ActionRemoveOne:
			if n := len(s.Attachments); n > 0 {
				s.Attachments = s.Attachments[:n-1]
			}
			return m.reply(s, OutcomeOK, msgAttachmentGone), nil
		case ActionDone, ActionBack:
			return m.move(s, StateDetailsHub, OutcomeOK, "")
		}
	}
	return m.reply(s, OutcomeInvalidInput, msgImagesOnly), nil
}

func (m *Machine) detailsDate(s *Session, in Input, c Choice, matched bool) (Reply, error) {
	now := m.now()
	if matched {
		offset := -1
		switch c.Action {
		case ActionBack:
			return m.move(s, StateDetailsHub, OutcomeOK, "")
		case ActionToday:
			offset = 0
		case ActionTomorrow:
			offset = 1
		case ActionDayAfter:
			offset = 2
		}
		if offset >= 0 {
			s.NeedDate = QuickDate(now, offset)
			return m.move(s, StateDetailsHub, OutcomeOK, "")
		}
	}
	if in.Kind != InputText {
		return m.reply(s, OutcomeInvalidInput, hint(ErrDateFormat)), nil
	}
	date, err := ParseDate(in.Text, now)
	if err != nil {
		return m.reply(s, OutcomeInvalidInput, hint(err)), nil
	}
	s.NeedDate = date
	return m.move(s, StateDetailsHub, OutcomeOK, "")
}

// detailsValue handles the single free-text detail states.
func (m *Machine) detailsValue(s *Session, in Input, c Choice, matched bool) (Reply, error) {
	if matched && c.Action == ActionBack {
		return m.move(s, StateDetailsHub, OutcomeOK, "")
	}
	if in.Kind != InputText {
		return m.reply(s, OutcomeInvalidInput, hint(ErrNoDigits)), nil
	}
	switch s.State {
	case StateDetailsDeadline:
		days, err := ParseDeadline(in.Text)
		if err != nil {
			return m.reply(s, OutcomeInvalidInput, hint(err)), nil
		}
		s.DeadlineDays = days
	case StateDetailsBudget:
		budget, err := ParseBudget(in.Text)
		if err != nil {
			return m.reply(s, OutcomeInvalidInput, hint(err)), nil
		}
		s.Budget = &budget
	case StateDetailsQuantity:
		q, err := ParseQuantity(in.Text)
		if err != nil {
			return m.reply(s, OutcomeInvalidInput, hint(err)), nil
		}
		s.QuantityLabel = q
	}
	return m.move(s, StateDetailsHub, OutcomeOK, "")
}

func (m *Machine) submit(ctx context.Context, s *Session) (Reply, error) {
	if err := checkTransition(s.State, StateSubmit); err != nil {
		return Reply{}, err
	}
	s.State = StateSubmit

	results := m.uploadAttachments(ctx, s)
	report := uploadReport(results)
	payload := Assemble(s, m.now())

	project, err := m.market.CreateProject(ctx, payload)
	if err != nil {
		switch {
		case marketplace.IsBudgetError(err):
			metrics.RecordSubmission("budget_rejected")
			s.Budget = nil
			return m.move(s, StateDetailsBudget, OutcomeInvalidInput,
				joinLines(append(report, fmt.Sprintf(msgBudgetRejected, fieldMessages(err, "budget")))...))
		case errors.Is(err, marketplace.ErrUnavailable):
			metrics.RecordSubmission("unavailable")
			logger.Warn(ctx, "wizard", "submit",
				slog.String("status", "fail"),
				slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
			)
			return m.move(s, StateDetailsHub, OutcomeUnavailable, joinLines(append(report, msgUnavailable)...))
		default:
			metrics.RecordSubmission("rejected")
			return m.move(s, StateDetailsHub, OutcomeInvalidInput,
				joinLines(append(report, fmt.Sprintf(msgProjectRejected, fieldMessages(err)))...))
		}
	}

	metrics.RecordSubmission("ok")
	logger.Info(ctx, "wizard", "submit",
		slog.String("status", "ok"),
		slog.Int64("project_id", project.ID),
		slog.Int("files", len(payload.Files)),
	)
	title := project.Title
	if title == "" {
		title = payload.Title
	}
	done := joinLines(append([]string{fmt.Sprintf(msgSubmitted, project.ID, title)}, report...)...)
	if err := checkTransition(s.State, StateRoleSelect); err != nil {
		return Reply{}, err
	}
	s.Reset(m.now())
	return m.reply(s, OutcomeSubmitted, done), nil
}

// move changes state through the transition table and renders the new step.
func (m *Machine) move(s *Session, to State, outcome Outcome, text string) (Reply, error) {
	if err := checkTransition(s.State, to); err != nil {
		return Reply{}, err
	}
	s.State = to
	return m.reply(s, outcome, text), nil
}

// reply renders the current step. text, when set, goes before the prompt.
func (m *Machine) reply(s *Session, outcome Outcome, text string) Reply {
	return Reply{
		State:   s.State,
		Outcome: outcome,
		Text:    joinLines(text, Prompt(s)),
		Menu:    Render(s),
	}
}

func (m *Machine) unavailable(ctx context.Context, s *Session, op string, err error) Reply {
	logger.Warn(ctx, "wizard", "external",
		slog.String("status", "fail"),
		slog.String("op", op),
		slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
	)
	return m.reply(s, OutcomeUnavailable, msgUnavailable)
}

func joinLines(parts ...string) string {
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, "\n\n")
}
