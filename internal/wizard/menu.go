package wizard

import (
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
)

// Action is what a menu button does.
type Action string

const (
	ActionBack      Action = "back"
	ActionContinue  Action = "continue"
	ActionCancel    Action = "cancel"
	ActionRestart   Action = "restart"
	ActionDone      Action = "done"
	ActionSubmit    Action = "submit"
	ActionRemoveOne Action = "remove_last"

	ActionRoleClient     Action = "role_client"
	ActionRoleContractor Action = "role_contractor"
	ActionCategory       Action = "category"

	ActionClientSite     Action = "loc_client_site"
	ActionContractorSite Action = "loc_contractor_site"
	ActionRemote         Action = "loc_remote"

	ActionFiles    Action = "files"
	ActionDate     Action = "date"
	ActionDeadline Action = "deadline"
	ActionBudget   Action = "budget"
	ActionQuantity Action = "quantity"

	ActionToday    Action = "date_today"
	ActionTomorrow Action = "date_tomorrow"
	ActionDayAfter Action = "date_day_after"

	ActionShareLocation Action = "share_location"
	ActionShareContact  Action = "share_contact"
)

// Request marks buttons the transport renders as a location or contact request.
type Request int

const (
	RequestNone Request = iota
	RequestLocation
	RequestContact
)

// Choice is one button. Value carries the category id for ActionCategory.
type Choice struct {
	Action  Action
	Label   string
	Value   int64
	Request Request
}

// Menu is the keyboard offered in a state, row by row.
type Menu struct {
	Rows [][]Choice
}

// Choices flattens the rows.
func (m Menu) Choices() []Choice {
	var out []Choice
	for _, row := range m.Rows {
		out = append(out, row...)
	}
	return out
}

// Has reports whether the menu offers action a.
func (m Menu) Has(a Action) bool {
	for _, c := range m.Choices() {
		if c.Action == a {
			return true
		}
	}
	return false
}

// Match finds the button whose label equals text, ignoring case, digit
// forms, symbols and spacing. Request buttons never match text. Fixed
// buttons win over category buttons so a category cannot shadow navigation.
func (m Menu) Match(text string) (Choice, bool) {
	key := labelKey(text)
	if key == "" {
		return Choice{}, false
	}
	var category *Choice
	for _, c := range m.Choices() {
		if c.Request != RequestNone || labelKey(c.Label) != key {
			continue
		}
		if c.Action != ActionCategory {
			return c, true
		}
		if category == nil {
			category = &c
		}
	}
	if category != nil {
		return *category, true
	}
	return Choice{}, false
}

// labelKey drops emoji and punctuation so "back" matches "⬅️ Back".
func labelKey(s string) string {
	s = strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) {
			return r
		}
		return ' '
	}, NormalizeDigits(s))
	return cases.Fold().String(strings.Join(strings.Fields(s), " "))
}

// Button labels.
const (
	LabelBack     = "⬅️ Back"
	LabelContinue = "Continue ➡️"
	LabelCancel   = "❌ Cancel"
	LabelRestart  = "🔄 Restart"
	LabelDone     = "✅ Done"
	LabelSubmit   = "🚀 Submit project"
)

var hubFields = []Choice{
	{Action: ActionFiles, Label: "📎 Photos"},
	{Action: ActionDate, Label: "📅 Start date"},
	{Action: ActionDeadline, Label: "⏳ Deadline"},
	{Action: ActionBudget, Label: "💰 Budget"},
	{Action: ActionQuantity, Label: "📦 Quantity"},
}

// Render builds the menu for the session's current state. It never mutates s.
func Render(s *Session) Menu {
	var rows [][]Choice
	back := []Choice{{Action: ActionBack, Label: LabelBack}}

	switch s.State {
	case StateRoleSelect:
		rows = append(rows, []Choice{
			{Action: ActionRoleClient, Label: "🧑‍💼 I need a service"},
			{Action: ActionRoleContractor, Label: "🛠 I am a contractor"},
		})
		if s.Phone == "" {
			rows = append(rows, []Choice{{Action: ActionShareContact, Label: "📱 Share phone number", Request: RequestContact}})
		}
		return Menu{Rows: append(rows, []Choice{{Action: ActionCancel, Label: LabelCancel}})}

	case StateCategoryBrowse:
		var row []Choice
		level := s.levelCategories(s.currentParent())
		seen := make(map[string]int, len(level))
		for _, c := range level {
			seen[labelKey(c.Name)]++
		}
		for _, c := range level {
			label := c.Name
			if seen[labelKey(label)] > 1 {
				label = fmt.Sprintf("%s · %d", c.Name, c.ID)
			}
			row = append(row, Choice{Action: ActionCategory, Label: label, Value: c.ID})
			if len(row) == 2 {
				rows = append(rows, row)
				row = nil
			}
		}
		if len(row) > 0 {
			rows = append(rows, row)
		}
		rows = append(rows, back)

	case StateCategoryConfirm:
		rows = append(rows, []Choice{{Action: ActionContinue, Label: LabelContinue}}, back)

	case StateDescription:
		if s.Description != "" {
			rows = append(rows, []Choice{{Action: ActionContinue, Label: LabelContinue}})
		}
		rows = append(rows, back)

	case StateLocationKind:
		rows = append(rows,
			[]Choice{
				{Action: ActionClientSite, Label: "🏠 At my place"},
				{Action: ActionContractorSite, Label: "🏢 At the contractor's place"},
			},
			[]Choice{{Action: ActionRemote, Label: "🌐 Remote"}},
			back,
		)

	case StateLocationCoordinate:
		rows = append(rows,
			[]Choice{{Action: ActionShareLocation, Label: "📍 Send location", Request: RequestLocation}},
			[]Choice{{Action: ActionContinue, Label: LabelContinue}},
			back,
		)

	case StateDetailsHub:
		var row []Choice
		for _, c := range hubFields {
			if s.hasField(c.Action) {
				continue
			}
			row = append(row, c)
			if len(row) == 2 {
				rows = append(rows, row)
				row = nil
			}
		}
		if len(row) > 0 {
			rows = append(rows, row)
		}
		if s.CanSubmit() {
			rows = append(rows, []Choice{{Action: ActionSubmit, Label: LabelSubmit}})
		}
		rows = append(rows, back)

	case StateDetailsFiles:
		if len(s.Attachments) > 0 {
			rows = append(rows, []Choice{{Action: ActionRemoveOne, Label: "🗑 Remove last"}})
		}
		rows = append(rows, []Choice{{Action: ActionDone, Label: LabelDone}}, back)

	case StateDetailsDate:
		rows = append(rows, []Choice{
			{Action: ActionToday, Label: "Today"},
			{Action: ActionTomorrow, Label: "Tomorrow"},
			{Action: ActionDayAfter, Label: "Day after tomorrow"},
		}, back)

	case StateDetailsDeadline, StateDetailsBudget, StateDetailsQuantity:
		rows = append(rows, back)
	}

	rows = append(rows, []Choice{
		{Action: ActionCancel, Label: LabelCancel},
		{Action: ActionRestart, Label: LabelRestart},
	})
	return Menu{Rows: rows}
}
