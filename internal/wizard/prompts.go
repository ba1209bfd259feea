package wizard

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/m3rciful/projectbot/internal/marketplace"
)

var amountPrinter = message.NewPrinter(language.English)

// FormatAmount groups thousands: 1500000 -> "1,500,000".
func FormatAmount(v int64) string {
	return amountPrinter.Sprintf("%d", v)
}

var prompts = map[State]string{
	StateRoleSelect:         "👋 What would you like to do?",
	StateCategoryBrowse:     "📂 Choose a category.",
	StateCategoryConfirm:    "Category: %s. Press Continue to describe the job.",
	StateDescription:        "✍️ Describe what needs to be done.",
	StateLocationKind:       "📍 Where should the work happen?",
	StateLocationCoordinate: "Send the location with the button below, then press Continue.",
	StateDetailsHub:         "Add optional details or submit the project.",
	StateDetailsFiles:       "📎 Send up to %d photos, then press Done.",
	StateDetailsDate:        "📅 When should the work start? Pick a day or type a date as YYYY/MM/DD (Jalali).",
	StateDetailsDeadline:    "⏳ How many days should the job take?",
	StateDetailsBudget:      "💰 What is your budget?",
	StateDetailsQuantity:    "📦 Quantity and unit (for example: 3 rooms).",
	StateSubmit:             "Submitting…",
}

// Prompt is the text shown when the session enters or stays in its state.
func Prompt(s *Session) string {
	p := prompts[s.State]
	switch s.State {
	case StateCategoryConfirm:
		return fmt.Sprintf(p, s.categoryName(s.CategoryID))
	case StateDetailsFiles:
		return fmt.Sprintf(p, MaxAttachments)
	case StateDetailsHub:
		return Summary(s) + "\n\n" + p
	}
	return p
}

// Summary lists what has been captured so far.
func Summary(s *Session) string {
	var b strings.Builder
	b.WriteString("📝 Your project")
	line := func(label, value string) {
		if value != "" {
			fmt.Fprintf(&b, "\n%s: %s", label, value)
		}
	}
	line("Category", s.categoryName(s.CategoryID))
	line("Description", s.Description)
	line("Location", locationLabel(s.LocationKind))
	if s.Coordinate != nil {
		line("Point", fmt.Sprintf("%.5f, %.5f", s.Coordinate.Lat, s.Coordinate.Lng))
	}
	if n := len(s.Attachments); n > 0 {
		line("Photos", fmt.Sprintf("%d", n))
	}
	line("Start date", s.NeedDate)
	if s.DeadlineDays > 0 {
		line("Deadline", fmt.Sprintf("%d days", s.DeadlineDays))
	}
	if s.Budget != nil {
		line("Budget", FormatAmount(*s.Budget))
	}
	line("Quantity", s.QuantityLabel)
	return b.String()
}

func locationLabel(k LocationKind) string {
	switch k {
	case LocationClientSite:
		return "at the client's place"
	case LocationContractorSite:
		return "at the contractor's place"
	case LocationRemote:
		return "remote"
	}
	return ""
}

// Messages not tied to a single state.
const (
	msgPickFromMenu     = "Please use the buttons below."
	msgPickCategory     = "Please choose a category from the list."
	msgNeedLocation     = "Please send the location with the 📍 button first."
	msgLocationOnly     = "Only a shared location is accepted here."
	msgNeedDescription  = "Please type a description first."
	msgMissingFields    = "The project needs a description and a location before it can be submitted."
	msgImagesOnly       = "Only images can be attached."
	msgAttachmentLimit  = "You can attach at most %d photos. Remove one or press Done."
	msgAttachmentAdded  = "Photo added (%d/%d)."
	msgAttachmentGone   = "Last photo removed."
	msgFileTooLarge     = "This file is too large."
	msgLocationSaved    = "Location saved. Press Continue."
	msgPhoneSaved       = "Thanks, your phone number is saved."
	msgNeedPhone        = "Please share your phone number with the 📱 button to register."
	msgUnavailable      = "⚠️ The service is unavailable right now. Your answers are kept, please try again."
	msgNoCategories     = "⚠️ No categories are available right now. Please try again later."
	msgBudgetRejected   = "The budget was rejected: %s Please enter a smaller amount."
	msgProjectRejected  = "The project was rejected: %s"
	msgSubmitted        = "✅ Project #%d \"%s\" was created."
	msgCancelled        = "Cancelled. Send /new to start again."
	msgRestarted        = "Starting over."
	msgUploadFailed     = "⚠️ Photo %s was not uploaded: %s"
	msgUploadSucceeded  = "📎 Photo %s uploaded."
	msgRegistrationLost = "Please choose your role again to continue."
)

// hint turns a validation error into a correction message.
func hint(err error) string {
	switch {
	case errors.Is(err, ErrEmptyText):
		return "Please type some text."
	case errors.Is(err, ErrDateFormat):
		return "Please type the date as YYYY/MM/DD, for example 1403/07/25."
	case errors.Is(err, ErrDateInvalid):
		return "That date does not exist. Check the month and the day."
	case errors.Is(err, ErrDatePast):
		return "The date cannot be in the past."
	case errors.Is(err, ErrNoDigits):
		return "Please type a number."
	case errors.Is(err, ErrNotPositive):
		return "The number must be greater than zero."
	case errors.Is(err, ErrTooLarge):
		return "That number is too large."
	case errors.Is(err, ErrCoordinateRange):
		return "That location is not valid."
	}
	return msgPickFromMenu
}

// fieldMessages joins the API messages for the given fields, or for all
// fields in name order when none are given.
func fieldMessages(err error, fields ...string) string {
	var verr *marketplace.ValidationError
	if !errors.As(err, &verr) {
		return ""
	}
	if len(fields) == 0 {
		for k := range verr.Fields {
			fields = append(fields, k)
		}
		sort.Strings(fields)
	}
	var parts []string
	for _, f := range fields {
		parts = append(parts, verr.Fields[f]...)
	}
	return strings.Join(parts, " ")
}
