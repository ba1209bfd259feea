package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/projectbot/core/logger"
	tg "github.com/m3rciful/projectbot/core/telegram"
	"github.com/m3rciful/projectbot/core/telegram/callbacks"
	"github.com/m3rciful/projectbot/core/telegram/commands"
	"github.com/m3rciful/projectbot/core/telegram/format"
	tghelpers "github.com/m3rciful/projectbot/core/telegram/helpers"
	"github.com/m3rciful/projectbot/core/telegram/keyboard"
	"github.com/m3rciful/projectbot/core/telegram/sender"
	"github.com/m3rciful/projectbot/internal/marketplace"
	"github.com/m3rciful/projectbot/internal/wizard"
)

const (
	projectsPageSize = 5
	cbProjectsMore   = "projects_more"
)

const helpText = `I help you post a project on the marketplace.

/new – start a new project
/start – continue where you left off
/restart – clear your answers and start over
/cancel – drop the current project
/projects – list your recent projects

At any step you can also type Back, Cancel or Restart.`

// ProjectLister is the slice of the marketplace API used by /projects.
type ProjectLister interface {
	ListProjects(ctx context.Context, f marketplace.ProjectFilter) ([]marketplace.Project, error)
}

// SessionCounter reports live conversations for /stats.
type SessionCounter interface {
	IDs(ctx context.Context) ([]int64, error)
}

// Commands implements the slash commands around the conversation.
type Commands struct {
	conv     *Conversation
	projects ProjectLister
	counter  SessionCounter
	stats    func() sender.Stats
}

// Register adds every command and callback to reg.
func (cm *Commands) Register(reg *tg.Registry) error {
	cmds := map[string]commands.Command{
		"/start":    {Handler: cm.conv.Resume, Description: "Continue or start a project"},
		"/new":      {Handler: cm.conv.Start, Description: "Start a new project", Aliases: []string{"newproject"}},
		"/restart":  {Handler: cm.conv.Restart, Description: "Clear answers and start over"},
		"/cancel":   {Handler: cm.conv.Cancel, Description: "Drop the current project"},
		"/help":     {Handler: cm.help, Description: "How this bot works"},
		"/projects": {Handler: cm.listProjects, Description: "Your recent projects", Aliases: []string{"myprojects"}},
		"/stats":    {Handler: cm.showStats, Description: "Bot statistics", AdminOnly: true},
	}
	var errs []error
	for name, cmd := range cmds {
		errs = append(errs, reg.RegisterCommand(name, cmd))
	}
	errs = append(errs, reg.RegisterCallback(cbProjectsMore, cm.moreProjects))
	return errors.Join(errs...)
}

func (cm *Commands) help(c tele.Context) error {
	return tghelpers.SendText(c, helpText, nil)
}

func (cm *Commands) listProjects(c tele.Context) error {
	return cm.sendProjects(c, 0, false)
}

func (cm *Commands) moreProjects(c tele.Context) error {
	offset, err := callbacks.PayloadInt(c)
	if err != nil || offset < 0 {
		return c.Respond(&tele.CallbackResponse{Text: "This list is out of date."})
	}
	return cm.sendProjects(c, offset, true)
}

// sendProjects shows one page of the user's projects, newest first.
func (cm *Commands) sendProjects(c tele.Context, offset int, edit bool) error {
	ctx := tghelpers.BuildContext(c)
	account, err := cm.account(ctx, tghelpers.ChatID(c))
	if err != nil {
		return err
	}
	if account == 0 {
		return tghelpers.SendText(c, "I don't know your marketplace account yet. Start a project with /new first.", nil)
	}

	// One extra row tells whether a next page exists.
	list, err := cm.projects.ListProjects(ctx, marketplace.ProjectFilter{
		UserID:   account,
		Ordering: "-created_at",
		Limit:    projectsPageSize + 1,
		Offset:   offset,
	})
	if err != nil {
		logger.Warn(ctx, "marketplace", "list_projects",
			slog.String("status", "fail"),
			slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
		)
		return tghelpers.SendText(c, "⚠️ The service is unavailable right now. Please try again later.", nil)
	}
	if len(list) == 0 {
		if offset > 0 {
			return tghelpers.SendText(c, "No more projects.", nil)
		}
		return tghelpers.SendText(c, "You have no projects yet. Start one with /new.", nil)
	}

	hasMore := len(list) > projectsPageSize
	if hasMore {
		list = list[:projectsPageSize]
	}
	text := renderProjects(list, offset)
	var mk *tele.ReplyMarkup
	if hasMore {
		if data, ok := callbacks.Encode(cbProjectsMore, strconv.Itoa(offset+projectsPageSize)); ok {
			mk = keyboard.InlineButtonsRows([]keyboard.InlineBtn{{Text: "More ⏬", Unique: cbProjectsMore, Data: data}})
		}
	}
	if edit {
		return tghelpers.EditOrSendMDV2(c, text, mk)
	}
	return tghelpers.SendMDV2(c, text, mk)
}

// account resolves the marketplace user of the chat from its session.
func (cm *Commands) account(ctx context.Context, chatID int64) (int64, error) {
	s, err := cm.conv.load(ctx, chatID)
	if err != nil || s == nil {
		return 0, err
	}
	if s.UserID != 0 {
		return s.UserID, nil
	}
	return s.Account, nil
}

// renderProjects formats a page as MarkdownV2.
func renderProjects(list []marketplace.Project, offset int) string {
	var b strings.Builder
	b.WriteString("*Your projects*\n")
	for i, p := range list {
		title := strings.TrimSpace(p.Title)
		if title == "" {
			title = "untitled"
		}
		fmt.Fprintf(&b, "\n%d\\. *%s* \\(\\#%d\\)", offset+i+1, format.MDV2(title), p.ID)
		var meta []string
		if p.Status != "" {
			meta = append(meta, p.Status)
		}
		if p.Budget != nil {
			meta = append(meta, "budget "+wizard.FormatAmount(*p.Budget))
		}
		if d := format.Deref(p.DeadlineDate, ""); d != "" {
			meta = append(meta, "deadline "+d)
		}
		if !p.CreatedAt.IsZero() {
			meta = append(meta, "created "+p.CreatedAt.Format("2006-01-02"))
		}
		if len(meta) > 0 {
			b.WriteString("\n   " + format.MDV2(strings.Join(meta, " · ")))
		}
	}
	return b.String()
}

func (cm *Commands) showStats(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	active := "unknown"
	if cm.counter != nil {
		if ids, err := cm.counter.IDs(ctx); err == nil {
			active = strconv.Itoa(len(ids))
		}
	}
	var st sender.Stats
	if cm.stats != nil {
		st = cm.stats()
	}
	text := fmt.Sprintf("Active sessions: %s\nSent: %d\nRetried: %d\nFailed: %d\nQueued: %d",
		active, st.Sent, st.Retried, st.Failed, st.Queued)
	return tghelpers.SendText(c, text, nil)
}
