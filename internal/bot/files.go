package bot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync/atomic"

	tele "gopkg.in/telebot.v4"
)

var errBotNotStarted = errors.New("bot: telegram client not started")

// botFiles downloads attachments through the running bot. The bot only
// exists once the runtime started, so it is attached late.
type botFiles struct {
	bot atomic.Pointer[tele.Bot]
}

func (f *botFiles) attach(b *tele.Bot) {
	f.bot.Store(b)
}

// Open implements wizard.FileSource.
func (f *botFiles) Open(ctx context.Context, fileID string) (io.ReadCloser, error) {
	b := f.bot.Load()
	if b == nil {
		return nil, errBotNotStarted
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rc, err := b.File(&tele.File{FileID: fileID})
	if err != nil {
		return nil, fmt.Errorf("bot: download %s: %w", fileID, err)
	}
	return rc, nil
}
