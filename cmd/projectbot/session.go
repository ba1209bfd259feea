package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	coredatabase "github.com/m3rciful/projectbot/core/database"
	"github.com/m3rciful/projectbot/core/telegram/state"
	"github.com/m3rciful/projectbot/internal/bot"
	"github.com/m3rciful/projectbot/internal/wizard"
)

func newSessionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "List, inspect and remove stored conversations",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "ls",
			Short: "List chats with a conversation in progress",
			Args:  cobra.NoArgs,
			RunE: withSessions(func(ctx context.Context, out io.Writer, mgr *state.Manager[wizard.Session], _ []string) error {
				ids, err := mgr.IDs(ctx)
				if err != nil {
					return err
				}
				if len(ids) == 0 {
					fmt.Fprintln(out, "No active sessions.")
					return nil
				}
				tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "CHAT\tSTATE\tUPDATED")
				for _, id := range ids {
					s, err := mgr.Load(ctx, id)
					if err != nil {
						fmt.Fprintf(tw, "%d\t<%v>\t\n", id, err)
						continue
					}
					fmt.Fprintf(tw, "%d\t%s\t%s\n", id, s.State, s.UpdatedAt.Format("2006-01-02 15:04"))
				}
				return tw.Flush()
			}),
		},
		&cobra.Command{
			Use:   "inspect <chat-id>",
			Short: "Print one conversation as JSON",
			Args:  cobra.ExactArgs(1),
			RunE: withSessions(func(ctx context.Context, out io.Writer, mgr *state.Manager[wizard.Session], args []string) error {
				id, err := parseChatID(args[0])
				if err != nil {
					return err
				}
				s, err := mgr.Load(ctx, id)
				if err != nil {
					return err
				}
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(s)
			}),
		},
		&cobra.Command{
			Use:   "rm <chat-id>...",
			Short: "Remove conversations",
			Args:  cobra.MinimumNArgs(1),
			RunE: withSessions(func(ctx context.Context, out io.Writer, mgr *state.Manager[wizard.Session], args []string) error {
				var errs []error
				for _, raw := range args {
					id, err := parseChatID(raw)
					if err == nil {
						err = mgr.Delete(ctx, id)
					}
					if err != nil {
						errs = append(errs, fmt.Errorf("%s: %w", raw, err))
						continue
					}
					fmt.Fprintf(out, "Removed %d\n", id)
				}
				return errors.Join(errs...)
			}),
		},
	)
	return cmd
}

type sessionFunc func(ctx context.Context, out io.Writer, mgr *state.Manager[wizard.Session], args []string) error

// withSessions opens the configured session store around fn.
func withSessions(fn sessionFunc) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		cfg, done, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		defer done()

		ctx := cmd.Context()
		var closers []io.Closer
		defer func() {
			for _, c := range closers {
				_ = c.Close()
			}
		}()

		var store state.Store
		if cfg.NeedsDatabase() {
			db, err := coredatabase.Connect(ctx, cfg.Database)
			if err != nil {
				return err
			}
			closers = append(closers, db)
			store, err = bot.NewStore(cfg.Session, db)
			if err != nil {
				return err
			}
		} else {
			if store, err = bot.NewStore(cfg.Session, nil); err != nil {
				return err
			}
		}
		if c, ok := store.(io.Closer); ok {
			closers = append(closers, c)
		}
		return fn(ctx, cmd.OutOrStdout(), state.NewManager[wizard.Session](store, cfg.Session.TTL), args)
	}
}

func parseChatID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid chat id %q", raw)
	}
	return id, nil
}
