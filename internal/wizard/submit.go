package wizard

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/m3rciful/projectbot/core/logger"
	"github.com/m3rciful/projectbot/core/metrics"
	"github.com/m3rciful/projectbot/internal/marketplace"
)

// Marketplace is the part of the marketplace API the wizard calls.
type Marketplace interface {
	EnsureUser(ctx context.Context, p marketplace.UserParams) (marketplace.User, error)
	Categories(ctx context.Context) (map[int64]marketplace.Category, error)
	UploadFile(ctx context.Context, u marketplace.Upload) (marketplace.FileRef, error)
	CreateProject(ctx context.Context, p marketplace.ProjectPayload) (marketplace.Project, error)
}

// FileSource opens an attachment stored by the chat transport.
type FileSource interface {
	Open(ctx context.Context, fileID string) (io.ReadCloser, error)
}

// ErrFileTooLarge fails an upload whose content exceeds Config.MaxUploadBytes.
var ErrFileTooLarge = errors.New("wizard: file too large")

// UploadResult is the outcome of uploading one attachment.
type UploadResult struct {
	Name string
	Ref  *marketplace.FileRef
	Err  error
}

// Assemble builds the create-project payload. Only attachments that were
// uploaded are referenced. The result depends on s and now alone.
func Assemble(s *Session, now time.Time) marketplace.ProjectPayload {
	p := marketplace.ProjectPayload{
		Title:           GenerateTitle(s),
		Description:     s.Description,
		Category:        s.CategoryID,
		ServiceLocation: string(s.LocationKind),
		StartDate:       s.NeedDate,
		Quantity:        s.QuantityLabel,
		User:            s.UserID,
	}
	if s.Coordinate != nil && s.LocationKind.NeedsCoordinate() {
		p.Location = []float64{s.Coordinate.Lat, s.Coordinate.Lng}
	}
	if s.Budget != nil {
		v := *s.Budget
		p.Budget = &v
	}
	if s.DeadlineDays > 0 {
		p.DeadlineDate = DeadlineDate(now, s.DeadlineDays)
	}
	for _, a := range s.Attachments {
		if a.Uploaded != nil {
			p.Files = append(p.Files, a.Uploaded.ID)
		}
	}
	return p
}

// uploadAttachments uploads every attachment that has no stored reference yet.
// Failures are kept per item and never stop the other uploads.
func (m *Machine) uploadAttachments(ctx context.Context, s *Session) []UploadResult {
	results := make([]UploadResult, len(s.Attachments))
	var g errgroup.Group
	g.SetLimit(m.cfg.UploadConcurrency)
	for i, a := range s.Attachments {
		results[i].Name = attachmentName(i, a)
		if a.Uploaded != nil {
			results[i].Ref = a.Uploaded
			continue
		}
		g.Go(func() error {
			ref, err := m.uploadOne(ctx, a, results[i].Name)
			metrics.RecordUpload(err == nil)
			if err != nil {
				results[i].Err = err
				logger.Warn(ctx, "wizard", "attachment.upload",
					slog.String("status", "fail"),
					slog.String("file", results[i].Name),
					slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
				)
				return nil
			}
			results[i].Ref = &ref
			return nil
		})
	}
	_ = g.Wait()

	for i := range results {
		if results[i].Ref != nil {
			s.Attachments[i].Uploaded = results[i].Ref
		}
	}
	return results
}

func (m *Machine) uploadOne(ctx context.Context, a Attachment, name string) (marketplace.FileRef, error) {
	if m.files == nil {
		return marketplace.FileRef{}, errors.New("wizard: no file source configured")
	}
	rc, err := m.files.Open(ctx, a.FileID)
	if err != nil {
		return marketplace.FileRef{}, fmt.Errorf("wizard: open %s: %w", name, err)
	}
	defer rc.Close()

	var body io.Reader = rc
	if limit := m.cfg.MaxUploadBytes; limit > 0 {
		// The transport may not report a size, so the limit is enforced on read.
		data, err := io.ReadAll(io.LimitReader(rc, limit+1))
		if err != nil {
			return marketplace.FileRef{}, fmt.Errorf("wizard: read %s: %w", name, err)
		}
		if int64(len(data)) > limit {
			return marketplace.FileRef{}, fmt.Errorf("%w: %s", ErrFileTooLarge, name)
		}
		body = bytes.NewReader(data)
	}
	return m.market.UploadFile(ctx, marketplace.Upload{Name: name, Content: body})
}

func attachmentName(i int, a Attachment) string {
	if a.Name != "" {
		return a.Name
	}
	return fmt.Sprintf("photo-%d.jpg", i+1)
}

// uploadReport renders one line per attachment.
func uploadReport(results []UploadResult) []string {
	lines := make([]string, 0, len(results))
	for _, r := range results {
		if r.Err != nil {
			lines = append(lines, fmt.Sprintf(msgUploadFailed, r.Name, uploadReason(r.Err)))
			continue
		}
		lines = append(lines, fmt.Sprintf(msgUploadSucceeded, r.Name))
	}
	return lines
}

func uploadReason(err error) string {
	switch {
	case errors.Is(err, marketplace.ErrUnavailable):
		return "service unavailable"
	case errors.Is(err, ErrFileTooLarge):
		return "file too large"
	case errors.As(err, new(*marketplace.ValidationError)):
		return fieldMessages(err)
	}
	return "could not read the file"
}
