package wizard

import (
	"sort"
	"strings"
	"time"

	"github.com/m3rciful/projectbot/internal/marketplace"
)

// MaxAttachments bounds the attachment list of a session.
const MaxAttachments = 5

// Role is the side of the marketplace the user acts as.
type Role string

const (
	RoleClient     Role = marketplace.RoleClient
	RoleContractor Role = marketplace.RoleContractor
)

// LocationKind says where the work happens.
type LocationKind string

const (
	LocationClientSite     LocationKind = marketplace.ServiceClientSite
	LocationContractorSite LocationKind = marketplace.ServiceContractorSite
	LocationRemote         LocationKind = marketplace.ServiceRemote
)

// NeedsCoordinate reports whether the kind requires a captured point.
// Both site kinds do; only remote work goes without one.
func (k LocationKind) NeedsCoordinate() bool {
	return k == LocationClientSite || k == LocationContractorSite
}

// Coordinate is a WGS84 point shared by the user.
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Attachment is an image the user attached. Uploaded is set once the file was
// stored by the marketplace so a retried submit does not send it twice.
type Attachment struct {
	FileID   string               `json:"file_id"`
	Name     string               `json:"name,omitempty"`
	MIME     string               `json:"mime,omitempty"`
	Size     int64                `json:"size,omitempty"`
	Uploaded *marketplace.FileRef `json:"uploaded,omitempty"`
}

// Session is the per-conversation state of the project wizard.
type Session struct {
	State State `json:"state"`

	TelegramID int64  `json:"telegram_id"`
	Phone      string `json:"phone,omitempty"`
	UserID     int64  `json:"user_id,omitempty"`
	// Account is the last marketplace user resolved for this chat. Unlike
	// UserID it survives Reset so finished projects can still be listed.
	Account int64 `json:"account,omitempty"`

	Role         Role                           `json:"role,omitempty"`
	Catalog      map[int64]marketplace.Category `json:"catalog,omitempty"`
	CategoryID   int64                          `json:"category_id,omitempty"`
	CategoryPath []int64                        `json:"category_path,omitempty"`

	Description  string       `json:"description,omitempty"`
	LocationKind LocationKind `json:"location_kind,omitempty"`
	Coordinate   *Coordinate  `json:"coordinate,omitempty"`

	Attachments   []Attachment `json:"attachments,omitempty"`
	NeedDate      string       `json:"need_date,omitempty"`
	DeadlineDays  int          `json:"deadline_days,omitempty"`
	Budget        *int64       `json:"budget,omitempty"`
	QuantityLabel string       `json:"quantity_label,omitempty"`

	StartedAt time.Time `json:"started_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewSession returns a session at the role menu for the given Telegram user.
func NewSession(telegramID int64, now time.Time) *Session {
	return &Session{
		State:      StateRoleSelect,
		TelegramID: telegramID,
		StartedAt:  now,
		UpdatedAt:  now,
	}
}

// Reset clears every wizard field and returns to the role menu. The Telegram
// identity, the shared phone and the account survive since they belong to the
// user, not to one project attempt.
func (s *Session) Reset(now time.Time) {
	*s = Session{
		State:      StateRoleSelect,
		TelegramID: s.TelegramID,
		Phone:      s.Phone,
		Account:    s.Account,
		StartedAt:  now,
		UpdatedAt:  now,
	}
}

// hasField reports whether the optional field behind a hub button is set.
func (s *Session) hasField(a Action) bool {
	switch a {
	case ActionFiles:
		return len(s.Attachments) > 0
	case ActionDate:
		return s.NeedDate != ""
	case ActionDeadline:
		return s.DeadlineDays > 0
	case ActionBudget:
		return s.Budget != nil
	case ActionQuantity:
		return s.QuantityLabel != ""
	}
	return false
}

// CanSubmit is the hub gate: a description and either a captured point or a
// location kind that does not need one.
func (s *Session) CanSubmit() bool {
	if strings.TrimSpace(s.Description) == "" || s.CategoryID == 0 || s.LocationKind == "" {
		return false
	}
	return s.Coordinate != nil || !s.LocationKind.NeedsCoordinate()
}

// setLocationKind records the kind and drops a coordinate that no longer applies.
func (s *Session) setLocationKind(k LocationKind) {
	if s.LocationKind != k || !k.NeedsCoordinate() {
		s.Coordinate = nil
	}
	s.LocationKind = k
}

// currentParent is the category whose children are being browsed, 0 for the roots.
func (s *Session) currentParent() int64 {
	if n := len(s.CategoryPath); n > 0 {
		return s.CategoryPath[n-1]
	}
	return 0
}

// levelCategories lists the categories under parent (0 for roots) sorted by name.
func (s *Session) levelCategories(parent int64) []marketplace.Category {
	var out []marketplace.Category
	if parent != 0 {
		p, ok := s.Catalog[parent]
		if !ok {
			return nil
		}
		for _, id := range p.Children {
			if c, ok := s.Catalog[id]; ok {
				out = append(out, c)
			}
		}
	} else {
		for _, c := range s.Catalog {
			if c.ParentID == nil {
				out = append(out, c)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name == out[j].Name {
			return out[i].ID < out[j].ID
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// ancestors returns the path from the root down to parent of id, excluding id.
func (s *Session) ancestors(id int64) []int64 {
	var rev []int64
	seen := map[int64]bool{id: true}
	cur, ok := s.Catalog[id]
	for ok && cur.ParentID != nil {
		pid := *cur.ParentID
		if seen[pid] {
			break
		}
		seen[pid] = true
		rev = append(rev, pid)
		cur, ok = s.Catalog[pid]
	}
	out := make([]int64, len(rev))
	for i, v := range rev {
		out[len(rev)-1-i] = v
	}
	return out
}

// categoryName returns the name of id or an empty string.
func (s *Session) categoryName(id int64) string {
	return s.Catalog[id].Name
}

func isLeaf(c marketplace.Category) bool {
	return len(c.Children) == 0
}
