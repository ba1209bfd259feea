package marketplace

import (
	"io"
	"time"
)

// Roles accepted by the users endpoint.
const (
	RoleClient     = "client"
	RoleContractor = "contractor"
)

// Service location kinds accepted by the projects endpoint.
const (
	ServiceClientSite     = "client_site"
	ServiceContractorSite = "contractor_site"
	ServiceRemote         = "remote"
)

// User is a marketplace account linked to a Telegram user.
type User struct {
	ID         int64  `json:"id"`
	TelegramID int64  `json:"telegram_id"`
	Name       string `json:"name"`
	Phone      string `json:"phone_number,omitempty"`
	Role       string `json:"role"`
}

// UserParams describes the account EnsureUser looks up or creates.
type UserParams struct {
	Phone      string
	TelegramID int64
	Name       string
	Role       string
}

// Category is one node of the category tree. Roots have a nil ParentID.
type Category struct {
	ID       int64   `json:"id"`
	Name     string  `json:"name"`
	ParentID *int64  `json:"parent"`
	Children []int64 `json:"children"`
}

// FileRef references a file stored by the marketplace.
type FileRef struct {
	ID  int64  `json:"id"`
	URL string `json:"file,omitempty"`
}

// Upload is a single file sent to the upload endpoint.
type Upload struct {
	Name      string
	Content   io.Reader
	ProjectID *int64
}

// ProjectPayload is the body of the create-project call.
type ProjectPayload struct {
	Title           string    `json:"title"`
	Description     string    `json:"description"`
	Category        int64     `json:"category"`
	ServiceLocation string    `json:"service_location"`
	Location        []float64 `json:"location,omitempty"`
	Budget          *int64    `json:"budget,omitempty"`
	StartDate       string    `json:"start_date,omitempty"`
	DeadlineDate    string    `json:"deadline_date,omitempty"`
	Files           []int64   `json:"files,omitempty"`
	Quantity        string    `json:"quantity,omitempty"`
	User            int64     `json:"user"`
}

// Project is a created marketplace project.
type Project struct {
	ID              int64     `json:"id"`
	Title           string    `json:"title"`
	Status          string    `json:"status"`
	ServiceLocation string    `json:"service_location"`
	Budget          *int64    `json:"budget"`
	DeadlineDate    *string   `json:"deadline_date"`
	CreatedAt       time.Time `json:"created_at"`
}

// ProjectFilter narrows ListProjects results.
type ProjectFilter struct {
	UserID   int64
	Status   string
	Ordering string
	Limit    int
	Offset   int
}
