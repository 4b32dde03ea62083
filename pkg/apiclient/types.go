package apiclient

import (
	"time"

	"github.com/aarondl/null/v8"
)

type User struct {
	ID         string `json:"id" validate:"required"`
	Email      string `json:"email" validate:"required,email"`
	Role       string `json:"role" validate:"required"`
	BusinessID string `json:"businessId"`
}

type AuthResult struct {
	AccessToken string `json:"access_token" validate:"required"`
	User        User   `json:"user"`
}

type BusinessProfile struct {
	ID         string      `json:"id" validate:"required"`
	Name       string      `json:"name"`
	Logo       null.String `json:"logo"`
	BrandColor null.String `json:"brandColor"`
	Currency   null.String `json:"currency"`
	Address    null.String `json:"address"`
	TaxID      null.String `json:"taxId"`
}

type CommentAuthor struct {
	ID    string `json:"id" validate:"required"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

type Comment struct {
	ID        string        `json:"id" validate:"required"`
	Content   string        `json:"content"`
	CreatedAt time.Time     `json:"createdAt"`
	ProjectID string        `json:"projectId,omitempty"`
	User      CommentAuthor `json:"user"`
}

func (c Comment) Key() string { return c.ID }

type Notification struct {
	ID        string      `json:"id" validate:"required"`
	UserID    string      `json:"userId" validate:"required"`
	Message   string      `json:"message"`
	Type      null.String `json:"type"`
	Read      bool        `json:"read"`
	CreatedAt time.Time   `json:"createdAt"`
}

func (n Notification) Key() string { return n.ID }

// ClientAccount is a customer of the business, optionally with portal access.
type ClientAccount struct {
	ID     string      `json:"id" validate:"required"`
	Name   string      `json:"name"`
	Email  null.String `json:"email"`
	Phone  null.String `json:"phone"`
	UserID null.String `json:"userId"`
}

func (c ClientAccount) Key() string { return c.ID }

type ProjectFile struct {
	ID   string `json:"id" validate:"required"`
	Name string `json:"name"`
	URL  string `json:"url"`
}

type Project struct {
	ID          string         `json:"id" validate:"required"`
	Title       string         `json:"title"`
	Description null.String    `json:"description"`
	Status      string         `json:"status"`
	Client      *ClientAccount `json:"client,omitempty"`
	Files       []ProjectFile  `json:"files,omitempty" validate:"dive"`
	CreatedAt   time.Time      `json:"createdAt"`
	UpdatedAt   time.Time      `json:"updatedAt"`
}

func (p Project) Key() string { return p.ID }

type Invoice struct {
	ID            string         `json:"id" validate:"required"`
	InvoiceNumber string         `json:"invoiceNumber"`
	Amount        float64        `json:"amount"`
	Total         float64        `json:"total"`
	Status        string         `json:"status"`
	Client        *ClientAccount `json:"client,omitempty"`
	CreatedAt     time.Time      `json:"createdAt"`
}

func (i Invoice) Key() string { return i.ID }

type ActivityUser struct {
	Email string `json:"email"`
}

type Activity struct {
	ID          string       `json:"id" validate:"required"`
	Type        string       `json:"type"`
	Description string       `json:"description"`
	CreatedAt   time.Time    `json:"createdAt"`
	User        ActivityUser `json:"user"`
}

func (a Activity) Key() string { return a.ID }

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type RegisterRequest struct {
	BusinessName string `json:"businessName"`
	Email        string `json:"email"`
	Password     string `json:"password"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

type CreateCommentRequest struct {
	ProjectID string `json:"projectId"`
	Content   string `json:"content"`
}
