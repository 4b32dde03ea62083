package apiclient

import (
	"context"
	"net/http"
	"net/url"
)

func (c *Client) Login(ctx context.Context, email, password string) (AuthResult, error) {
	return send[AuthResult](ctx, c, http.MethodPost, "auth", "/auth/login", LoginRequest{Email: email, Password: password})
}

func (c *Client) Register(ctx context.Context, in RegisterRequest) (AuthResult, error) {
	return send[AuthResult](ctx, c, http.MethodPost, "auth", "/auth/register", in)
}

func (c *Client) ChangePassword(ctx context.Context, currentPassword, newPassword string) error {
	_, err := c.do(ctx, http.MethodPatch, "/auth/change-password", ChangePasswordRequest{
		CurrentPassword: currentPassword,
		NewPassword:     newPassword,
	})
	return err
}

func (c *Client) BusinessProfile(ctx context.Context) (BusinessProfile, error) {
	return getOne[BusinessProfile](ctx, c, "business profile", "/business/profile")
}

func (c *Client) ListComments(ctx context.Context, projectID string) ([]Comment, error) {
	return getList[Comment](ctx, c, "comment", "/comments/project/"+url.PathEscape(projectID))
}

func (c *Client) CreateComment(ctx context.Context, projectID, content string) (Comment, error) {
	return send[Comment](ctx, c, http.MethodPost, "comment", "/comments", CreateCommentRequest{ProjectID: projectID, Content: content})
}

func (c *Client) ListNotifications(ctx context.Context) ([]Notification, error) {
	return getList[Notification](ctx, c, "notification", "/notifications")
}

func (c *Client) MarkNotificationRead(ctx context.Context, id string) error {
	_, err := c.do(ctx, http.MethodPatch, "/notifications/"+url.PathEscape(id)+"/read", struct{}{})
	return err
}

func (c *Client) MarkAllNotificationsRead(ctx context.Context) error {
	_, err := c.do(ctx, http.MethodPost, "/notifications/read-all", struct{}{})
	return err
}

func (c *Client) ListProjects(ctx context.Context) ([]Project, error) {
	return getList[Project](ctx, c, "project", "/projects")
}

func (c *Client) GetProject(ctx context.Context, id string) (Project, error) {
	return getOne[Project](ctx, c, "project", "/projects/"+url.PathEscape(id))
}

func (c *Client) ListInvoices(ctx context.Context) ([]Invoice, error) {
	return getList[Invoice](ctx, c, "invoice", "/invoices")
}

func (c *Client) ListClients(ctx context.Context) ([]ClientAccount, error) {
	return getList[ClientAccount](ctx, c, "client", "/clients")
}

func (c *Client) ListPortalProjects(ctx context.Context) ([]Project, error) {
	return getList[Project](ctx, c, "project", "/portal/projects")
}

func (c *Client) ListPortalInvoices(ctx context.Context) ([]Invoice, error) {
	return getList[Invoice](ctx, c, "invoice", "/portal/invoices")
}

func (c *Client) ProjectActivities(ctx context.Context, projectID string) ([]Activity, error) {
	return getList[Activity](ctx, c, "activity", "/activities/project/"+url.PathEscape(projectID))
}

func (c *Client) BusinessActivities(ctx context.Context) ([]Activity, error) {
	return getList[Activity](ctx, c, "activity", "/activities/business")
}
