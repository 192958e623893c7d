package baas

import (
	"context"
	"net/http"

	"github.com/Clark-Hu/lopperater/internal/domain"
)

// CurrentUser returns the account behind the session token.
func (c *Client) CurrentUser(ctx context.Context) (domain.User, error) {
	var out accountResponse
	if err := c.do(ctx, request{op: "get account", method: http.MethodGet, path: "/account"}, &out); err != nil {
		return domain.User{}, err
	}
	user := domain.User{ID: *out.ID, Name: *out.Name, Email: *out.Email}
	for _, label := range out.Labels {
		switch r := domain.Role(label); r {
		case domain.RoleBuyer, domain.RoleSeller, domain.RoleOrganizer:
			user.Roles = append(user.Roles, r)
		}
	}
	return user, nil
}
