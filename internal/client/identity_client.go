package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"

	"github.com/crou-platform/be-validations/internal/platform/errors"
)

// IdentityClient resolves role membership from the platform identity service
// over HTTP. Step assignment uses it to find the first available approver for
// a role; a failure leaves the step unassigned, it never blocks submission.
type IdentityClient struct {
	baseURL string
	http    *http.Client
}

// NewIdentityClient creates a client against the identity service base URL.
func NewIdentityClient(baseURL string, timeout time.Duration) *IdentityClient {
	if timeout == 0 {
		timeout = 5 * time.Second
	}
	return &IdentityClient{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
	}
}

type usersResponse struct {
	Users []struct {
		ID   uuid.UUID `json:"id"`
		Name string    `json:"name"`
	} `json:"users"`
}

// GetUsersWithRole returns user ids holding the given role within a tenant.
func (c *IdentityClient) GetUsersWithRole(ctx context.Context, tenantID uuid.UUID, role string) ([]uuid.UUID, error) {
	endpoint := fmt.Sprintf("%s/api/v1/users?tenant_id=%s&role=%s",
		c.baseURL, tenantID, url.QueryEscape(role))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to build identity request")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "identity service unreachable")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.New(errors.ErrCodeInternal,
			fmt.Sprintf("identity service returned %d", resp.StatusCode))
	}

	var body usersResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to decode identity response")
	}

	ids := make([]uuid.UUID, 0, len(body.Users))
	for _, u := range body.Users {
		ids = append(ids, u.ID)
	}
	return ids, nil
}

type rolesResponse struct {
	Roles []string `json:"roles"`
}

// GetUserRoles returns the roles a user holds within a tenant.
func (c *IdentityClient) GetUserRoles(ctx context.Context, tenantID, userID uuid.UUID) ([]string, error) {
	endpoint := fmt.Sprintf("%s/api/v1/users/%s/roles?tenant_id=%s", c.baseURL, userID, tenantID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to build identity request")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "identity service unreachable")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.New(errors.ErrCodeInternal,
			fmt.Sprintf("identity service returned %d", resp.StatusCode))
	}

	var body rolesResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to decode identity response")
	}
	return body.Roles, nil
}
