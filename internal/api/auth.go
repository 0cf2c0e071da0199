package api

import (
	"context"
	"net/http"

	"github.com/tidwall/gjson"
)

func (c *Client) Login(ctx context.Context, req LoginRequest) (*AuthResponse, error) {
	body, err := c.do(ctx, http.MethodPost, "/auth/login", req, nil)
	if err != nil {
		return nil, err
	}
	return c.decodeAuth(body)
}

func (c *Client) Register(ctx context.Context, req RegisterRequest) (*AuthResponse, error) {
	body, err := c.do(ctx, http.MethodPost, "/auth/register", req, nil)
	if err != nil {
		return nil, err
	}
	return c.decodeAuth(body)
}

// Refresh renews token. The token is sent explicitly because the session stops
// handing out headers once it is inside the refresh margin.
func (c *Client) Refresh(ctx context.Context, token string) (*AuthResponse, error) {
	body, err := c.do(ctx, http.MethodPost, "/auth/refresh", nil, map[string]string{
		"Authorization": "Bearer " + token,
	})
	if err != nil {
		return nil, err
	}
	return c.decodeAuth(body)
}

func (c *Client) Logout(ctx context.Context) error {
	_, err := c.do(ctx, http.MethodPost, "/auth/logout", nil, nil)
	return err
}

func (c *Client) Profile(ctx context.Context) (*User, error) {
	body, err := c.do(ctx, http.MethodGet, "/auth/profile", nil, nil)
	if err != nil {
		return nil, err
	}
	r, err := parseObject("/auth/profile", body)
	if err != nil {
		return nil, err
	}
	if u := r.Get("user"); u.IsObject() {
		r = u
	}
	user := decodeUser(r)
	return &user, nil
}

func (c *Client) ChangePassword(ctx context.Context, req ChangePasswordRequest) error {
	return c.postJSON(ctx, "/auth/change-password", req, nil)
}

func (c *Client) Setup2FA(ctx context.Context) (*TwoFASetup, error) {
	var out TwoFASetup
	if err := c.postJSON(ctx, "/users/security/2fa/setup", struct{}{}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Enable2FA(ctx context.Context, code string) error {
	return c.postJSON(ctx, "/users/security/2fa/enable", map[string]string{"code": code}, nil)
}

// Check2FA asks whether these credentials need a second factor before login.
func (c *Client) Check2FA(ctx context.Context, email, password string) (bool, error) {
	body, err := c.do(ctx, http.MethodPost, "/users/check-2fa", map[string]string{
		"email":    email,
		"password": password,
	}, nil)
	if err != nil {
		return false, err
	}
	r := gjson.ParseBytes(body)
	for _, p := range []string{"requires_2fa", "requires_two_factor", "two_factor_enabled"} {
		if v := r.Get(p); v.Exists() {
			return v.Bool(), nil
		}
	}
	return false, nil
}
