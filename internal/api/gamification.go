package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/tidwall/gjson"
)

func (c *Client) GamificationProfile(ctx context.Context) (*GamificationProfile, error) {
	body, err := c.do(ctx, http.MethodGet, "/gamification/profile", nil, nil)
	if err != nil {
		return nil, err
	}
	r, err := parseObject("/gamification/profile", body)
	if err != nil {
		return nil, err
	}
	out := &GamificationProfile{
		ID:           firstString(r, "id", "_id"),
		UserID:       firstString(r, "user_id", "userId"),
		TotalXP:      int(r.Get("total_xp").Int()),
		CurrentLevel: int(r.Get("current_level").Int()),
	}
	if t, ok := parseTimestamp(r.Get("last_updated")); ok {
		out.LastUpdated = t
	}
	return out, nil
}

func (c *Client) GamificationStats(ctx context.Context) (*GamificationStats, error) {
	var out GamificationStats
	if err := c.getJSON(ctx, "/gamification/stats", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Achievements accepts either a bare array or {"achievements": [...]}.
func (c *Client) Achievements(ctx context.Context) ([]Achievement, error) {
	body, err := c.do(ctx, http.MethodGet, "/gamification/achievements", nil, nil)
	if err != nil {
		return nil, err
	}
	r := gjson.ParseBytes(body)
	if list := r.Get("achievements"); list.IsArray() {
		r = list
	}
	if !r.IsArray() {
		return nil, fmt.Errorf("decode /gamification/achievements: expected a list")
	}
	var out []Achievement
	if err := json.Unmarshal([]byte(r.Raw), &out); err != nil {
		return nil, fmt.Errorf("decode /gamification/achievements: %w", err)
	}
	return out, nil
}

func (c *Client) Features(ctx context.Context) (*FeaturesResponse, error) {
	var out FeaturesResponse
	if err := c.getJSON(ctx, "/gamification/features", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// RecordAction posts an action. The caller's identity travels only in the
// auth token.
func (c *Client) RecordAction(ctx context.Context, req ActionRequest) (*ActionResponse, error) {
	body, err := c.do(ctx, http.MethodPost, "/gamification/actions", req, nil)
	if err != nil {
		return nil, err
	}
	return decodeActionResponse(body)
}

func (c *Client) RuntimeConfig(ctx context.Context) (*RuntimeConfig, error) {
	var out RuntimeConfig
	if err := c.getJSON(ctx, "/config", &out); err != nil {
		return nil, err
	}
	return &out, nil
}
