package remote

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"livecheck/internal/auth"
	"livecheck/internal/config"
	"livecheck/internal/issues"
)

// AnalyzeRequest is the body of an analysis call.
type AnalyzeRequest struct {
	ElementPath    string `json:"elementPath"`
	ElementContent string `json:"elementContent"`
	ClientVersion  string `json:"clientVersion"`
}

// AnalyzeResponse carries the issues found for one file.
type AnalyzeResponse struct {
	Issues       []issues.Issue       `json:"issues"`
	QualityGates []issues.QualityGate `json:"qualityGates"`
}

// Analyze sends one file for analysis.
func (c *Client) Analyze(ctx context.Context, req AnalyzeRequest) (*AnalyzeResponse, error) {
	data, err := c.call(ctx, http.MethodPost, c.paths.AnalyzePath, req)
	if err != nil {
		return nil, err
	}
	resp, err := decode[AnalyzeResponse](data)
	if err != nil {
		return nil, err
	}
	if resp.Issues == nil {
		resp.Issues = []issues.Issue{}
	}
	return resp, nil
}

// WriteOffRequest is the issue-shaped payload of a write-off request.
type WriteOffRequest struct {
	issues.Issue
	FilePath string `json:"filePath"`
	Reason   string `json:"writeOffReason"`
	Comment  string `json:"writeOffComment,omitempty"`
}

// RequestWriteOff asks the service to write off an issue and returns the
// snapshot it now reports.
func (c *Client) RequestWriteOff(ctx context.Context, req WriteOffRequest) (*issues.WriteOffEmbed, error) {
	if req.Key() == "" {
		return nil, fmt.Errorf("write-off request requires an issue id")
	}
	data, err := c.call(ctx, http.MethodPatch, c.paths.WriteOffPath, req)
	if err != nil {
		return nil, err
	}

	// the service echoes either the issue or the bare snapshot
	echoed, err := decode[issues.Issue](data)
	if err == nil && echoed.WriteOff != nil {
		return echoed.WriteOff, nil
	}
	embed, err := decode[issues.WriteOffEmbed](data)
	if err != nil {
		return nil, err
	}
	if embed.WriteOffStatus == "" {
		embed.WriteOffStatus = issues.WriteOffRequested
	}
	return embed, nil
}

type reasonsResponse struct {
	Reasons []string `json:"reasons"`
}

// WriteOffReasons lists the reasons a developer may pick from.
func (c *Client) WriteOffReasons(ctx context.Context) ([]string, error) {
	data, err := c.call(ctx, http.MethodGet, c.paths.ReasonsPath, nil)
	if err != nil {
		return nil, err
	}
	resp, err := decode[reasonsResponse](data)
	if err != nil {
		return nil, err
	}
	if resp.Reasons == nil {
		return []string{}, nil
	}
	return resp.Reasons, nil
}

// License describes the account's entitlement.
type License struct {
	Plan      string     `json:"plan" yaml:"plan"`
	Valid     bool       `json:"valid" yaml:"valid"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty" yaml:"expiresAt,omitempty"`
	Features  []string   `json:"features,omitempty" yaml:"features,omitempty"`
	Developer string     `json:"developer,omitempty" yaml:"developer,omitempty"`
}

// LicenseInfo fetches the current license.
func (c *Client) LicenseInfo(ctx context.Context) (*License, error) {
	data, err := c.call(ctx, http.MethodGet, c.paths.LicensePath, nil)
	if err != nil {
		return nil, err
	}
	return decode[License](data)
}

// TokenClient exchanges refresh tokens. It implements auth.Refresher.
type TokenClient struct {
	*transport
	path   string
	source string
}

// NewTokenClient creates the unauthenticated refresh client.
func NewTokenClient(cfg config.ServerConfig, logger *slog.Logger) (*TokenClient, error) {
	t, err := newTransport(cfg, logger)
	if err != nil {
		return nil, err
	}
	return &TokenClient{transport: t, path: cfg.RefreshPath, source: cfg.Source}, nil
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
	Source       string `json:"source"`
}

// Refresh exchanges refreshToken for a new pair.
func (t *TokenClient) Refresh(ctx context.Context, refreshToken string) (auth.TokenPair, error) {
	data, err := t.doRequest(ctx, http.MethodPost, t.path, refreshRequest{
		RefreshToken: refreshToken,
		Source:       t.source,
	}, "")
	if err != nil {
		return auth.TokenPair{}, err
	}
	pair, err := decode[auth.TokenPair](data)
	if err != nil {
		return auth.TokenPair{}, err
	}
	if pair.AccessToken == "" {
		return auth.TokenPair{}, fmt.Errorf("refresh response has no access token")
	}
	return *pair, nil
}

var _ auth.Refresher = (*TokenClient)(nil)
