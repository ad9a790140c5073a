package wechat

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/carematch/carematch-api/internal/config"
	"github.com/carematch/carematch-api/internal/domain"
)

// Profile holds the user fields consumed from the WeChat userinfo endpoint.
type Profile struct {
	OpenID    string `json:"openid"`
	UnionID   string `json:"unionid"`
	Nickname  string `json:"nickname"`
	AvatarURL string `json:"headimgurl"`
	Sex       int    `json:"sex"` // 1=male, 2=female, 0=unknown
	Province  string `json:"province"`
	City      string `json:"city"`
	Country   string `json:"country"`
}

// TokenResponse is the WeChat token-endpoint response. WeChat signals
// failure inside a 200 body via errcode/errmsg rather than an HTTP status.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	OpenID      string `json:"openid"`
	UnionID     string `json:"unionid"`
	ErrCode     int    `json:"errcode"`
	ErrMsg      string `json:"errmsg"`
}

// Client performs the two-step WeChat OAuth exchange: authorization code →
// access token → user profile. Calls are single-shot; transient failures
// surface as domain.ErrExternalAuth and retries are left to the caller.
type Client struct {
	httpClient *http.Client
	baseURL    string
	appID      string
	appSecret  string
}

func NewClient(cfg *config.Config) *Client {
	timeout := cfg.WeChatHTTPTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    cfg.WeChatAPIBaseURL,
		appID:      cfg.WeChatAppID,
		appSecret:  cfg.WeChatAppSecret,
	}
}

// ExchangeCode trades the client-supplied authorization code for an access
// token and the user's openid.
func (c *Client) ExchangeCode(ctx context.Context, code string) (*TokenResponse, error) {
	q := url.Values{}
	q.Set("appid", c.appID)
	q.Set("secret", c.appSecret)
	q.Set("code", code)
	q.Set("grant_type", "authorization_code")

	var res TokenResponse
	if err := c.get(ctx, "/sns/oauth2/access_token", q, &res); err != nil {
		return nil, err
	}
	if res.ErrCode != 0 {
		return nil, fmt.Errorf("wechat token endpoint: errcode=%d errmsg=%q: %w", res.ErrCode, res.ErrMsg, domain.ErrExternalAuth)
	}
	if res.AccessToken == "" || res.OpenID == "" {
		return nil, fmt.Errorf("wechat token endpoint returned no access token: %w", domain.ErrExternalAuth)
	}
	return &res, nil
}

// FetchUserInfo loads the profile for openID using the access token from the
// exchange step.
func (c *Client) FetchUserInfo(ctx context.Context, accessToken, openID string) (*Profile, error) {
	q := url.Values{}
	q.Set("access_token", accessToken)
	q.Set("openid", openID)
	q.Set("lang", "zh_CN")

	var raw struct {
		Profile
		ErrCode int    `json:"errcode"`
		ErrMsg  string `json:"errmsg"`
	}
	if err := c.get(ctx, "/sns/userinfo", q, &raw); err != nil {
		return nil, err
	}
	if raw.ErrCode != 0 {
		return nil, fmt.Errorf("wechat userinfo: errcode=%d errmsg=%q: %w", raw.ErrCode, raw.ErrMsg, domain.ErrExternalAuth)
	}
	if raw.OpenID == "" {
		return nil, fmt.Errorf("wechat userinfo returned empty profile: %w", domain.ErrExternalAuth)
	}
	return &raw.Profile, nil
}

// Authenticate runs the full flow. The token endpoint may carry a unionid the
// userinfo endpoint omits; it is propagated into the returned profile.
func (c *Client) Authenticate(ctx context.Context, code string) (*Profile, error) {
	tok, err := c.ExchangeCode(ctx, code)
	if err != nil {
		return nil, err
	}
	profile, err := c.FetchUserInfo(ctx, tok.AccessToken, tok.OpenID)
	if err != nil {
		return nil, err
	}
	if profile.UnionID == "" {
		profile.UnionID = tok.UnionID
	}
	return profile, nil
}

func (c *Client) get(ctx context.Context, path string, q url.Values, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+q.Encode(), nil)
	if err != nil {
		return fmt.Errorf("build wechat request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("wechat request failed: %w", domain.ErrExternalAuth)
	}
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode wechat response: %w", domain.ErrExternalAuth)
	}
	return nil
}
