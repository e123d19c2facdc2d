package channel

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/ixNieStudio/edgeone-webhook-pusher-sub001/internal/kv"
)

const (
	TypeWeComApp = "wecom_app"

	wecomDefaultBaseURL = "https://qyapi.weixin.qq.com"
	wecomTokenPath      = "/cgi-bin/gettoken"
	wecomSendPath       = "/cgi-bin/message/send"
	wecomDefaultToUser  = "@all"
)

// WeComApp delivers through the WeCom (enterprise WeChat) application
// message API. It is the token-managed family: an access token is
// obtained from corp credentials and cached before any message is built.
type WeComApp struct {
	httpSender
	tokens  tokenCache
	baseURL string
}

type wecomTokenReply struct {
	ErrCode     int    `json:"errcode"`
	ErrMsg      string `json:"errmsg"`
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

func NewWeComApp(client *http.Client, store kv.Store, tokenTTLMargin time.Duration) *WeComApp {
	return &WeComApp{
		httpSender: newHTTPSender(client),
		tokens:     newTokenCache(store, tokenTTLMargin),
		baseURL:    wecomDefaultBaseURL,
	}
}

func (a *WeComApp) Type() string { return TypeWeComApp }

func (a *WeComApp) ConfigSchema() []Field {
	return []Field{
		{Name: "corp_id", Required: true, Sensitive: false},
		{Name: "corp_secret", Required: true, Sensitive: true},
		{Name: "agent_id", Required: true, Sensitive: false},
		{Name: "to_user", Required: false, Sensitive: false},
	}
}

func (a *WeComApp) ValidateCredentials(creds map[string]string) bool {
	return requiredFieldsPresent(a.ConfigSchema(), creds)
}

func (a *WeComApp) Send(ctx context.Context, msg Message, creds map[string]string) (string, error) {
	if !a.ValidateCredentials(creds) {
		return "", fmt.Errorf("wecom_app: incomplete credentials")
	}

	token, err := a.accessToken(ctx, creds)
	if err != nil {
		return "", err
	}

	toUser := creds["to_user"]
	if toUser == "" {
		toUser = wecomDefaultToUser
	}

	payload := map[string]any{
		"touser":  toUser,
		"msgtype": "text",
		"agentid": creds["agent_id"],
		"text":    map[string]string{"content": renderText(msg)},
	}

	endpoint := a.baseURL + wecomSendPath + "?access_token=" + url.QueryEscape(token)
	reply, status, err := a.postJSON(ctx, endpoint, payload)
	if err != nil {
		return "", fmt.Errorf("wecom_app: %w", err)
	}
	return a.interpret(reply, status)
}

// accessToken returns a cached token for the corp/agent pair, fetching a
// fresh one from the provider on a miss.
func (a *WeComApp) accessToken(ctx context.Context, creds map[string]string) (string, error) {
	cacheKey := TypeWeComApp + ":" + creds["corp_id"] + ":" + creds["agent_id"]

	return a.tokens.getOrFetch(ctx, cacheKey, func(ctx context.Context) (string, time.Duration, error) {
		endpoint := fmt.Sprintf("%s%s?corpid=%s&corpsecret=%s",
			a.baseURL, wecomTokenPath,
			url.QueryEscape(creds["corp_id"]), url.QueryEscape(creds["corp_secret"]))

		reply, err := a.fetchToken(ctx, endpoint)
		if err != nil {
			return "", 0, err
		}
		if reply.ErrCode != 0 || reply.AccessToken == "" {
			return "", 0, fmt.Errorf("wecom_app: token request rejected: code=%d msg=%s", reply.ErrCode, reply.ErrMsg)
		}
		return reply.AccessToken, time.Duration(reply.ExpiresIn) * time.Second, nil
	})
}

func (a *WeComApp) fetchToken(ctx context.Context, endpoint string) (*wecomTokenReply, error) {
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("wecom_app: build token request: %w", err)
	}

	response, err := a.client.Do(request)
	if err != nil {
		return nil, fmt.Errorf("wecom_app: fetch token: %w", err)
	}
	defer response.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(response.Body, maxReplyBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("wecom_app: read token reply: %w", err)
	}

	reply := &wecomTokenReply{}
	if err := json.Unmarshal(raw, reply); err != nil {
		return nil, fmt.Errorf("wecom_app: decode token reply: %w", err)
	}
	return reply, nil
}

// renderText joins title and optional content the way text-only providers
// expect them.
func renderText(msg Message) string {
	if msg.Content == "" {
		return msg.Title
	}
	return msg.Title + "\n" + msg.Content
}
