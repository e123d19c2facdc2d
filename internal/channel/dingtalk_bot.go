package channel

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

const TypeDingTalkBot = "dingtalk_bot"

// DingTalkBot delivers through a DingTalk custom-robot webhook. When the
// robot is configured with a signing secret, each request carries a
// millisecond timestamp and an HMAC-SHA256 signature over it.
type DingTalkBot struct {
	httpSender
	now func() time.Time
}

func NewDingTalkBot(client *http.Client) *DingTalkBot {
	return &DingTalkBot{httpSender: newHTTPSender(client), now: time.Now}
}

func (a *DingTalkBot) Type() string { return TypeDingTalkBot }

func (a *DingTalkBot) ConfigSchema() []Field {
	return []Field{
		{Name: "webhook_url", Required: true, Sensitive: true},
		{Name: "secret", Required: false, Sensitive: true},
	}
}

func (a *DingTalkBot) ValidateCredentials(creds map[string]string) bool {
	return requiredFieldsPresent(a.ConfigSchema(), creds) && validWebhookURL(creds["webhook_url"])
}

func (a *DingTalkBot) Send(ctx context.Context, msg Message, creds map[string]string) (string, error) {
	if !a.ValidateCredentials(creds) {
		return "", fmt.Errorf("dingtalk_bot: incomplete credentials")
	}

	endpoint := creds["webhook_url"]
	if secret := creds["secret"]; secret != "" {
		endpoint = a.signedURL(endpoint, secret)
	}

	payload := map[string]any{
		"msgtype": "text",
		"text":    map[string]string{"content": renderText(msg)},
	}

	reply, status, err := a.postJSON(ctx, endpoint, payload)
	if err != nil {
		return "", fmt.Errorf("dingtalk_bot: %w", err)
	}
	return a.interpret(reply, status)
}

// signedURL appends the timestamp+sign pair DingTalk expects:
// sign = base64(hmac-sha256(secret, "<timestamp>\n<secret>")).
func (a *DingTalkBot) signedURL(webhook, secret string) string {
	timestamp := strconv.FormatInt(a.now().UnixMilli(), 10)

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp + "\n" + secret))
	sign := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	separator := "?"
	if parsed, err := url.Parse(webhook); err == nil && parsed.RawQuery != "" {
		separator = "&"
	}
	return webhook + separator + "timestamp=" + timestamp + "&sign=" + url.QueryEscape(sign)
}
