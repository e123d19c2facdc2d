package channel

import (
	"context"
	"fmt"
	"net/http"
)

const TypeWeComBot = "wecom_bot"

// WeComBot delivers through a WeCom group-robot webhook. Webhook family:
// no token step, the message is POSTed straight to the configured URL.
type WeComBot struct {
	httpSender
}

func NewWeComBot(client *http.Client) *WeComBot {
	return &WeComBot{httpSender: newHTTPSender(client)}
}

func (a *WeComBot) Type() string { return TypeWeComBot }

func (a *WeComBot) ConfigSchema() []Field {
	return []Field{
		{Name: "webhook_url", Required: true, Sensitive: true},
	}
}

func (a *WeComBot) ValidateCredentials(creds map[string]string) bool {
	return requiredFieldsPresent(a.ConfigSchema(), creds) && validWebhookURL(creds["webhook_url"])
}

func (a *WeComBot) Send(ctx context.Context, msg Message, creds map[string]string) (string, error) {
	if !a.ValidateCredentials(creds) {
		return "", fmt.Errorf("wecom_bot: incomplete credentials")
	}

	payload := map[string]any{
		"msgtype": "text",
		"text":    map[string]string{"content": renderText(msg)},
	}

	reply, status, err := a.postJSON(ctx, creds["webhook_url"], payload)
	if err != nil {
		return "", fmt.Errorf("wecom_bot: %w", err)
	}
	return a.interpret(reply, status)
}
