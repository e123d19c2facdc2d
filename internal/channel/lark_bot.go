package channel

import (
	"context"
	"fmt"
	"net/http"
)

const TypeLarkBot = "lark_bot"

// LarkBot delivers through a Lark/Feishu custom-bot webhook. Lark reports
// success as {"code":0}, the other webhook providers as {"errcode":0};
// the shared reply interpretation tolerates both.
type LarkBot struct {
	httpSender
}

func NewLarkBot(client *http.Client) *LarkBot {
	return &LarkBot{httpSender: newHTTPSender(client)}
}

func (a *LarkBot) Type() string { return TypeLarkBot }

func (a *LarkBot) ConfigSchema() []Field {
	return []Field{
		{Name: "webhook_url", Required: true, Sensitive: true},
	}
}

func (a *LarkBot) ValidateCredentials(creds map[string]string) bool {
	return requiredFieldsPresent(a.ConfigSchema(), creds) && validWebhookURL(creds["webhook_url"])
}

func (a *LarkBot) Send(ctx context.Context, msg Message, creds map[string]string) (string, error) {
	if !a.ValidateCredentials(creds) {
		return "", fmt.Errorf("lark_bot: incomplete credentials")
	}

	payload := map[string]any{
		"msg_type": "text",
		"content":  map[string]string{"text": renderText(msg)},
	}

	reply, status, err := a.postJSON(ctx, creds["webhook_url"], payload)
	if err != nil {
		return "", fmt.Errorf("lark_bot: %w", err)
	}
	return a.interpret(reply, status)
}
