package channel

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeProvider records the last request body and answers with a canned
// JSON reply.
type fakeProvider struct {
	status   int
	reply    string
	lastBody map[string]any
	lastURL  string
}

func (p *fakeProvider) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p.lastURL = r.URL.String()
		p.lastBody = map[string]any{}
		_ = json.NewDecoder(r.Body).Decode(&p.lastBody)

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(p.status)
		_, _ = w.Write([]byte(p.reply))
	}
}

func TestWeComBotSend(t *testing.T) {
	provider := &fakeProvider{status: http.StatusOK, reply: `{"errcode":0,"errmsg":"ok"}`}
	server := httptest.NewServer(provider.handler())
	defer server.Close()

	adapter := NewWeComBot(server.Client())
	creds := map[string]string{"webhook_url": server.URL}

	externalID, err := adapter.Send(context.Background(), Message{Title: "alert", Content: "disk full"}, creds)
	require.NoError(t, err)
	assert.Empty(t, externalID)

	assert.Equal(t, "text", provider.lastBody["msgtype"])
	text := provider.lastBody["text"].(map[string]any)
	assert.Equal(t, "alert\ndisk full", text["content"])
}

func TestWeComBotProviderRejection(t *testing.T) {
	provider := &fakeProvider{status: http.StatusOK, reply: `{"errcode":93000,"errmsg":"invalid webhook url"}`}
	server := httptest.NewServer(provider.handler())
	defer server.Close()

	adapter := NewWeComBot(server.Client())
	creds := map[string]string{"webhook_url": server.URL}

	_, err := adapter.Send(context.Background(), Message{Title: "alert"}, creds)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "93000")
	assert.Contains(t, err.Error(), "invalid webhook url")
}

func TestLarkBotCodeConvention(t *testing.T) {
	tests := []struct {
		name    string
		reply   string
		wantErr bool
	}{
		{name: "lark zero code", reply: `{"code":0,"msg":"success"}`, wantErr: false},
		{name: "lark nonzero code", reply: `{"code":19001,"msg":"param invalid"}`, wantErr: true},
		// some deployments front Lark-compatible endpoints that answer
		// with the errcode convention instead
		{name: "errcode zero", reply: `{"errcode":0,"errmsg":"ok"}`, wantErr: false},
		{name: "errcode nonzero", reply: `{"errcode":1,"errmsg":"bad"}`, wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			provider := &fakeProvider{status: http.StatusOK, reply: tc.reply}
			server := httptest.NewServer(provider.handler())
			defer server.Close()

			adapter := NewLarkBot(server.Client())
			creds := map[string]string{"webhook_url": server.URL}

			_, err := adapter.Send(context.Background(), Message{Title: "t"}, creds)
			if tc.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestLarkBotPayloadShape(t *testing.T) {
	provider := &fakeProvider{status: http.StatusOK, reply: `{"code":0}`}
	server := httptest.NewServer(provider.handler())
	defer server.Close()

	adapter := NewLarkBot(server.Client())
	_, err := adapter.Send(context.Background(), Message{Title: "ping"}, map[string]string{"webhook_url": server.URL})
	require.NoError(t, err)

	assert.Equal(t, "text", provider.lastBody["msg_type"])
	content := provider.lastBody["content"].(map[string]any)
	assert.Equal(t, "ping", content["text"])
}

func TestDingTalkBotSignedURL(t *testing.T) {
	provider := &fakeProvider{status: http.StatusOK, reply: `{"errcode":0,"errmsg":"ok"}`}
	server := httptest.NewServer(provider.handler())
	defer server.Close()

	adapter := NewDingTalkBot(server.Client())
	adapter.now = func() time.Time { return time.UnixMilli(1_700_000_000_000) }

	creds := map[string]string{
		"webhook_url": server.URL + "/robot/send?access_token=tok",
		"secret":      "SECdeadbeef",
	}

	_, err := adapter.Send(context.Background(), Message{Title: "deploy done"}, creds)
	require.NoError(t, err)

	assert.Contains(t, provider.lastURL, "access_token=tok")
	assert.Contains(t, provider.lastURL, "timestamp=1700000000000")
	assert.Contains(t, provider.lastURL, "sign=")
}

func TestDingTalkBotWithoutSecret(t *testing.T) {
	provider := &fakeProvider{status: http.StatusOK, reply: `{"errcode":0,"errmsg":"ok"}`}
	server := httptest.NewServer(provider.handler())
	defer server.Close()

	adapter := NewDingTalkBot(server.Client())
	_, err := adapter.Send(context.Background(), Message{Title: "hi"}, map[string]string{"webhook_url": server.URL})
	require.NoError(t, err)

	assert.NotContains(t, provider.lastURL, "sign=")
}

func TestWebhookAdapterHTTPStatusFallback(t *testing.T) {
	// A reply without errcode/code fields falls back to the HTTP status.
	provider := &fakeProvider{status: http.StatusBadGateway, reply: `upstream exploded`}
	server := httptest.NewServer(provider.handler())
	defer server.Close()

	adapter := NewWeComBot(server.Client())
	_, err := adapter.Send(context.Background(), Message{Title: "t"}, map[string]string{"webhook_url": server.URL})
	assert.Error(t, err)

	ok := &fakeProvider{status: http.StatusOK, reply: ``}
	okServer := httptest.NewServer(ok.handler())
	defer okServer.Close()

	_, err = adapter.Send(context.Background(), Message{Title: "t"}, map[string]string{"webhook_url": okServer.URL})
	assert.NoError(t, err)
}

func TestWebhookCredentialValidation(t *testing.T) {
	adapters := []Adapter{NewWeComBot(nil), NewDingTalkBot(nil), NewLarkBot(nil)}

	for _, adapter := range adapters {
		assert.False(t, adapter.ValidateCredentials(map[string]string{}), adapter.Type())
		assert.False(t, adapter.ValidateCredentials(map[string]string{"webhook_url": "not a url"}), adapter.Type())
		assert.False(t, adapter.ValidateCredentials(map[string]string{"webhook_url": "ftp://host/x"}), adapter.Type())
		assert.True(t, adapter.ValidateCredentials(map[string]string{"webhook_url": "https://example.com/hook"}), adapter.Type())
	}
}

func TestSendTransportError(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	endpoint := server.URL
	server.Close() // connection refused from here on

	adapter := NewWeComBot(&http.Client{Timeout: time.Second})
	_, err := adapter.Send(context.Background(), Message{Title: "t"}, map[string]string{"webhook_url": endpoint})
	assert.Error(t, err)
}
