package channel

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

const (
	defaultSendTimeout  = 5 * time.Second
	maxReplyBodyBytes   = 1 << 20
	contentTypeJSON     = "application/json"
	headerContentType   = "Content-Type"
	errCodeFieldMissing = -1
)

// providerReply is the superset of response shapes the supported
// providers return. errcode (WeCom/DingTalk convention) and code (Lark
// convention) are kept as pointers so an absent field can be told apart
// from an explicit zero.
type providerReply struct {
	ErrCode *int   `json:"errcode"`
	Code    *int   `json:"code"`
	ErrMsg  string `json:"errmsg"`
	Msg     string `json:"msg"`
	MsgID   string `json:"msgid"`
}

// succeeded applies the tolerant success rule: a zero errcode wins when
// present, otherwise a zero code, otherwise the HTTP status decides.
func (r *providerReply) succeeded(httpStatus int) bool {
	if r.ErrCode != nil {
		return *r.ErrCode == 0
	}
	if r.Code != nil {
		return *r.Code == 0
	}
	return httpStatus >= 200 && httpStatus < 300
}

func (r *providerReply) errorCode() int {
	if r.ErrCode != nil {
		return *r.ErrCode
	}
	if r.Code != nil {
		return *r.Code
	}
	return errCodeFieldMissing
}

func (r *providerReply) errorMessage() string {
	if r.ErrMsg != "" {
		return r.ErrMsg
	}
	return r.Msg
}

// httpSender carries the HTTP plumbing shared by every adapter. The
// per-channel send sequence is fixed: validate parameters, obtain a
// token (empty for the webhook family), build the wire payload, POST it,
// interpret the reply. Adapters only vary the payload and the endpoint.
type httpSender struct {
	client *http.Client
}

func newHTTPSender(client *http.Client) httpSender {
	if client == nil {
		client = &http.Client{Timeout: defaultSendTimeout}
	}
	return httpSender{client: client}
}

// postJSON issues one POST and decodes the provider's reply. A non-JSON
// body is tolerated: the reply then carries no errcode/code fields and
// the HTTP status decides success.
func (s httpSender) postJSON(ctx context.Context, endpoint string, payload any) (*providerReply, int, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, 0, fmt.Errorf("encode payload: %w", err)
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, 0, fmt.Errorf("build request: %w", err)
	}
	request.Header.Set(headerContentType, contentTypeJSON)

	response, err := s.client.Do(request)
	if err != nil {
		return nil, 0, fmt.Errorf("post: %w", err)
	}
	defer response.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(response.Body, maxReplyBodyBytes))
	if err != nil {
		return nil, response.StatusCode, fmt.Errorf("read reply: %w", err)
	}

	reply := &providerReply{}
	if len(raw) > 0 {
		// best effort, see above
		_ = json.Unmarshal(raw, reply)
	}
	return reply, response.StatusCode, nil
}

// interpret converts a decoded reply into the adapter Send contract.
func (s httpSender) interpret(reply *providerReply, httpStatus int) (string, error) {
	if reply.succeeded(httpStatus) {
		return reply.MsgID, nil
	}
	message := reply.errorMessage()
	if message == "" {
		message = http.StatusText(httpStatus)
	}
	return "", fmt.Errorf("provider rejected message: code=%d msg=%s", reply.errorCode(), message)
}

// validWebhookURL rejects anything that is not an absolute http(s) URL.
func validWebhookURL(raw string) bool {
	parsed, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (parsed.Scheme == "http" || parsed.Scheme == "https") && parsed.Host != ""
}
