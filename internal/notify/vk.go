package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/tbourn/payroll-approval-bot/internal/config"
)

// VKClient calls the VK community messaging API. Each method performs one
// HTTP request; retries belong to the Dispatcher.
type VKClient struct {
	baseURL string
	token   string
	version string
	client  *http.Client
}

// NewVKClient builds a client from the VK section of the configuration.
func NewVKClient(cfg config.VKConfig) *VKClient {
	timeout := cfg.SendTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &VKClient{
		baseURL: strings.TrimRight(cfg.APIURL, "/"),
		token:   cfg.Token,
		version: cfg.APIVersion,
		client:  &http.Client{Timeout: timeout},
	}
}

type vkResponse struct {
	Response json.RawMessage `json:"response"`
	Error    *APIError       `json:"error"`
}

// Send calls messages.send.
func (c *VKClient) Send(ctx context.Context, m Message) error {
	params := url.Values{}
	params.Set("user_id", strconv.FormatInt(m.RecipientID, 10))
	params.Set("random_id", strconv.FormatInt(int64(m.RandomID), 10))
	params.Set("message", m.Text)
	if m.Keyboard != "" {
		params.Set("keyboard", m.Keyboard)
	}
	_, err := c.call(ctx, "messages.send", params)
	return err
}

// AnswerEvent calls messages.sendMessageEventAnswer with a snackbar.
func (c *VKClient) AnswerEvent(ctx context.Context, a EventAnswer) error {
	data, err := json.Marshal(map[string]string{"type": "show_snackbar", "text": a.Text})
	if err != nil {
		return fmt.Errorf("marshal event data: %w", err)
	}
	params := url.Values{}
	params.Set("event_id", a.EventID)
	params.Set("user_id", strconv.FormatInt(a.UserID, 10))
	params.Set("peer_id", strconv.FormatInt(a.PeerID, 10))
	params.Set("event_data", string(data))
	_, err = c.call(ctx, "messages.sendMessageEventAnswer", params)
	return err
}

func (c *VKClient) call(ctx context.Context, method string, params url.Values) (json.RawMessage, error) {
	params.Set("access_token", c.token)
	params.Set("v", c.version)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/"+method, strings.NewReader(params.Encode()))
	if err != nil {
		return nil, fmt.Errorf("%s: create request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", method, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("%s: read response: %w", method, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s: http status %d", method, resp.StatusCode)
	}

	var out vkResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("%s: decode response: %w", method, err)
	}
	if out.Error != nil {
		return nil, out.Error
	}
	return out.Response, nil
}
