package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// ErrUnregistered means the device token is no longer valid.
var ErrUnregistered = errors.New("device token not registered")

// Push is a single notification to one device.
type Push struct {
	Token string
	Title string
	Body  string
	Data  map[string]string
}

type fcmRequest struct {
	To           string            `json:"to"`
	Notification fcmNotification   `json:"notification"`
	Data         map[string]string `json:"data,omitempty"`
}

type fcmNotification struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

type fcmResponse struct {
	Success int `json:"success"`
	Failure int `json:"failure"`
	Results []struct {
		MessageID string `json:"message_id"`
		Error     string `json:"error"`
	} `json:"results"`
}

// Client sends pushes through the FCM HTTP endpoint.
type Client struct {
	Endpoint  string
	ServerKey string
	HTTP      *http.Client
	Skip      bool
	log       *zap.Logger
}

// New creates a client. With skip set, pushes are logged and not sent.
func New(endpoint, serverKey string, skip bool, log *zap.Logger) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		Endpoint:  endpoint,
		ServerKey: serverKey,
		Skip:      skip,
		HTTP:      &http.Client{Timeout: 10 * time.Second},
		log:       log,
	}
}

// Send delivers one push.
func (c *Client) Send(ctx context.Context, p Push) error {
	if p.Token == "" {
		return errors.New("notify: empty token")
	}
	if c.Skip {
		c.log.Info("push skipped", zap.String("title", p.Title), zap.String("body", p.Body))
		return nil
	}

	payload, err := json.Marshal(fcmRequest{
		To:           p.Token,
		Notification: fcmNotification{Title: p.Title, Body: p.Body},
		Data:         p.Data,
	})
	if err != nil {
		return fmt.Errorf("notify: encode: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("notify: create request failed: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "key="+c.ServerKey)

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("notify: request failed: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 300 {
		return fmt.Errorf("notify: push failed (%d): %s", resp.StatusCode, string(body))
	}

	var out fcmResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return fmt.Errorf("notify: decode response failed: %w", err)
	}
	if out.Failure > 0 && len(out.Results) > 0 {
		switch out.Results[0].Error {
		case "NotRegistered", "InvalidRegistration":
			return ErrUnregistered
		default:
			return fmt.Errorf("notify: push rejected: %s", out.Results[0].Error)
		}
	}
	return nil
}
