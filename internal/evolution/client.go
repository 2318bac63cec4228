// Package evolution is the client for the Evolution API, the WhatsApp
// gateway the campaign delivers through. It implements the engine's
// Gateway contract and owns no state.
//
// Sends are deliberately NOT retried: the gateway gives no idempotency
// key, so a retry risks messaging the same prospect twice. A timeout is a
// failure; the record goes to Error and the cooldown schedules the retry.
package evolution

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/gestionvital/prospector/internal/config"
)

// Client calls the Evolution API for one instance.
type Client struct {
	baseURL     string
	apiKey      string
	instance    string
	textClient  *http.Client
	mediaClient *http.Client
}

// NewClient creates an Evolution API client from config.
func NewClient(cfg config.EvolutionConfig) *Client {
	return &Client{
		baseURL:     cfg.BaseURL,
		apiKey:      cfg.APIKey,
		instance:    cfg.Instance,
		textClient:  &http.Client{Timeout: cfg.TextTimeout()},
		mediaClient: &http.Client{Timeout: cfg.MediaTimeout()},
	}
}

// textMessage is the sendText payload. The composing presence and delay
// make the delivery look hand-typed on the recipient's side.
type textMessage struct {
	Number  string `json:"number"`
	Options struct {
		Delay       int    `json:"delay"`
		Presence    string `json:"presence"`
		LinkPreview bool   `json:"linkPreview"`
	} `json:"options"`
	TextMessage struct {
		Text string `json:"text"`
	} `json:"textMessage"`
}

// mediaMessage is the sendMedia payload; the document travels base64-inline.
type mediaMessage struct {
	Number       string `json:"number"`
	MediaMessage struct {
		MediaType string `json:"mediatype"`
		FileName  string `json:"fileName"`
		Caption   string `json:"caption"`
		Media     string `json:"media"`
	} `json:"mediaMessage"`
}

// SendText delivers a text message to the destination number.
func (c *Client) SendText(ctx context.Context, destination, body string) error {
	msg := textMessage{Number: destination}
	msg.Options.Delay = 2000
	msg.Options.Presence = "composing"
	msg.Options.LinkPreview = true
	msg.TextMessage.Text = body

	return c.post(ctx, c.textClient, "sendText", msg)
}

// SendDocument delivers a document with a caption to the destination.
func (c *Client) SendDocument(ctx context.Context, destination string, data []byte, filename, caption string) error {
	msg := mediaMessage{Number: destination}
	msg.MediaMessage.MediaType = "document"
	msg.MediaMessage.FileName = filename
	msg.MediaMessage.Caption = caption
	msg.MediaMessage.Media = base64.StdEncoding.EncodeToString(data)

	return c.post(ctx, c.mediaClient, "sendMedia", msg)
}

// post performs one API call. Any status other than 200/201 is a failure.
func (c *Client) post(ctx context.Context, client *http.Client, op string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encoding %s payload: %w", op, err)
	}

	url := fmt.Sprintf("%s/message/%s/%s", c.baseURL, op, c.instance)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating %s request: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("apikey", c.apiKey)

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("executing %s: %w", op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s returned status %d: %s", op, resp.StatusCode, string(detail))
	}
	return nil
}
