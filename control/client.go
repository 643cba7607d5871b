// Package control is a client for the projector's remote control HTTP interface.
package control

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/pkg/errors"
)

// ShowImageCommand displays the posted image full screen on the projector.
const ShowImageCommand = "show_image"

// SetCalibrationCommand loads a calibration document into the projector's renderer.
const SetCalibrationCommand = "set_calibration"

// Client talks to a projector control endpoint.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient returns a client for the control endpoint at baseURL. A nil httpClient uses
// http.DefaultClient.
func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), http: httpClient}
}

// ShowImage posts an encoded image to be shown; format is the image subtype such as "png".
func (c *Client) ShowImage(ctx context.Context, encoded []byte, format string) error {
	return c.post(ctx, ShowImageCommand, "image/"+format, encoded)
}

// SendCommand posts a command with a JSON body. A nil body sends no content.
func (c *Client) SendCommand(ctx context.Context, command string, body interface{}) error {
	var payload []byte
	if body != nil {
		var err error
		if raw, ok := body.(json.RawMessage); ok {
			payload = raw
		} else if payload, err = json.Marshal(body); err != nil {
			return errors.Wrapf(err, "encoding %s command", command)
		}
	}
	return c.post(ctx, command, "application/json", payload)
}

func (c *Client) post(ctx context.Context, command, contentType string, body []byte) error {
	return errors.Wrapf(post(ctx, c.http, c.baseURL+"/"+command, contentType, body), "sending %s", command)
}

// PostDocument posts a JSON document to an arbitrary URL.
func PostDocument(ctx context.Context, httpClient *http.Client, url string, doc []byte) error {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return post(ctx, httpClient, url, "application/json", doc)
}

func post(ctx context.Context, httpClient *http.Client, url, contentType string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return errors.Wrapf(err, "invalid URL %q", url)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := httpClient.Do(req)
	if err != nil {
		return errors.Wrapf(err, "failed to post to %s", url)
	}
	defer func() {
		//nolint:errcheck
		resp.Body.Close()
	}()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		//nolint:errcheck
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return errors.Errorf("%s returned %s %s", url, resp.Status, strings.TrimSpace(string(msg)))
	}
	return nil
}
