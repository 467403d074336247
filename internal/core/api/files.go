package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"

	"github.com/namelens/relay/internal/core"
	"github.com/namelens/relay/internal/core/engine"
)

// File is an upload attached to a message.
type File struct {
	Name string
	Data []byte
}

// SendFiles posts a message with attachments as multipart form data.
// A single file uses the field "file"; several use "file0", "file1", ...
func (c *Client) SendFiles(ctx context.Context, channel core.Channel, files []File, msg MessageOptions) (*core.Response, error) {
	if len(files) == 0 {
		return nil, errors.New("at least one file is required")
	}

	body, contentType, err := multipartBody(files, msg)
	if err != nil {
		return nil, err
	}

	route := core.NewChannelRoute(http.MethodPost, "/channels/{channel_id}/messages", channel, nil)
	return c.Request(ctx, route, engine.RequestOptions{Body: body, ContentType: contentType})
}

func multipartBody(files []File, msg MessageOptions) ([]byte, string, error) {
	payload := msg.payload()
	payload["tts"] = msg.TTS
	encoded, err := json.Marshal(payload)
	if err != nil {
		return nil, "", fmt.Errorf("encode payload_json: %w", err)
	}

	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)
	if err := form.WriteField("payload_json", string(encoded)); err != nil {
		return nil, "", err
	}

	for index, file := range files {
		field := "file"
		if len(files) > 1 {
			field = fmt.Sprintf("file%d", index)
		}

		header := make(textproto.MIMEHeader)
		header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`, field, escapeQuotes(file.Name)))
		header.Set("Content-Type", "application/octet-stream")

		part, err := form.CreatePart(header)
		if err != nil {
			return nil, "", err
		}
		if _, err := part.Write(file.Data); err != nil {
			return nil, "", err
		}
	}

	if err := form.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), form.FormDataContentType(), nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}

// GetAttachment downloads a CDN attachment. It does not go through the
// bucket gate and is never retried.
func (c *Client) GetAttachment(ctx context.Context, attachmentURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, attachmentURL, nil)
	if err != nil {
		return nil, err
	}

	client := c.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: DefaultTimeout}
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, &core.NetworkError{Method: http.MethodGet, URL: attachmentURL, Err: err}
	}
	defer resp.Body.Close() // nolint:errcheck // best-effort cleanup on HTTP response body

	if resp.StatusCode == http.StatusOK {
		return io.ReadAll(resp.Body)
	}

	message := "failed to get attachment"
	switch resp.StatusCode {
	case http.StatusNotFound:
		message = "attachment not found"
	case http.StatusForbidden:
		message = "cannot retrieve attachment"
	}
	return nil, &core.HTTPError{
		StatusCode: resp.StatusCode,
		Method:     http.MethodGet,
		URL:        attachmentURL,
		Message:    message,
		Header:     resp.Header,
		Attempts:   1,
	}
}
