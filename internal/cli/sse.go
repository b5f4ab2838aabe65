package cli

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/agentoven/boardroom/pkg/models"
)

// errNoTerminalEvent means the stream closed before a final or error event.
var errNoTerminalEvent = errors.New("event stream ended without a final or error event")

// StreamEvents reads a text/event-stream body and calls fn with the data of
// each event. Multi-line data is joined with newlines; comments and other
// fields are ignored. The slice passed to fn is reused after fn returns.
func StreamEvents(r io.Reader, fn func(data []byte) error) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 4<<20)

	var buf bytes.Buffer
	flush := func() error {
		if buf.Len() == 0 {
			return nil
		}
		defer buf.Reset()
		return fn(buf.Bytes())
	}

	for sc.Scan() {
		line := sc.Text()
		switch {
		case line == "":
			if err := flush(); err != nil {
				return err
			}
		case strings.HasPrefix(line, "data:"):
			if buf.Len() > 0 {
				buf.WriteByte('\n')
			}
			buf.WriteString(strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("read event stream: %w", err)
	}
	return flush()
}

// EventHandler receives each decoded event along with its raw payload.
type EventHandler func(ev models.Event, raw []byte) error

// Client talks to a boardroom server.
type Client struct {
	BaseURL string
	APIKey  string
	HTTP    *http.Client
}

func (c *Client) httpClient() *http.Client {
	if c.HTTP != nil {
		return c.HTTP
	}
	return http.DefaultClient
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, strings.TrimRight(c.BaseURL, "/")+path, body)
	if err != nil {
		return nil, err
	}
	if c.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.APIKey)
	}
	return req, nil
}

// Consult posts req and streams the resulting events to fn until a
// terminal event arrives.
func (c *Client) Consult(ctx context.Context, req models.ConsultRequest, fn EventHandler) error {
	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	httpReq, err := c.newRequest(ctx, http.MethodPost, "/api/v1/consult", bytes.NewReader(body))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")

	resp, err := c.httpClient().Do(httpReq)
	if err != nil {
		return fmt.Errorf("connect to %s: %w", c.BaseURL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return statusError(resp)
	}

	done := false
	err = StreamEvents(resp.Body, func(data []byte) error {
		if done {
			return nil
		}
		var ev models.Event
		if err := json.Unmarshal(data, &ev); err != nil {
			return fmt.Errorf("decode event: %w", err)
		}
		done = ev.Terminal()
		return fn(ev, data)
	})
	if err != nil {
		return err
	}
	if !done {
		return errNoTerminalEvent
	}
	return nil
}

// Advisors fetches the advisor catalog.
func (c *Client) Advisors(ctx context.Context) ([]models.AdvisorProfile, error) {
	httpReq, err := c.newRequest(ctx, http.MethodGet, "/api/v1/advisors", nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient().Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("connect to %s: %w", c.BaseURL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, statusError(resp)
	}

	var profiles []models.AdvisorProfile
	if err := json.NewDecoder(resp.Body).Decode(&profiles); err != nil {
		return nil, fmt.Errorf("decode advisors: %w", err)
	}
	return profiles, nil
}

func statusError(resp *http.Response) error {
	var body struct {
		Error string `json:"error"`
	}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if json.Unmarshal(raw, &body) == nil && body.Error != "" {
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, body.Error)
	}
	return fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
}
