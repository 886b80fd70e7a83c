// Package client consumes a logrelay server's event stream.
package client

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/atikulmunna/logrelay/internal/model"
)

// Client reads entries from a logrelay server.
type Client struct {
	base string
	http *http.Client
	log  *zap.Logger
}

// New returns a Client for the server at baseURL (e.g. http://localhost:8050).
func New(baseURL string, log *zap.Logger) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		base: strings.TrimRight(baseURL, "/"),
		http: &http.Client{},
		log:  log,
	}
}

// Stream subscribes to name and calls fn for the backlog and every live entry
// until ctx is cancelled, the server ends the stream, or fn returns an error.
// Heartbeat comments are skipped. A cancelled ctx is not reported as an error.
func (c *Client) Stream(ctx context.Context, name string, fn func(model.LogEntry) error) error {
	endpoint := c.base + "/logs/stream/" + url.PathEscape(name)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("connect %s: %w", endpoint, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("stream %s: unexpected status %s", name, resp.Status)
	}
	c.log.Debug("stream connected", zap.String("url", endpoint))

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	var data strings.Builder
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			// Blank line ends an event.
			if data.Len() == 0 {
				continue
			}
			var entry model.LogEntry
			if err := json.Unmarshal([]byte(data.String()), &entry); err != nil {
				c.log.Warn("skipping malformed event", zap.Error(err))
			} else if err := fn(entry); err != nil {
				return err
			}
			data.Reset()
		case strings.HasPrefix(line, ":"):
			// comment / heartbeat
		case strings.HasPrefix(line, "data:"):
			if data.Len() > 0 {
				data.WriteByte('\n')
			}
			data.WriteString(strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		}
	}
	if err := scanner.Err(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("read stream %s: %w", name, err)
	}
	return nil
}
