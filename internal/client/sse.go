package client

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/alfredjeanlab/plantlog/internal/model"
)

// Dirty follows GET /v1/dirty/stream. After a disconnect it reconnects with
// Last-Event-ID so the server replays what was missed or answers resync.
func (c *HTTPClient) Dirty(ctx context.Context) <-chan DirtyMessage {
	out := make(chan DirtyMessage, 64)
	go func() {
		defer close(out)
		var (
			lastID   string
			attempts int
			b        backoff
		)
		for {
			received, err := c.streamOnce(ctx, &lastID, attempts > 0, out)
			if ctx.Err() != nil {
				return
			}
			attempts++
			if received {
				b.reset()
			}
			slog.Warn("dirty stream disconnected", "url", c.baseURL, "last_id", lastID, "error", err)
			if !b.wait(ctx) {
				return
			}
		}
	}()
	return out
}

// streamOnce reads one SSE connection until it ends. received reports
// whether any frame arrived. A ready frame on a reconnect without a
// position means notifications may have been missed, so it becomes a resync.
func (c *HTTPClient) streamOnce(ctx context.Context, lastID *string, reconnect bool, out chan<- DirtyMessage) (received bool, err error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/v1/dirty/stream", nil)
	if err != nil {
		return false, err
	}
	req.Header.Set("Accept", "text/event-stream")
	if *lastID != "" {
		req.Header.Set("Last-Event-ID", *lastID)
	}
	resp, err := c.streamClient.Do(req)
	if err != nil {
		return false, &TransportError{Op: "dirty stream", Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return false, &APIError{StatusCode: resp.StatusCode, Message: statusText(resp.StatusCode)}
	}

	var id, event, data string
	sc := bufio.NewScanner(resp.Body)
	sc.Buffer(make([]byte, 64*1024), 1<<20)
	for sc.Scan() {
		line := sc.Text()
		switch {
		case line == "":
			if event == "" {
				continue
			}
			received = true
			msg, ok, err := decodeFrame(event, data)
			if err != nil {
				slog.Warn("skipping malformed dirty frame", "id", id, "error", err)
				msg, ok = DirtyMessage{Resync: true}, true
			}
			if event == "ready" && reconnect && *lastID == "" {
				msg, ok = DirtyMessage{Resync: true}, true
			}
			if id != "" {
				*lastID = id
			}
			if ok && !emit(ctx, out, msg) {
				return received, ctx.Err()
			}
			id, event, data = "", "", ""
		case strings.HasPrefix(line, ":"):
			// Keepalive comment.
		case strings.HasPrefix(line, "id:"):
			id = strings.TrimSpace(strings.TrimPrefix(line, "id:"))
		case strings.HasPrefix(line, "event:"):
			event = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			data = strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		}
	}
	if err := sc.Err(); err != nil {
		return received, &TransportError{Op: "dirty stream", Err: err}
	}
	return received, &TransportError{Op: "dirty stream", Err: fmt.Errorf("server closed the stream")}
}

func decodeFrame(event, data string) (DirtyMessage, bool, error) {
	switch event {
	case "dirty":
		var n model.DirtyNotification
		if err := json.Unmarshal([]byte(data), &n); err != nil {
			return DirtyMessage{}, false, err
		}
		return DirtyMessage{Notification: n}, true, nil
	case "resync":
		return DirtyMessage{Resync: true}, true, nil
	}
	return DirtyMessage{}, false, nil
}
