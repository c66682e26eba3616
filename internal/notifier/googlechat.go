package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"
)

// GoogleChat posts messages to a Google Chat incoming webhook.
type GoogleChat struct {
	webhookURL string
	client     *http.Client
	logger     *zap.Logger
}

func NewGoogleChat(webhookURL string, logger *zap.Logger) *GoogleChat {
	return &GoogleChat{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: 10 * time.Second},
		logger:     logger,
	}
}

type chatMessage struct {
	Text   string          `json:"text"`
	Thread json.RawMessage `json:"thread,omitempty"`
}

type chatReply struct {
	Thread json.RawMessage `json:"thread"`
}

// Publish posts text, splitting it into continuation posts grouped under the
// thread the backend assigned to the first one.
func (g *GoogleChat) Publish(ctx context.Context, text string) error {
	var thread json.RawMessage

	for chunk := 1; ; chunk++ {
		head, rest, ok := cut(text)
		if !ok {
			return &ChunkingError{Chunk: chunk, Length: utf8.RuneCountInString(text)}
		}

		reply, err := g.send(ctx, chatMessage{Text: head, Thread: thread})
		if err != nil {
			return &PublishError{Chunk: chunk, Err: err}
		}
		if thread == nil {
			thread = reply.Thread
		}

		if rest == "" {
			return nil
		}

		g.logger.Debug("message continues",
			zap.Int("chunk", chunk),
			zap.Int("remaining", utf8.RuneCountInString(rest)),
		)
		text = rest
	}
}

func (g *GoogleChat) send(ctx context.Context, msg chatMessage) (*chatReply, error) {
	body, err := json.Marshal(msg)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.webhookURL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json; charset=UTF-8")

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("google chat error: %d %s", resp.StatusCode, bytes.TrimSpace(snippet))
	}

	var reply chatReply
	if err := json.NewDecoder(resp.Body).Decode(&reply); err != nil {
		return nil, fmt.Errorf("decode reply: %w", err)
	}
	if len(reply.Thread) == 0 || bytes.Equal(reply.Thread, []byte("null")) {
		return nil, errors.New("reply has no thread")
	}

	return &reply, nil
}
