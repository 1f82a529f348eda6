package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"futures/internal/config"
)

const userAgent = "Futures-Go/0.1.0"

// ItemFailure describes a failed work item for an operator alert.
type ItemFailure struct {
	ItemID    string
	ItemType  string
	Operation string
	Message   string
	Retriable bool
}

// Service defines the notification surface exposed to workflow components.
type Service interface {
	NotifyItemFailed(ctx context.Context, failure ItemFailure) error
	NotifyQueueStarted(ctx context.Context, count int) error
	NotifyQueueCompleted(ctx context.Context, completed, failed int, duration time.Duration) error
	NotifyError(ctx context.Context, err error, context string) error
	TestNotification(ctx context.Context) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint: topic,
		client:   &http.Client{Timeout: timeout},
		failures: cfg.Notifications.Failures,
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
	failures bool
}

func (n *ntfyService) NotifyItemFailed(ctx context.Context, failure ItemFailure) error {
	if !n.failures {
		return nil
	}
	label := strings.TrimSpace(failure.ItemType)
	if op := strings.TrimSpace(failure.Operation); op != "" {
		label += "/" + op
	}
	message := fmt.Sprintf("Work item %s (%s) failed: %s", shortID(failure.ItemID), label, strings.TrimSpace(failure.Message))
	priority := "high"
	if failure.Retriable {
		message += "\nRetriable: futures items retry " + failure.ItemID
		priority = "default"
	}
	return n.send(ctx, payload{
		title:    "Futures - Item Failed",
		message:  message,
		tags:     []string{"futures", "item", "failed"},
		priority: priority,
	})
}

func (n *ntfyService) NotifyQueueStarted(ctx context.Context, count int) error {
	return n.send(ctx, payload{
		title:   "Futures - Queue Started",
		message: fmt.Sprintf("Started processing %d work items", count),
		tags:    []string{"futures", "queue", "started"},
	})
}

func (n *ntfyService) NotifyQueueCompleted(ctx context.Context, completed, failed int, duration time.Duration) error {
	duration = duration.Round(time.Second)
	if duration < 0 {
		duration = 0
	}
	title := "Futures - Queue Drained"
	message := fmt.Sprintf("Queue drained: %d items completed in %s", completed, duration)
	if failed > 0 {
		title = "Futures - Queue Drained (with failures)"
		message = fmt.Sprintf("Queue drained: %d completed, %d failed in %s", completed, failed, duration)
	}
	return n.send(ctx, payload{
		title:   title,
		message: message,
		tags:    []string{"futures", "queue", "completed"},
	})
}

func (n *ntfyService) NotifyError(ctx context.Context, err error, contextLabel string) error {
	var builder strings.Builder
	builder.WriteString("Error")
	if contextLabel = strings.TrimSpace(contextLabel); contextLabel != "" {
		builder.WriteString(" in ")
		builder.WriteString(contextLabel)
	}
	builder.WriteString(": ")
	if err != nil {
		builder.WriteString(strings.TrimSpace(err.Error()))
	} else {
		builder.WriteString("unknown")
	}
	return n.send(ctx, payload{
		title:    "Futures - Error",
		message:  builder.String(),
		tags:     []string{"futures", "error", "alert"},
		priority: "high",
	})
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	return n.send(ctx, payload{
		title:    "Futures - Test",
		message:  "Notification system test",
		tags:     []string{"futures", "test"},
		priority: "low",
	})
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

type noopService struct{}

func (noopService) NotifyItemFailed(context.Context, ItemFailure) error                { return nil }
func (noopService) NotifyQueueStarted(context.Context, int) error                       { return nil }
func (noopService) NotifyQueueCompleted(context.Context, int, int, time.Duration) error { return nil }
func (noopService) NotifyError(context.Context, error, string) error                    { return nil }
func (noopService) TestNotification(context.Context) error                              { return nil }
