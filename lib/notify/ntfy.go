// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"

	"github.com/bureau-foundation/sensorlink/lib/schema/sensor"
	"github.com/bureau-foundation/sensorlink/lib/version"
)

// NtfyConfig configures an ntfy sink.
type NtfyConfig struct {
	// ServerURL is the ntfy server, e.g. "https://ntfy.sh".
	ServerURL string

	// Topic is the topic events are published to. Required.
	Topic string

	// Token, when set, is sent as a bearer token for private topics.
	Token string

	// ClickBaseURL, when set, makes each notification open
	// ClickBaseURL/entry/<entry_id>.
	ClickBaseURL string

	// Timeout bounds each publish request. Zero means 10 seconds.
	Timeout time.Duration

	// MinInterval spaces consecutive publishes. Zero means one
	// second. A burst of five is always allowed.
	MinInterval time.Duration

	Logger *slog.Logger
}

// Ntfy publishes alert events to an ntfy topic.
type Ntfy struct {
	client       *resty.Client
	topic        string
	token        string
	clickBaseURL string
	limiter      *rate.Limiter
	logger       *slog.Logger
}

// NewNtfy validates cfg and returns a sink.
func NewNtfy(cfg NtfyConfig) (*Ntfy, error) {
	if cfg.ServerURL == "" {
		return nil, fmt.Errorf("ntfy: ServerURL is required")
	}
	if cfg.Topic == "" {
		return nil, fmt.Errorf("ntfy: Topic is required")
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("ntfy: Logger is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.MinInterval <= 0 {
		cfg.MinInterval = time.Second
	}
	return &Ntfy{
		client: resty.New().
			SetBaseURL(strings.TrimRight(cfg.ServerURL, "/")).
			SetTimeout(cfg.Timeout).
			SetHeader("User-Agent", version.UserAgent()),
		topic:        cfg.Topic,
		token:        cfg.Token,
		clickBaseURL: strings.TrimRight(cfg.ClickBaseURL, "/"),
		limiter:      rate.NewLimiter(rate.Every(cfg.MinInterval), 5),
		logger:       cfg.Logger,
	}, nil
}

// Deliver publishes one event. It waits for the rate limiter, so a
// cancelled context abandons the publish.
func (n *Ntfy) Deliver(ctx context.Context, event sensor.AlertEvent) error {
	if err := n.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("ntfy: rate limit: %w", err)
	}

	request := n.client.R().
		SetContext(ctx).
		SetHeader("Title", asciiTitle(Title(event))).
		SetHeader("Priority", strconv.Itoa(NtfyPriority(event.Priority))).
		SetHeader("Tags", "sensor,alert").
		SetHeader("Content-Type", "text/plain; charset=utf-8").
		SetBody(Message(event))
	if n.token != "" {
		request.SetAuthToken(n.token)
	}
	if n.clickBaseURL != "" {
		request.SetHeader("Click", fmt.Sprintf("%s/entry/%d", n.clickBaseURL, event.EntryID))
	}

	response, err := request.Post("/" + n.topic)
	if err != nil {
		return fmt.Errorf("ntfy: publishing to %s: %w", n.topic, err)
	}
	if !response.IsSuccess() {
		return fmt.Errorf("ntfy: publishing to %s: HTTP %d: %s", n.topic, response.StatusCode(), strings.TrimSpace(response.String()))
	}
	n.logger.Info("alert published",
		"topic", n.topic,
		"rule_id", event.RuleID,
		"entry_id", event.EntryID,
	)
	return nil
}

// NtfyPriority maps an alert priority onto ntfy's 1-5 scale.
func NtfyPriority(priority sensor.Priority) int {
	switch priority {
	case sensor.PriorityLow:
		return 2
	case sensor.PriorityHigh:
		return 4
	case sensor.PriorityUrgent:
		return 5
	}
	return 3
}

// Title returns the event's title, or a generated one.
func Title(event sensor.AlertEvent) string {
	if event.Title != "" {
		return event.Title
	}
	return "Sensor alert: " + event.SensorType
}

// Message returns the event's message, or a generated one describing
// the reading that fired the rule.
func Message(event sensor.AlertEvent) string {
	if event.Message != "" {
		return event.Message
	}
	return fmt.Sprintf("%s reading %s for entry %d at %s (rule %d)",
		event.SensorType, event.Value, event.EntryID,
		event.TriggeredAt.UTC().Format(time.RFC3339), event.RuleID)
}

// asciiTitle drops non-ASCII characters, which HTTP header values
// cannot carry reliably.
func asciiTitle(title string) string {
	var builder strings.Builder
	for _, r := range title {
		if r >= 0x20 && r < 0x7f {
			builder.WriteRune(r)
		}
	}
	safe := strings.TrimSpace(builder.String())
	if safe == "" {
		return "Notification"
	}
	return safe
}
