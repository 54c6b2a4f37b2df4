// Package notify is the observer's only outward-facing side effect:
// turning a graded Message into a webhook POST against whichever sinks
// are configured (Discord, Slack, Telegram, or a generic JSON endpoint).
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"flare-observer/epoch"

	"github.com/pkg/errors"
)

// MessageLevel is the severity an issue is graded at. Ordering matters:
// CRITICAL denotes a protocol offence, ERROR a reward impact, WARNING
// degraded-but-scoring participation, INFO an expected-absent case.
type MessageLevel int

const (
	LevelInfo MessageLevel = iota
	LevelWarning
	LevelError
	LevelCritical
)

func (l MessageLevel) String() string {
	switch l {
	case LevelInfo:
		return "INFO"
	case LevelWarning:
		return "WARNING"
	case LevelError:
		return "ERROR"
	case LevelCritical:
		return "CRITICAL"
	default:
		return "UNKNOWN"
	}
}

// Message is one graded issue, carrying enough context (network, round,
// protocol) that a generic sink can render it without re-deriving it from
// the originating validator call.
type Message struct {
	Level         MessageLevel
	Text          string
	ChainID       int64
	VotingEpochID int64
	Protocol      uint8
}

// String renders the "<LEVEL> <message>" form the Discord/Slack/Telegram
// sinks post as plain text.
func (m Message) String() string {
	return fmt.Sprintf("%s %s", m.Level, m.Text)
}

// MessageBuilder binds the network/round/protocol context once per
// validator invocation, so every issue it emits for that invocation
// carries identical context.
type MessageBuilder struct {
	chainID       int64
	votingEpochID int64
	protocol      uint8
}

func NewMessageBuilder() *MessageBuilder {
	return &MessageBuilder{}
}

func (b *MessageBuilder) WithChainID(id int64) *MessageBuilder {
	b.chainID = id
	return b
}

func (b *MessageBuilder) WithRound(v epoch.VotingEpoch) *MessageBuilder {
	b.votingEpochID = v.Id
	return b
}

func (b *MessageBuilder) WithProtocol(protocolID uint8) *MessageBuilder {
	b.protocol = protocolID
	return b
}

func (b *MessageBuilder) Build(level MessageLevel, text string) Message {
	return Message{
		Level:         level,
		Text:          text,
		ChainID:       b.chainID,
		VotingEpochID: b.votingEpochID,
		Protocol:      b.protocol,
	}
}

// Config is the notification section of the process configuration:
// any of the four sinks may be nil to disable it.
type Config struct {
	Discord  *DiscordConfig
	Slack    *SlackConfig
	Telegram *TelegramConfig
	Generic  *GenericConfig
}

type DiscordConfig struct {
	WebhookURL string `toml:"webhook_url"`
}

type SlackConfig struct {
	WebhookURL string `toml:"webhook_url"`
}

type TelegramConfig struct {
	BotToken string `toml:"bot_token"`
	ChatID   string `toml:"chat_id"`
}

type GenericConfig struct {
	URL string `toml:"url"`
}

// Sender fans a Message out to every configured sink. Each sink's failure
// is independent -- one webhook being down must not suppress the others.
type Sender struct {
	cfg    Config
	client *http.Client
}

func NewSender(cfg Config) *Sender {
	return &Sender{cfg: cfg, client: &http.Client{Timeout: 10 * time.Second}}
}

// Send posts msg to every enabled sink, returning the first error
// encountered (if any) after attempting all of them.
func (s *Sender) Send(ctx context.Context, msg Message) error {
	var firstErr error
	record := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	if s.cfg.Discord != nil {
		record(errors.Wrap(s.postDiscord(ctx, msg), "notify discord"))
	}
	if s.cfg.Slack != nil {
		record(errors.Wrap(s.postSlack(ctx, msg), "notify slack"))
	}
	if s.cfg.Telegram != nil {
		record(errors.Wrap(s.postTelegram(ctx, msg), "notify telegram"))
	}
	if s.cfg.Generic != nil {
		record(errors.Wrap(s.postGeneric(ctx, msg), "notify generic"))
	}
	return firstErr
}

func (s *Sender) postJSON(ctx context.Context, target string, body []byte) error {
	return withRetry(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(body))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := s.client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 300 {
			return errors.Errorf("unexpected status %d from %s", resp.StatusCode, target)
		}
		return nil
	})
}

func (s *Sender) postDiscord(ctx context.Context, msg Message) error {
	body, err := json.Marshal(struct {
		Content string `json:"content"`
	}{Content: msg.String()})
	if err != nil {
		return err
	}
	return s.postJSON(ctx, s.cfg.Discord.WebhookURL, body)
}

func (s *Sender) postSlack(ctx context.Context, msg Message) error {
	body, err := json.Marshal(struct {
		Text string `json:"text"`
	}{Text: msg.String()})
	if err != nil {
		return err
	}
	return s.postJSON(ctx, s.cfg.Slack.WebhookURL, body)
}

func (s *Sender) postTelegram(ctx context.Context, msg Message) error {
	endpoint := fmt.Sprintf("https://api.telegram.org/bot%s/sendMessage", s.cfg.Telegram.BotToken)
	form := url.Values{}
	form.Set("chat_id", s.cfg.Telegram.ChatID)
	form.Set("text", msg.String())

	return withRetry(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewBufferString(form.Encode()))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

		resp, err := s.client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 300 {
			return errors.Errorf("unexpected status %d from telegram", resp.StatusCode)
		}
		return nil
	})
}

func (s *Sender) postGeneric(ctx context.Context, msg Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return s.postJSON(ctx, s.cfg.Generic.URL, body)
}
