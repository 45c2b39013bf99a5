package extensions

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/nrelay-go/nrelay/internal/client"
	"github.com/nrelay-go/nrelay/internal/config"
	"github.com/nrelay-go/nrelay/internal/events"
	"github.com/nrelay-go/nrelay/internal/hooks"
	"github.com/nrelay-go/nrelay/internal/protocol"
	"github.com/nrelay-go/nrelay/internal/util"
)

const notifierName = "Event Notifier"

// Notifier watches server text for configured keywords and raises a
// notification at the rule's level. Rules are checked in order and the
// first match wins.
type Notifier struct {
	rules []config.NotifierRule
	bus   *events.EventBus
}

// NewNotifier creates a notifier. bus may be nil.
func NewNotifier(rules []config.NotifierRule, bus *events.EventBus) *Notifier {
	return &Notifier{rules: rules, bus: bus}
}

func (n *Notifier) Info() hooks.Info {
	return hooks.Info{
		Name:        notifierName,
		Author:      "tcrane",
		Description: "logs server announcements that match keyword rules",
	}
}

func (n *Notifier) Register(r *hooks.Registry) {
	hooks.On(r, notifierName, n.onText)
}

// Match returns the first rule that fires for text.
func (n *Notifier) Match(text string) (config.NotifierRule, bool) {
	for _, rule := range n.rules {
		if !strings.Contains(text, rule.Keyword) {
			continue
		}
		if rule.MaxCount > 0 {
			count, ok := leadingCount(text)
			if !ok || count > rule.MaxCount {
				continue
			}
		}
		return rule, true
	}
	return config.NotifierRule{}, false
}

func (n *Notifier) onText(c *client.Client, pkt *protocol.TextPacket) error {
	rule, ok := n.Match(pkt.Text)
	if !ok {
		return nil
	}

	msg := fmt.Sprintf("%s :: %s", c.Server().Name, pkt.Text)
	logger := c.Logger()
	switch events.NotificationLevel(rule.Level) {
	case events.LevelError:
		logger.Error().Str("extension", notifierName).Msg(msg)
	case events.LevelSuccess:
		util.Success(logger).Str("extension", notifierName).Msg(msg)
	default:
		logger.Info().Str("extension", notifierName).Msg(msg)
	}

	if n.bus != nil {
		n.bus.Emit(context.Background(), events.Event{
			Type:   events.EventNotification,
			Source: notifierName,
			Payload: events.NotificationPayload{
				Title:   notifierName,
				Message: msg,
				Level:   events.NotificationLevel(rule.Level),
			},
		})
	}
	return nil
}

// leadingCount keeps only the digits and dots of text and parses the
// leading run of digits, so "3 Liches. 2 left" yields 3.
func leadingCount(text string) (int, bool) {
	kept := strings.Map(func(r rune) rune {
		if (r >= '0' && r <= '9') || r == '.' {
			return r
		}
		return -1
	}, text)
	if i := strings.IndexByte(kept, '.'); i >= 0 {
		kept = kept[:i]
	}
	if kept == "" {
		return 0, false
	}
	n, err := strconv.Atoi(kept)
	if err != nil {
		return 0, false
	}
	return n, true
}
