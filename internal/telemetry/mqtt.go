// Package telemetry publishes session lifecycle events and extension
// notifications to an MQTT broker.
package telemetry

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog/log"

	"github.com/nrelay-go/nrelay/internal/config"
	"github.com/nrelay-go/nrelay/internal/events"
	"github.com/nrelay-go/nrelay/internal/util"
)

// MQTT topic suffixes, appended to the configured prefix.
const (
	TopicAdmin        = "admin"
	TopicSession      = "session"
	TopicFailure      = "session/failure"
	TopicNotification = "notification"
)

// AppVersion is reported in every message.
var AppVersion = "dev"

// MQTTHandler manages the MQTT connection and publishes telemetry events.
type MQTTHandler struct {
	cfg      config.MQTTConfig
	eventBus *events.EventBus
	client   mqtt.Client

	// Metadata included in every message
	metadata map[string]interface{}
}

// NewMQTTHandler creates a new MQTT telemetry handler.
func NewMQTTHandler(cfg config.MQTTConfig, eventBus *events.EventBus) (*MQTTHandler, error) {
	if !cfg.Enabled {
		return nil, fmt.Errorf("MQTT is disabled")
	}

	hostInfo := util.GetHostInfo()
	metadata := map[string]interface{}{
		"hostname":    hostInfo.Hostname,
		"os":          hostInfo.OS,
		"app_version": AppVersion,
	}

	handler := &MQTTHandler{
		cfg:      cfg,
		eventBus: eventBus,
		metadata: metadata,
	}

	opts := mqtt.NewClientOptions()
	scheme := "tcp"
	if cfg.UseTLS {
		scheme = "ssl"
	}
	opts.AddBroker(fmt.Sprintf("%s://%s:%d", scheme, cfg.BrokerURL, cfg.Port))

	if cfg.ClientID != "" {
		opts.SetClientID(cfg.ClientID)
	} else {
		opts.SetClientID(fmt.Sprintf("nrelay-%s", hostInfo.Hostname))
	}
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}

	opts.SetAutoReconnect(true)
	opts.SetMaxReconnectInterval(30 * time.Second)
	opts.SetKeepAlive(60 * time.Second)
	opts.SetCleanSession(true)

	if cfg.UseTLS {
		opts.SetTLSConfig(&tls.Config{MinVersion: tls.VersionTLS12})
	}

	opts.SetOnConnectHandler(func(client mqtt.Client) {
		log.Info().Msg("MQTT connected")
	})
	opts.SetConnectionLostHandler(func(client mqtt.Client, err error) {
		log.Warn().Err(err).Msg("MQTT connection lost")
	})

	handler.client = mqtt.NewClient(opts)
	return handler, nil
}

// Start connects to the MQTT broker, subscribes to events and blocks until
// ctx is cancelled.
func (h *MQTTHandler) Start(ctx context.Context) error {
	log.Info().
		Str("broker", h.cfg.BrokerURL).
		Int("port", h.cfg.Port).
		Msg("connecting to MQTT broker")

	token := h.client.Connect()
	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("MQTT connect failed: %w", token.Error())
	}

	h.subscribeEvents()

	<-ctx.Done()

	h.PublishShutdown()
	h.client.Disconnect(5000)
	log.Info().Msg("MQTT disconnected")

	return nil
}

func (h *MQTTHandler) subscribeEvents() {
	for _, t := range []events.EventType{
		events.EventConnected,
		events.EventDisconnected,
		events.EventCharacterCreated,
		events.EventMapChanged,
		events.EventFailure,
		events.EventNotification,
	} {
		h.eventBus.Subscribe(t, "mqtt", h.onEvent)
	}
}

func (h *MQTTHandler) onEvent(ctx context.Context, event events.Event) error {
	h.publish(TopicFor(h.cfg.TopicPrefix, event.Type), map[string]interface{}{
		"event":   string(event.Type),
		"payload": event.Payload,
	})
	return nil
}

// TopicFor maps an event type to its topic under prefix.
func TopicFor(prefix string, t events.EventType) string {
	var suffix string
	switch t {
	case events.EventFailure:
		suffix = TopicFailure
	case events.EventNotification:
		suffix = TopicNotification
	case events.EventShutdown:
		suffix = TopicAdmin
	default:
		suffix = TopicSession
	}
	prefix = strings.TrimSuffix(prefix, "/")
	if prefix == "" {
		return suffix
	}
	return prefix + "/" + suffix
}

// publish sends a JSON message to an MQTT topic.
func (h *MQTTHandler) publish(topic string, payload interface{}) {
	if !h.client.IsConnected() {
		return
	}

	data, err := json.Marshal(BuildMessage(h.metadata, payload, time.Now()))
	if err != nil {
		log.Warn().Err(err).Str("topic", topic).Msg("failed to marshal MQTT message")
		return
	}

	token := h.client.Publish(topic, 1, false, data) // QoS 1
	go func() {
		token.Wait()
		if token.Error() != nil {
			log.Warn().Err(token.Error()).Str("topic", topic).Msg("MQTT publish failed")
		}
	}()
}

// BuildMessage combines metadata with the event payload.
func BuildMessage(metadata map[string]interface{}, payload interface{}, now time.Time) map[string]interface{} {
	msg := make(map[string]interface{}, len(metadata)+2)
	for k, v := range metadata {
		msg[k] = v
	}
	msg["payload"] = payload
	msg["timestamp"] = now.UTC().Format(time.RFC3339)
	return msg
}

// PublishShutdown sends a shutdown message to the MQTT broker.
func (h *MQTTHandler) PublishShutdown() {
	h.publish(TopicFor(h.cfg.TopicPrefix, events.EventShutdown), map[string]interface{}{
		"event": string(events.EventShutdown),
	})
}
