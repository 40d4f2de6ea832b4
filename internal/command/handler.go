// Package command exposes the acknowledge/confirm protocol of
// internal/condition over MQTT, the same transport-facing role the
// teacher's internal/service.CommandHandler plays for Modbus/OPC UA
// write commands.
package command

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/gopcua/opcua/ua"
	"github.com/rs/zerolog"

	"github.com/nexus-edge/opcua-subscription-engine/internal/domain"
)

// ConditionRegistry resolves a condition node ID to the
// AcknowledgeableCondition Acknowledge/Confirm should run against.
// Modeled as an interface (rather than a concrete *condition.Registry)
// so this package does not need to import internal/condition's
// branch-resolution internals, only its method contract.
type ConditionRegistry interface {
	Acknowledge(conditionID string, eventID []byte, comment ua.LocalizedText) (ua.StatusCode, error)
	Confirm(conditionID string, eventID []byte, comment ua.LocalizedText) (ua.StatusCode, error)
}

// Config holds configuration for the command handler. Grounded on the
// teacher's service.CommandConfig: topic prefix, QoS, timeout, and an
// acknowledgement-response toggle all carry over unchanged in shape.
type Config struct {
	// TopicPrefix is the MQTT topic prefix for commands, e.g.
	// "$subscriptions/cmd".
	TopicPrefix string

	// QoS is the MQTT QoS level for command and response messages.
	QoS byte

	// Timeout is carried in the configuration only; Handler does not apply
	// it, and Acknowledge/Confirm calls run without a time bound.
	Timeout time.Duration

	// EnableAcknowledgement controls whether responses are published.
	EnableAcknowledgement bool
}

// DefaultConfig returns sensible defaults for the command handler.
func DefaultConfig() Config {
	return Config{
		TopicPrefix:           "$subscriptions/cmd",
		QoS:                   1,
		Timeout:               10 * time.Second,
		EnableAcknowledgement: true,
	}
}

// Stats tracks command handling statistics.
type Stats struct {
	Received  atomic.Uint64
	Succeeded atomic.Uint64
	Failed    atomic.Uint64
	Rejected  atomic.Uint64
}

// AcknowledgeCommand is the JSON payload of an acknowledge/confirm
// request published to "{TopicPrefix}/{conditionId}/acknowledge" or
// ".../confirm".
type AcknowledgeCommand struct {
	RequestID string `json:"request_id,omitempty"`
	EventID   string `json:"event_id"`
	Comment   string `json:"comment,omitempty"`
}

// CommandResponse is published to "{TopicPrefix}/response/{conditionId}"
// after processing an AcknowledgeCommand.
type CommandResponse struct {
	RequestID string `json:"request_id,omitempty"`
	EventID   string `json:"event_id"`
	Success   bool   `json:"success"`
	Status    string `json:"status,omitempty"`
	Error     string `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Duration  int64 `json:"duration_ms"`
}

// Handler subscribes to acknowledge/confirm command topics and routes
// them to a ConditionRegistry. Grounded on the teacher's
// internal/service.CommandHandler: same Start/Stop lifecycle,
// wildcard-topic subscription, per-message goroutine dispatch, and
// JSON response publishing, generalized from write-tag commands to
// acknowledge/confirm commands.
type Handler struct {
	mqttClient mqtt.Client
	registry   ConditionRegistry
	config     Config
	logger     zerolog.Logger
	stats      Stats
	running    atomic.Bool
	wg         sync.WaitGroup
}

// NewHandler creates a command handler bound to an already-configured
// MQTT client and a condition registry.
func NewHandler(mqttClient mqtt.Client, registry ConditionRegistry, config Config, logger zerolog.Logger) *Handler {
	return &Handler{
		mqttClient: mqttClient,
		registry:   registry,
		config:     config,
		logger:     logger.With().Str("component", "command-handler").Logger(),
	}
}

// Start subscribes to the acknowledge and confirm command topics.
func (h *Handler) Start() error {
	if h.running.Load() {
		return nil
	}

	ackTopic := h.config.TopicPrefix + "/+/acknowledge"
	if token := h.mqttClient.Subscribe(ackTopic, h.config.QoS, h.handleAcknowledge); token.Wait() && token.Error() != nil {
		return fmt.Errorf("%w: %v", domain.ErrMQTTSubscribeFailed, token.Error())
	}

	confirmTopic := h.config.TopicPrefix + "/+/confirm"
	if token := h.mqttClient.Subscribe(confirmTopic, h.config.QoS, h.handleConfirm); token.Wait() && token.Error() != nil {
		return fmt.Errorf("%w: %v", domain.ErrMQTTSubscribeFailed, token.Error())
	}

	h.running.Store(true)
	h.logger.Info().Str("topic_prefix", h.config.TopicPrefix).Msg("command handler started")
	return nil
}

// Stop unsubscribes from the command topics and waits for in-flight
// commands to finish.
func (h *Handler) Stop() error {
	if !h.running.Load() {
		return nil
	}
	h.mqttClient.Unsubscribe(h.config.TopicPrefix + "/+/acknowledge")
	h.mqttClient.Unsubscribe(h.config.TopicPrefix + "/+/confirm")
	h.wg.Wait()
	h.running.Store(false)
	h.logger.Info().Msg("command handler stopped")
	return nil
}

func conditionIDFromTopic(topic string, prefix string) string {
	// topic = "{prefix}/{conditionId}/acknowledge|confirm"
	rest := topic[len(prefix)+1:]
	for i := 0; i < len(rest); i++ {
		if rest[i] == '/' {
			return rest[:i]
		}
	}
	return rest
}

func (h *Handler) handleAcknowledge(client mqtt.Client, msg mqtt.Message) {
	h.dispatch(msg, h.registry.Acknowledge)
}

func (h *Handler) handleConfirm(client mqtt.Client, msg mqtt.Message) {
	h.dispatch(msg, h.registry.Confirm)
}

type registryMethod func(conditionID string, eventID []byte, comment ua.LocalizedText) (ua.StatusCode, error)

func (h *Handler) dispatch(msg mqtt.Message, method registryMethod) {
	h.stats.Received.Add(1)

	conditionID := conditionIDFromTopic(msg.Topic(), h.config.TopicPrefix)

	var cmd AcknowledgeCommand
	if err := json.Unmarshal(msg.Payload(), &cmd); err != nil {
		h.logger.Warn().Err(err).Str("topic", msg.Topic()).Msg("failed to parse acknowledge command")
		h.stats.Rejected.Add(1)
		return
	}

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		h.process(conditionID, cmd, method)
	}()
}

func (h *Handler) process(conditionID string, cmd AcknowledgeCommand, method registryMethod) {
	start := time.Now()

	eventID, err := hex.DecodeString(cmd.EventID)
	if err != nil {
		h.respond(conditionID, cmd, false, "", fmt.Sprintf("invalid event_id: %v", err), time.Since(start))
		h.stats.Failed.Add(1)
		return
	}

	status, err := method(conditionID, eventID, ua.NewLocalizedText(cmd.Comment, "en"))
	if err != nil {
		h.respond(conditionID, cmd, false, "", err.Error(), time.Since(start))
		h.stats.Failed.Add(1)
		return
	}
	if status != ua.StatusOK {
		h.respond(conditionID, cmd, false, fmt.Sprintf("%v", status), "", time.Since(start))
		h.stats.Failed.Add(1)
		return
	}

	h.respond(conditionID, cmd, true, fmt.Sprintf("%v", status), "", time.Since(start))
	h.stats.Succeeded.Add(1)
}

func (h *Handler) respond(conditionID string, cmd AcknowledgeCommand, success bool, status, errMsg string, duration time.Duration) {
	if !h.config.EnableAcknowledgement {
		return
	}

	resp := CommandResponse{
		RequestID: cmd.RequestID,
		EventID:   cmd.EventID,
		Success:   success,
		Status:    status,
		Error:     errMsg,
		Timestamp: time.Now(),
		Duration:  duration.Milliseconds(),
	}

	payload, err := json.Marshal(resp)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to marshal command response")
		return
	}

	topic := h.config.TopicPrefix + "/response/" + conditionID
	if token := h.mqttClient.Publish(topic, h.config.QoS, false, payload); token.Wait() && token.Error() != nil {
		h.logger.Error().Err(token.Error()).Msg("failed to publish command response")
	}
}

// GetStats returns a point-in-time snapshot of command handling counters.
func (h *Handler) GetStats() map[string]uint64 {
	return map[string]uint64{
		"received":  h.stats.Received.Load(),
		"succeeded": h.stats.Succeeded.Load(),
		"failed":    h.stats.Failed.Load(),
		"rejected":  h.stats.Rejected.Load(),
	}
}
