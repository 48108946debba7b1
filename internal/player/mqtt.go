package player

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/belphemur/athan-scheduler/internal/config"
	"github.com/belphemur/athan-scheduler/internal/logging"
	"github.com/rs/zerolog"
)

// Publisher is the part of an MQTT client the speaker output needs
type Publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// SpeakerMessage is the JSON payload published to networked speakers
type SpeakerMessage struct {
	Action string `json:"action"`
	Prayer string `json:"prayer,omitempty"`
	Date   string `json:"date,omitempty"`
	File   string `json:"file,omitempty"`
	Volume int    `json:"volume,omitempty"`
	SentAt string `json:"sent_at"`
}

// MQTTPlayer asks networked speakers to play by publishing to a topic
type MQTTPlayer struct {
	client  Publisher
	topic   string
	qos     byte
	timeout time.Duration
	now     func() time.Time
	logger  zerolog.Logger
}

// NewMQTTPlayer creates a speaker output publishing on topic
func NewMQTTPlayer(client Publisher, topic string, qos byte) *MQTTPlayer {
	return &MQTTPlayer{
		client:  client,
		topic:   topic,
		qos:     qos,
		timeout: 5 * time.Second,
		now:     time.Now,
		logger:  logging.GetLogger("player-mqtt"),
	}
}

// Connect opens the MQTT client described by cfg
func Connect(cfg config.MQTTConfig) (mqtt.Client, error) {
	logger := logging.GetLogger("player-mqtt")

	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	opts.SetUsername(cfg.Username)
	opts.SetPassword(cfg.Password)
	opts.SetAutoReconnect(true)
	opts.SetConnectTimeout(10 * time.Second)
	opts.OnConnect = func(mqtt.Client) {
		logger.Info().Str("broker", cfg.Broker).Msg("Connected to MQTT broker")
	}
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		logger.Warn().Err(err).Str("broker", cfg.Broker).Msg("MQTT connection lost")
	}

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker %s: %w", cfg.Broker, token.Error())
	}
	return client, nil
}

// Play publishes a play message; speakers resolve the file by its base name
func (p *MQTTPlayer) Play(ctx context.Context, req Request) error {
	return p.publish(ctx, SpeakerMessage{
		Action: "play",
		Prayer: string(req.Prayer),
		Date:   req.Date,
		File:   filepath.Base(req.File),
		Volume: req.Volume,
	})
}

// Stop publishes a stop message
func (p *MQTTPlayer) Stop(ctx context.Context) error {
	return p.publish(ctx, SpeakerMessage{Action: "stop"})
}

func (p *MQTTPlayer) publish(ctx context.Context, msg SpeakerMessage) error {
	msg.SentAt = p.now().UTC().Format(time.RFC3339)
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to encode speaker message: %w", err)
	}

	token := p.client.Publish(p.topic, p.qos, false, payload)
	select {
	case <-token.Done():
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(p.timeout):
		return errors.New("timed out publishing speaker message")
	}
	if err := token.Error(); err != nil {
		p.logger.Error().Err(err).Str("topic", p.topic).Str("action", msg.Action).Msg("Failed to publish speaker message")
		return fmt.Errorf("failed to publish to %s: %w", p.topic, err)
	}

	p.logger.Debug().Str("topic", p.topic).Str("action", msg.Action).Msg("Speaker message published")
	return nil
}
