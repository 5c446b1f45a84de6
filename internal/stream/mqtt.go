package stream

import (
	"fmt"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

const (
	DefaultMQTTTopic = "eeg/{device}/tick"
	publishTimeout   = 2 * time.Second
)

// MQTTConfig holds MQTT publisher configuration
type MQTTConfig struct {
	Broker   string
	ClientID string
	Username string
	Password string
	Topic    string // e.g. "eeg/{device}/tick"
	Device   string
	QoS      byte
}

// MQTTPublisher publishes ticks on one topic
type MQTTPublisher struct {
	client mqtt.Client
	topic  string
	qos    byte
}

// NewMQTTPublisher connects to the broker
func NewMQTTPublisher(config MQTTConfig) (*MQTTPublisher, error) {
	if config.Topic == "" {
		config.Topic = DefaultMQTTTopic
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(config.Broker)
	opts.SetClientID(config.ClientID)
	opts.SetUsername(config.Username)
	opts.SetPassword(config.Password)
	opts.SetAutoReconnect(true)
	opts.SetKeepAlive(60 * time.Second)
	opts.SetPingTimeout(10 * time.Second)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker: %w", token.Error())
	}

	return &MQTTPublisher{
		client: client,
		topic:  FormatTopic(config.Topic, config.Device),
		qos:    config.QoS,
	}, nil
}

func (p *MQTTPublisher) Name() string { return "mqtt" }

// Publish waits at most publishTimeout for the broker acknowledgement
func (p *MQTTPublisher) Publish(payload []byte) error {
	token := p.client.Publish(p.topic, p.qos, false, payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("mqtt publish %s: timed out", p.topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt publish %s: %w", p.topic, err)
	}
	return nil
}

func (p *MQTTPublisher) Close() error {
	p.client.Disconnect(250)
	return nil
}

// FormatTopic replaces the {device} placeholder
func FormatTopic(pattern, device string) string {
	if device == "" {
		device = "default"
	}
	return strings.ReplaceAll(pattern, "{device}", device)
}
