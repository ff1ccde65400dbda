package publisher

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"obdkit/internal/models"
	"obdkit/internal/monitor"
	"obdkit/internal/obd"
	"obdkit/pkg/log"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"
)

const (
	DefaultBroker   = "tcp://localhost:1883"
	DefaultClientID = "obdkit"
	DefaultTopic    = "obdkit"
)

// Config holds the MQTT connection settings.
type Config struct {
	Broker   string
	ClientID string
	// Topic is the prefix; readings go to <Topic>/pid/<PID>, trouble codes
	// to <Topic>/dtc and commands are read from <Topic>/cmd.
	Topic string
	QoS   byte
}

// CommandHandler executes a command received on the command topic.
type CommandHandler func(cmd string) error

// Publisher sends readings and trouble codes to an MQTT broker.
type Publisher struct {
	cfg       Config
	client    mqtt.Client
	onCommand CommandHandler
}

// New returns an unconnected publisher. onCommand may be nil.
func New(cfg Config, onCommand CommandHandler) *Publisher {
	if cfg.Broker == "" {
		cfg.Broker = DefaultBroker
	}
	if cfg.ClientID == "" {
		cfg.ClientID = DefaultClientID
	}
	if cfg.Topic == "" {
		cfg.Topic = DefaultTopic
	}
	return &Publisher{cfg: cfg, onCommand: onCommand}
}

func (p *Publisher) Connect() error {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(p.cfg.Broker)
	opts.SetClientID(p.cfg.ClientID)
	opts.SetAutoReconnect(true)
	opts.SetOnConnectHandler(func(client mqtt.Client) {
		log.Info("connected to MQTT broker", zap.String("broker", p.cfg.Broker))
		p.subscribe()
	})
	opts.SetConnectionLostHandler(func(client mqtt.Client, err error) {
		log.Warn("MQTT connection lost", zap.Error(err))
	})

	p.client = mqtt.NewClient(opts)
	if token := p.client.Connect(); token.Wait() && token.Error() != nil {
		return fmt.Errorf("mqtt connect: %w", token.Error())
	}
	return nil
}

func (p *Publisher) Disconnect() {
	if p.client != nil && p.client.IsConnected() {
		p.client.Disconnect(250)
	}
}

func (p *Publisher) subscribe() {
	if p.onCommand == nil {
		return
	}
	topic := p.cfg.Topic + "/cmd"
	token := p.client.Subscribe(topic, p.cfg.QoS, p.handleCommand)
	if token.Wait() && token.Error() != nil {
		log.Error("mqtt subscribe failed", zap.String("topic", topic), zap.Error(token.Error()))
	}
}

func (p *Publisher) handleCommand(_ mqtt.Client, msg mqtt.Message) {
	cmd := strings.TrimSpace(string(msg.Payload()))
	log.Info("command received", zap.String("command", cmd))
	if err := p.onCommand(cmd); err != nil {
		log.Error("command failed", zap.String("command", cmd), zap.Error(err))
	}
}

type readingPayload struct {
	PID       string      `json:"pid"`
	Name      string      `json:"name"`
	Value     int         `json:"value"`
	Vector    *obd.Vector `json:"vector,omitempty"`
	Unit      string      `json:"unit,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

type dtcPayload struct {
	Codes     []models.DTCEntry `json:"codes"`
	Timestamp time.Time         `json:"timestamp"`
}

func (p *Publisher) send(topic string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	token := p.client.Publish(topic, p.cfg.QoS, false, data)
	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("publish %s: %w", topic, token.Error())
	}
	log.Debug("published", zap.String("topic", topic), zap.Int("bytes", len(data)))
	return nil
}

// Publish sends one reading.
func (p *Publisher) Publish(r monitor.Reading) error {
	pid := fmt.Sprintf("%02X", r.PID)
	return p.send(p.cfg.Topic+"/pid/"+pid, readingPayload{
		PID:       pid,
		Name:      r.Name,
		Value:     r.Value,
		Vector:    r.Vector,
		Unit:      r.Unit,
		Timestamp: r.Time,
	})
}

// PublishDTCs sends the full list of stored trouble codes.
func (p *Publisher) PublishDTCs(codes []models.DTCEntry) error {
	if codes == nil {
		codes = []models.DTCEntry{}
	}
	return p.send(p.cfg.Topic+"/dtc", dtcPayload{Codes: codes, Timestamp: time.Now()})
}
