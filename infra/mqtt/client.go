package mqtt

import (
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	coremqtt "github.com/wastemaster/wastemaster/core/mqtt"
	"github.com/wastemaster/wastemaster/infra/logger"
)

// Config defines the connection parameters for the Paho MQTT client.
type Config struct {
	Broker      string          `json:"broker"`
	ClientID    string          `json:"client_id"`
	Username    string          `json:"username"`
	Password    string          `json:"password"`
	AckTopic    string          `json:"ack_topic"`
	SignalTopic string          `json:"signal_topic"`
	UseTLS      bool            `json:"use_tls"`
	ClientCert  string          `json:"client_cert"`
	ClientKey   string          `json:"client_key"`
	CABundle    string          `json:"ca_bundle"`
	AuthMethod  string          `json:"auth_method"`
	QoS         map[string]byte `json:"qos"`
	LWTTopic    string          `json:"lwt_topic"`
	LWTPayload  string          `json:"lwt_payload"`
	LWTQoS      byte            `json:"lwt_qos"`
	LWTRetain   bool            `json:"lwt_retain"`
	MaxRetries  int             `json:"max_retries"`
	BackoffMS   int             `json:"backoff_ms"`
	// AckTimeoutSeconds bounds how long the notifier waits for a crew ack.
	AckTimeoutSeconds int         `json:"ack_timeout_seconds"`
	TLSConfig         *tls.Config `json:"-"`
}

// Signal is a field crew lifecycle message received on the signal topic.
type Signal struct {
	OccurrenceID string    `json:"occurrence_id"`
	Action       string    `json:"action"` // "start" or "complete"
	Account      string    `json:"account"`
	Secret       string    `json:"secret"`
	At           time.Time `json:"at"`
}

type pahoClient interface {
	IsConnected() bool
	Connect() paho.Token
	Disconnect(quiesce uint)
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
	Subscribe(topic string, qos byte, callback paho.MessageHandler) paho.Token
}

// PahoClient implements the core mqtt.Client interface using Eclipse Paho.
type PahoClient struct {
	cli         pahoClient
	ackTopic    string
	signalTopic string
	qos         map[string]byte

	mu            sync.Mutex
	ackChans      map[string]chan struct{}
	signalHandler func(Signal)
	logger        logger.Logger
	maxRetries    int
	backoff       time.Duration
}

var newMQTTClient = func(opts *paho.ClientOptions) pahoClient {
	return paho.NewClient(opts)
}

// NewPahoClient connects to the MQTT broker and subscribes to the ACK and
// lifecycle signal topics.
func NewPahoClient(cfg Config) (*PahoClient, error) {
	opts, err := NewClientOptions(cfg)
	if err != nil {
		return nil, err
	}

	log := logger.New("mqtt_client")
	pc := &PahoClient{
		ackTopic:    cfg.AckTopic,
		signalTopic: cfg.SignalTopic,
		ackChans:    make(map[string]chan struct{}),
		logger:      log,
		qos:         cfg.QoS,
		maxRetries:  cfg.MaxRetries,
		backoff:     time.Duration(cfg.BackoffMS) * time.Millisecond,
	}

	opts.OnConnect = func(c paho.Client) {
		log.Infof("MQTT connected")
		if pc.ackTopic != "" {
			if token := c.Subscribe(pc.ackTopic, pc.topicQoS("ack"), pc.onAck); token.Wait() && token.Error() != nil {
				log.Errorf("subscribe ack: %v", token.Error())
			}
		}
		if pc.signalTopic != "" {
			if token := c.Subscribe(pc.signalTopic, pc.topicQoS("signal"), pc.onSignal); token.Wait() && token.Error() != nil {
				log.Errorf("subscribe signal: %v", token.Error())
			}
		}
	}
	opts.OnConnectionLost = func(_ paho.Client, err error) {
		log.Errorf("connection lost: %v", err)
	}
	opts.OnReconnecting = func(_ paho.Client, _ *paho.ClientOptions) {
		log.Warnf("reconnecting to MQTT broker")
	}
	c := newMQTTClient(opts)
	if token := c.Connect(); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}
	pc.cli = c
	return pc, nil
}

// NewClientOptions builds mqtt client options from Config.
func NewClientOptions(cfg Config) (*paho.ClientOptions, error) {
	opts := paho.NewClientOptions().AddBroker(cfg.Broker).SetClientID(cfg.ClientID)
	opts.AutoReconnect = true
	if cfg.AuthMethod == "username_password" || cfg.AuthMethod == "both" || cfg.AuthMethod == "" {
		if cfg.Username != "" {
			opts.SetUsername(cfg.Username)
		}
		if cfg.Password != "" {
			opts.SetPassword(cfg.Password)
		}
	}
	if cfg.UseTLS {
		tlsCfg, err := cfg.LoadTLSConfig()
		if err != nil {
			return nil, err
		}
		opts.SetTLSConfig(tlsCfg)
	}
	if cfg.LWTTopic != "" {
		opts.SetWill(cfg.LWTTopic, cfg.LWTPayload, cfg.LWTQoS, cfg.LWTRetain)
	}
	return opts, nil
}

// LoadTLSConfig loads the TLS configuration from the file paths in the config.
func (c Config) LoadTLSConfig() (*tls.Config, error) {
	if c.TLSConfig != nil {
		return c.TLSConfig, nil
	}
	if c.ClientCert == "" || c.ClientKey == "" || c.CABundle == "" {
		return nil, fmt.Errorf("tls config requires client_cert, client_key and ca_bundle")
	}
	cert, err := tls.LoadX509KeyPair(c.ClientCert, c.ClientKey)
	if err != nil {
		return nil, fmt.Errorf("load cert: %w", err)
	}
	caBytes, err := os.ReadFile(c.CABundle)
	if err != nil {
		return nil, fmt.Errorf("read ca: %w", err)
	}
	pool := x509.NewCertPool()
	pool.AppendCertsFromPEM(caBytes)
	cfg := &tls.Config{Certificates: []tls.Certificate{cert}, RootCAs: pool, MinVersion: tls.VersionTLS12}
	return cfg, nil
}

// SetSignalHandler registers the callback invoked for each lifecycle signal.
func (p *PahoClient) SetSignalHandler(h func(Signal)) {
	p.mu.Lock()
	p.signalHandler = h
	p.mu.Unlock()
}

func (p *PahoClient) topicQoS(name string) byte {
	if q, ok := p.qos[name]; ok {
		return q
	}
	return 0
}

func (p *PahoClient) onAck(_ paho.Client, msg paho.Message) {
	var m struct {
		OrderID string `json:"order_id"`
	}
	if err := json.Unmarshal(msg.Payload(), &m); err != nil {
		p.logger.Errorf("failed to decode ack: %v", err)
		return
	}
	p.mu.Lock()
	ch, ok := p.ackChans[m.OrderID]
	if ok {
		select {
		case ch <- struct{}{}:
		default:
		}
		p.logger.Infof("received ack %s", m.OrderID)
	}
	p.mu.Unlock()
}

func (p *PahoClient) onSignal(_ paho.Client, msg paho.Message) {
	var sig Signal
	if err := json.Unmarshal(msg.Payload(), &sig); err != nil {
		p.logger.Errorf("failed to decode signal: %v", err)
		return
	}
	p.mu.Lock()
	h := p.signalHandler
	p.mu.Unlock()
	if h == nil {
		p.logger.Warnf("no signal handler registered, dropping %s for %s", sig.Action, sig.OccurrenceID)
		return
	}
	h(sig)
}

// SendAssignment sends the order to the vehicle specific topic and returns
// the order identifier used for acknowledgment tracking.
func (p *PahoClient) SendAssignment(order coremqtt.AssignmentOrder) (string, error) {
	orderID := uuid.NewString()
	payload, err := json.Marshal(struct {
		OrderID string `json:"order_id"`
		coremqtt.AssignmentOrder
	}{OrderID: orderID, AssignmentOrder: order})
	if err != nil {
		return "", err
	}

	topic := fmt.Sprintf("crew/%s/orders", order.VehicleID)
	qos := p.topicQoS("order")
	if p.maxRetries <= 0 {
		p.maxRetries = 3
	}
	if p.backoff <= 0 {
		p.backoff = 100 * time.Millisecond
	}
	var publishErr error
	for attempt := 0; attempt <= p.maxRetries; attempt++ {
		token := p.cli.Publish(topic, qos, false, payload)
		token.Wait()
		publishErr = token.Error()
		if publishErr == nil {
			p.logger.Infof("sent order %s to %s", orderID, topic)
			break
		}
		p.logger.Errorf("publish attempt %d failed: %v", attempt+1, publishErr)
		time.Sleep(p.backoff * time.Duration(1<<attempt))
	}
	if publishErr != nil {
		return "", publishErr
	}

	p.mu.Lock()
	p.ackChans[orderID] = make(chan struct{}, 1)
	p.mu.Unlock()

	return orderID, nil
}

// WaitForAck blocks until an ACK for the given order ID is received or timeout.
func (p *PahoClient) WaitForAck(orderID string, timeout time.Duration) (bool, error) {
	p.mu.Lock()
	ch := p.ackChans[orderID]
	p.mu.Unlock()
	if ch == nil {
		return false, fmt.Errorf("unknown order")
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-ch:
		p.mu.Lock()
		delete(p.ackChans, orderID)
		p.mu.Unlock()
		return true, nil
	case <-timer.C:
		p.mu.Lock()
		delete(p.ackChans, orderID)
		p.mu.Unlock()
		return false, fmt.Errorf("%w", coremqtt.ErrAckTimeout)
	}
}

// Disconnect gracefully closes the MQTT connection.
func (p *PahoClient) Disconnect() {
	if p.cli != nil && p.cli.IsConnected() {
		p.cli.Disconnect(250)
	}
}
