package mqtt

import (
	"fmt"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/hearth-home/hearth-core/internal/infrastructure/config"
)

// Connection timing constants.
const (
	// defaultConnectTimeout is how long to wait for the initial connection.
	defaultConnectTimeout = 10 * time.Second

	// defaultPublishTimeout is how long to wait for a publish to complete.
	defaultPublishTimeout = 5 * time.Second

	// defaultSubscribeTimeout is how long to wait for a subscribe to complete.
	defaultSubscribeTimeout = 5 * time.Second

	// defaultKeepAlive is the MQTT keep-alive interval.
	defaultKeepAlive = 30 * time.Second

	// defaultPingTimeout is how long to wait for a ping response.
	defaultPingTimeout = 10 * time.Second

	// defaultDisconnectQuiesce is the graceful disconnect wait in milliseconds.
	defaultDisconnectQuiesce = 250
)

// buildClientOptions constructs paho client options from Hearth config.
func buildClientOptions(cfg config.MQTTConfig) *pahomqtt.ClientOptions {
	opts := pahomqtt.NewClientOptions()

	scheme := "tcp"
	if cfg.Broker.TLS {
		scheme = "ssl"
	}
	opts.AddBroker(fmt.Sprintf("%s://%s:%d", scheme, cfg.Broker.Host, cfg.Broker.Port))

	opts.SetClientID(cfg.Broker.ClientID)

	if cfg.Auth.Username != "" {
		opts.SetUsername(cfg.Auth.Username)
		opts.SetPassword(cfg.Auth.Password)
	}

	opts.SetKeepAlive(defaultKeepAlive)
	opts.SetPingTimeout(defaultPingTimeout)
	opts.SetConnectTimeout(defaultConnectTimeout)

	// Reconnection with exponential backoff handled by paho; we only cap
	// the maximum interval from config.
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(time.Duration(cfg.Reconnect.InitialDelay) * time.Second)
	opts.SetMaxReconnectInterval(time.Duration(cfg.Reconnect.MaxDelay) * time.Second)

	// Clean session: the hub resubscribes on reconnect itself, and stale
	// queued messages from a previous incarnation are not wanted.
	opts.SetCleanSession(true)
	opts.SetOrderMatters(true)

	return opts
}

// configureLWT sets the Last Will and Testament message.
//
// If the hub crashes or loses its connection without a clean disconnect,
// the broker publishes this retained offline status so plugins and
// dashboards can tell the hub is gone.
func configureLWT(opts *pahomqtt.ClientOptions, clientID string) {
	topic := Topics{}.SystemStatus()
	payload := buildLWTPayload(clientID)
	opts.SetWill(topic, string(payload), 1, true)
}

// buildOnlinePayload builds the retained online status message.
func buildOnlinePayload(clientID string) []byte {
	return []byte(fmt.Sprintf(
		`{"state":"online","client_id":%q,"time":%q}`,
		clientID, time.Now().UTC().Format(time.RFC3339),
	))
}

// buildOfflinePayload builds the retained graceful offline status message.
func buildOfflinePayload(clientID string) []byte {
	return []byte(fmt.Sprintf(
		`{"state":"offline","client_id":%q,"time":%q}`,
		clientID, time.Now().UTC().Format(time.RFC3339),
	))
}

// buildLWTPayload builds the crash offline status message.
// The LWT payload is fixed at connect time, so it carries no timestamp.
func buildLWTPayload(clientID string) []byte {
	return []byte(fmt.Sprintf(`{"state":"lost","client_id":%q}`, clientID))
}
