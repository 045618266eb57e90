package mqtt

import "fmt"

// Topic scheme:
//
//	hearth/ingress                   <- all plugin-to-hub envelopes
//	hearth/plugin/{routing_address}  <- hub-to-plugin envelopes
//	hearth/system/status             <- retained hub online/offline status
//
// Plugins publish wire envelopes to the shared ingress topic and
// subscribe to their own plugin topic. The hub subscribes to ingress
// and publishes to the per-plugin topics; a plugin's routing address is
// its topic leaf.
const (
	// topicPrefix is the root of the Hearth topic namespace.
	topicPrefix = "hearth"

	// ingressLeaf is the shared plugin-to-hub topic leaf.
	ingressLeaf = "ingress"

	// pluginLeaf is the hub-to-plugin topic branch.
	pluginLeaf = "plugin"
)

// Topics builds topic strings for the Hearth namespace.
// The zero value is ready to use.
type Topics struct{}

// Ingress returns the shared topic all plugins publish envelopes to.
func (Topics) Ingress() string {
	return topicPrefix + "/" + ingressLeaf
}

// Plugin returns the outbound topic for a plugin routing address.
func (Topics) Plugin(routingAddress string) string {
	return fmt.Sprintf("%s/%s/%s", topicPrefix, pluginLeaf, routingAddress)
}

// SystemStatus returns the retained hub status topic.
func (Topics) SystemStatus() string {
	return topicPrefix + "/system/status"
}
