package mqtt

import "strings"

// DefaultTopicPrefix is the root of every onkyod topic.
const DefaultTopicPrefix = "onkyod"

// Topics builds onkyod MQTT topics under a configurable prefix:
//
//	<prefix>/state/<receiver>/<key>     notifications (retained when OK)
//	<prefix>/command/<receiver>         command lines in
//	<prefix>/stats/<receiver>           counters on status dumps
//	<prefix>/system/status              online/offline, LWT
//
// The zero value uses DefaultTopicPrefix.
type Topics struct {
	Prefix string
}

func (t Topics) prefix() string {
	if t.Prefix == "" {
		return DefaultTopicPrefix
	}
	return strings.TrimSuffix(t.Prefix, "/")
}

// ReceiverState returns the topic for one notification key of a receiver.
//
// Example: onkyod/state/living/volume
func (t Topics) ReceiverState(receiver, key string) string {
	return t.prefix() + "/state/" + receiver + "/" + key
}

// ReceiverCommand returns the topic a receiver accepts command lines on.
//
// Example: onkyod/command/living
func (t Topics) ReceiverCommand(receiver string) string {
	return t.prefix() + "/command/" + receiver
}

// AllReceiverCommands returns the wildcard for every receiver's command topic.
func (t Topics) AllReceiverCommands() string {
	return t.prefix() + "/command/+"
}

// BroadcastCommand is the command topic that targets every receiver.
//
// Example: onkyod/command/all
func (t Topics) BroadcastCommand() string {
	return t.ReceiverCommand("all")
}

// ReceiverStats returns the topic for a receiver's counters.
func (t Topics) ReceiverStats(receiver string) string {
	return t.prefix() + "/stats/" + receiver
}

// SystemStatus returns the daemon status topic used for LWT.
func (t Topics) SystemStatus() string {
	return t.prefix() + "/system/status"
}

// ReceiverFromCommandTopic extracts the receiver name from a command topic.
// "all" maps to the empty name, meaning every receiver.
func (t Topics) ReceiverFromCommandTopic(topic string) (string, bool) {
	rest, ok := strings.CutPrefix(topic, t.prefix()+"/command/")
	if !ok || rest == "" || strings.Contains(rest, "/") {
		return "", false
	}
	if rest == "all" {
		return "", true
	}
	return rest, true
}
