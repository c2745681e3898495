package relay

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// SourceMQTT tags commands that arrived over MQTT.
const SourceMQTT = "mqtt"

// submitTimeout bounds how long an MQTT handler waits on the gateway.
const submitTimeout = 5 * time.Second

// CommandSubmitter is the subset of *gateway.Gateway used for ingress.
type CommandSubmitter interface {
	Submit(ctx context.Context, receiverName, line, source string) error
}

// SubscribeCommands subscribes to every receiver command topic and feeds
// each payload line to submitter. A payload may carry several commands
// separated by newlines; the "all" topic targets every receiver.
func (r *Relay) SubscribeCommands(ctx context.Context, submitter CommandSubmitter) error {
	if r.opts.MQTT == nil {
		return nil
	}
	topics := r.opts.Topics
	return r.opts.MQTT.Subscribe(topics.AllReceiverCommands(), r.opts.QoS, func(topic string, payload []byte) error {
		name, ok := topics.ReceiverFromCommandTopic(topic)
		if !ok {
			return fmt.Errorf("relay: unexpected command topic %q", topic)
		}
		return r.submitPayload(ctx, submitter, name, payload)
	})
}

func (r *Relay) submitPayload(ctx context.Context, submitter CommandSubmitter, name string, payload []byte) error {
	var errs []error
	for line := range strings.Lines(string(payload)) {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		subCtx, cancel := context.WithTimeout(ctx, submitTimeout)
		err := submitter.Submit(subCtx, name, line, SourceMQTT)
		cancel()
		if err != nil {
			r.logger.Debug("mqtt command rejected",
				"receiver", name,
				"command", line,
				"error", err,
			)
			errs = append(errs, fmt.Errorf("%q: %w", line, err))
		}
	}
	return errors.Join(errs...)
}
