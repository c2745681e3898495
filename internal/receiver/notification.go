package receiver

import (
	"errors"
	"strings"
)

// Notification is one line of the client protocol, including its trailing
// newline: "OK:<key>:<value>\n" or "ERROR:...\n".
type Notification string

// Fixed client protocol lines.
const (
	InvalidCommand Notification = "ERROR:Invalid Command\n"
	ReceiverError  Notification = "ERROR:Receiver Error\n"
)

// OK builds a success notification.
func OK(key, value string) Notification {
	return Notification("OK:" + key + ":" + value + "\n")
}

// Failure builds a keyed error notification.
func Failure(key, reason string) Notification {
	return Notification("ERROR:" + key + ":" + reason + "\n")
}

// ForError maps an error to the notification a client should see.
func ForError(err error) Notification {
	if errors.Is(err, ErrInvalidCommand) {
		return InvalidCommand
	}
	return ReceiverError
}

// Line returns the notification as written on the wire to clients.
func (n Notification) Line() string {
	return string(n)
}

// Fields splits a notification into its status, key and value. Keyless
// errors such as "ERROR:Invalid Command" return an empty key.
func (n Notification) Fields() (ok bool, key, value string) {
	s := strings.TrimRight(string(n), "\r\n")
	var rest string
	switch {
	case strings.HasPrefix(s, "OK:"):
		ok, rest = true, strings.TrimPrefix(s, "OK:")
	case strings.HasPrefix(s, "ERROR:"):
		rest = strings.TrimPrefix(s, "ERROR:")
	default:
		return false, "", s
	}
	key, value, found := strings.Cut(rest, ":")
	if !found {
		return ok, "", rest
	}
	return ok, key, value
}
