package receiver

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Fixed wire code fragments.
const (
	codeQuery  = "QSTN"
	codeOn     = "01"
	codeOff    = "00"
	codeToggle = "TG"
	codeUp     = "UP"
	codeDown   = "DOWN"
)

func invalidArg(c *CommandSpec, arg string) error {
	return fmt.Errorf("%w: %s %q", ErrInvalidCommand, c.Name, arg)
}

// isQuery reports whether arg asks for the current value.
func isQuery(arg string) bool {
	return arg == "" || arg == "status"
}

// parseUnsigned parses a base-10 number made only of ASCII digits.
func parseUnsigned(s string) (int, bool) {
	if s == "" || len(s) > 9 {
		return 0, false
	}
	n := 0
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, false
		}
		n = n*10 + int(r-'0')
	}
	return n, true
}

// enqueueCode queues prefix+code for the command's zone.
func enqueueCode(s *Session, c *CommandSpec, code string) ([]Notification, error) {
	return nil, s.Enqueue(QueuedCommand{Body: c.Prefix + code, Zone: c.Zone, Power: c.Power})
}

func booleanEncoder(toggle bool) encodeFunc {
	return func(s *Session, c *CommandSpec, arg string, _ time.Time) ([]Notification, error) {
		switch {
		case isQuery(arg):
			return enqueueCode(s, c, codeQuery)
		case arg == "on":
			return enqueueCode(s, c, codeOn)
		case arg == "off":
			return enqueueCode(s, c, codeOff)
		case arg == "toggle" && toggle:
			return enqueueCode(s, c, codeToggle)
		}
		return nil, invalidArg(c, arg)
	}
}

// numericRange describes a bounded integer argument. The wire value is
// (v+offset)*scale, or v+offset when scale is zero.
type numericRange struct {
	min, max int
	offset   int
	scale    int
	format   string
	upDown   bool
}

func (r numericRange) encode(v int) (string, bool) {
	if v < r.min || v > r.max {
		return "", false
	}
	v += r.offset
	if r.scale > 0 {
		v *= r.scale
	}
	return fmt.Sprintf(r.format, v), true
}

func rangedEncoder(r numericRange) encodeFunc {
	return func(s *Session, c *CommandSpec, arg string, _ time.Time) ([]Notification, error) {
		switch {
		case isQuery(arg):
			return enqueueCode(s, c, codeQuery)
		case r.upDown && arg == "up":
			return enqueueCode(s, c, codeUp)
		case r.upDown && arg == "down":
			return enqueueCode(s, c, codeDown)
		}
		v, err := strconv.Atoi(arg)
		if err != nil {
			return nil, invalidArg(c, arg)
		}
		code, ok := r.encode(v)
		if !ok {
			return nil, invalidArg(c, arg)
		}
		return enqueueCode(s, c, code)
	}
}

// signedEncoder handles small level trims: 0 is "00", others carry an
// explicit sign and a single hex digit.
func signedEncoder(min, max int) encodeFunc {
	return func(s *Session, c *CommandSpec, arg string, _ time.Time) ([]Notification, error) {
		switch arg {
		case "", "status":
			return enqueueCode(s, c, codeQuery)
		case "up":
			return enqueueCode(s, c, codeUp)
		case "down":
			return enqueueCode(s, c, codeDown)
		}
		v, err := strconv.Atoi(arg)
		if err != nil || v < min || v > max {
			return nil, invalidArg(c, arg)
		}
		switch {
		case v == 0:
			return enqueueCode(s, c, "00")
		case v > 0:
			return enqueueCode(s, c, fmt.Sprintf("+%X", v))
		default:
			return enqueueCode(s, c, fmt.Sprintf("-%X", -v))
		}
	}
}

// lookupEncoder maps a case-insensitive name through table, then extras.
func lookupEncoder(table, extras codeTable) encodeFunc {
	return func(s *Session, c *CommandSpec, arg string, _ time.Time) ([]Notification, error) {
		if isQuery(arg) {
			return enqueueCode(s, c, codeQuery)
		}
		name := strings.ToUpper(arg)
		if code, ok := table.find(name); ok {
			return enqueueCode(s, c, code)
		}
		if code, ok := extras.find(name); ok {
			return enqueueCode(s, c, code)
		}
		return nil, invalidArg(c, arg)
	}
}

// Tuner bounds. FM is in tenths of MHz, AM in kHz.
const (
	fmMinTenths = 875
	fmMaxTenths = 1079
	amMinKHz    = 530
	amMaxKHz    = 1710
)

// encodeFrequency converts "98.5" (FM) or "1010" (AM) to a 5-digit code.
func encodeFrequency(arg string) (string, bool) {
	if whole, frac, found := strings.Cut(arg, "."); found {
		mhz, ok := parseUnsigned(whole)
		if !ok || len(frac) != 1 {
			return "", false
		}
		tenth, ok := parseUnsigned(frac)
		if !ok {
			return "", false
		}
		tenths := mhz*10 + tenth
		if tenths < fmMinTenths || tenths > fmMaxTenths {
			return "", false
		}
		return fmt.Sprintf("%05d", tenths*10), true
	}

	khz, ok := parseUnsigned(arg)
	if !ok || khz < amMinKHz || khz > amMaxKHz {
		return "", false
	}
	return fmt.Sprintf("%05d", khz), true
}

func frequencyEncoder(s *Session, c *CommandSpec, arg string, _ time.Time) ([]Notification, error) {
	switch arg {
	case "", "status":
		return enqueueCode(s, c, codeQuery)
	case "up":
		return enqueueCode(s, c, codeUp)
	case "down":
		return enqueueCode(s, c, codeDown)
	}
	code, ok := encodeFrequency(arg)
	if !ok {
		return nil, invalidArg(c, arg)
	}
	return enqueueCode(s, c, code)
}

// Native receiver sleep accepts 0 to 90 minutes.
const maxSleepMinutes = 90

func sleepEncoder(s *Session, c *CommandSpec, arg string, _ time.Time) ([]Notification, error) {
	switch arg {
	case "", "status":
		return enqueueCode(s, c, codeQuery)
	case "off":
		return enqueueCode(s, c, "OFF")
	}
	mins, ok := parseUnsigned(arg)
	if !ok || mins > maxSleepMinutes {
		return nil, invalidArg(c, arg)
	}
	return enqueueCode(s, c, fmt.Sprintf("%02X", mins))
}

// virtualSleepEncoder keeps a local timer for zones without a sleep
// command. Nothing is queued until the timer expires.
func virtualSleepEncoder(s *Session, c *CommandSpec, arg string, now time.Time) ([]Notification, error) {
	switch arg {
	case "", "status":
		return []Notification{sleepNotification(c.Zone, s.SleepRemaining(c.Zone, now))}, nil
	case "off":
		s.ClearSleep(c.Zone)
		return []Notification{sleepNotification(c.Zone, 0)}, nil
	}
	mins, ok := parseUnsigned(arg)
	if !ok || mins > maxVirtualSleepMinutes {
		return nil, invalidArg(c, arg)
	}
	remaining := s.SetSleep(c.Zone, mins, now)
	return []Notification{sleepNotification(c.Zone, remaining)}, nil
}

func rawEncoder(s *Session, c *CommandSpec, arg string, _ time.Time) ([]Notification, error) {
	if arg == "" {
		return nil, invalidArg(c, arg)
	}
	return enqueueCode(s, c, arg)
}
