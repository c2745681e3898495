package receiver

import (
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode"
)

// encodeFunc validates an argument and enqueues the resulting wire command
// on the session. It may also return notifications synthesised locally
// (virtual sleep timers), which the caller broadcasts.
type encodeFunc func(s *Session, c *CommandSpec, arg string, now time.Time) ([]Notification, error)

// CommandSpec binds a command name to its wire prefix and encoder.
type CommandSpec struct {
	// Name is the client-facing command, e.g. "zone2volume".
	Name string

	// Prefix is the ISCP command prefix, e.g. "ZVL". Empty for raw,
	// composite and virtual commands.
	Prefix string

	// Zone is the zone the command addresses, used for power gating.
	Zone Zone

	// Power marks the zone power family. Power commands are never
	// discarded for a powered-off zone.
	Power bool

	encode encodeFunc
}

// CommandTable is the immutable command registry. Lookups are exact and
// case-sensitive.
type CommandTable struct {
	specs map[string]*CommandSpec
	power map[Zone]*CommandSpec
}

// Virtual sleep timers accept up to a day.
const maxVirtualSleepMinutes = 24 * 60

// NewCommandTable builds the full command surface.
func NewCommandTable() *CommandTable {
	t := &CommandTable{
		specs: make(map[string]*CommandSpec),
		power: make(map[Zone]*CommandSpec),
	}

	volume := numericRange{min: 0, max: 100, format: "%02X", upDown: true}
	dbVolume := numericRange{min: -82, max: 18, offset: 82, format: "%02X"}
	preset := numericRange{min: 0, max: 40, format: "%02X", upDown: true}

	type zoneCommands struct {
		zone                                     Zone
		power, volume, mute, input, tune, preset string
	}
	zones := []zoneCommands{
		{ZoneMain, "PWR", "MVL", "AMT", "SLI", "TUN", "PRS"},
		{Zone2, "ZPW", "ZVL", "ZMT", "SLZ", "TUZ", "PRZ"},
		{Zone3, "PW3", "VL3", "MT3", "SL3", "TU3", "PR3"},
	}

	for _, z := range zones {
		name := zonePrefix(z.zone)
		extras := zoneInputCodes
		if z.zone == ZoneMain {
			extras = nil
		}

		t.add(&CommandSpec{Name: name + "power", Prefix: z.power, Zone: z.zone, Power: true, encode: booleanEncoder(false)})
		t.add(&CommandSpec{Name: name + "volume", Prefix: z.volume, Zone: z.zone, encode: rangedEncoder(volume)})
		t.add(&CommandSpec{Name: name + "dbvolume", Prefix: z.volume, Zone: z.zone, encode: rangedEncoder(dbVolume)})
		t.add(&CommandSpec{Name: name + "mute", Prefix: z.mute, Zone: z.zone, encode: booleanEncoder(true)})
		t.add(&CommandSpec{Name: name + "input", Prefix: z.input, Zone: z.zone, encode: lookupEncoder(inputCodes, extras)})
		t.add(&CommandSpec{Name: name + "tune", Prefix: z.tune, Zone: z.zone, encode: frequencyEncoder})
		t.add(&CommandSpec{Name: name + "preset", Prefix: z.preset, Zone: z.zone, encode: rangedEncoder(preset)})
		t.add(&CommandSpec{Name: name + "status", Zone: z.zone, encode: t.statusEncoder(z.zone)})
	}

	// Main zone only.
	t.add(&CommandSpec{Name: "mode", Prefix: "LMD", Zone: ZoneMain, encode: lookupEncoder(modeCodes, nil)})
	t.add(&CommandSpec{Name: "swlevel", Prefix: "SWL", Zone: ZoneMain, encode: signedEncoder(-15, 12)})
	t.add(&CommandSpec{Name: "avsync", Prefix: "AVS", Zone: ZoneMain, encode: rangedEncoder(numericRange{min: 0, max: 250, scale: 10, format: "%04d"})})
	t.add(&CommandSpec{Name: "sleep", Prefix: "SLP", Zone: ZoneMain, encode: sleepEncoder})
	t.add(&CommandSpec{Name: "dimmer", Prefix: "DIM", Zone: ZoneMain, encode: lookupEncoder(dimmerCodes, nil)})

	// Zones without a native sleep command get a local timer.
	t.add(&CommandSpec{Name: "zone2sleep", Zone: Zone2, encode: virtualSleepEncoder})
	t.add(&CommandSpec{Name: "zone3sleep", Zone: Zone3, encode: virtualSleepEncoder})

	t.add(&CommandSpec{Name: "raw", Zone: ZoneNone, encode: rawEncoder})

	return t
}

// zonePrefix returns the command name prefix for a zone ("", "zone2", "zone3").
func zonePrefix(z Zone) string {
	if z == ZoneMain {
		return ""
	}
	return z.String()
}

func (t *CommandTable) add(c *CommandSpec) {
	t.specs[c.Name] = c
	if c.Power {
		t.power[c.Zone] = c
	}
}

// Lookup returns the command registered under name.
func (t *CommandTable) Lookup(name string) (*CommandSpec, bool) {
	c, ok := t.specs[name]
	return c, ok
}

// Names returns every registered command name, sorted.
func (t *CommandTable) Names() []string {
	names := make([]string, 0, len(t.specs))
	for name := range t.specs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// PowerCommand returns the power command for a zone.
func (t *CommandTable) PowerCommand(z Zone) (*CommandSpec, bool) {
	c, ok := t.power[z]
	return c, ok
}

// SplitLine trims trailing whitespace and control characters and splits a
// client line on its first space into command name and argument.
func SplitLine(line string) (name, arg string) {
	line = strings.TrimRightFunc(line, func(r rune) bool {
		return unicode.IsSpace(r) || unicode.IsControl(r)
	})
	name, arg, _ = strings.Cut(line, " ")
	return name, arg
}

// Dispatch parses one client line and runs its encoder against s.
func (t *CommandTable) Dispatch(s *Session, line string, now time.Time) ([]Notification, error) {
	name, arg := SplitLine(line)
	c, ok := t.specs[name]
	if !ok {
		return nil, fmt.Errorf("%w: unknown command %q", ErrInvalidCommand, name)
	}
	return c.encode(s, c, arg, now)
}

// statusEncoder fans a status request out to the zone's query commands.
func (t *CommandTable) statusEncoder(zone Zone) encodeFunc {
	return func(s *Session, c *CommandSpec, arg string, now time.Time) ([]Notification, error) {
		target := zone
		if arg != "" {
			if zone != ZoneMain {
				return nil, fmt.Errorf("%w: %s takes no argument", ErrInvalidCommand, c.Name)
			}
			z, err := ParseZone(arg)
			if err != nil {
				return nil, fmt.Errorf("%w: %w", ErrInvalidCommand, err)
			}
			target = z
		}

		var notices []Notification
		var firstErr error
		for _, name := range statusQueries(target) {
			sub, ok := t.specs[name]
			if !ok {
				continue
			}
			n, err := sub.encode(s, sub, "status", now)
			notices = append(notices, n...)
			if err != nil && firstErr == nil {
				firstErr = err
			}
		}
		return notices, firstErr
	}
}

// statusQueries lists the commands queried by "status <zone>".
func statusQueries(z Zone) []string {
	switch z {
	case Zone2, Zone3:
		p := z.String()
		return []string{p + "power", p + "volume", p + "mute", p + "input", p + "tune", p + "preset", p + "sleep"}
	default:
		return []string{"power", "volume", "mute", "input", "mode", "tune", "preset", "sleep"}
	}
}
