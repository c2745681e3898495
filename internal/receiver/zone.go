package receiver

import (
	"fmt"
	"strings"
)

// Zone identifies an independently controllable output of a receiver.
type Zone int

// Zones. ZoneNone is used for commands that are not tied to a zone (raw).
const (
	ZoneNone Zone = iota
	ZoneMain
	Zone2
	Zone3
)

// zoneCount sizes per-zone arrays indexed by Zone.
const zoneCount = 4

// Zones lists the real zones in display order.
var Zones = []Zone{ZoneMain, Zone2, Zone3}

// String returns the zone name used in commands and configuration.
func (z Zone) String() string {
	switch z {
	case ZoneMain:
		return "main"
	case Zone2:
		return "zone2"
	case Zone3:
		return "zone3"
	default:
		return "none"
	}
}

// ParseZone converts "main", "zone2" or "zone3" to a Zone.
func ParseZone(s string) (Zone, error) {
	switch strings.ToLower(s) {
	case "main":
		return ZoneMain, nil
	case "zone2":
		return Zone2, nil
	case "zone3":
		return Zone3, nil
	default:
		return ZoneNone, fmt.Errorf("%w: %q", ErrUnknownZone, s)
	}
}

// PowerSet records which zones the receiver last reported as powered on.
type PowerSet uint8

// Power flags.
const (
	PowerMain PowerSet = 1 << iota
	PowerZone2
	PowerZone3
)

// AllPowered is the initial power state: until the receiver reports
// otherwise every zone is assumed on, so nothing is gated by mistake.
const AllPowered = PowerMain | PowerZone2 | PowerZone3

func powerFlag(z Zone) PowerSet {
	switch z {
	case ZoneMain:
		return PowerMain
	case Zone2:
		return PowerZone2
	case Zone3:
		return PowerZone3
	default:
		return 0
	}
}

// Has reports whether zone z is powered on. ZoneNone is always considered on.
func (p PowerSet) Has(z Zone) bool {
	f := powerFlag(z)
	if f == 0 {
		return true
	}
	return p&f != 0
}

// With returns the set with zone z powered on.
func (p PowerSet) With(z Zone) PowerSet {
	return p | powerFlag(z)
}

// Without returns the set with zone z powered off.
func (p PowerSet) Without(z Zone) PowerSet {
	return p &^ powerFlag(z)
}

// On returns the names of the powered zones.
func (p PowerSet) On() []string {
	on := make([]string, 0, len(Zones))
	for _, z := range Zones {
		if p.Has(z) {
			on = append(on, z.String())
		}
	}
	return on
}

// String implements fmt.Stringer.
func (p PowerSet) String() string {
	on := p.On()
	if len(on) == 0 {
		return "off"
	}
	return strings.Join(on, ",")
}
