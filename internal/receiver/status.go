package receiver

import (
	"fmt"
	"strconv"
	"strings"
)

// PowerChange is the power transition carried by a decoded power status.
type PowerChange struct {
	Zone Zone
	On   bool
}

// Status is the result of decoding one incoming frame.
type Status struct {
	// Code is the unwrapped status code, e.g. "PWR01". Empty when the
	// envelope could not be found.
	Code string

	// Notification is the line to broadcast to clients.
	Notification Notification

	// Power is set when the status reports a zone power state.
	Power *PowerChange
}

type statusEntry struct {
	message Notification
	power   *PowerChange
}

// numericDecoder handles a family of codes whose suffix is a number.
type numericDecoder struct {
	prefix string
	key    string
	decode func(key, digits string) (Notification, bool)
}

// StatusTable decodes receiver status codes into client notifications.
// It is immutable after NewStatusTable returns.
type StatusTable struct {
	entries map[string]statusEntry
	numeric []numericDecoder
}

// NewStatusTable builds the status table.
func NewStatusTable() *StatusTable {
	t := &StatusTable{entries: make(map[string]statusEntry)}

	t.addPower("PWR", "power", ZoneMain)
	t.addPower("ZPW", "zone2power", Zone2)
	t.addPower("PW3", "zone3power", Zone3)

	t.addOnOff("AMT", "mute")
	t.addOnOff("ZMT", "zone2mute")
	t.addOnOff("MT3", "zone3mute")

	t.addLabels("SLI", "input", inputCodes, mainOnlyInputStatus)
	t.addLabels("SLZ", "zone2input", inputCodes, zoneInputCodes)
	t.addLabels("SL3", "zone3input", inputCodes, zoneInputCodes)
	t.addLabels("LMD", "mode", modeCodes)
	t.addLabels("DIM", "dimmer", dimmerCodes)
	t.entries["LMDN/A"] = statusEntry{message: Failure("mode", "Not Available")}

	t.numeric = []numericDecoder{
		{prefix: "MVL", key: "volume", decode: decodeHex},
		{prefix: "ZVL", key: "zone2volume", decode: decodeHex},
		{prefix: "VL3", key: "zone3volume", decode: decodeHex},
		{prefix: "TUN", key: "tune", decode: decodeFrequency},
		{prefix: "TUZ", key: "zone2tune", decode: decodeFrequency},
		{prefix: "TU3", key: "zone3tune", decode: decodeFrequency},
		{prefix: "PRS", key: "preset", decode: decodeHex},
		{prefix: "PRZ", key: "zone2preset", decode: decodeHex},
		{prefix: "PR3", key: "zone3preset", decode: decodeHex},
		{prefix: "SLP", key: "sleep", decode: decodeHex},
		{prefix: "SWL", key: "swlevel", decode: decodeSignedHex},
		{prefix: "AVS", key: "avsync", decode: decodeAVSync},
	}

	return t
}

func (t *StatusTable) addPower(prefix, key string, zone Zone) {
	t.entries[prefix+"00"] = statusEntry{message: OK(key, "off"), power: &PowerChange{Zone: zone, On: false}}
	t.entries[prefix+"01"] = statusEntry{message: OK(key, "on"), power: &PowerChange{Zone: zone, On: true}}
}

func (t *StatusTable) addOnOff(prefix, key string) {
	t.entries[prefix+"00"] = statusEntry{message: OK(key, "off")}
	t.entries[prefix+"01"] = statusEntry{message: OK(key, "on")}
}

func (t *StatusTable) addLabels(prefix, key string, tables ...codeTable) {
	for _, table := range tables {
		for _, c := range table {
			t.entries[prefix+c.code] = statusEntry{message: OK(key, c.label)}
		}
	}
}

// Decode unwraps a raw frame and decodes its code. A frame without an
// envelope yields the generic receiver error notification.
func (t *StatusTable) Decode(raw []byte) Status {
	code, err := Unframe(raw)
	if err != nil {
		return Status{Notification: ReceiverError}
	}
	return t.Lookup(code)
}

// Lookup decodes an already unwrapped status code. It never fails: codes
// that match nothing are reported as "OK:todo:<code>".
func (t *StatusTable) Lookup(code string) Status {
	if e, ok := t.entries[code]; ok {
		return Status{Code: code, Notification: e.message, Power: e.power}
	}

	for _, d := range t.numeric {
		if !strings.HasPrefix(code, d.prefix) {
			continue
		}
		if n, ok := d.decode(d.key, code[len(d.prefix):]); ok {
			return Status{Code: code, Notification: n}
		}
	}

	return Status{Code: code, Notification: OK("todo", code)}
}

func decodeHex(key, digits string) (Notification, bool) {
	v, err := strconv.ParseUint(digits, 16, 16)
	if err != nil {
		return "", false
	}
	return OK(key, strconv.FormatUint(v, 10)), true
}

// decodeFrequency prints FM as MHz with one decimal and AM as kHz.
// FM codes are hundredths of MHz (e.g. 09790), so anything above 8000 is FM.
func decodeFrequency(key, digits string) (Notification, bool) {
	v, err := strconv.Atoi(digits)
	if err != nil || v < 0 {
		return "", false
	}
	if v > 8000 {
		return OK(key, fmt.Sprintf("%.1f FM", float64(v)/100)), true
	}
	return OK(key, fmt.Sprintf("%d AM", v)), true
}

// decodeSignedHex handles "00", "+A" and "-F" style levels.
func decodeSignedHex(key, digits string) (Notification, bool) {
	if digits == "" {
		return "", false
	}
	v, err := strconv.ParseInt(digits, 16, 16)
	if err != nil {
		return "", false
	}
	if v == 0 {
		return OK(key, "0"), true
	}
	return OK(key, fmt.Sprintf("%+d", v)), true
}

// decodeAVSync converts tenths of a millisecond to milliseconds.
func decodeAVSync(key, digits string) (Notification, bool) {
	v, err := strconv.Atoi(digits)
	if err != nil || v < 0 {
		return "", false
	}
	if v%10 == 0 {
		return OK(key, strconv.Itoa(v/10)), true
	}
	return OK(key, fmt.Sprintf("%.1f", float64(v)/10)), true
}
