package receiver

import (
	"errors"
	"reflect"
	"testing"
)

func TestDispatchEncodesWireBodies(t *testing.T) {
	tests := []struct {
		line string
		want []string
	}{
		{"power", []string{"PWRQSTN"}},
		{"power status", []string{"PWRQSTN"}},
		{"power on", []string{"PWR01"}},
		{"power off\r\n", []string{"PWR00"}},
		{"zone2power on", []string{"ZPW01"}},
		{"zone3power off", []string{"PW300"}},
		{"mute toggle", []string{"AMTTG"}},
		{"zone2mute on", []string{"ZMT01"}},
		{"volume 40", []string{"MVL28"}},
		{"volume 0", []string{"MVL00"}},
		{"volume 100", []string{"MVL64"}},
		{"volume up", []string{"MVLUP"}},
		{"zone3volume down", []string{"VL3DOWN"}},
		{"dbvolume -82", []string{"MVL00"}},
		{"dbvolume 0", []string{"MVL52"}},
		{"dbvolume 18", []string{"MVL64"}},
		{"preset 40", []string{"PRS28"}},
		{"zone2preset up", []string{"PRZUP"}},
		{"avsync 250", []string{"AVS2500"}},
		{"avsync 3", []string{"AVS0030"}},
		{"swlevel 0", []string{"SWL00"}},
		{"swlevel 12", []string{"SWL+C"}},
		{"swlevel -15", []string{"SWL-F"}},
		{"input dvd", []string{"SLI10"}},
		{"input FM Tuner", []string{"SLI24"}},
		{"zone2input source", []string{"SLZ80"}},
		{"zone3input off", []string{"SL37F"}},
		{"mode all ch stereo", []string{"LMD0C"}},
		{"mode mono", []string{"LMD0F"}},
		{"dimmer dark", []string{"DIM02"}},
		{"tune 97.9", []string{"TUN09790"}},
		{"tune 87.5", []string{"TUN08750"}},
		{"tune 107.9", []string{"TUN10790"}},
		{"tune 530", []string{"TUN00530"}},
		{"zone2tune 1710", []string{"TUZ01710"}},
		{"tune up", []string{"TUNUP"}},
		{"sleep 90", []string{"SLP5A"}},
		{"sleep off", []string{"SLPOFF"}},
		{"sleep", []string{"SLPQSTN"}},
		{"raw PWRQSTN", []string{"PWRQSTN"}},
		{"raw SLI10 extra", []string{"SLI10 extra"}},
		{"status", []string{"PWRQSTN", "MVLQSTN", "AMTQSTN", "SLIQSTN", "LMDQSTN", "TUNQSTN", "PRSQSTN", "SLPQSTN"}},
		{"status zone3", []string{"PW3QSTN", "VL3QSTN", "MT3QSTN", "SL3QSTN", "TU3QSTN", "PR3QSTN"}},
		{"zone2status", []string{"ZPWQSTN", "ZVLQSTN", "ZMTQSTN", "SLZQSTN", "TUZQSTN", "PRZQSTN"}},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			s, _ := newTestSession(t, Options{})
			mustDispatch(t, s, tt.line, testEpoch)
			if got := s.queue.Bodies(); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("queued %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDispatchRejectsInvalid(t *testing.T) {
	lines := []string{
		"",
		"bogus",
		"Power on",
		"pow on",
		"power maybe",
		"power toggle",
		"volume 101",
		"volume -1",
		"volume 4x",
		"dbvolume 19",
		"dbvolume up",
		"preset 41",
		"avsync 251",
		"swlevel 13",
		"swlevel -16",
		"input nowhere",
		"input off",
		"mode source",
		"tune 87.4",
		"tune 108.0",
		"tune 97.95",
		"tune 97.",
		"tune 529",
		"tune 1711",
		"tune -530",
		"sleep 91",
		"sleep -1",
		"zone2sleep 1441",
		"zone2sleep soon",
		"raw",
		"status zone4",
		"zone2status main",
	}

	for _, line := range lines {
		t.Run(line, func(t *testing.T) {
			s, _ := newTestSession(t, Options{})
			_, err := s.Dispatch(line, testEpoch)
			if !errors.Is(err, ErrInvalidCommand) {
				t.Fatalf("Dispatch(%q) error = %v, want ErrInvalidCommand", line, err)
			}
			if ForError(err) != InvalidCommand {
				t.Errorf("ForError() = %q", ForError(err))
			}
			if s.QueueLen() != 0 {
				t.Errorf("invalid command queued %q", s.queue.Bodies())
			}
		})
	}
}

func TestSplitLine(t *testing.T) {
	tests := []struct {
		line, name, arg string
	}{
		{"volume 40\r\n", "volume", "40"},
		{"power", "power", ""},
		{"mode all ch stereo \t", "mode", "all ch stereo"},
		{"raw  PWR01", "raw", " PWR01"},
	}
	for _, tt := range tests {
		name, arg := SplitLine(tt.line)
		if name != tt.name || arg != tt.arg {
			t.Errorf("SplitLine(%q) = %q, %q; want %q, %q", tt.line, name, arg, tt.name, tt.arg)
		}
	}
}

func TestCommandTableNames(t *testing.T) {
	table := NewCommandTable()
	for _, name := range []string{"power", "zone2power", "zone3power", "zone2sleep", "raw", "status", "zone3status", "dimmer"} {
		if _, ok := table.Lookup(name); !ok {
			t.Errorf("command %q not registered", name)
		}
	}
	if _, ok := table.Lookup("quit"); ok {
		t.Error("quit is handled by the gateway, not the command table")
	}

	names := table.Names()
	for i := 1; i < len(names); i++ {
		if names[i-1] >= names[i] {
			t.Fatalf("Names() not sorted at %d: %q >= %q", i, names[i-1], names[i])
		}
	}
}

func TestStatusReturnsFirstErrorButQueuesRest(t *testing.T) {
	s, _ := newTestSession(t, Options{QueueLimit: 3})
	_, err := s.Dispatch("status", testEpoch)
	if !errors.Is(err, ErrQueueFull) {
		t.Fatalf("Dispatch(status) error = %v, want ErrQueueFull", err)
	}
	if ForError(err) != ReceiverError {
		t.Errorf("ForError() = %q, want ReceiverError", ForError(err))
	}
	if s.QueueLen() != 3 {
		t.Errorf("QueueLen() = %d, want 3", s.QueueLen())
	}
}
