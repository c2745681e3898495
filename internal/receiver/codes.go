package receiver

// namedCode maps client-facing names to a wire code and the label used in
// status notifications.
type namedCode struct {
	code  string
	label string
	names []string
}

type codeTable []namedCode

// find returns the wire code for an upper-cased name.
func (t codeTable) find(name string) (string, bool) {
	for _, c := range t {
		for _, n := range c.names {
			if n == name {
				return c.code, true
			}
		}
	}
	return "", false
}

// Input selectors shared by every zone.
var inputCodes = codeTable{
	{code: "00", label: "DVR", names: []string{"DVR", "VCR"}},
	{code: "01", label: "Cable", names: []string{"CABLE", "SAT"}},
	{code: "02", label: "TV", names: []string{"TV"}},
	{code: "03", label: "AUX", names: []string{"AUX"}},
	{code: "10", label: "DVD", names: []string{"DVD"}},
	{code: "20", label: "Tape", names: []string{"TAPE"}},
	{code: "22", label: "Phono", names: []string{"PHONO"}},
	{code: "23", label: "CD", names: []string{"CD"}},
	{code: "24", label: "FM Tuner", names: []string{"FM", "FM TUNER"}},
	{code: "25", label: "AM Tuner", names: []string{"AM", "AM TUNER"}},
	{code: "26", label: "Tuner", names: []string{"TUNER"}},
	{code: "30", label: "Multichannel", names: []string{"MULTICH", "MULTICHANNEL"}},
	{code: "31", label: "XM Radio", names: []string{"XM", "XM RADIO"}},
	{code: "32", label: "Sirius Radio", names: []string{"SIRIUS", "SIRIUS RADIO"}},
}

// Selectors only valid for zone2 and zone3.
var zoneInputCodes = codeTable{
	{code: "7F", label: "Off", names: []string{"OFF"}},
	{code: "80", label: "Source", names: []string{"SOURCE"}},
}

// Main zone status only; there is no command to select it.
var mainOnlyInputStatus = codeTable{
	{code: "FF", label: "Audyssey Speaker Setup"},
}

// Listening modes.
var modeCodes = codeTable{
	{code: "00", label: "Stereo", names: []string{"STEREO"}},
	{code: "01", label: "Direct", names: []string{"DIRECT"}},
	{code: "0C", label: "All Channel Stereo", names: []string{"ALL CH STEREO", "ALLCHSTEREO", "ALL CHANNEL STEREO"}},
	{code: "0F", label: "Mono", names: []string{"MONO"}},
	{code: "11", label: "Pure Audio", names: []string{"PURE AUDIO", "PUREAUDIO"}},
	{code: "13", label: "Full Mono", names: []string{"FULL MONO", "FULLMONO"}},
	{code: "40", label: "Straight Decode", names: []string{"STRAIGHT DECODE", "STRAIGHTDECODE"}},
	{code: "42", label: "THX Cinema", names: []string{"THX", "THX CINEMA"}},
	{code: "80", label: "Pro Logic IIx Movie", names: []string{"PLIIX MOVIE", "PLIIXMOVIE"}},
	{code: "81", label: "Pro Logic IIx Music", names: []string{"PLIIX MUSIC", "PLIIXMUSIC"}},
	{code: "82", label: "Neo:6 Cinema", names: []string{"NEO6 CINEMA", "NEO:6 CINEMA", "NEO6CINEMA"}},
	{code: "83", label: "Neo:6 Music", names: []string{"NEO6 MUSIC", "NEO:6 MUSIC", "NEO6MUSIC"}},
	{code: "84", label: "PLIIx THX Cinema", names: []string{"PLIIX THX CINEMA", "PLIIXTHX"}},
	{code: "85", label: "Neo:6 THX Cinema", names: []string{"NEO6 THX CINEMA", "NEO:6 THX CINEMA", "NEO6THX"}},
	{code: "86", label: "Pro Logic IIx Game", names: []string{"PLIIX GAME", "PLIIXGAME"}},
	{code: "88", label: "Neural THX", names: []string{"NEURAL THX", "NEURALTHX"}},
}

// Front panel dimmer levels.
var dimmerCodes = codeTable{
	{code: "00", label: "Bright", names: []string{"BRIGHT"}},
	{code: "01", label: "Dim", names: []string{"DIM"}},
	{code: "02", label: "Dark", names: []string{"DARK"}},
	{code: "08", label: "Bright (LED off)", names: []string{"LED OFF", "BRIGHT LED OFF"}},
}
