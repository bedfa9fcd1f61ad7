package tv

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"unicode"
)

// Actions the agent recognizes.
const (
	ActionPowerOn     = "power_on"
	ActionPowerOff    = "power_off"
	ActionVolumeUp    = "volume_up"
	ActionVolumeDown  = "volume_down"
	ActionVolume      = "volume_control"
	ActionChannel     = "channel_control"
	ActionChannelUp   = "channel_up"
	ActionChannelDown = "channel_down"
	ActionInput       = "input_change"
	ActionMute        = "mute_toggle"
	ActionUnknown     = "unknown"
)

// Action is a parsed TV command. Level, Channel and Input are zero when the
// request did not name one.
type Action struct {
	Type    string `json:"action"`
	Level   int    `json:"level,omitempty"`
	Channel int    `json:"channel,omitempty"`
	Input   string `json:"input,omitempty"`
}

// vocabulary holds English words matched on word boundaries and Korean
// fragments matched as substrings, since Korean verbs inflect in place.
type vocabulary struct {
	en []string
	ko []string
}

func (v vocabulary) in(words map[string]bool, lower string) bool {
	for _, w := range v.en {
		if words[w] {
			return true
		}
	}
	for _, k := range v.ko {
		if strings.Contains(lower, k) {
			return true
		}
	}
	return false
}

var (
	vocabOn      = vocabulary{en: []string{"on"}, ko: []string{"켜"}}
	vocabOff     = vocabulary{en: []string{"off"}, ko: []string{"꺼"}}
	vocabVolume  = vocabulary{en: []string{"volume", "louder", "quieter"}, ko: []string{"볼륨", "음량", "소리"}}
	vocabUp      = vocabulary{en: []string{"up", "louder", "raise", "increase"}, ko: []string{"올려", "크게", "키워"}}
	vocabDown    = vocabulary{en: []string{"down", "quieter", "lower", "decrease"}, ko: []string{"내려", "작게", "줄여"}}
	vocabChannel = vocabulary{en: []string{"channel", "broadcast"}, ko: []string{"채널", "방송"}}
	vocabSwitch  = vocabulary{en: []string{"change", "switch", "set", "put", "appropriate", "matching", "suitable"}, ko: []string{"바꿔", "변경", "돌려", "적절한", "어울리는"}}
	vocabNext    = vocabulary{en: []string{"next", "up"}, ko: []string{"올려", "다음"}}
	vocabPrev    = vocabulary{en: []string{"previous", "prev", "down", "back"}, ko: []string{"내려", "이전"}}
	vocabInput   = vocabulary{en: []string{"input", "source"}, ko: []string{"입력", "소스"}}
	vocabMute    = vocabulary{en: []string{"mute", "unmute", "silence"}, ko: []string{"음소거", "조용히"}}
)

var (
	numberRe = regexp.MustCompile(`\b(\d+)\b`)
	hdmiRe   = regexp.MustCompile(`hdmi\s*(\d+)`)
)

func words(lower string) map[string]bool {
	out := make(map[string]bool)
	for _, w := range strings.FieldsFunc(lower, func(r rune) bool { return !unicode.IsLetter(r) && !unicode.IsDigit(r) }) {
		out[w] = true
	}
	return out
}

// Analyze maps a request to an Action. Power is checked first, then volume,
// channel, input and mute.
func Analyze(text string) Action {
	lower := strings.ToLower(text)
	w := words(lower)
	hdmi := strings.Contains(lower, "hdmi")

	switch {
	case vocabMute.in(w, lower):
		return Action{Type: ActionMute}
	case vocabOn.in(w, lower) && !vocabVolume.in(w, lower):
		return Action{Type: ActionPowerOn}
	case vocabOff.in(w, lower):
		return Action{Type: ActionPowerOff}
	case vocabVolume.in(w, lower):
		switch {
		case vocabUp.in(w, lower):
			return Action{Type: ActionVolumeUp, Level: volumeLevel(text)}
		case vocabDown.in(w, lower):
			return Action{Type: ActionVolumeDown, Level: volumeLevel(text)}
		}
		return Action{Type: ActionVolume, Level: volumeLevel(text)}
	case vocabChannel.in(w, lower) && !hdmi:
		n := firstNumber(text)
		switch {
		case n > 0 || vocabSwitch.in(w, lower):
			return Action{Type: ActionChannel, Channel: n}
		case vocabNext.in(w, lower):
			return Action{Type: ActionChannelUp}
		case vocabPrev.in(w, lower):
			return Action{Type: ActionChannelDown}
		}
		return Action{Type: ActionChannel}
	case hdmi || vocabInput.in(w, lower):
		a := Action{Type: ActionInput}
		if hdmi {
			a.Input = "HDMI" + strconv.Itoa(hdmiNumber(lower))
		}
		return a
	}
	return Action{Type: ActionUnknown}
}

func firstNumber(text string) int {
	m := numberRe.FindStringSubmatch(text)
	if m == nil {
		return 0
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0
	}
	return n
}

// volumeLevel is the first number in text clamped to 0..100.
func volumeLevel(text string) int {
	return min(max(firstNumber(text), 0), 100)
}

func hdmiNumber(lower string) int {
	if m := hdmiRe.FindStringSubmatch(lower); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			return n
		}
	}
	return 1
}

// State is the simulated television.
type State struct {
	mu      sync.Mutex
	Power   bool
	Volume  int
	Channel int
	Input   string
	Muted   bool
}

// NewState returns a powered-off TV on channel 1 at volume 20.
func NewState() *State {
	return &State{Volume: 20, Channel: 1, Input: "HDMI1"}
}

// Snapshot is a copy of State safe to read.
type Snapshot struct {
	Power   bool   `json:"power"`
	Volume  int    `json:"volume"`
	Channel int    `json:"channel"`
	Input   string `json:"input"`
	Muted   bool   `json:"muted"`
}

// Snapshot copies the current state.
func (s *State) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{Power: s.Power, Volume: s.Volume, Channel: s.Channel, Input: s.Input, Muted: s.Muted}
}

const volumeStep = 5

// Apply performs a and returns the resulting state.
func (s *State) Apply(a Action) Snapshot {
	s.mu.Lock()
	switch a.Type {
	case ActionPowerOn:
		s.Power = true
	case ActionPowerOff:
		s.Power = false
	case ActionVolumeUp:
		if a.Level > 0 {
			s.Volume = a.Level
		} else {
			s.Volume = min(s.Volume+volumeStep, 100)
		}
		s.Muted = false
	case ActionVolumeDown:
		if a.Level > 0 {
			s.Volume = a.Level
		} else {
			s.Volume = max(s.Volume-volumeStep, 0)
		}
	case ActionVolume:
		if a.Level > 0 {
			s.Volume = a.Level
		}
	case ActionChannel:
		if a.Channel > 0 {
			s.Channel = a.Channel
		}
	case ActionChannelUp:
		s.Channel++
	case ActionChannelDown:
		if s.Channel > 1 {
			s.Channel--
		}
	case ActionInput:
		if a.Input != "" {
			s.Input = a.Input
		}
	case ActionMute:
		s.Muted = !s.Muted
	}
	s.mu.Unlock()
	return s.Snapshot()
}

// Describe is the templated confirmation for a.
func Describe(a Action) string {
	switch a.Type {
	case ActionPowerOn:
		return "📺 Turned the TV on."
	case ActionPowerOff:
		return "📺 Turned the TV off."
	case ActionVolumeUp:
		return "🔊 Turned the volume up" + levelSuffix(a.Level) + "."
	case ActionVolumeDown:
		return "🔉 Turned the volume down" + levelSuffix(a.Level) + "."
	case ActionVolume:
		return "🔊 Adjusted the volume" + levelSuffix(a.Level) + "."
	case ActionChannel:
		if a.Channel > 0 {
			return fmt.Sprintf("📺 Changed the channel (to %d).", a.Channel)
		}
		return "📺 Changed the channel."
	case ActionChannelUp:
		return "📺 Switched to the next channel."
	case ActionChannelDown:
		return "📺 Switched to the previous channel."
	case ActionInput:
		if a.Input != "" {
			return fmt.Sprintf("📺 Changed the input (to %s).", a.Input)
		}
		return "📺 Changed the input."
	case ActionMute:
		return "🔇 Toggled mute."
	}
	return "📺 Processed the TV command."
}

func levelSuffix(level int) string {
	if level <= 0 {
		return ""
	}
	return fmt.Sprintf(" (to level %d)", level)
}
