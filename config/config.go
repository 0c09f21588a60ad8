package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	errgo "gopkg.in/errgo.v1"
	"gopkg.in/yaml.v2"

	"go-motif/action"
	"go-motif/audio"
	"go-motif/engine"
	"go-motif/midi"
	"go-motif/pattern"
)

// ErrInvalid is the cause of every validation failure.
var ErrInvalid = errgo.New("invalid configuration")

// MIDIConfig selects the input ports
type MIDIConfig struct {
	// Preferred and Excluded are case-insensitive port name fragments.
	Preferred  []string `json:"preferred,omitempty" yaml:"preferred,omitempty"`
	Excluded   []string `json:"excluded,omitempty" yaml:"excluded,omitempty"`
	SerialPort string   `json:"serialPort,omitempty" yaml:"serialPort,omitempty"`
	SerialBaud int      `json:"serialBaud,omitempty" yaml:"serialBaud,omitempty"`
	// Require makes a missing input port a startup error instead of
	// waiting for one to be plugged in.
	Require bool `json:"require,omitempty" yaml:"require,omitempty"`
	PollMs  int  `json:"pollMs,omitempty" yaml:"pollMs,omitempty"`
}

// AudioConfig defines the synth output
type AudioConfig struct {
	// SoundFont is an .sf2 file; without one the built-in tone is used.
	SoundFont  string `json:"soundFont,omitempty" yaml:"soundFont,omitempty"`
	SampleRate int    `json:"sampleRate" yaml:"sampleRate"`
	Channels   int    `json:"channels" yaml:"channels"`
	Frames     int    `json:"frames" yaml:"frames"`
}

// EngineConfig holds the engine switches
type EngineConfig struct {
	EnableMatching    bool    `json:"enableMatching" yaml:"enableMatching"`
	EnableAudioOutput bool    `json:"enableAudioOutput" yaml:"enableAudioOutput"`
	VelocityScale     float64 `json:"velocityScale" yaml:"velocityScale"`
	Channel           int     `json:"channel" yaml:"channel"`
	QueueSize         int     `json:"queueSize" yaml:"queueSize"`
	GraceMs           int     `json:"graceMs" yaml:"graceMs"`
}

// PatternConfig is one trigger sequence. Notes are MIDI numbers, note names
// such as "C4" or "F#3", or "*" for any note.
type PatternConfig struct {
	Name   string   `json:"name,omitempty" yaml:"name,omitempty"`
	Notes  []string `json:"notes" yaml:"notes"`
	Action string   `json:"action" yaml:"action"`
}

// ActionConfig maps an action id to a program started when it fires
type ActionConfig struct {
	ID      string   `json:"id" yaml:"id"`
	Command string   `json:"command" yaml:"command"`
	Args    []string `json:"args,omitempty" yaml:"args,omitempty"`
}

// UIConfig stores UI preferences
type UIConfig struct {
	// Palette is an optional GIMP .gpl palette file.
	Palette string `json:"palette,omitempty" yaml:"palette,omitempty"`
}

// Config is the main configuration structure
type Config struct {
	MIDI     MIDIConfig      `json:"midi" yaml:"midi"`
	Audio    AudioConfig     `json:"audio" yaml:"audio"`
	Engine   EngineConfig    `json:"engine" yaml:"engine"`
	Patterns []PatternConfig `json:"patterns,omitempty" yaml:"patterns,omitempty"`
	Actions  []ActionConfig  `json:"actions,omitempty" yaml:"actions,omitempty"`
	UI       UIConfig        `json:"ui,omitempty" yaml:"ui,omitempty"`
	LogPath  string          `json:"logPath,omitempty" yaml:"logPath,omitempty"`
}

// DefaultConfig returns a config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		MIDI: MIDIConfig{
			Excluded:   append([]string(nil), midi.DefaultExcluded...),
			SerialBaud: midi.DefaultSerialBaud,
			PollMs:     1000,
		},
		Audio: AudioConfig{
			SampleRate: 44100,
			Channels:   2,
			Frames:     512,
		},
		Engine: EngineConfig{
			EnableMatching:    true,
			EnableAudioOutput: true,
			VelocityScale:     1,
			QueueSize:         engine.DefaultQueueSize,
			GraceMs:           500,
		},
		Patterns: []PatternConfig{
			{Name: "C major arpeggio", Notes: []string{"C4", "E4", "G4"}, Action: "arpeggio"},
			{Name: "octave leap", Notes: []string{"C4", "*", "C5"}, Action: "leap"},
		},
	}
}

// ConfigDir returns the config directory path
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "go-motif"), nil
}

// ConfigPath returns the full path to config.json
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// Load reads the config from disk, or returns defaults if not found
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return DefaultConfig(), nil
	}
	cfg, err := LoadFile(path)
	if errgo.Cause(err) == os.ErrNotExist {
		return DefaultConfig(), nil
	}
	return cfg, err
}

// LoadFile reads the config at path. Files ending in .yaml or .yml are YAML,
// anything else is JSON. Fields missing from the file keep their defaults.
// A missing file is an error whose cause is os.ErrNotExist.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errgo.WithCausef(err, os.ErrNotExist, "cannot load config")
		}
		return nil, errgo.Notef(err, "cannot load config")
	}
	cfg := DefaultConfig()
	if isYAML(path) {
		err = yaml.Unmarshal(data, cfg)
	} else {
		err = json.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, errgo.WithCausef(err, ErrInvalid, "cannot parse %s", path)
	}
	return cfg, nil
}

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

// Save writes the config to the default path
func (c *Config) Save() error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	return c.SaveFile(path)
}

// SaveFile writes the config to path in the format its extension selects.
func (c *Config) SaveFile(path string) error {
	// Create directory if it doesn't exist
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	var data []byte
	var err error
	if isYAML(path) {
		data, err = yaml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// Validate checks value ranges and action definitions.
func (c *Config) Validate() error {
	a, e := c.Audio, c.Engine
	switch {
	case a.SampleRate <= 0:
		return errgo.WithCausef(nil, ErrInvalid, "audio.sampleRate must be positive, got %d", a.SampleRate)
	case a.Channels < 1 || a.Channels > 8:
		return errgo.WithCausef(nil, ErrInvalid, "audio.channels must be between 1 and 8, got %d", a.Channels)
	case a.Frames <= 0:
		return errgo.WithCausef(nil, ErrInvalid, "audio.frames must be positive, got %d", a.Frames)
	case e.Channel < 0 || e.Channel > 15:
		return errgo.WithCausef(nil, ErrInvalid, "engine.channel must be between 0 and 15, got %d", e.Channel)
	case e.QueueSize <= 0:
		return errgo.WithCausef(nil, ErrInvalid, "engine.queueSize must be positive, got %d", e.QueueSize)
	case e.GraceMs < 0:
		return errgo.WithCausef(nil, ErrInvalid, "engine.graceMs must not be negative, got %d", e.GraceMs)
	case e.VelocityScale < 0:
		return errgo.WithCausef(nil, ErrInvalid, "engine.velocityScale must not be negative, got %v", e.VelocityScale)
	case c.MIDI.SerialBaud < 0 || c.MIDI.PollMs < 0:
		return errgo.WithCausef(nil, ErrInvalid, "midi.serialBaud and midi.pollMs must not be negative")
	}
	seen := make(map[string]bool)
	for i, ac := range c.Actions {
		if ac.ID == "" || ac.Command == "" {
			return errgo.WithCausef(nil, ErrInvalid, "actions[%d] needs both id and command", i)
		}
		if seen[ac.ID] {
			return errgo.WithCausef(nil, ErrInvalid, "action %q defined twice", ac.ID)
		}
		seen[ac.ID] = true
	}
	return nil
}

// Library compiles the configured patterns.
func (c *Config) Library() (*pattern.Library, error) {
	patterns := make([]pattern.Pattern, 0, len(c.Patterns))
	for i, pc := range c.Patterns {
		name := pc.Name
		if name == "" {
			name = "#" + strings.TrimSpace(strings.Join(pc.Notes, " "))
		}
		notes, err := pattern.ParseTokens(pc.Notes)
		if err != nil {
			return nil, errgo.NoteMask(err, fmt.Sprintf("patterns[%d] %s", i, name), errgo.Any)
		}
		patterns = append(patterns, pattern.Pattern{
			Name:   name,
			Notes:  notes,
			Action: pattern.ActionID(pc.Action),
		})
	}
	return pattern.Compile(patterns)
}

// EngineConfig returns the engine settings.
func (c *Config) EngineConfig() engine.Config {
	return engine.Config{
		EnableMatching:    c.Engine.EnableMatching,
		EnableAudioOutput: c.Engine.EnableAudioOutput,
		VelocityScale:     c.Engine.VelocityScale,
		Channel:           uint8(c.Engine.Channel),
		QueueSize:         c.Engine.QueueSize,
		MaxFrames:         max(c.Audio.Frames, engine.DefaultMaxFrames),
	}
}

// AudioConfig returns the audio output settings.
func (c *Config) AudioConfig() audio.Config {
	return audio.Config{
		SampleRate: c.Audio.SampleRate,
		Channels:   c.Audio.Channels,
		Frames:     c.Audio.Frames,
	}
}

// MIDIOptions returns the port selection settings for a device manager.
func (c *Config) MIDIOptions() midi.Options {
	return midi.Options{
		Preferred: c.MIDI.Preferred,
		Excluded:  c.MIDI.Excluded,
		PollRate:  time.Duration(c.MIDI.PollMs) * time.Millisecond,
	}
}

// Commands returns the configured action commands keyed by action id.
func (c *Config) Commands() map[pattern.ActionID]action.Command {
	cmds := make(map[pattern.ActionID]action.Command, len(c.Actions))
	for _, ac := range c.Actions {
		cmds[pattern.ActionID(ac.ID)] = action.Command{Path: ac.Command, Args: ac.Args}
	}
	return cmds
}

// Grace returns how long shutdown waits for release tails.
func (c *Config) Grace() time.Duration {
	return time.Duration(c.Engine.GraceMs) * time.Millisecond
}
