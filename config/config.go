// Package config defines the brain's typed configuration surface: the
// enumerated options with their defaults, a TOML file loader, and an
// environment-variable overlay.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
)

// MarkupMode controls how pacing tokens are rendered into outbound speech
// content (applied by the turn handler before a segment is enqueued).
type MarkupMode string

const (
	MarkupDashPause MarkupMode = "DASH_PAUSE"
	MarkupRawText   MarkupMode = "RAW_TEXT"
	MarkupSSML      MarkupMode = "SSML"
)

// DashPauseScope controls where dash-pause tokens are inserted when
// MarkupMode is MarkupDashPause.
type DashPauseScope string

const (
	DashPauseProtectedOnly   DashPauseScope = "PROTECTED_ONLY"
	DashPauseSegmentBoundary DashPauseScope = "SEGMENT_BOUNDARY"
)

// Config is the brain's full enumerated configuration surface.
type Config struct {
	BrainInboundQueueMax  int    `toml:"brain_inbound_queue_max"`
	BrainOutboundQueueMax int    `toml:"brain_outbound_queue_max"`
	BrainPingIntervalMS   int    `toml:"brain_ping_interval_ms"`
	BrainIdleTimeoutMS    int    `toml:"brain_idle_timeout_ms"`
	BrainSpeakFirst       bool   `toml:"brain_speak_first"`

	KeepalivePingWriteDeadlineMS int `toml:"keepalive_ping_write_deadline_ms"`

	WSWriteTimeoutMS                 int  `toml:"ws_write_timeout_ms"`
	WSMaxConsecutiveWriteTimeouts    int  `toml:"ws_max_consecutive_write_timeouts"`
	WSCloseOnWriteTimeout            bool `toml:"ws_close_on_write_timeout"`
	WSMaxFrameBytes                  int  `toml:"ws_max_frame_bytes"`
	WSEnforceCanonicalRoute          bool `toml:"ws_enforce_canonical_route"`

	TranscriptMaxUtterances int `toml:"transcript_max_utterances"`
	TranscriptMaxChars      int `toml:"transcript_max_chars"`

	SpeechMarkupMode MarkupMode     `toml:"speech_markup_mode"`
	DashPauseScope   DashPauseScope `toml:"dash_pause_scope"`
}

// Default returns the configuration with every documented default applied.
func Default() Config {
	return Config{
		BrainInboundQueueMax:  256,
		BrainOutboundQueueMax: 256,
		BrainPingIntervalMS:   2000,
		BrainIdleTimeoutMS:    30000,
		BrainSpeakFirst:       false,

		KeepalivePingWriteDeadlineMS: 100,

		WSWriteTimeoutMS:              400,
		WSMaxConsecutiveWriteTimeouts: 2,
		WSCloseOnWriteTimeout:         true,
		WSMaxFrameBytes:               262144,
		WSEnforceCanonicalRoute:       false,

		TranscriptMaxUtterances: 200,
		TranscriptMaxChars:      20000,

		SpeechMarkupMode: MarkupDashPause,
		DashPauseScope:   DashPauseProtectedOnly,
	}
}

// Load reads path as TOML over the defaults. A missing file is not an
// error; it just yields the defaults. A malformed file is reported, never
// silently ignored, but never panics.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("config: failed to read %s: %w", path, err)
	}

	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("config: failed to parse %s: %w", path, err)
	}
	return cfg, nil
}

// FromEnv overlays BRAIN_*/WS_*/TRANSCRIPT_*/SPEECH_*/DASH_PAUSE_* variables
// over base. Unset variables leave base's value untouched; an unparseable
// integer is ignored (base's value stays), with nothing logged. A boolean
// variable that is not one of the truthy values sets false. Markup mode and
// scope strings are taken as given, without validation.
func FromEnv(base Config) Config {
	cfg := base

	overlayInt("BRAIN_INBOUND_QUEUE_MAX", &cfg.BrainInboundQueueMax)
	overlayInt("BRAIN_OUTBOUND_QUEUE_MAX", &cfg.BrainOutboundQueueMax)
	overlayInt("BRAIN_PING_INTERVAL_MS", &cfg.BrainPingIntervalMS)
	overlayInt("BRAIN_IDLE_TIMEOUT_MS", &cfg.BrainIdleTimeoutMS)
	overlayBool("BRAIN_SPEAK_FIRST", &cfg.BrainSpeakFirst)
	overlayInt("KEEPALIVE_PING_WRITE_DEADLINE_MS", &cfg.KeepalivePingWriteDeadlineMS)

	overlayInt("WS_WRITE_TIMEOUT_MS", &cfg.WSWriteTimeoutMS)
	overlayInt("WS_MAX_CONSECUTIVE_WRITE_TIMEOUTS", &cfg.WSMaxConsecutiveWriteTimeouts)
	overlayBool("WS_CLOSE_ON_WRITE_TIMEOUT", &cfg.WSCloseOnWriteTimeout)
	overlayInt("WS_MAX_FRAME_BYTES", &cfg.WSMaxFrameBytes)
	overlayBool("WS_ENFORCE_CANONICAL_ROUTE", &cfg.WSEnforceCanonicalRoute)

	overlayInt("TRANSCRIPT_MAX_UTTERANCES", &cfg.TranscriptMaxUtterances)
	overlayInt("TRANSCRIPT_MAX_CHARS", &cfg.TranscriptMaxChars)

	if v, ok := os.LookupEnv("SPEECH_MARKUP_MODE"); ok {
		cfg.SpeechMarkupMode = MarkupMode(v)
	}
	if v, ok := os.LookupEnv("DASH_PAUSE_SCOPE"); ok {
		cfg.DashPauseScope = DashPauseScope(v)
	}

	return cfg
}

func overlayInt(key string, dst *int) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return
	}
	*dst = n
}

// truthyValues mirrors the source configuration loader's boolean parsing:
// any of these (case-insensitive) count as true.
var truthyValues = map[string]bool{
	"1": true, "true": true, "t": true, "yes": true, "y": true, "on": true,
}

func overlayBool(key string, dst *bool) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return
	}
	*dst = truthyValues[strings.ToLower(strings.TrimSpace(v))]
}
