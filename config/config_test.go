package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultMatchesDocumentedDefaults(t *testing.T) {
	cfg := Default()
	if cfg.BrainInboundQueueMax != 256 {
		t.Fatalf("expected 256, got %d", cfg.BrainInboundQueueMax)
	}
	if cfg.WSWriteTimeoutMS != 400 {
		t.Fatalf("expected 400, got %d", cfg.WSWriteTimeoutMS)
	}
	if cfg.WSMaxFrameBytes != 262144 {
		t.Fatalf("expected 262144, got %d", cfg.WSMaxFrameBytes)
	}
	if !cfg.WSCloseOnWriteTimeout {
		t.Fatalf("expected close-on-write-timeout to default true")
	}
	if cfg.SpeechMarkupMode != MarkupDashPause {
		t.Fatalf("expected DASH_PAUSE default, got %s", cfg.SpeechMarkupMode)
	}
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.toml"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg != Default() {
		t.Fatalf("expected defaults for a missing file")
	}
}

func TestLoadOverlaysTOMLFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "brain.toml")
	body := "brain_ping_interval_ms = 5000\nws_max_frame_bytes = 1024\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("failed to write fixture: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.BrainPingIntervalMS != 5000 {
		t.Fatalf("expected overridden ping interval, got %d", cfg.BrainPingIntervalMS)
	}
	if cfg.WSMaxFrameBytes != 1024 {
		t.Fatalf("expected overridden max frame bytes, got %d", cfg.WSMaxFrameBytes)
	}
	if cfg.BrainInboundQueueMax != 256 {
		t.Fatalf("expected untouched fields to keep their default, got %d", cfg.BrainInboundQueueMax)
	}
}

func TestLoadRejectsMalformedTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.toml")
	if err := os.WriteFile(path, []byte("not = [valid"), 0o600); err != nil {
		t.Fatalf("failed to write fixture: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("expected an error for malformed TOML")
	}
}

func TestFromEnvOverlaysOverBase(t *testing.T) {
	base := Default()
	t.Setenv("BRAIN_INBOUND_QUEUE_MAX", "512")
	t.Setenv("WS_CLOSE_ON_WRITE_TIMEOUT", "false")
	t.Setenv("SPEECH_MARKUP_MODE", "RAW_TEXT")

	cfg := FromEnv(base)
	if cfg.BrainInboundQueueMax != 512 {
		t.Fatalf("expected env override to apply, got %d", cfg.BrainInboundQueueMax)
	}
	if cfg.WSCloseOnWriteTimeout {
		t.Fatalf("expected close-on-write-timeout false to apply")
	}
	if cfg.SpeechMarkupMode != MarkupRawText {
		t.Fatalf("expected RAW_TEXT override, got %s", cfg.SpeechMarkupMode)
	}
	if cfg.WSWriteTimeoutMS != base.WSWriteTimeoutMS {
		t.Fatalf("expected untouched field to keep base value")
	}
}

func TestFromEnvIgnoresUnparseableInt(t *testing.T) {
	base := Default()
	t.Setenv("BRAIN_PING_INTERVAL_MS", "not-a-number")

	cfg := FromEnv(base)
	if cfg.BrainPingIntervalMS != base.BrainPingIntervalMS {
		t.Fatalf("expected unparseable override to leave base value untouched, got %d", cfg.BrainPingIntervalMS)
	}
}
