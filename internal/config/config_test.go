package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestParseYAML(t *testing.T) {
	path := writeFile(t, "config.yaml", `
logging:
  level: debug
  console: true
storage:
  path: /var/lib/bot/bot.db
  busy_timeout: 5s
poll:
  interval: 120s
  workers: 4
content:
  base_url: https://api.example
  general_allow: [landscape, animals]
  banned: [spoiler]
abuse:
  window: 5s
  threshold: 5
delivery:
  rate_per_sec: 10
`)
	cfg, err := NewManager(path).Parse()
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	want := &Config{
		Logging: LoggingConfig{Level: "debug", Console: true},
		Storage: StorageConfig{Path: "/var/lib/bot/bot.db", BusyTimeout: "5s"},
		Poll:    PollConfig{Interval: "120s", Workers: 4},
		Content: ContentConfig{
			BaseURL:      "https://api.example",
			GeneralAllow: []string{"landscape", "animals"},
			Banned:       []string{"spoiler"},
		},
		Abuse:    AbuseConfig{Window: "5s", Threshold: 5},
		Delivery: DeliveryConfig{RatePerSec: 10},
	}
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("config (-want +got):\n%s", diff)
	}
}

func TestParseJSON(t *testing.T) {
	path := writeFile(t, "config.json", `{"storage": {"path": "/tmp/bot.db"}, "content": {"base_url": "https://api.example"}}`)
	cfg, err := NewManager(path).Parse()
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Storage.Path != "/tmp/bot.db" {
		t.Errorf("path = %q", cfg.Storage.Path)
	}
}

func TestParseRejectsUnknownField(t *testing.T) {
	path := writeFile(t, "config.json", `{"storage": {"path": "/tmp/bot.db"}, "tpyo": 1}`)
	if _, err := NewManager(path).Parse(); err == nil {
		t.Fatal("want error for unknown field")
	}
}

func TestParseRejectsTrailingData(t *testing.T) {
	path := writeFile(t, "config.json", `{"storage": {"path": "/tmp/bot.db"}}{"again": true}`)
	if _, err := NewManager(path).Parse(); err == nil {
		t.Fatal("want error for trailing data")
	}
}

func TestParseRequiresStoragePath(t *testing.T) {
	path := writeFile(t, "config.yaml", `logging: {console: true}`)
	if _, err := NewManager(path).Parse(); err == nil {
		t.Fatal("want error for missing storage.path")
	}
}

func TestParseRejectsBadDuration(t *testing.T) {
	path := writeFile(t, "config.yaml", `
storage:
  path: /tmp/bot.db
poll:
  interval: not-a-duration
`)
	if _, err := NewManager(path).Parse(); err == nil {
		t.Fatal("want error for bad duration")
	}
}

func TestLoadCommits(t *testing.T) {
	path := writeFile(t, "config.json", `{"storage": {"path": "/tmp/bot.db"}}`)
	m := NewManager(path)
	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := m.Get(); got != cfg {
		t.Error("Get did not return the committed config")
	}
}

func TestSubscribePublish(t *testing.T) {
	path := writeFile(t, "config.json", `{"storage": {"path": "/tmp/bot.db"}}`)
	m := NewManager(path)
	if _, err := m.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}

	ch := m.Subscribe(1)
	defer m.Unsubscribe(ch)

	next := &Config{Storage: StorageConfig{Path: "/tmp/other.db"}}
	m.commit(next)
	m.publish(next)

	select {
	case got := <-ch:
		if got != next {
			t.Errorf("subscriber got %+v", got)
		}
	case <-time.After(time.Second):
		t.Fatal("subscriber never notified")
	}
}

func TestPublishDropsStaleWhenFull(t *testing.T) {
	m := NewManager("unused")
	ch := m.Subscribe(1)
	defer m.Unsubscribe(ch)

	first := &Config{Storage: StorageConfig{Path: "/a"}}
	second := &Config{Storage: StorageConfig{Path: "/b"}}
	m.publish(first)
	m.publish(second)

	got := <-ch
	if got != second {
		t.Errorf("got %q, want the newest config", got.Storage.Path)
	}
}

func TestParseDurationField(t *testing.T) {
	tests := []struct {
		raw     string
		want    time.Duration
		wantErr bool
	}{
		{"", 0, false},
		{"  ", 0, false},
		{"10s", 10 * time.Second, false},
		{"2m", 2 * time.Minute, false},
		{"-5s", 0, true},
		{"nope", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseDurationField("f", tt.raw)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseDurationField(%q) err = %v, wantErr %v", tt.raw, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseDurationField(%q) = %v, want %v", tt.raw, got, tt.want)
		}
	}
}

func TestParseDurationOrDefault(t *testing.T) {
	if d, err := ParseDurationOrDefault("f", "", 30*time.Second); err != nil || d != 30*time.Second {
		t.Errorf("empty: got (%v, %v)", d, err)
	}
	if d, err := ParseDurationOrDefault("f", "10s", 30*time.Second); err != nil || d != 10*time.Second {
		t.Errorf("explicit: got (%v, %v)", d, err)
	}
}
