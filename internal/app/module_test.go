package app

import (
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/fx"

	"signalchat/internal/checkpoint"
	"signalchat/internal/config"
	"signalchat/internal/fetcher"
	"signalchat/internal/worker"
)

func writeConfig(t *testing.T, endpoint string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	body := "log_level: error\n" +
		"signal:\n  base_url: https://signal.example.jp\n  api_key: k\n  endpoint: " + endpoint + "\n" +
		"notifier:\n  webhook_url: https://chat.example.com/hook\n" +
		"checkpoint:\n  path: " + filepath.Join(dir, "updated_at.txt") + "\n" +
		"run:\n  interval: 1m\n"
	if err := os.WriteFile(path, []byte(body), 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestModuleValidates(t *testing.T) {
	if err := fx.ValidateApp(Module(Params{ConfigPath: writeConfig(t, "threads")})); err != nil {
		t.Fatalf("ValidateApp() error = %v", err)
	}
}

func TestNewBuildsGraph(t *testing.T) {
	tests := []struct {
		endpoint string
		feed     bool
	}{
		{"threads", false},
		{"messages", false},
		{"feed", true},
	}

	for _, tt := range tests {
		t.Run(tt.endpoint, func(t *testing.T) {
			var (
				runner *worker.Runner
				f      fetcher.Fetcher
				store  checkpoint.Store
				cfg    *config.Config
			)
			a := New(Params{ConfigPath: writeConfig(t, tt.endpoint), Once: true},
				fx.Populate(&runner, &f, &store, &cfg))
			if err := a.Err(); err != nil {
				t.Fatalf("New() error = %v", err)
			}

			if runner == nil {
				t.Fatal("runner not built")
			}
			if _, ok := store.(*checkpoint.File); !ok {
				t.Errorf("store = %T, want *checkpoint.File", store)
			}
			if _, isFeed := f.(*fetcher.Feed); isFeed != tt.feed {
				t.Errorf("fetcher = %T", f)
			}
			if cfg.Run.Interval != 0 {
				t.Errorf("Interval = %v, want 0 with Once", cfg.Run.Interval)
			}
		})
	}
}

func TestNewLogLevelOverride(t *testing.T) {
	a := New(Params{ConfigPath: writeConfig(t, "threads"), LogLevel: "LOUD"})
	if a.Err() == nil {
		t.Fatal("New() expected error for unknown log level")
	}
}

func TestNewConfigError(t *testing.T) {
	a := New(Params{ConfigPath: filepath.Join(t.TempDir(), "absent.yaml")})
	if a.Err() == nil {
		t.Fatal("New() expected error for missing settings")
	}
}
