package config

import (
	"os"
	"testing"
	"time"
)

func TestParse(t *testing.T) {
	tests := map[string]struct {
		env       map[string]string
		args      []string
		shouldErr bool
		check     func(t *testing.T, cfg *Config)
	}{
		"defaults": {
			env: map[string]string{"TELEGRAM_TOKEN": "123:abc"},
			check: func(t *testing.T, cfg *Config) {
				if cfg.Port != 8080 {
					t.Errorf("expected port 8080, got %d", cfg.Port)
				}
				if cfg.StoreBackend != StoreBackend_Sqlite {
					t.Errorf("expected sqlite store, got %s", cfg.StoreBackend)
				}
				if cfg.ReminderBase != 30*time.Minute {
					t.Errorf("expected 30m reminder base, got %s", cfg.ReminderBase)
				}
				if cfg.ReminderMaxAttempts != 3 {
					t.Errorf("expected 3 reminder attempts, got %d", cfg.ReminderMaxAttempts)
				}
				if cfg.EscalationThreshold != 4 {
					t.Errorf("expected escalation threshold 4, got %d", cfg.EscalationThreshold)
				}
			},
		},
		"env overrides": {
			env: map[string]string{
				"TELEGRAM_TOKEN":         "123:abc",
				"STORE_BACKEND":          "memory",
				"REMINDER_BASE_INTERVAL": "1s",
				"INSTRUCTORS":            "10,11",
				"STAFF":                  "12",
			},
			check: func(t *testing.T, cfg *Config) {
				if cfg.ReminderBase != time.Second {
					t.Errorf("expected 1s reminder base, got %s", cfg.ReminderBase)
				}
				if !cfg.IsInstructor("11") || cfg.IsInstructor("12") {
					t.Errorf("unexpected instructors %v", cfg.Instructors)
				}
				if !cfg.IsStaff("12") || cfg.IsStaff("10") {
					t.Errorf("unexpected staff %v", cfg.Staff)
				}
			},
		},
		"flags": {
			env:  map[string]string{"TELEGRAM_TOKEN": "123:abc"},
			args: []string{"--port", "9090", "--store", "memory"},
			check: func(t *testing.T, cfg *Config) {
				if cfg.Port != 9090 {
					t.Errorf("expected port 9090, got %d", cfg.Port)
				}
			},
		},
		"missing token": {
			shouldErr: true,
		},
		"unknown store": {
			env:       map[string]string{"TELEGRAM_TOKEN": "123:abc", "STORE_BACKEND": "redis"},
			shouldErr: true,
		},
		"postgres without url": {
			env:       map[string]string{"TELEGRAM_TOKEN": "123:abc", "STORE_BACKEND": "postgres"},
			shouldErr: true,
		},
		"unknown env": {
			env:       map[string]string{"TELEGRAM_TOKEN": "123:abc", "ENV": "staging"},
			shouldErr: true,
		},
		"escalation out of range": {
			env:       map[string]string{"TELEGRAM_TOKEN": "123:abc", "ESCALATION_THRESHOLD": "12"},
			shouldErr: true,
		},
	}
	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			for _, key := range []string{"TELEGRAM_TOKEN", "STORE_BACKEND", "REMINDER_BASE_INTERVAL", "INSTRUCTORS", "STAFF", "ESCALATION_THRESHOLD", "PORT", "DATABASE_URL", "ENV", "HOSTNAME_URL", "REMINDER_MAX_ATTEMPTS"} {
				unsetenv(t, key)
			}
			for key, value := range test.env {
				t.Setenv(key, value)
			}
			cfg, err := Parse(test.args)
			if test.shouldErr {
				if err == nil {
					t.Errorf("expected error, got config %+v", cfg)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			test.check(t, cfg)
		})
	}
}

// unsetenv clears key for the duration of the test and restores it afterwards.
func unsetenv(t *testing.T, key string) {
	t.Helper()
	t.Setenv(key, "")
	os.Unsetenv(key)
}
