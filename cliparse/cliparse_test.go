// cliparse/cliparse_test.go
package cliparse

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// setRequired sets the variables every config needs.
func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("DATABASE_URL", "file:test.db")
	t.Setenv("ADMIN_KEY_SALT", "test-salt")
}

func TestParseFlags_EnvVars(t *testing.T) {
	setRequired(t)
	t.Setenv("PORT", "9000")
	t.Setenv("DATABASE_TYPE", "postgres")

	cfg, err := ParseFlags([]string{})
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Port != 9000 {
		t.Errorf("expected port 9000, got %d", cfg.Port)
	}
	if cfg.DatabaseType != "postgres" {
		t.Errorf("expected postgres, got %s", cfg.DatabaseType)
	}
	if cfg.AdminKeySalt != "test-salt" {
		t.Errorf("expected admin salt from env, got %q", cfg.AdminKeySalt)
	}
}

func TestParseFlags_CLIOverridesEnv(t *testing.T) {
	t.Setenv("PORT", "9000")

	cfg, err := ParseFlags([]string{"-p", "8080", "-d", "file:test.db", "-admin-salt", "s1"})
	if err != nil {
		t.Fatal(err)
	}

	// CLI should override env
	if cfg.Port != 8080 {
		t.Errorf("CLI should override env: expected 8080, got %d", cfg.Port)
	}
	if cfg.DatabaseType != "sqlite" {
		t.Errorf("expected sqlite default, got %s", cfg.DatabaseType)
	}
}

func TestParseFlags_Defaults(t *testing.T) {
	setRequired(t)

	cfg, err := ParseFlags(nil)
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Port != 3318 {
		t.Errorf("expected default port 3318, got %d", cfg.Port)
	}
	want := Economy{TicketCap: 15, MaxPurchase: 100, SweepInterval: 30 * time.Second}
	if cfg.Economy != want {
		t.Errorf("expected %+v, got %+v", want, cfg.Economy)
	}
}

func TestParseFlags_Errors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		args []string
	}{
		{
			name: "missing database url",
			env:  map[string]string{"ADMIN_KEY_SALT": "s"},
		},
		{
			name: "missing admin salt",
			env:  map[string]string{"DATABASE_URL": "x.db"},
		},
		{
			name: "bad port",
			env:  map[string]string{"PORT": "eighty", "DATABASE_URL": "x.db", "ADMIN_KEY_SALT": "s"},
		},
		{
			name: "unsupported database type",
			env:  map[string]string{"DATABASE_URL": "x.db", "ADMIN_KEY_SALT": "s"},
			args: []string{"-t", "mysql"},
		},
		{
			name: "missing env file",
			env:  map[string]string{"DATABASE_URL": "x.db", "ADMIN_KEY_SALT": "s"},
			args: []string{"-env-file", "/nonexistent/.env"},
		},
		{
			name: "missing economy file",
			env:  map[string]string{"DATABASE_URL": "x.db", "ADMIN_KEY_SALT": "s"},
			args: []string{"-c", "/nonexistent/economy.yaml"},
		},
		{
			name: "zero ticket cap",
			env:  map[string]string{"DATABASE_URL": "x.db", "ADMIN_KEY_SALT": "s", "TV_TICKET_CAP": "0"},
		},
		{
			name: "max purchase whose cost overflows",
			env:  map[string]string{"DATABASE_URL": "x.db", "ADMIN_KEY_SALT": "s", "TV_MAX_PURCHASE": "3037000500"},
		},
		{
			name: "unknown flag",
			env:  map[string]string{"DATABASE_URL": "x.db", "ADMIN_KEY_SALT": "s"},
			args: []string{"-slug-salt", "x"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, key := range []string{"PORT", "DATABASE_URL", "DATABASE_TYPE", "ADMIN_KEY_SALT", "ENV_FILE", "ECONOMY_FILE"} {
				t.Setenv(key, "")
			}
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			if _, err := ParseFlags(tt.args); err == nil {
				t.Errorf("expected error for %s", tt.name)
			}
		})
	}
}

func TestParseFlags_EnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	content := "DATABASE_URL=from-dotenv.db\nADMIN_KEY_SALT=dotenv-salt\nPORT=7000\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		os.Unsetenv("DATABASE_URL")
		os.Unsetenv("ADMIN_KEY_SALT")
	})
	os.Unsetenv("DATABASE_URL")
	os.Unsetenv("ADMIN_KEY_SALT")

	// Variables already in the environment win over the file.
	t.Setenv("PORT", "9001")

	cfg, err := ParseFlags([]string{"-env-file", path})
	if err != nil {
		t.Fatal(err)
	}

	if cfg.DatabaseURL != "from-dotenv.db" {
		t.Errorf("expected database url from .env, got %q", cfg.DatabaseURL)
	}
	if cfg.AdminKeySalt != "dotenv-salt" {
		t.Errorf("expected salt from .env, got %q", cfg.AdminKeySalt)
	}
	if cfg.Port != 9001 {
		t.Errorf("environment should win over .env: expected 9001, got %d", cfg.Port)
	}
}

func TestParseFlags_EconomyFile(t *testing.T) {
	setRequired(t)

	path := filepath.Join(t.TempDir(), "economy.yaml")
	content := "ticket_cap: 20\nmax_purchase: 50\nsweep_interval: 5s\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	t.Run("file values replace defaults", func(t *testing.T) {
		cfg, err := ParseFlags([]string{"-c", path})
		if err != nil {
			t.Fatal(err)
		}

		want := Economy{TicketCap: 20, MaxPurchase: 50, SweepInterval: 5 * time.Second}
		if cfg.Economy != want {
			t.Errorf("expected %+v, got %+v", want, cfg.Economy)
		}
	})

	t.Run("TV_ variables override the file", func(t *testing.T) {
		t.Setenv("TV_MAX_PURCHASE", "10")
		t.Setenv("TV_SWEEP_INTERVAL", "1m")

		cfg, err := ParseFlags([]string{"-c", path})
		if err != nil {
			t.Fatal(err)
		}

		want := Economy{TicketCap: 20, MaxPurchase: 10, SweepInterval: time.Minute}
		if cfg.Economy != want {
			t.Errorf("expected %+v, got %+v", want, cfg.Economy)
		}
	})
}

func TestParseFlags_PrintAdminKey(t *testing.T) {
	setRequired(t)

	cfg, err := ParseFlags([]string{"-print-admin-key"})
	if err != nil {
		t.Fatal(err)
	}
	if !cfg.PrintAdminKey {
		t.Error("expected PrintAdminKey to be set")
	}
}
