package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv isolates a test from the caller's environment and any .env in
// the working directory.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, name := range []string{
		"MAILHOST", "MAILPORT", "CRYPT", "USERNAME", "PASSWORD",
		"SENDER", "RECIPIENT", "KEYWORDS", "START_DATE", "END_DATE",
	} {
		t.Setenv(name, "")
	}
	t.Chdir(t.TempDir())
}

func load(t *testing.T, args ...string) (Config, error) {
	t.Helper()
	cmd := &cobra.Command{Use: "test"}
	RegisterFlags(cmd)
	require.NoError(t, cmd.ParseFlags(args))
	return LoadConfig(cmd)
}

func TestLoadConfig_FlagsOnly(t *testing.T) {
	clearEnv(t)

	cfg, err := load(t,
		"--mailhost", "imap.example.com",
		"--username", "me",
		"--password", "pw",
		"--sender", "alice",
		"--start-date", "2024-01-01",
		"--end-date", "2024-01-31",
		"--all-folders",
	)
	require.NoError(t, err)

	assert.Equal(t, "imap.example.com", cfg.Host)
	assert.Equal(t, 143, cfg.Port)
	assert.Equal(t, CryptStartTLS, cfg.Crypt)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), cfg.StartDate)
	assert.Equal(t, time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC), cfg.EndDate)
	assert.True(t, cfg.AllFolders)
	assert.Equal(t, "export", cfg.ExportDir)
	assert.Equal(t, "auto", cfg.PDFBackend)
	assert.Equal(t, "info", cfg.LogLevel)

	c := cfg.Criteria()
	assert.Equal(t, "alice", c.Sender)
	assert.Equal(t, cfg.StartDate, c.Start)
}

func TestLoadConfig_ConnectionDefaults(t *testing.T) {
	tests := []struct {
		name      string
		args      []string
		wantPort  int
		wantCrypt string
	}{
		{name: "ssl implies 993", args: []string{"--crypt", "ssl"}, wantPort: 993, wantCrypt: CryptSSL},
		{name: "993 implies ssl", args: []string{"--mailport", "993"}, wantPort: 993, wantCrypt: CryptSSL},
		{name: "none implies 143", args: []string{"--crypt", "NONE"}, wantPort: 143, wantCrypt: CryptNone},
		{name: "nothing set", args: nil, wantPort: 143, wantCrypt: CryptStartTLS},
		{name: "custom port", args: []string{"--mailport", "1143"}, wantPort: 1143, wantCrypt: CryptStartTLS},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			args := append([]string{"--mailhost", "h", "--username", "u", "--password", "p"}, tt.args...)
			cfg, err := load(t, args...)
			require.NoError(t, err)
			assert.Equal(t, tt.wantPort, cfg.Port)
			assert.Equal(t, tt.wantCrypt, cfg.Crypt)
		})
	}
}

func TestLoadConfig_MissingParameters(t *testing.T) {
	clearEnv(t)

	_, err := load(t, "--mailhost", "h")
	require.ErrorIs(t, err, ErrMissingParameter)
	assert.Contains(t, err.Error(), "username")
	assert.Contains(t, err.Error(), "password")
}

func TestLoadConfig_MboxNeedsNoConnection(t *testing.T) {
	clearEnv(t)

	cfg, err := load(t, "--mbox", "archive.mbox")
	require.NoError(t, err)
	assert.True(t, cfg.Offline())
}

func TestLoadConfig_InvalidDates(t *testing.T) {
	for _, args := range [][]string{
		{"--start-date", "01/02/2024"},
		{"--end-date", "2024-13-01"},
		{"--start-date", "2024-02-01", "--end-date", "2024-01-01"},
	} {
		clearEnv(t)
		_, err := load(t, append([]string{"--mbox", "x"}, args...)...)
		assert.ErrorIs(t, err, ErrInvalidDate, "args %v", args)
	}
}

func TestLoadConfig_Precedence(t *testing.T) {
	clearEnv(t)

	dir := t.TempDir()
	envFile := filepath.Join(dir, "test.env")
	content := "MAILHOST=file.example.com\nUSERNAME=file-user\nPASSWORD=file-pass\nSENDER=file-sender\nSTART_DATE=2023-05-01\n"
	require.NoError(t, os.WriteFile(envFile, []byte(content), 0o600))

	t.Setenv("USERNAME", "env-user")
	t.Setenv("SENDER", "env-sender")

	cfg, err := load(t, "--env", envFile, "--sender", "flag-sender")
	require.NoError(t, err)

	assert.Equal(t, "file.example.com", cfg.Host)
	assert.Equal(t, "env-user", cfg.Username)
	assert.Equal(t, "file-pass", cfg.Password)
	assert.Equal(t, "flag-sender", cfg.Sender)
	assert.Equal(t, time.Date(2023, 5, 1, 0, 0, 0, 0, time.UTC), cfg.StartDate)
}

func TestLoadConfig_DefaultEnvFileInWorkingDir(t *testing.T) {
	clearEnv(t)
	require.NoError(t, os.WriteFile(".env", []byte("MAILHOST=dotenv.example.com\nUSERNAME=u\nPASSWORD=p\n"), 0o600))

	cfg, err := load(t)
	require.NoError(t, err)
	assert.Equal(t, "dotenv.example.com", cfg.Host)
}

func TestLoadConfig_ExplicitEnvFileMissing(t *testing.T) {
	clearEnv(t)

	_, err := load(t, "--mbox", "x", "--env", filepath.Join(t.TempDir(), "absent.env"))
	assert.Error(t, err)
}

func TestLoadConfig_VerboseAndValidation(t *testing.T) {
	clearEnv(t)

	cfg, err := load(t, "--mbox", "x", "--verbose", "--log-level", "error")
	require.NoError(t, err)
	assert.True(t, cfg.Verbose)
	assert.Equal(t, "error", cfg.LogLevel)

	_, err = load(t, "--mbox", "x", "--pdf-backend", "latex")
	assert.ErrorContains(t, err, "pdf-backend")

	_, err = load(t, "--mbox", "x", "--crypt", "tls")
	assert.ErrorContains(t, err, "crypt")

	_, err = load(t, "--mbox", "x", "--log-level", "loud")
	assert.ErrorContains(t, err, "log-level")

	_, err = load(t, "--mbox", "x", "--mailport", "70000")
	assert.ErrorContains(t, err, "mailport")
}
