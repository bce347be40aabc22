package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/woozymasta/twinfo/internal/address"
)

func TestParseArgsDefaults(t *testing.T) {
	cfg, err := ParseArgs([]string{"-s", "Server01=127.0.0.1:8303"})
	require.NoError(t, err)

	assert.Equal(t, "servers.json", cfg.Output.File)
	assert.Equal(t, ".", cfg.Output.Path)
	assert.Equal(t, 2*time.Second, cfg.Query.Timeout.Duration())
	assert.Equal(t, 8, cfg.Query.Workers)
	assert.Equal(t, uint16(2048), cfg.Query.BufferSize)
	assert.False(t, cfg.Query.Vanilla)
	assert.Equal(t, "info", cfg.Logger.Level)

	require.Len(t, cfg.Output.Servers, 1)
	assert.Equal(t, ServerEntry{Name: "Server01", Address: address.Address{Host: "127.0.0.1", Port: 8303}}, cfg.Output.Servers[0])
}

func TestParseArgsServers(t *testing.T) {
	cfg, err := ParseArgs([]string{
		"--server", "A=a.example.org",
		"--server", "B=[::1]:8305",
		"-s", "A=10.0.0.1:8310",
		"-t", "0.05",
		"-f", "out.json", "-p", "/tmp/tw",
	})
	require.NoError(t, err)

	require.Len(t, cfg.Output.Servers, 3)
	assert.Equal(t, "A", cfg.Output.Servers[0].Name)
	assert.Equal(t, address.DefaultPort, cfg.Output.Servers[0].Address.Port)
	assert.Equal(t, "::1", cfg.Output.Servers[1].Address.Host)
	assert.Equal(t, uint16(8310), cfg.Output.Servers[2].Address.Port)
	assert.Equal(t, 50*time.Millisecond, cfg.Query.Timeout.Duration())
	assert.Equal(t, "out.json", cfg.Output.File)
	assert.Equal(t, "/tmp/tw", cfg.Output.Path)
}

func TestParseArgsInvalidServer(t *testing.T) {
	for _, arg := range []string{"nameless", "=1.2.3.4", "A=1.2.3.4:0", "A=host:port"} {
		t.Run(arg, func(t *testing.T) {
			_, err := ParseArgs([]string{"-s", arg})
			assert.Error(t, err)
		})
	}
}

func TestParseArgsValidation(t *testing.T) {
	tests := [][]string{
		{"-t", "0"},
		{"-t", "-1"},
		{"-w", "0"},
		{"--rate", "-2"},
		{"--retries", "-1"},
		{"--buffer-size", "10"},
		{"--db-list"},
		{"--db-prune"},
	}

	for _, args := range tests {
		_, err := ParseArgs(args)
		assert.Error(t, err, "args %v", args)
	}
}

func TestParseArgsRegistryTasks(t *testing.T) {
	cfg, err := ParseArgs([]string{"--db-path", "reg.db", "--db-delete", "Server01"})
	require.NoError(t, err)

	assert.Equal(t, "reg.db", cfg.Storage.Path)
	assert.Equal(t, "Server01", cfg.Storage.Delete)

	cfg, err = ParseArgs([]string{"--db-path", "reg.db", "--db-prune", "-w", "2"})
	require.NoError(t, err)
	assert.True(t, cfg.Storage.Prune)
	assert.Equal(t, 2, cfg.Query.Workers)
}

func TestParseArgsEnv(t *testing.T) {
	t.Setenv("TWINFO_SERVERS", "A=1.1.1.1,B=2.2.2.2:8304")
	t.Setenv("TWINFO_TIMEOUT", "750ms")

	cfg, err := ParseArgs(nil)
	require.NoError(t, err)

	require.Len(t, cfg.Output.Servers, 2)
	assert.Equal(t, "B", cfg.Output.Servers[1].Name)
	assert.Equal(t, uint16(8304), cfg.Output.Servers[1].Address.Port)
	assert.Equal(t, 750*time.Millisecond, cfg.Query.Timeout.Duration())
}

func TestParseArgsConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "twinfo.ini")
	ini := "[Output Options]\nserver = Local=127.0.0.1:8303\nfile = status.json\n\n[Query Options]\ntimeout = 0.5\n"
	require.NoError(t, os.WriteFile(path, []byte(ini), 0o600))

	cfg, err := ParseArgs([]string{"-c", path, "-w", "2"})
	require.NoError(t, err)

	require.Len(t, cfg.Output.Servers, 1)
	assert.Equal(t, "Local", cfg.Output.Servers[0].Name)
	assert.Equal(t, "status.json", cfg.Output.File)
	assert.Equal(t, 500*time.Millisecond, cfg.Query.Timeout.Duration())
	assert.Equal(t, 2, cfg.Query.Workers)
}

func TestParseArgsMissingConfigFile(t *testing.T) {
	_, err := ParseArgs([]string{"-c", filepath.Join(t.TempDir(), "missing.ini")})
	assert.Error(t, err)
}

func TestSecondsUnmarshal(t *testing.T) {
	tests := map[string]time.Duration{
		"2":      2 * time.Second,
		"0.05":   50 * time.Millisecond,
		"1500ms": 1500 * time.Millisecond,
		"1m":     time.Minute,
	}

	for in, want := range tests {
		var s Seconds
		require.NoError(t, s.UnmarshalFlag(in), in)
		assert.Equal(t, want, s.Duration(), in)
	}

	var s Seconds
	assert.Error(t, s.UnmarshalFlag("soon"))
	assert.Error(t, s.UnmarshalFlag("NaN"))
	assert.Error(t, s.UnmarshalFlag("+Inf"))
}

func TestServerEntryMarshal(t *testing.T) {
	var e ServerEntry
	require.NoError(t, e.UnmarshalFlag(" Server01 =example.org"))

	s, err := e.MarshalFlag()
	require.NoError(t, err)
	assert.Equal(t, "Server01=example.org:8303", s)
}
