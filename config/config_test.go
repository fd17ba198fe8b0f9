package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/adcpstream/errors"
	"github.com/c360/adcpstream/natsclient"
	"github.com/c360/adcpstream/receiver"
)

func writeYAML(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

// testLoader returns a loader reading overrides from env instead of the process.
func testLoader(env map[string]string) *Loader {
	l := NewLoader()
	l.lookupEnv = func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}
	return l
}

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "adcp", cfg.Receiver.Name)
	assert.Equal(t, receiver.DefaultReadTimeout, cfg.Receiver.ReadTimeout)
	assert.Equal(t, "goroutine", cfg.Receiver.Executor)
	assert.True(t, cfg.Transcript.PrefixState)
	assert.Equal(t, "adcp.ensembles", cfg.NATS.Subject)
	assert.Equal(t, -1, cfg.NATS.MaxReconnects)

	err := cfg.Validate()
	require.Error(t, err, "defaults have no instrument address")
	assert.ErrorIs(t, err, errors.ErrInvalidConfig)
}

func TestLoader_LayersMerge(t *testing.T) {
	base := writeYAML(t, "base.yaml", `
instrument:
  address: tcp://10.0.0.12:4001
receiver:
  name: north
  read_timeout: 250ms
nats:
  url: nats://localhost:4222
`)
	override := writeYAML(t, "override.yml", `
receiver:
  name: north-2
nats:
  subject: adcp.north
`)

	l := testLoader(nil)
	l.AddLayer(base)
	l.AddLayer(override)
	cfg, err := l.Load()
	require.NoError(t, err)

	assert.Equal(t, "tcp://10.0.0.12:4001", cfg.Instrument.Address)
	assert.Equal(t, "north-2", cfg.Receiver.Name)
	assert.Equal(t, 250*time.Millisecond, cfg.Receiver.ReadTimeout)
	assert.Equal(t, "nats://localhost:4222", cfg.NATS.URL)
	assert.Equal(t, "adcp.north", cfg.NATS.Subject)
	assert.Equal(t, receiver.DefaultChunkSize, cfg.Receiver.ChunkSize, "unset keys keep defaults")
}

func TestLoader_EnvOverrides(t *testing.T) {
	path := writeYAML(t, "adcp.yaml", "instrument:\n  address: tcp://a:1\n")

	l := testLoader(map[string]string{
		"ADCP_INSTRUMENT_ADDRESS": "ws://relay:8080/adcp",
		"ADCP_RECEIVER_OOI_DIGI":  "true",
		"ADCP_RECEIVER_EXECUTOR":  "cooperative",
		"ADCP_NATS_PASSWORD":      "s3cret",
		"ADCP_METRICS_ENABLED":    "1",
		"ADCP_NATS_SUBJECT":       "",
	})
	cfg, err := l.LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, "ws://relay:8080/adcp", cfg.Instrument.Address)
	assert.True(t, cfg.Receiver.OOIDigi)
	assert.Equal(t, receiver.ModeCooperative, cfg.ExecutorMode())
	assert.Equal(t, "s3cret", cfg.NATS.Password)
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, "adcp.ensembles", cfg.NATS.Subject, "empty variables are ignored")
}

func TestLoader_EnvErrors(t *testing.T) {
	path := writeYAML(t, "adcp.yaml", "instrument:\n  address: tcp://a:1\n")

	tests := map[string]map[string]string{
		"bad bool":     {"ADCP_NATS_JETSTREAM": "maybe"},
		"bad duration": {"ADCP_RECEIVER_READ_TIMEOUT": "soon"},
		"bad int":      {"ADCP_RECEIVER_CHUNK_SIZE": "big"},
		"null byte":    {"ADCP_RECEIVER_NAME": "a\x00b"},
		"too long":     {"ADCP_RECEIVER_PROMPT": strings.Repeat("x", maxEnvVarLen+1)},
	}
	for name, env := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := testLoader(env).LoadFile(path)
			require.Error(t, err)
			assert.True(t, errors.IsInvalid(err))
		})
	}
}

func TestLoader_UnknownField(t *testing.T) {
	path := writeYAML(t, "adcp.yaml", "instrument:\n  adress: tcp://a:1\n")

	_, err := testLoader(nil).LoadFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "adress")
}

func TestLoader_RejectsNonYAML(t *testing.T) {
	path := writeYAML(t, "adcp.json", `{"instrument":{"address":"tcp://a:1"}}`)

	_, err := testLoader(nil).LoadFile(path)
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))
}

func TestLoader_ValidationDisabled(t *testing.T) {
	path := writeYAML(t, "adcp.yaml", "receiver:\n  name: x\n")

	l := testLoader(nil)
	l.EnableValidation(false)
	cfg, err := l.LoadFile(path)
	require.NoError(t, err)
	assert.Empty(t, cfg.Instrument.Address)
}

func TestParse_Empty(t *testing.T) {
	cfg, err := Parse(nil)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(*Config) {}, false},
		{"missing address", func(c *Config) { c.Instrument.Address = "" }, true},
		{"negative dial timeout", func(c *Config) { c.Instrument.DialTimeout = -time.Second }, true},
		{"max delay below initial", func(c *Config) {
			c.Instrument.Retry.InitialDelay = time.Second
			c.Instrument.Retry.MaxDelay = time.Millisecond
		}, true},
		{"unknown executor", func(c *Config) { c.Receiver.Executor = "threads" }, true},
		{"negative chunk size", func(c *Config) { c.Receiver.ChunkSize = -1 }, true},
		{"negative backups", func(c *Config) { c.Transcript.MaxBackups = -1 }, true},
		{"bad nats scheme", func(c *Config) { c.NATS.URL = "http://localhost:4222" }, true},
		{"tls nats", func(c *Config) { c.NATS.URL = "tls://localhost:4222" }, false},
		{"tls cert without key", func(c *Config) {
			c.NATS.URL = "tls://localhost:4222"
			c.NATS.TLSCert = "/etc/adcp/client.pem"
		}, true},
		{"jetstream without stream", func(c *Config) {
			c.NATS.URL = "nats://localhost:4222"
			c.NATS.JetStream = true
		}, true},
		{"wildcard subject", func(c *Config) {
			c.NATS.URL = "nats://localhost:4222"
			c.NATS.Subject = "adcp.>"
		}, true},
		{"subject ignored without url", func(c *Config) { c.NATS.Subject = "adcp.>" }, false},
		{"metrics path", func(c *Config) {
			c.Metrics.Enabled = true
			c.Metrics.Path = "metrics"
		}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.Instrument.Address = "tcp://10.0.0.12:4001"
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.IsInvalid(err))
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestAccessors(t *testing.T) {
	cfg := Default()
	cfg.Instrument.Address = "tcp://10.0.0.12:4001"
	cfg.Instrument.Retry.MaxAttempts = 7
	cfg.Receiver.Name = "north"
	cfg.Receiver.OOIDigi = true
	cfg.Transcript.Path = "/var/log/adcp/north.log"
	cfg.Transcript.PrefixState = false
	cfg.Transcript.Compress = true
	cfg.NATS.Subject = "adcp.north"
	cfg.NATS.JetStream = true

	sc := cfg.SourceConfig()
	assert.Equal(t, "tcp://10.0.0.12:4001", sc.Address)
	assert.Equal(t, 7, sc.Retry.MaxAttempts)

	rc := cfg.ReceiverConfig()
	assert.Equal(t, "north", rc.Name)
	assert.True(t, rc.OOIDigi)
	assert.True(t, rc.NoStatePrefix, "prefix state comes from the transcript section")

	tc := cfg.RotateConfig()
	assert.Equal(t, "/var/log/adcp/north.log", tc.Filename)
	assert.True(t, tc.Compress)

	pc := cfg.PublishConfig()
	assert.Equal(t, "adcp.north", pc.Subject)
	assert.True(t, pc.JetStream)

	assert.Len(t, cfg.NATSOptions(), 4)
	cfg.NATS.Username = "adcp"
	cfg.NATS.Token = "t"
	assert.Len(t, cfg.NATSOptions(), 6)
}

func TestNATSOptions_TLS(t *testing.T) {
	path := writeYAML(t, "adcp.yaml", `
instrument:
  address: tcp://a:1
nats:
  url: tls://broker:4222
  tls_ca: /etc/adcp/ca.pem
`)
	l := testLoader(map[string]string{
		"ADCP_NATS_TLS_CERT": "/etc/adcp/client.pem",
		"ADCP_NATS_TLS_KEY":  "/etc/adcp/client-key.pem",
	})
	cfg, err := l.LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, "/etc/adcp/client.pem", cfg.NATS.TLSCert)
	assert.Equal(t, "/etc/adcp/client-key.pem", cfg.NATS.TLSKey)
	assert.Equal(t, "/etc/adcp/ca.pem", cfg.NATS.TLSCA)
	require.Len(t, cfg.NATSOptions(), 5)

	plain := Default()
	plain.NATS.URL = cfg.NATS.URL
	base, err := natsclient.NewClient(plain.NATS.URL, plain.NATSOptions()...)
	require.NoError(t, err)
	client, err := natsclient.NewClient(cfg.NATS.URL, cfg.NATSOptions()...)
	require.NoError(t, err)
	assert.Len(t, client.ConnectionOptions(), len(base.ConnectionOptions())+2, "client cert and root CA")

	cfg.NATS.TLSKey = ""
	_, err = natsclient.NewClient(cfg.NATS.URL, cfg.NATSOptions()...)
	require.Error(t, err, "a cert without its key is refused")
}

func TestString_MasksCredentials(t *testing.T) {
	cfg := Default()
	cfg.NATS.Password = "s3cret"
	cfg.NATS.Token = "tok3n"

	out := cfg.String()
	assert.NotContains(t, out, "s3cret")
	assert.NotContains(t, out, "tok3n")
	assert.Contains(t, out, "***")
	assert.Equal(t, "s3cret", cfg.NATS.Password, "String does not modify the config")
}

func TestLoader_ExampleConfig(t *testing.T) {
	path, err := filepath.Abs(filepath.Join("..", "configs", "adcp.yaml"))
	require.NoError(t, err)

	cfg, err := testLoader(nil).LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, "tcp://127.0.0.1:4001", cfg.Instrument.Address)
	assert.Equal(t, receiver.ModeGoroutine, cfg.ExecutorMode())
	assert.Equal(t, 30, cfg.Transcript.MaxAgeDays)
	assert.True(t, cfg.Metrics.Enabled)
}
