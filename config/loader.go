package config

import (
	"bytes"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/c360/adcpstream/errors"
	"github.com/c360/adcpstream/natsclient"
)

// DefaultEnvPrefix prefixes every environment override, e.g. ADCP_NATS_URL.
const DefaultEnvPrefix = "ADCP"

// Loader builds a Config from defaults, YAML layers in order, then
// environment overrides, then validation.
type Loader struct {
	layers     []string
	envPrefix  string
	validation bool
	lookupEnv  func(string) (string, bool)
}

// NewLoader creates a loader with validation enabled.
func NewLoader() *Loader {
	return &Loader{
		envPrefix:  DefaultEnvPrefix,
		validation: true,
		lookupEnv:  os.LookupEnv,
	}
}

// AddLayer appends a YAML file. Later layers override earlier ones key by key.
func (l *Loader) AddLayer(path string) {
	l.layers = append(l.layers, path)
}

// EnableValidation enables or disables configuration validation
func (l *Loader) EnableValidation(enable bool) {
	l.validation = enable
}

// SetEnvPrefix changes the environment override prefix.
func (l *Loader) SetEnvPrefix(prefix string) {
	l.envPrefix = prefix
}

// LoadFile loads configuration from a single file
func (l *Loader) LoadFile(path string) (*Config, error) {
	l.layers = []string{path}
	return l.Load()
}

// Load loads and merges all configuration layers
func (l *Loader) Load() (*Config, error) {
	cfg := Default()

	for _, path := range l.layers {
		data, err := safeReadFile(path)
		if err != nil {
			return nil, errors.WrapInvalid(err, "Loader", "Load", "read "+path)
		}
		if err := decodeLayer(data, cfg); err != nil {
			return nil, errors.WrapInvalid(err, "Loader", "Load", "parse "+path)
		}
	}

	if err := l.applyEnvOverrides(cfg); err != nil {
		return nil, errors.WrapInvalid(err, "Loader", "Load", "apply environment overrides")
	}

	if l.validation {
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// Parse decodes a single YAML document over the defaults without
// environment overrides or validation.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := decodeLayer(data, cfg); err != nil {
		return nil, errors.WrapInvalid(err, "config", "Parse", "parse YAML")
	}
	return cfg, nil
}

// decodeLayer decodes data onto cfg. Keys absent from data keep their
// current values; unknown keys are errors.
func decodeLayer(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !stderrors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// applyEnvOverrides applies PREFIX_SECTION_KEY variables.
func (l *Loader) applyEnvOverrides(cfg *Config) error {
	strs := map[string]*string{
		"INSTRUMENT_ADDRESS": &cfg.Instrument.Address,
		"RECEIVER_NAME":      &cfg.Receiver.Name,
		"RECEIVER_PROMPT":    &cfg.Receiver.Prompt,
		"RECEIVER_EXECUTOR":  &cfg.Receiver.Executor,
		"TRANSCRIPT_PATH":    &cfg.Transcript.Path,
		"NATS_URL":           &cfg.NATS.URL,
		"NATS_USERNAME":      &cfg.NATS.Username,
		"NATS_PASSWORD":      &cfg.NATS.Password,
		"NATS_TOKEN":         &cfg.NATS.Token,
		"NATS_TLS_CERT":      &cfg.NATS.TLSCert,
		"NATS_TLS_KEY":       &cfg.NATS.TLSKey,
		"NATS_TLS_CA":        &cfg.NATS.TLSCA,
		"NATS_SUBJECT":       &cfg.NATS.Subject,
		"NATS_STREAM":        &cfg.NATS.Stream,
		"METRICS_ADDRESS":    &cfg.Metrics.Address,
	}
	bools := map[string]*bool{
		"RECEIVER_OOI_DIGI":       &cfg.Receiver.OOIDigi,
		"TRANSCRIPT_PREFIX_STATE": &cfg.Transcript.PrefixState,
		"NATS_JETSTREAM":          &cfg.NATS.JetStream,
		"METRICS_ENABLED":         &cfg.Metrics.Enabled,
	}
	durations := map[string]*time.Duration{
		"RECEIVER_READ_TIMEOUT":   &cfg.Receiver.ReadTimeout,
		"INSTRUMENT_DIAL_TIMEOUT": &cfg.Instrument.DialTimeout,
	}
	ints := map[string]*int{
		"RECEIVER_CHUNK_SIZE": &cfg.Receiver.ChunkSize,
	}

	for suffix, dst := range strs {
		if val, ok := l.env(suffix); ok {
			if err := validateEnvVar(l.envPrefix+"_"+suffix, val); err != nil {
				return err
			}
			*dst = val
		}
	}
	for suffix, dst := range bools {
		if val, ok := l.env(suffix); ok {
			b, err := strconv.ParseBool(val)
			if err != nil {
				return fmt.Errorf("%s_%s: %w", l.envPrefix, suffix, err)
			}
			*dst = b
		}
	}
	for suffix, dst := range durations {
		if val, ok := l.env(suffix); ok {
			d, err := time.ParseDuration(val)
			if err != nil {
				return fmt.Errorf("%s_%s: %w", l.envPrefix, suffix, err)
			}
			*dst = d
		}
	}
	for suffix, dst := range ints {
		if val, ok := l.env(suffix); ok {
			n, err := strconv.Atoi(val)
			if err != nil {
				return fmt.Errorf("%s_%s: %w", l.envPrefix, suffix, err)
			}
			*dst = n
		}
	}
	return nil
}

// env returns a non-empty override value.
func (l *Loader) env(suffix string) (string, bool) {
	val, ok := l.lookupEnv(l.envPrefix + "_" + suffix)
	if !ok || val == "" {
		return "", false
	}
	return val, true
}

// NATSOptions returns client options for the nats section.
func (c *Config) NATSOptions() []natsclient.ClientOption {
	opts := []natsclient.ClientOption{
		natsclient.WithName(c.NATS.Name),
		natsclient.WithMaxReconnects(c.NATS.MaxReconnects),
	}
	if c.NATS.ReconnectWait > 0 {
		opts = append(opts, natsclient.WithReconnectWait(c.NATS.ReconnectWait))
	}
	if c.NATS.Timeout > 0 {
		opts = append(opts, natsclient.WithTimeout(c.NATS.Timeout))
	}
	if c.NATS.Username != "" {
		opts = append(opts, natsclient.WithCredentials(c.NATS.Username, c.NATS.Password))
	}
	if c.NATS.Token != "" {
		opts = append(opts, natsclient.WithToken(c.NATS.Token))
	}
	if c.NATS.TLSCert != "" || c.NATS.TLSCA != "" {
		opts = append(opts, natsclient.WithTLS(c.NATS.TLSCert, c.NATS.TLSKey, c.NATS.TLSCA))
	}
	return opts
}
