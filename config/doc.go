// Package config loads the adcp-receiver configuration.
//
// A Config starts from Default, then each YAML layer added to a Loader is
// decoded over it in order. Keys missing from a layer keep their previous
// value and unknown keys are rejected. Environment variables named
// ADCP_<SECTION>_<KEY> are applied last, for example:
//
//	ADCP_INSTRUMENT_ADDRESS=tcp://10.0.0.12:4001
//	ADCP_NATS_URL=nats://localhost:4222
//	ADCP_RECEIVER_EXECUTOR=cooperative
//
// Example file:
//
//	instrument:
//	  address: tcp://10.0.0.12:4001
//	receiver:
//	  name: adcp-north
//	  ooi_digi: false
//	transcript:
//	  path: /var/log/adcp/north.log
//	nats:
//	  url: nats://localhost:4222
//	  subject: adcp.north.ensembles
//	metrics:
//	  enabled: true
//
// The accessors (SourceConfig, ReceiverConfig, RotateConfig, PublishConfig,
// NATSOptions) translate sections into the settings each package takes.
package config
