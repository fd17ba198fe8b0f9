// Package adcpstream receives the byte stream of an acoustic Doppler current
// profiler (ADCP) and turns it into a conversation and a data feed.
//
// # Architecture
//
// The instrument link carries three kinds of traffic interleaved on one
// stream: human-readable command/response text, binary PD0 ensembles, and
// timestamp markers injected by a digitizer relay. A receiver reads the
// stream in chunks and pushes every chunk through a filter pipeline:
//
//	source (tcp / websocket)
//	  -> receiver read loop (0.4s read timeout, End at any time)
//	    -> timestamp extractor  -> tracker (latest timestamp)
//	    -> PD0 decoder          -> tracker (CollectingData), listener
//	    -> text                 -> tracker (line history, Prompt / Unknown)
//	    -> transcript (optional, state-prefixed, rotated by size)
//
// Decoded ensembles are handed to the publish package, which forwards them
// to NATS or JetStream on a worker queue so the read loop never waits on
// the network.
//
// # Packages
//
//   - pd0: PD0 ensemble framing, checksum and header decoding
//   - tsmark: digitizer timestamp markers
//   - filter: the chunk pipeline that separates the three kinds of traffic
//   - tracker: conversational state and the 1024-line history
//   - transcript: raw traffic mirror with state prefixes
//   - receiver: the read loop, lifecycle, executors and Builder
//   - source: TCP and websocket byte sources
//   - publish, natsclient: ensemble forwarding
//   - config, metric, health, errors: process infrastructure
//   - pkg/buffer, pkg/retry, pkg/timestamp, pkg/worker: shared utilities
//
// The cmd/adcp-receiver binary wires all of these from a YAML file.
package adcpstream
