// Package testutil provides test helpers for adcpstream packages.
//
// # Overview
//
// The helpers cover the three things most receiver tests need:
//
// Fixtures:
//
// BuildEnsemble produces a structurally valid PD0 frame from data-type
// records, and Lines and Marker produce instrument text and timestamp
// markers.
//
// ScriptedConn:
//
// ScriptedConn plays back a scripted sequence of reads, timeouts and socket
// errors and honours read deadlines, so a receiver can be driven without a
// network:
//
//	conn := testutil.NewScriptedConn(
//	    testutil.Data([]byte("CS\r\n>")),
//	    testutil.Timeout(),
//	    testutil.Data(testutil.BuildEnsemble(t)),
//	)
//	conn.EOFAtEnd = true
//
// When the script is exhausted the connection blocks until the read deadline
// and reports a timeout, or returns io.EOF when EOFAtEnd is set. Push appends
// further steps and wakes a blocked reader.
//
// MockNATSClient:
//
// An in-memory publisher with the same Publish signature as
// natsclient.Client, for testing ensemble forwarding without a server.
//
// # Integration Tests
//
// Tests that need a real NATS server use natsclient.NewTestClient, which
// starts one with testcontainers, and carry the integration build tag:
//
//	//go:build integration
package testutil
