// Package pd0 locates and structurally decodes binary PD0 ensembles embedded
// in an instrument byte stream.
//
// A PD0 ensemble is self-delimiting:
//
//	offset  size  field
//	0       2     header ID 0x7F 0x7F
//	2       2     N, bytes in the ensemble excluding the checksum (LE)
//	4       1     spare
//	5       1     D, number of data types
//	6       2*D   data-type offsets from the start of the ensemble (LE)
//	...           data-type records, each starting with a 2-byte ID
//	N       2     checksum, sum of bytes [0,N) modulo 65536 (LE)
//
// Scan makes one decision on a buffer. Decoder wraps Scan with the buffering
// needed for a live socket: it holds an incomplete frame across reads,
// discards the signature of a malformed frame and rescans, and releases any
// other bytes as text in stream order.
//
// Record contents are not interpreted; an Ensemble carries the raw frame and
// the location of each record for consumers that do.
package pd0
