// Package transcript mirrors the raw instrument traffic to a human-readable
// side channel.
//
// Every mirrored write can be annotated with the instrument state at the time
// of the read: each newline in the data is followed by the state name,
// right-justified in a 20-column field and a "| " separator. A session that
// was sitting at the prompt and then started sampling looks like this:
//
//	CS
//	              PROMPT| ....binary....
//	     COLLECTING_DATA| ...
//
// When the receiver ends, a terminal marker is appended exactly once so the
// last known state at the time of failure remains visible.
//
// # Rotation
//
// OpenRotating writes through a size-rotated file (lumberjack), which keeps
// long deployments from filling the disk:
//
//	w, err := transcript.OpenRotating(transcript.RotateConfig{
//	    Filename:   "/var/log/adcp/transcript.log",
//	    MaxSizeMB:  50,
//	    MaxBackups: 10,
//	}, true)
package transcript
