// Package source dials the byte streams a receiver reads from: a raw TCP
// port, typically a serial-to-Ethernet bridge in front of the instrument, or
// a websocket relay that forwards the instrument output as messages.
//
//	conn, err := source.Dial(ctx, source.Config{
//	    Address: "tcp://10.0.0.12:4001",
//	    Retry:   retry.DefaultConfig(),
//	})
//	if err != nil {
//	    return err
//	}
//	defer conn.Close()
//
// Every Conn honours read deadlines the way net.Conn does, which is what the
// receiver's read loop relies on.
package source
