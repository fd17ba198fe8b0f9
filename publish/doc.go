// Package publish forwards decoded ensembles to NATS.
//
// A Publisher is installed as the receiver's listener. Each ensemble becomes
// a JSON Message carrying its structural summary, optionally the raw frame,
// and the identity of the receiver session it arrived on:
//
//	pub, err := publish.New(natsClient, publish.DefaultConfig())
//	if err != nil {
//	    return err
//	}
//	cfg.Listener = pub.Listener()
//	r, err := builder.Build(conn, cfg)
//	if err != nil {
//	    return err
//	}
//	pub.Bind(r)
//	pub.Start(ctx)
//	defer pub.Stop(5 * time.Second)
//
// Sending happens on a single worker goroutine, so ensembles leave in the
// order they were decoded and the receive loop never waits on the network.
// Senders that implement HeaderSender get Nats-Msg-Id, Adcp-Receiver and
// Adcp-Session headers; with JetStream enabled the message ID lets the
// server drop duplicates.
package publish
