// Package rtpmidi is the root of an AppleMIDI (RTP-MIDI) session responder.
//
// AppleMIDI carries MIDI over UDP between a session initiator, typically
// macOS Audio MIDI Setup, and a responder. Each session uses two sockets: a
// control port for invitations and teardown, and the next port up for clock
// synchronization and RTP-MIDI data.
//
// # Packages
//
//   - peer: the per-session protocol engine. Pure state machine with no I/O;
//     feed it datagrams and act on the Response.
//   - transport: UDP server that binds both ports, routes datagrams to peers
//     by SSRC and sends replies.
//   - limits: wire size constants and validation.
//   - config: YAML/TOML configuration for the daemon.
//   - metrics: Prometheus instrumentation.
//   - cmd/rtpmidid: the daemon.
//
// # Getting Started
//
//	srv, err := transport.NewServer(&transport.Options{
//	    Name:        "Studio",
//	    BindAddress: "0.0.0.0",
//	    ControlPort: 5004,
//	    MaxPeers:    8,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer srv.Close(context.Background())
//
//	srv.OnMidi(func(msg transport.MidiMessage) {
//	    fmt.Printf("%s: % X\n", msg.RemoteName, msg.Payload)
//	})
//
// # Limitations
//
// Only the responder role is implemented. Outbound packets carry no recovery
// journal, and received journals are ignored, so lost packets are counted
// but not recovered.
package rtpmidi
