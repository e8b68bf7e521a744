// Package transport runs AppleMIDI sessions over UDP.
//
// A Server listens on a control port P and a MIDI data port P+1. Datagrams
// are routed to a peer.Peer by the sender's SSRC and every Response is acted
// on: replies go back to the remote on the matching socket, decoded MIDI
// command sections go to the registered MidiHandler, and disconnects remove
// the session.
//
// Example:
//
//	srv, err := transport.NewServer(&transport.Options{
//		Name:        "studio",
//		BindAddress: "0.0.0.0",
//		ControlPort: 5004,
//		MaxPeers:    8,
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//	srv.OnMidi(func(msg transport.MidiMessage) {
//		fmt.Printf("%s: % X\n", msg.RemoteName, msg.Payload)
//	})
//	defer srv.Close(context.Background())
package transport
