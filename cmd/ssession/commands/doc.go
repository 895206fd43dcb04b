// Package commands defines the ssession CLI.
//
// Commands
//
//   - keygen   Generate a long-term identity key
//   - pubkey   Print the peers-file line for a key
//   - listen   Accept one peer, answer its handshake, and echo its messages
//   - connect  Handshake with a listening peer and send messages
//   - demo     Run two sessions over an in-memory pipe
//   - version  Print the library and protocol version
//
// A key file holds one line, "<algorithm> <hex private key>". A peers file
// holds "<identity> <hex public key>" lines as printed by pubkey.
package commands
