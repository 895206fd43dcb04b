// ssession is a command-line front end for the secure session library.
//
// Usage:
//
//	ssession keygen --alg ed25519 --out alice.key
//	ssession pubkey --key alice.key --identity alice >> peers.txt
//	ssession listen --network tcp --addr :4440 --key bob.key --identity bob --peers peers.txt
//	ssession connect --network tcp --addr 127.0.0.1:4440 --key alice.key --identity alice --peers peers.txt hello
//	ssession demo
package main

import (
	"os"

	"github.com/backkem/ssession/cmd/ssession/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
