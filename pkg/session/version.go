package session

import (
	"fmt"

	"github.com/backkem/ssession/pkg/message"
)

// LibraryVersion is the release of this module.
const LibraryVersion = "0.3.0"

// Version identifies the library and the wire protocol version it speaks.
func Version() string {
	return fmt.Sprintf("ssession %s (protocol v%d)", LibraryVersion, message.ProtocolVersion)
}
