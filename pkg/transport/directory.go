package transport

import (
	"bufio"
	"encoding/hex"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/backkem/ssession/pkg/crypto"
)

// Directory maps peer identities to their long-term public keys. It is the
// caller-owned key registry a session consults through ResolvePublicKey.
// It is safe for concurrent use.
type Directory struct {
	mu   sync.RWMutex
	keys map[string][]byte
}

// NewDirectory creates an empty directory.
func NewDirectory() *Directory {
	return &Directory{keys: make(map[string][]byte)}
}

// Register adds or replaces the key for identity. The key is validated first.
func (d *Directory) Register(identity []byte, key crypto.PublicKey) error {
	if len(identity) == 0 {
		return ErrInvalidIdentity
	}
	if err := key.Validate(); err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.keys[string(identity)] = key.Marshal()
	return nil
}

// Remove deletes identity from the directory.
func (d *Directory) Remove(identity []byte) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.keys, string(identity))
}

// Lookup returns the marshaled public key registered for identity.
func (d *Directory) Lookup(identity []byte) ([]byte, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	key, ok := d.keys[string(identity)]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownIdentity, identity)
	}
	return append([]byte(nil), key...), nil
}

// Len returns the number of registered identities.
func (d *Directory) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.keys)
}

// Identities returns the registered identities in sorted order.
func (d *Directory) Identities() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()

	ids := make([]string, 0, len(d.keys))
	for id := range d.keys {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Load reads "identity hex-public-key" lines into the directory. Blank lines
// and lines starting with '#' are skipped. The key is the hex form of
// crypto.PublicKey.Marshal.
func (d *Directory) Load(r io.Reader) error {
	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}

		fields := strings.Fields(text)
		if len(fields) != 2 {
			return fmt.Errorf("line %d: want \"identity key\", got %d fields", line, len(fields))
		}
		raw, err := hex.DecodeString(fields[1])
		if err != nil {
			return fmt.Errorf("line %d: %w", line, err)
		}
		key, err := crypto.ParsePublicKey(raw)
		if err != nil {
			return fmt.Errorf("line %d: %w", line, err)
		}
		if err := d.Register([]byte(fields[0]), key); err != nil {
			return fmt.Errorf("line %d: %w", line, err)
		}
	}
	return scanner.Err()
}
