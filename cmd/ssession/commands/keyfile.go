package commands

import (
	"encoding/hex"
	"fmt"
	"os"
	"strings"

	"github.com/backkem/ssession/pkg/crypto"
)

func formatKey(signer crypto.Signer) (string, error) {
	private, err := signer.MarshalPrivate()
	if err != nil {
		return "", err
	}
	defer crypto.Zeroize(private)
	return fmt.Sprintf("%s %s\n", signer.Algorithm(), hex.EncodeToString(private)), nil
}

func parseKey(text string) (crypto.Signer, error) {
	fields := strings.Fields(text)
	if len(fields) != 2 {
		return nil, fmt.Errorf("key file: want \"algorithm key\", got %d fields", len(fields))
	}
	alg, err := crypto.ParseSignatureAlgorithm(fields[0])
	if err != nil {
		return nil, fmt.Errorf("key file: %w", err)
	}
	private, err := hex.DecodeString(fields[1])
	if err != nil {
		return nil, fmt.Errorf("key file: %w", err)
	}
	defer crypto.Zeroize(private)
	return crypto.ParseSigner(alg, private)
}

func readKeyFile(path string) (crypto.Signer, error) {
	if path == "" {
		return nil, fmt.Errorf("key file required (--key)")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	defer crypto.Zeroize(data)
	return parseKey(string(data))
}
