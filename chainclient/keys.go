// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package chainclient

import (
	"crypto/ecdsa"
	"fmt"
	"os"
	"strings"

	"github.com/luxfi/geth/accounts/keystore"
	"github.com/luxfi/geth/crypto"
)

// KeySource describes where validator_private_key comes from: either a raw
// hex string, or a keystore file decrypted with a password read from a
// separate file. Exactly one of RawHex or KeystorePath must be set.
type KeySource struct {
	RawHex               string
	KeystorePath         string
	KeystorePasswordPath string
}

// LoadPrivateKey resolves a KeySource into the raw ECDSA key the
// confirmation sender signs with, matching the two forms
// validator_private_key accepts in the TOML config.
func LoadPrivateKey(src KeySource) (*ecdsa.PrivateKey, error) {
	if src.RawHex != "" {
		raw := strings.TrimPrefix(src.RawHex, "0x")
		key, err := crypto.HexToECDSA(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid validator_private_key: %w", err)
		}
		return key, nil
	}

	if src.KeystorePath == "" {
		return nil, fmt.Errorf("validator_private_key: neither raw hex nor keystore_path configured")
	}

	keyJSON, err := os.ReadFile(src.KeystorePath)
	if err != nil {
		return nil, fmt.Errorf("reading keystore_path %q: %w", src.KeystorePath, err)
	}

	passwordBytes, err := os.ReadFile(src.KeystorePasswordPath)
	if err != nil {
		return nil, fmt.Errorf("reading keystore_password_path %q: %w", src.KeystorePasswordPath, err)
	}
	password := strings.TrimSpace(string(passwordBytes))

	key, err := keystore.DecryptKey(keyJSON, password)
	if err != nil {
		return nil, fmt.Errorf("decrypting keystore_path %q: %w", src.KeystorePath, err)
	}
	return key.PrivateKey, nil
}
