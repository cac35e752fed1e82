package crypto

import (
	"crypto/ecdsa"
	"encoding/hex"
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

var ErrInvalidKeyFile = errors.New("invalid key file")

// Key is a secp256k1 account key used to sign relayed pool calls.
type Key struct {
	privateKey *ecdsa.PrivateKey
}

func GenerateKey() (*Key, error) {
	priv, err := crypto.GenerateKey()
	if err != nil {
		return nil, err
	}
	return &Key{privateKey: priv}, nil
}

func NewKey(priv *ecdsa.PrivateKey) *Key {
	return &Key{privateKey: priv}
}

// HexToKey parses a hex encoded private key, with or without 0x prefix.
func HexToKey(s string) (*Key, error) {
	priv, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(s), "0x"))
	if err != nil {
		return nil, err
	}
	return &Key{privateKey: priv}, nil
}

// LoadKey reads a key file holding the hex encoded private key.
func LoadKey(path string) (*Key, error) {
	dat, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	k, err := HexToKey(string(dat))
	if err != nil {
		return nil, ErrInvalidKeyFile
	}
	return k, nil
}

func (k *Key) Save(path string) error {
	err := os.MkdirAll(filepath.Dir(path), 0o700)
	if err != nil {
		return err
	}
	return os.WriteFile(path, []byte(hex.EncodeToString(crypto.FromECDSA(k.privateKey))), 0o600)
}

func (k *Key) PrivateKey() *ecdsa.PrivateKey {
	return k.privateKey
}

func (k *Key) PublicKey() []byte {
	return crypto.FromECDSAPub(&k.privateKey.PublicKey)
}

func (k *Key) Address() common.Address {
	return crypto.PubkeyToAddress(k.privateKey.PublicKey)
}
