package crypto

import (
	"path/filepath"
	"testing"
)

func TestKeystoreRoundTrip(t *testing.T) {
	key, err := GeneratePrivateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	path := filepath.Join(t.TempDir(), "operator.keystore")

	if err := SaveToKeystore(path, key, "passphrase"); err != nil {
		t.Fatalf("save keystore: %v", err)
	}
	restored, err := LoadFromKeystore(path, "passphrase")
	if err != nil {
		t.Fatalf("load keystore: %v", err)
	}
	if restored.PubKey().Address().String() != key.PubKey().Address().String() {
		t.Fatalf("restored key derives a different address")
	}

	if _, err := LoadFromKeystore(path, "wrong"); err == nil {
		t.Fatalf("expected decryption failure with wrong passphrase")
	}
}
