package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func expectedSignature(secret, message string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(message))
	return hex.EncodeToString(mac.Sum(nil))
}

func TestCredentials_SignWebSocket(t *testing.T) {
	creds := &Credentials{APIKey: "key", APISecret: "secret"}
	now := time.UnixMilli(1_700_000_000_000)

	expires, sig := creds.SignWebSocket(now)

	if expires != 1_700_000_010_000 {
		t.Errorf("expires = %d, want %d", expires, int64(1_700_000_010_000))
	}
	want := expectedSignature("secret", "GET/realtime1700000010000")
	if sig != want {
		t.Errorf("signature = %q, want %q", sig, want)
	}
	if len(sig) != 64 {
		t.Errorf("signature length = %d, want 64", len(sig))
	}
}

func TestCredentials_AuthArgs(t *testing.T) {
	creds := &Credentials{APIKey: "key", APISecret: "secret"}
	args := creds.AuthArgs(time.UnixMilli(0))

	if len(args) != 3 {
		t.Fatalf("len(args) = %d, want 3", len(args))
	}
	if args[0] != "key" {
		t.Errorf("args[0] = %v, want key", args[0])
	}
	if args[1] != int64(10_000) {
		t.Errorf("args[1] = %v, want 10000", args[1])
	}
}

func TestCredentials_SignREST(t *testing.T) {
	creds := &Credentials{APIKey: "key", APISecret: "secret"}
	ts := time.UnixMilli(1_700_000_000_000)

	headers := creds.SignREST(ts, 5*time.Second, "category=linear")

	if headers[HeaderAPIKey] != "key" {
		t.Errorf("%s = %q, want key", HeaderAPIKey, headers[HeaderAPIKey])
	}
	if headers[HeaderTimestamp] != "1700000000000" {
		t.Errorf("%s = %q", HeaderTimestamp, headers[HeaderTimestamp])
	}
	if headers[HeaderRecvWindow] != "5000" {
		t.Errorf("%s = %q, want 5000", HeaderRecvWindow, headers[HeaderRecvWindow])
	}
	want := expectedSignature("secret", "1700000000000key5000category=linear")
	if headers[HeaderSign] != want {
		t.Errorf("%s = %q, want %q", HeaderSign, headers[HeaderSign], want)
	}
}

func TestLoadCredentials(t *testing.T) {
	dir := t.TempDir()
	secretPath := filepath.Join(dir, "secret")
	if err := os.WriteFile(secretPath, []byte("from-file\n"), 0600); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name       string
		key        string
		secret     string
		secretFile string
		wantSecret string
		wantErr    error
	}{
		{"inline", "k", "s", "", "s", nil},
		{"file", "k", "", secretPath, "from-file", nil},
		{"inline wins", "k", "s", secretPath, "s", nil},
		{"missing key", "", "s", "", "", ErrMissingCredentials},
		{"missing secret", "k", "", "", "", ErrMissingCredentials},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			creds, err := LoadCredentials(tt.key, tt.secret, tt.secretFile)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("LoadCredentials failed: %v", err)
			}
			if creds.APISecret != tt.wantSecret {
				t.Errorf("APISecret = %q, want %q", creds.APISecret, tt.wantSecret)
			}
		})
	}

	if _, err := LoadCredentials("k", "", filepath.Join(dir, "missing")); err == nil {
		t.Error("expected error for missing secret file")
	}
}
