package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"storefront/native/storefront"
)

func TestAllowListRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "accounts.txt")
	list := "# buyers\n0x0000000000000000000000000000000000000001\n0x0000000000000000000000000000000000000002\n0x0000000000000000000000000000000000000003\n"
	if err := os.WriteFile(path, []byte(list), 0o600); err != nil {
		t.Fatalf("write list: %v", err)
	}
	var out bytes.Buffer
	if err := runAllowList([]string{"-file", path}, &out); err != nil {
		t.Fatalf("allowlist: %v", err)
	}
	var result allowListOutput
	if err := json.Unmarshal(out.Bytes(), &result); err != nil {
		t.Fatalf("decode output: %v", err)
	}
	if len(result.Entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(result.Entries))
	}
	entry := result.Entries[2]
	args := []string{"-root", result.Root, "-account", entry.Account, "-proof", strings.Join(entry.Proof, ",")}
	out.Reset()
	if err := runVerify(args, &out); err != nil {
		t.Fatalf("verify: %v", err)
	}
	if strings.TrimSpace(out.String()) != "proof ok" {
		t.Fatalf("unexpected output %q", out.String())
	}

	args = []string{"-root", result.Root, "-account", "0x0000000000000000000000000000000000000009", "-proof", strings.Join(entry.Proof, ",")}
	if err := runVerify(args, &out); !errors.Is(err, storefront.ErrUserNotWhitelisted) {
		t.Fatalf("expected whitelist failure, got %v", err)
	}
}

func TestReadAllowListRejectsMixedEntries(t *testing.T) {
	in := strings.NewReader("0x0000000000000000000000000000000000000001,2\n0x0000000000000000000000000000000000000002\n")
	if _, _, err := readAllowList(in); err == nil {
		t.Fatalf("expected mixed entries to fail")
	}
	in = strings.NewReader("0x0000000000000000000000000000000000000001,0\n")
	if _, _, err := readAllowList(in); err == nil {
		t.Fatalf("expected zero quantity to fail")
	}
}

func TestTokenID(t *testing.T) {
	var out bytes.Buffer
	if err := runTokenID([]string{"-tier", "3", "-serial", "7"}, &out); err != nil {
		t.Fatalf("encode: %v", err)
	}
	if strings.TrimSpace(out.String()) != "703" {
		t.Fatalf("unexpected id %q", out.String())
	}
	out.Reset()
	if err := runTokenID([]string{"-decode", "703"}, &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if strings.TrimSpace(out.String()) != "tier=3 serial=7" {
		t.Fatalf("unexpected decode %q", out.String())
	}
	if err := runTokenID([]string{"-tier", "100", "-serial", "1"}, &out); !errors.Is(err, storefront.ErrTierUnavailable) {
		t.Fatalf("expected tier error, got %v", err)
	}
}

func TestIssueToken(t *testing.T) {
	t.Setenv("STOREFRONT_TEST_SECRET", "0123456789abcdef0123456789abcdef")
	var out bytes.Buffer
	err := runIssue([]string{"-account", "0x00000000000000000000000000000000000000ad", "-secret-env", "STOREFRONT_TEST_SECRET"}, &out)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if parts := strings.Split(strings.TrimSpace(out.String()), "."); len(parts) != 3 {
		t.Fatalf("expected compact jwt, got %q", out.String())
	}
	if err := runIssue([]string{"-account", "0x00000000000000000000000000000000000000ad", "-secret-env", "STOREFRONT_UNSET_SECRET"}, &out); err == nil {
		t.Fatalf("expected missing secret to fail")
	}
}
