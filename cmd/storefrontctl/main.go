package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"storefront/config"
	"storefront/crypto"
	"storefront/crypto/merkle"
	"storefront/native/storefront"
	"storefront/services/storefrontd"
)

const (
	validateCommand = "validate-genesis"
	treeCommand     = "allowlist"
	verifyCommand   = "verify-proof"
	tokenIDCommand  = "token-id"
	issueCommand    = "issue-token"
	defaultGenesis  = "services/storefrontd/genesis.toml"
	defaultSecret   = "STOREFRONT_HMAC_SECRET"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}
	var err error
	switch os.Args[1] {
	case validateCommand:
		err = runValidate(os.Args[2:], os.Stdout)
	case treeCommand:
		err = runAllowList(os.Args[2:], os.Stdout)
	case verifyCommand:
		err = runVerify(os.Args[2:], os.Stdout)
	case tokenIDCommand:
		err = runTokenID(os.Args[2:], os.Stdout)
	case issueCommand:
		err = runIssue(os.Args[2:], os.Stdout)
	default:
		usage()
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, `Usage: storefrontctl <command> [flags]

Commands:
  %-17s check a genesis file against the engine rules
  %-17s build a Merkle root and proofs from an account list
  %-17s check a proof against a root
  %-17s encode or decode a token identifier
  %-17s mint a development bearer token
`, validateCommand, treeCommand, verifyCommand, tokenIDCommand, issueCommand)
}

func runValidate(args []string, out io.Writer) error {
	fs := flag.NewFlagSet(validateCommand, flag.ContinueOnError)
	path := fs.String("genesis", defaultGenesis, "Path to the genesis TOML file")
	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg, err := config.Load(*path)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "genesis ok: %d tiers, %d promo codes, %d admins\n", len(cfg.Tiers), len(cfg.Promos), len(cfg.Roles.Admins))
	return nil
}

type allowListEntry struct {
	Account  string   `json:"account"`
	Quantity uint64   `json:"quantity,omitempty"`
	Proof    []string `json:"proof"`
}

type allowListOutput struct {
	Root    string           `json:"root"`
	Entries []allowListEntry `json:"entries"`
}

// runAllowList reads one account per line, optionally followed by a comma and
// a quantity. Quantities switch the leaves to the allowance encoding.
func runAllowList(args []string, out io.Writer) error {
	fs := flag.NewFlagSet(treeCommand, flag.ContinueOnError)
	path := fs.String("file", "", "Account list, one per line (\"-\" for stdin)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	var in io.Reader = os.Stdin
	if *path != "" && *path != "-" {
		f, err := os.Open(*path)
		if err != nil {
			return err
		}
		defer f.Close()
		in = f
	}
	entries, leaves, err := readAllowList(in)
	if err != nil {
		return err
	}
	tree, err := merkle.NewTree(leaves)
	if err != nil {
		return err
	}
	result := allowListOutput{Root: tree.Root().Hex(), Entries: entries}
	for i := range result.Entries {
		proof, err := tree.Proof(leaves[i])
		if err != nil {
			return err
		}
		result.Entries[i].Proof = merkle.EncodeProof(proof)
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

func readAllowList(in io.Reader) ([]allowListEntry, []merkle.Hash, error) {
	var (
		entries []allowListEntry
		leaves  []merkle.Hash
		quotas  *bool
	)
	scanner := bufio.NewScanner(in)
	for line := 1; scanner.Scan(); line++ {
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		accountRaw, qtyRaw, hasQty := strings.Cut(text, ",")
		if quotas == nil {
			quotas = &hasQty
		} else if *quotas != hasQty {
			return nil, nil, fmt.Errorf("line %d: mix of plain and quota entries", line)
		}
		account, err := crypto.ParseAccount(accountRaw)
		if err != nil {
			return nil, nil, fmt.Errorf("line %d: %w", line, err)
		}
		entry := allowListEntry{Account: crypto.FormatAccount(account)}
		if hasQty {
			qty, err := strconv.ParseUint(strings.TrimSpace(qtyRaw), 10, 64)
			if err != nil || qty == 0 {
				return nil, nil, fmt.Errorf("line %d: invalid quantity %q", line, qtyRaw)
			}
			entry.Quantity = qty
			leaves = append(leaves, merkle.AllowanceLeaf(account, qty))
		} else {
			leaves = append(leaves, merkle.AccountLeaf(account))
		}
		entries = append(entries, entry)
	}
	if err := scanner.Err(); err != nil {
		return nil, nil, err
	}
	if len(entries) == 0 {
		return nil, nil, merkle.ErrEmptyTree
	}
	return entries, leaves, nil
}

func runVerify(args []string, out io.Writer) error {
	fs := flag.NewFlagSet(verifyCommand, flag.ContinueOnError)
	rootHex := fs.String("root", "", "Committed Merkle root (0x hex)")
	account := fs.String("account", "", "Account to check")
	quantity := fs.Uint64("quantity", 0, "Allowance quantity for quota commitments")
	proofCSV := fs.String("proof", "", "Comma-separated proof nodes")
	if err := fs.Parse(args); err != nil {
		return err
	}
	roots, err := merkle.ParseProof([]string{*rootHex})
	if err != nil {
		return fmt.Errorf("root: %w", err)
	}
	acct, err := crypto.ParseAccount(*account)
	if err != nil {
		return err
	}
	var nodes []string
	if strings.TrimSpace(*proofCSV) != "" {
		nodes = strings.Split(*proofCSV, ",")
		for i := range nodes {
			nodes[i] = strings.TrimSpace(nodes[i])
		}
	}
	proof, err := merkle.ParseProof(nodes)
	if err != nil {
		return err
	}
	leaf := merkle.AccountLeaf(acct)
	if *quantity > 0 {
		leaf = merkle.AllowanceLeaf(acct, *quantity)
	}
	if !merkle.Verify(roots[0], leaf, proof) {
		return storefront.ErrUserNotWhitelisted
	}
	fmt.Fprintln(out, "proof ok")
	return nil
}

func runTokenID(args []string, out io.Writer) error {
	fs := flag.NewFlagSet(tokenIDCommand, flag.ContinueOnError)
	tier := fs.Uint64("tier", 0, "Tier to encode")
	serial := fs.Uint64("serial", 0, "1-based serial within the tier")
	decode := fs.Uint64("decode", 0, "Token identifier to decode")
	stride := fs.Uint64("max-tiers", storefront.DefaultMaxTiers, "Token identifier stride")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *stride == 0 {
		return fmt.Errorf("max-tiers must be positive")
	}
	if *decode > 0 {
		fmt.Fprintf(out, "tier=%d serial=%d\n", (*decode)%(*stride), (*decode)/(*stride))
		return nil
	}
	if *tier == 0 || *tier >= *stride || *serial == 0 {
		return storefront.ErrTierUnavailable
	}
	fmt.Fprintln(out, (*serial)*(*stride)+(*tier))
	return nil
}

func runIssue(args []string, out io.Writer) error {
	fs := flag.NewFlagSet(issueCommand, flag.ContinueOnError)
	subject := fs.String("account", "", "Account placed in the subject claim")
	issuer := fs.String("issuer", "", "Issuer claim")
	ttl := fs.Duration("ttl", time.Hour, "Token lifetime")
	secretEnv := fs.String("secret-env", defaultSecret, "Environment variable holding the HMAC secret")
	if err := fs.Parse(args); err != nil {
		return err
	}
	acct, err := crypto.ParseAccount(*subject)
	if err != nil {
		return err
	}
	secret, ok := os.LookupEnv(*secretEnv)
	if !ok {
		return fmt.Errorf("environment variable %s is not set", *secretEnv)
	}
	auth, err := storefrontd.NewAuthenticator(storefrontd.AuthConfig{HMACSecret: secret, Issuer: *issuer})
	if err != nil {
		return err
	}
	token, err := auth.Issue(crypto.FormatAccount(acct), *ttl)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, token)
	return nil
}
