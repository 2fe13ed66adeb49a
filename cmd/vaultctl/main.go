package main

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"rwavault/cmd/internal/passphrase"
	"rwavault/crypto"
	"rwavault/native/vault"
	"rwavault/services/eventsink"
)

const (
	defaultPassEnv  = "RWAVAULT_KEYSTORE_PASS"
	defaultKeystore = "operator.keystore"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}
	var err error
	switch os.Args[1] {
	case "keygen":
		err = runKeygen(os.Args[2:], os.Stdout)
	case "address":
		err = runAddress(os.Args[2:], os.Stdout)
	case "sign":
		err = runSign(os.Args[2:], os.Stdout)
	case "hash":
		err = runHash(os.Args[2:], os.Stdin, os.Stdout)
	case "export":
		err = runExport(os.Args[2:], os.Stdout)
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
	fmt.Fprintln(os.Stderr, "Usage: vaultctl <keygen|address|sign|hash|export> [flags]")
}

func runKeygen(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("keygen", flag.ExitOnError)
	keystorePath := fs.String("keystore", defaultKeystore, "Output path for the keystore file")
	passEnv := fs.String("pass-env", defaultPassEnv, "Environment variable containing the keystore passphrase")
	force := fs.Bool("force", false, "Overwrite an existing keystore file")
	fs.Parse(args)

	if _, err := os.Stat(*keystorePath); err == nil && !*force {
		return fmt.Errorf("keystore %s already exists; use -force to overwrite", *keystorePath)
	}
	pass, err := passphrase.NewConfirmingSource(*passEnv).Get()
	if err != nil {
		return err
	}
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		return fmt.Errorf("generate key: %w", err)
	}
	if err := crypto.SaveToKeystore(*keystorePath, key, pass); err != nil {
		return fmt.Errorf("save keystore: %w", err)
	}
	fmt.Fprintf(out, "%s\n", key.PubKey().Address())
	return nil
}

func runAddress(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("address", flag.ExitOnError)
	keystorePath := fs.String("keystore", defaultKeystore, "Path to the keystore file")
	fs.Parse(args)

	addr, err := crypto.KeystoreAddress(*keystorePath)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "%s\n", addr)
	return nil
}

func runSign(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("sign", flag.ExitOnError)
	keystorePath := fs.String("keystore", defaultKeystore, "Path to the signing keystore")
	passEnv := fs.String("pass-env", defaultPassEnv, "Environment variable containing the keystore passphrase")
	manifestPath := fs.String("manifest", "", "YAML manifest describing the operation")
	vaultAddr := fs.String("vault", "", "Vault contract address")
	operation := fs.String("op", "", "Operation to authorize")
	nonce := fs.Uint64("nonce", 0, "Principal nonce expected by the vault")
	amount := fs.String("amount", "", "Amount argument")
	deliveryHash := fs.String("delivery-hash", "", "Hex delivery hash for claim_physical")
	strategy := fs.String("strategy", "", "Strategy address")
	rwaBps := fs.Uint("rwa-bps", 0, "RWA allocation in basis points")
	onchainBps := fs.Uint("onchain-bps", 0, "On-chain allocation in basis points")
	fs.Parse(args)

	m, err := loadManifest(*manifestPath)
	if err != nil {
		return err
	}
	set := map[string]bool{}
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })
	if set["vault"] {
		m.Vault = *vaultAddr
	}
	if set["op"] {
		m.Operation = *operation
	}
	if set["nonce"] {
		m.Nonce = *nonce
	}
	if set["amount"] {
		m.Amount = *amount
	}
	if set["delivery-hash"] {
		m.DeliveryHash = *deliveryHash
	}
	if set["strategy"] {
		m.Strategy = *strategy
	}
	if set["rwa-bps"] {
		m.RwaBps = uint32(*rwaBps)
	}
	if set["onchain-bps"] {
		m.OnchainBps = uint32(*onchainBps)
	}

	pass, err := passphrase.NewSource(*passEnv).Get()
	if err != nil {
		return err
	}
	key, err := crypto.LoadFromKeystore(*keystorePath, pass)
	if err != nil {
		return fmt.Errorf("load keystore: %w", err)
	}
	op, req, err := buildRequest(m, key)
	if err != nil {
		return err
	}
	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(struct {
		Path string      `json:"path"`
		Body interface{} `json:"body"`
	}{Path: "/v1/" + string(op), Body: req})
}

func runHash(args []string, in io.Reader, out io.Writer) error {
	fs := flag.NewFlagSet("hash", flag.ExitOnError)
	details := fs.String("details", "", "Delivery details to commit to; read from stdin when empty")
	file := fs.String("file", "", "File containing the delivery details")
	fs.Parse(args)

	var payload []byte
	switch {
	case *file != "":
		data, err := os.ReadFile(*file)
		if err != nil {
			return err
		}
		payload = data
	case *details != "":
		payload = []byte(*details)
	default:
		data, err := io.ReadAll(in)
		if err != nil {
			return err
		}
		payload = []byte(strings.TrimRight(string(data), "\r\n"))
	}
	if len(payload) == 0 {
		return fmt.Errorf("delivery details required")
	}
	digest := vault.DeliveryHash(payload)
	fmt.Fprintf(out, "%s\n", hex.EncodeToString(digest[:]))
	return nil
}

func runExport(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	dsn := fs.String("dsn", "", "Event archive DSN (postgres:// URL or SQLite path)")
	output := fs.String("out", "events.parquet", "Parquet output path")
	after := fs.Uint64("after", 0, "Export records with a sequence above this cursor")
	fs.Parse(args)

	sink, err := eventsink.Open(*dsn, nil)
	if err != nil {
		return err
	}
	defer sink.Close()
	rows, err := sink.ExportParquet(context.Background(), *output, *after)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "exported %d events to %s\n", rows, *output)
	return nil
}
