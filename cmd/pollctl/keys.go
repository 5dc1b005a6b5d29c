package main

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strings"

	authadapter "ballotbox/contexts/governance/poll-registry/adapters/auth"

	"github.com/spf13/cobra"
)

func init() {
	keygenCmd.Flags().BoolVar(&keygenForce, "force", false, "overwrite an existing key file")
	rootCmd.AddCommand(keygenCmd, identityCmd)
}

var keygenForce bool

var keygenCmd = &cobra.Command{
	Use:   "keygen <path>",
	Short: "Generate an Ed25519 signing key and print its identity",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := args[0]
		if _, err := os.Stat(path); err == nil && !keygenForce {
			return fmt.Errorf("%s already exists; pass --force to overwrite", path)
		}
		publicKey, privateKey, err := ed25519.GenerateKey(rand.Reader)
		if err != nil {
			return fmt.Errorf("generate key: %w", err)
		}
		if err := writeKey(path, privateKey); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), authadapter.IdentityFromPublicKey(publicKey))
		return nil
	},
}

var identityCmd = &cobra.Command{
	Use:   "identity",
	Short: "Print the identity of the key given by --key",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if globalFlags.keyFile == "" {
			return errors.New("--key is required")
		}
		privateKey, err := readKey(globalFlags.keyFile)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), authadapter.IdentityFromPublicKey(privateKey.Public().(ed25519.PublicKey)))
		return nil
	},
}

// Key files hold the hex encoded 32 byte seed.
func writeKey(path string, privateKey ed25519.PrivateKey) error {
	encoded := hex.EncodeToString(privateKey.Seed()) + "\n"
	if err := os.WriteFile(path, []byte(encoded), 0o600); err != nil {
		return fmt.Errorf("write key file: %w", err)
	}
	return nil
}

func readKey(path string) (ed25519.PrivateKey, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read key file: %w", err)
	}
	return parseKey(string(raw))
}

func parseKey(encoded string) (ed25519.PrivateKey, error) {
	seed, err := hex.DecodeString(strings.TrimSpace(encoded))
	if err != nil {
		return nil, fmt.Errorf("decode key file: %w", err)
	}
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("key file must hold a %d byte seed, got %d", ed25519.SeedSize, len(seed))
	}
	return ed25519.NewKeyFromSeed(seed), nil
}
