// genkey mints a reader API key for the read API.
//
// Usage (run from the repo root):
//
//	go run scripts/genkey/main.go reader@example.com
//
// Prints the plaintext key once, its argon2id hash, and ready-to-run SQL
// creating or rekeying the user row. Only the hash is ever stored; a lost
// key cannot be recovered. Rerun with the same email to rotate.
package main

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"strings"

	"github.com/ashita-ai/mekiki/internal/auth"
)

func main() {
	if len(os.Args) != 2 {
		fmt.Fprintln(os.Stderr, "usage: go run scripts/genkey/main.go <email>")
		os.Exit(1)
	}
	email := os.Args[1]
	if !strings.Contains(email, "@") {
		fmt.Fprintf(os.Stderr, "error: %q does not look like an email address\n", email)
		os.Exit(1)
	}

	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		fmt.Fprintf(os.Stderr, "error: generate key: %v\n", err)
		os.Exit(1)
	}
	apiKey := "mk_" + hex.EncodeToString(raw)

	hash, err := auth.HashAPIKey(apiKey)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: hash key: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("api key (store it now, it is not recoverable):\n  %s\n\n", apiKey)
	fmt.Printf("argon2id hash:\n  %s\n\n", hash)
	fmt.Println("sql:")
	fmt.Printf(`  INSERT INTO users (email, api_key_hash)
  VALUES ('%s', '%s')
  ON CONFLICT (email) DO UPDATE SET
      api_key_hash = EXCLUDED.api_key_hash,
      is_active = TRUE,
      updated_at = NOW();
`, strings.ReplaceAll(email, "'", "''"), hash)
}
