// Prints a fresh provider API token, its stored hash and the matching
// INSERT, for seeding a provider account by hand.
//
// Usage: go run scripts/seed-provider.go <provider-id> <display-name> <room>
package main

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"

	"github.com/telavista/visit-server-go/internal/token"
)

func main() {
	if len(os.Args) < 4 {
		fmt.Fprintf(os.Stderr, "Usage: go run scripts/seed-provider.go <provider-id> <display-name> <room>\n")
		os.Exit(1)
	}

	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	apiToken := hex.EncodeToString(buf)

	fmt.Printf("API token (give to the provider, shown once):\n  %s\n\n", apiToken)
	fmt.Printf("INSERT INTO providers (id, display_name, room, api_token_hash)\n")
	fmt.Printf("VALUES ('%s', '%s', '%s', '%s');\n", os.Args[1], os.Args[2], os.Args[3], token.Hash(apiToken))
}
