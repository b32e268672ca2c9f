// Package main is a development utility that mints a session token for an account
// id, so the account and admin endpoints can be exercised locally without a login
// flow. It signs with CASTLINE_JWT_SECRET (or a throwaway secret when
// CASTLINE_DEV_MODE=true) and prints the token and a ready-to-run curl line. Do not
// use it against production: anyone holding the secret can impersonate any account.
package main

import (
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/castline/castline/internal/auth"
)

func main() {
	accountID := flag.String("account", "", "account id to place in the token subject (required)")
	issuer := flag.String("issuer", auth.DefaultIssuer, "token issuer; must match auth.issuer on the server")
	ttl := flag.Duration("ttl", time.Hour, "token lifetime")
	baseURL := flag.String("url", "http://localhost:8080", "server base URL for the example request")
	flag.Parse()

	if *accountID == "" {
		flag.Usage()
		log.Fatal("-account is required")
	}
	if err := auth.ValidateJWTSecret(); err != nil {
		log.Fatal(err)
	}

	token, err := auth.GenerateJWT(*accountID, *issuer, *ttl)
	if err != nil {
		log.Fatalf("Failed to sign token: %v", err)
	}

	fmt.Println(token)
	fmt.Println()
	fmt.Printf("curl -H 'Authorization: Bearer %s' %s/api/v1/accounts/me\n", token, *baseURL)
}
