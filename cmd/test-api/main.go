// Package main is a smoke-test utility that verifies the castline HTTP API is
// reachable and returning valid responses. It requests the health and public job
// listing endpoints and prints each status code and body, which makes it useful
// for quick post-deployment checks. Set CASTLINE_URL to target another host.
package main

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

func main() {
	base := os.Getenv("CASTLINE_URL")
	if base == "" {
		base = "http://localhost:8080"
	}

	client := &http.Client{Timeout: 10 * time.Second}
	failed := false
	for _, path := range []string{"/health", "/ready", "/api/v1/jobs", "/api/v1/settings/payment"} {
		resp, err := client.Get(base + path)
		if err != nil {
			fmt.Printf("%s: error: %v\n", path, err)
			failed = true
			continue
		}
		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			fmt.Printf("%s: error reading body: %v\n", path, err)
			failed = true
			continue
		}
		fmt.Printf("%s: %d\n%s\n\n", path, resp.StatusCode, string(body))
		if resp.StatusCode >= 400 {
			failed = true
		}
	}
	if failed {
		os.Exit(1)
	}
}
