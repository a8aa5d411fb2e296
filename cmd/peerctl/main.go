// Command peerctl is a thin CLI for inspecting a running peerd instance
// over its debug HTTP surface.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
)

func main() {
	if len(os.Args) < 3 {
		fmt.Println("Usage:")
		fmt.Println("  peerctl <debug-addr> peers")
		fmt.Println("  peerctl <debug-addr> collections")
		fmt.Println("  peerctl <debug-addr> healthz")
		fmt.Println("  peerctl <debug-addr> force-election")
		os.Exit(1)
	}

	addr := os.Args[1]
	cmd := os.Args[2]

	var path string
	method := http.MethodGet
	switch cmd {
	case "peers":
		path = "/peers"
	case "collections":
		path = "/collections"
	case "healthz":
		path = "/healthz"
	case "force-election":
		path = "/election/tick"
		method = http.MethodPost
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", cmd)
		os.Exit(1)
	}

	req, err := http.NewRequest(method, "http://"+addr+path, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "build request: %v\n", err)
		os.Exit(1)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		fmt.Fprintf(os.Stderr, "request failed: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		fmt.Fprintf(os.Stderr, "read response: %v\n", err)
		os.Exit(1)
	}

	if resp.StatusCode != http.StatusOK {
		fmt.Fprintf(os.Stderr, "%s returned %d: %s\n", path, resp.StatusCode, body)
		os.Exit(1)
	}

	var pretty any
	if err := json.Unmarshal(body, &pretty); err != nil {
		fmt.Println(string(body))
		return
	}
	out, _ := json.MarshalIndent(pretty, "", "  ")
	fmt.Println(string(out))
}
