// Command demoscanner starts a local stand-in for the scanner and enrichment
// services so sitelens can run without real browsers.
// Usage: go run ./cmd/demoscanner [port]
// Default port: 8090
package main

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/raysh454/sitelens/internal/demoserver"
)

func main() {
	cfg := demoserver.DefaultConfig()
	cfg.Latency = 500 * time.Millisecond

	// Optional: custom port from command line
	if len(os.Args) > 1 {
		port, err := strconv.Atoi(os.Args[1])
		if err != nil || port < 1 || port > 65535 {
			log.Fatalf("Invalid port: %s", os.Args[1])
		}
		cfg.Port = port
	}

	fmt.Println("Sitelens demo scanner")
	fmt.Println("  Profile 1: legacy site with many issues")
	fmt.Println("  Profile 2: remediated site")
	fmt.Println("  Profile 3: scanner outage")
	fmt.Println()
	fmt.Println("Point sitelens at it with --scanner-url and --enrichment-url.")
	fmt.Println()

	server := demoserver.NewDemoServer(cfg)
	if err := server.Start(); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}
