// Package banner prints the daemon's startup summary.
package banner

import "fmt"

const banner = `
██╗███╗   ██╗██╗  ██╗██╗    ██╗ █████╗ ███████╗██╗  ██╗
██║████╗  ██║██║ ██╔╝██║    ██║██╔══██╗██╔════╝██║  ██║
██║██╔██╗ ██║█████╔╝ ██║ █╗ ██║███████║███████╗███████║
██║██║╚██╗██║██╔═██╗ ██║███╗██║██╔══██║╚════██║██╔══██║
██║██║ ╚████║██║  ██╗╚███╔███╔╝██║  ██║███████║██║  ██║
╚═╝╚═╝  ╚═══╝╚═╝  ╚═╝ ╚══╝╚══╝ ╚═╝  ╚═╝╚══════╝╚═╝  ╚═╝
`

// Print writes the startup banner with listen and storage info.
func Print(addr, dbPath, version string) {
	fmt.Print(banner)
	fmt.Println("== Config =====================================================")
	fmt.Printf("Listen:   %s\n", addr)
	fmt.Printf("Store:    %s\n", dbPath)
	if version != "" {
		fmt.Printf("Version:  %s\n", version)
	}
	fmt.Println("\n== Endpoints ==================================================")
	fmt.Println("GET  /v1/tiles/{key}          - Fetch one tile document")
	fmt.Println("POST /v1/strokes              - Append grouped strokes and debit ink")
	fmt.Println("GET  /v1/ink/{user}           - Fetch (or bootstrap) an ink account")
	fmt.Println("POST /v1/tiles/{key}/cleanup  - Prune expired strokes from a tile")
	fmt.Println("GET  /v1/subscribe?tile=<key> - Websocket tile change feed")
	fmt.Println("GET  /metrics                 - Prometheus metrics")
}
