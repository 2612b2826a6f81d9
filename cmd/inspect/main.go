// Command inspect dumps tiles from a store directory for debugging.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"inkwash/pkg/config"
	"inkwash/pkg/logger"
	"inkwash/pkg/store"
	"inkwash/pkg/tilemap"
)

func main() {
	var path, key string
	flag.StringVar(&path, "path", "", "store directory to open")
	flag.StringVar(&key, "tile", "", "tile key to dump; empty lists all keys")
	flag.Parse()
	if path == "" {
		fmt.Fprintln(os.Stderr, "--path required")
		os.Exit(2)
	}
	logger.InitWithLevel("error")

	st, err := store.Open(path, store.Options{
		TileSize: config.DefaultTileSize,
		MaxInk:   config.DefaultMaxInk,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "open store: %v\n", err)
		os.Exit(1)
	}
	defer st.Close()

	if key == "" {
		ids, err := st.TileKeys()
		if err != nil {
			fmt.Fprintf(os.Stderr, "scan tiles: %v\n", err)
			os.Exit(1)
		}
		for _, id := range ids {
			fmt.Println(id.Key())
		}
		return
	}

	id, err := tilemap.ParseKey(key)
	if err != nil {
		fmt.Fprintf(os.Stderr, "bad tile key: %v\n", err)
		os.Exit(2)
	}
	t, err := st.GetTile(id)
	if err != nil {
		fmt.Fprintf(os.Stderr, "get tile: %v\n", err)
		os.Exit(1)
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(t)
}
