// nse-index forces a Script Index rebuild and invalidates the cached copy
// in ValKey, for use after scripts are added to or removed from disk.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/sirius-nse/engine/internal/nse"
	"github.com/sirius-nse/engine/internal/scan"
	"github.com/SiriusScan/go-api/sirius/store"
)

func main() {
	var scriptDir string
	flag.StringVar(&scriptDir, "script-dir", nse.DefaultScriptBase, "Directory scripts are loaded from")
	flag.Parse()

	kvStore, err := store.NewValkeyStore()
	if err != nil {
		log.Fatalf("failed to initialize ValKey store: %v", err)
	}
	defer kvStore.Close()

	api := scan.NewNSEHostAPI(kvStore, scriptDir, 5*time.Minute)
	if !api.UpdateDB() {
		log.Fatalf("failed to rebuild script index at %s", api.ScriptDBPath())
	}

	cache := nse.NewIndexCache(kvStore)
	if err := cache.InvalidateIndex(context.Background()); err != nil {
		log.Fatalf("failed to invalidate cached script index: %v", err)
	}

	fmt.Printf("Script index rebuilt at %s and cache invalidated\n", api.ScriptDBPath())
}
