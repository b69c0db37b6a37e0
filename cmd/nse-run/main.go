// nse-run is the engine's minimal embedding host program (the --script
// equivalent): fingerprint one target with Nmap, then run the Network
// Scripting Engine against the ports and services that surfaces.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/sirius-nse/engine/internal/nse"
	"github.com/sirius-nse/engine/internal/scan"
	"github.com/sirius-nse/engine/modules/nmap"
	"github.com/SiriusScan/go-api/sirius"
	"github.com/SiriusScan/go-api/sirius/store"
)

const defaultTarget = "192.168.123.119"

func main() {
	var target string
	var ports string
	var rules string
	var scriptDir string
	flag.StringVar(&target, "target", defaultTarget, "Target IP to scan")
	flag.StringVar(&ports, "ports", "", "Port range to fingerprint (default: nmap's own top ports)")
	flag.StringVar(&rules, "rules", "default", "Comma-separated script rules (categories, filenames, or \"all\")")
	flag.StringVar(&scriptDir, "script-dir", nse.DefaultScriptBase, "Directory scripts are loaded from")
	flag.Parse()

	fmt.Printf("Fingerprinting %s...\n", target)
	host, err := nmap.ScanWithConfig(nmap.ScanConfig{Target: target, PortRange: ports})
	if err != nil {
		log.Fatalf("fingerprint scan failed: %v", err)
	}
	fmt.Printf("Found %d ports, %d services\n", len(host.Ports), len(host.Services))

	kvStore, err := store.NewValkeyStore()
	if err != nil {
		log.Fatalf("failed to initialize ValKey store: %v", err)
	}
	defer kvStore.Close()

	api := scan.NewNSEHostAPI(kvStore, scriptDir, 5*time.Minute)
	if !api.UpdateDB() {
		log.Fatalf("failed to build script index at %s", api.ScriptDBPath())
	}

	ruleList := strings.Split(rules, ",")
	engine := nse.New(api, ruleList)

	fmt.Println("Running Network Scripting Engine...")
	if err := engine.Run(context.Background(), []sirius.Host{host}); err != nil {
		log.Fatalf("engine run failed: %v", err)
	}
}
