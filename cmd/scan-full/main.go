// scan-full drives the complete pipeline against a single target: Naabu
// port discovery, Nmap OS/service fingerprinting, then the Network
// Scripting Engine. Script output is only logged; the fingerprinted host
// is persisted with host.AddHost.
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
	"github.com/SiriusScan/go-api/sirius"
	"github.com/SiriusScan/go-api/sirius/host"
	"github.com/SiriusScan/go-api/sirius/store"
)

const defaultTarget = "192.168.123.148"

func main() {
	var target string
	var rules string
	flag.StringVar(&target, "target", defaultTarget, "Target IP to scan")
	flag.StringVar(&rules, "rules", "default", "Comma-separated script rules")
	flag.Parse()

	fmt.Printf("Starting full scan pipeline against %s\n", target)

	kvStore, err := store.NewValkeyStore()
	if err != nil {
		log.Fatalf("failed to initialize ValKey store: %v", err)
	}
	defer kvStore.Close()

	fmt.Println("Running port discovery (Naabu)...")
	discovery, err := (&scan.NaabuStrategy{Retries: 3}).Execute(target)
	if err != nil {
		log.Fatalf("discovery scan failed: %v", err)
	}
	fmt.Printf("Discovered %d open ports\n", len(discovery.Ports))

	fmt.Println("Running OS/service fingerprint (Nmap)...")
	fingerprint, err := (&scan.NmapStrategy{}).Execute(target)
	if err != nil {
		log.Fatalf("fingerprint scan failed: %v", err)
	}
	fingerprint.Ports = discovery.Ports
	fmt.Printf("Fingerprinted %s %s, %d services\n", fingerprint.OS, fingerprint.OSVersion, len(fingerprint.Services))

	api := scan.NewNSEHostAPI(kvStore, nse.DefaultScriptBase, 5*time.Minute)
	if !api.UpdateDB() {
		log.Fatalf("failed to build script index at %s", api.ScriptDBPath())
	}

	fmt.Println("Running Network Scripting Engine...")
	engine := nse.New(api, strings.Split(rules, ","))
	if err := engine.Run(context.Background(), []sirius.Host{fingerprint}); err != nil {
		log.Fatalf("engine run failed: %v", err)
	}

	if err := host.AddHost(fingerprint); err != nil {
		fmt.Printf("Warning: failed to persist host: %v\n", err)
	} else {
		fmt.Println("Host persisted successfully")
	}

	fmt.Println("Full scan pipeline completed")
}
