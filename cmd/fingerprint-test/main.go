// fingerprint-test/main.go exercises modules/nmap directly, without the
// scan package or the Network Scripting Engine, to sanity-check OS/service
// fingerprinting in isolation.
package main

import (
	"flag"
	"fmt"
	"log"

	"github.com/sirius-nse/engine/modules/nmap"
	"github.com/SiriusScan/go-api/sirius"
)

const defaultTarget = "192.168.123.148"

func main() {
	var target string
	var portRange string
	flag.StringVar(&target, "target", defaultTarget, "Target IP to scan")
	flag.StringVar(&portRange, "ports", "", "Port range to scan (default: nmap's own top ports)")
	flag.Parse()

	fmt.Println("Starting direct Nmap fingerprint test")
	fmt.Printf("Target: %s\n", target)

	results, err := nmap.ScanWithConfig(nmap.ScanConfig{Target: target, PortRange: portRange})
	if err != nil {
		log.Fatalf("scan failed: %v", err)
	}

	printScanResults(results)
	fmt.Println("\nFingerprint test completed")
}

func printScanResults(results sirius.Host) {
	fmt.Printf("\nScan results for %s (%s %s):\n", results.IP, results.OS, results.OSVersion)

	if len(results.Ports) > 0 {
		fmt.Printf("\nPorts (%d):\n", len(results.Ports))
		for _, port := range results.Ports {
			fmt.Printf("- %d/%s: %s\n", port.ID, port.Protocol, port.State)
		}
	}

	if len(results.Services) > 0 {
		fmt.Printf("\nServices (%d):\n", len(results.Services))
		for _, service := range results.Services {
			fmt.Printf("- Port %d: %s %s\n", service.Port, service.Product, service.Version)
		}
	}
}
