package nmap

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"os/exec"

	"github.com/SiriusScan/go-api/sirius"
	"github.com/lair-framework/go-nmap"
)

// Scan is a function variable that can be overridden for testing.
var Scan = scanImpl

// scanImpl is the default single-target implementation, used where no
// extra configuration is needed.
func scanImpl(target string) (sirius.Host, error) {
	return ScanWithConfig(ScanConfig{Target: target})
}

// ScanConfig configures an Nmap invocation. Script-based vulnerability
// detection (the teacher's old `--script=vuln,vulners,...` flag) has been
// dropped: vulnerability and service-behavior detection is now the
// Network Scripting Engine's job (internal/nse), not Nmap's. This module
// is scoped to what Nmap is actually good at: OS and service/version
// fingerprinting.
type ScanConfig struct {
	Target    string
	PortRange string
	Ctx       context.Context
}

// ScanWithConfig runs Nmap against config.Target and parses the result.
func ScanWithConfig(config ScanConfig) (sirius.Host, error) {
	if config.Target == "" {
		return sirius.Host{}, fmt.Errorf("nmap scan requires a target")
	}

	output, err := executeNmapWithConfig(config)
	if err != nil {
		return sirius.Host{}, err
	}

	return processNmapOutput(output)
}

func executeNmapWithConfig(config ScanConfig) (string, error) {
	ctx := config.Ctx
	if ctx == nil {
		ctx = context.Background()
	}

	args := []string{"-T4", "-sV", "-O", "-Pn"}
	if config.PortRange != "" {
		args = append(args, "-p", config.PortRange)
	}
	args = append(args, config.Target, "-oX", "-")

	cmd := exec.CommandContext(ctx, "nmap", args...)

	var stdout bytes.Buffer
	cmd.Stdout = &stdout

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("error executing nmap: %v", err)
	}

	return stdout.String(), nil
}

func processNmapOutput(output string) (sirius.Host, error) {
	host := sirius.Host{}

	var nmapRun nmap.NmapRun
	if err := xml.Unmarshal([]byte(output), &nmapRun); err != nil {
		return host, fmt.Errorf("error unmarshalling XML: %v", err)
	}

	if len(nmapRun.Hosts) == 0 {
		return host, fmt.Errorf("no hosts found in nmap XML data")
	}

	nmapHost := nmapRun.Hosts[0]

	if len(nmapHost.Addresses) > 0 {
		for _, address := range nmapHost.Addresses {
			if address.AddrType == "ipv4" || address.AddrType == "ipv6" {
				host.IP = address.Addr
				break
			}
		}
	}

	if len(nmapHost.Os.OsMatches) > 0 && len(nmapHost.Os.OsMatches[0].OsClasses) > 0 {
		host.OS = nmapHost.Os.OsMatches[0].Name
		host.OSVersion = nmapHost.Os.OsMatches[0].OsClasses[0].OsGen
	}

	if len(nmapHost.Hostnames) > 0 {
		host.Hostname = nmapHost.Hostnames[0].Name
	}

	var ports []sirius.Port
	var services []sirius.Service
	for _, port := range nmapHost.Ports {
		ports = append(ports, sirius.Port{
			ID:       port.PortId,
			Protocol: port.Protocol,
			State:    port.State.State,
		})
		if port.Service.Name != "" {
			services = append(services, sirius.Service{
				Port:    port.PortId,
				Product: port.Service.Product,
				Version: port.Service.Version,
			})
		}
	}
	host.Ports = ports
	host.Services = services

	return host, nil
}
