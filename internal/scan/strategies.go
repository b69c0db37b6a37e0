package scan

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/sirius-nse/engine/modules/naabu"
	"github.com/sirius-nse/engine/modules/nmap"
	"github.com/sirius-nse/engine/modules/rustscan"
	"github.com/SiriusScan/go-api/nvd"
	"github.com/SiriusScan/go-api/sirius"
)

// RustScanStrategy implements fast port discovery using Rustscan.
type RustScanStrategy struct{}

// Execute performs the Rustscan discovery scan.
func (r *RustScanStrategy) Execute(target string) (sirius.Host, error) {
	return rustscan.Scan(target)
}

// ExecuteWithContext performs the discovery scan. Rustscan is invoked via
// exec.Command without context support in modules/rustscan, so this ignores
// ctx beyond an up-front cancellation check.
func (r *RustScanStrategy) ExecuteWithContext(ctx context.Context, target string) (sirius.Host, error) {
	if ctx.Err() != nil {
		return sirius.Host{}, fmt.Errorf("scan cancelled before starting")
	}
	return rustscan.Scan(target)
}

// ScanStrategy defines an interface for executing a scan on a target.
// ExecuteWithContext is the variant that accepts a context for cancellation
// support; Execute takes none.
type ScanStrategy interface {
	Execute(target string) (sirius.Host, error)
	// ExecuteWithContext performs the scan with cancellation support
	ExecuteWithContext(ctx context.Context, target string) (sirius.Host, error)
}

// NmapStrategy fingerprints a target's OS and service/version banners using
// Nmap. Vulnerability detection is no longer Nmap's job: it belongs to the
// Network Scripting Engine (internal/nse), which runs against the ports and
// services this strategy discovers.
type NmapStrategy struct {
	PortRange string // Port range to scan (from a rule set's scope)
}

// Execute performs the fingerprint scan.
// This is a convenience method that uses context.Background().
func (n *NmapStrategy) Execute(target string) (sirius.Host, error) {
	return n.ExecuteWithContext(context.Background(), target)
}

// ExecuteWithContext performs the fingerprint scan with cancellation support.
func (n *NmapStrategy) ExecuteWithContext(ctx context.Context, target string) (sirius.Host, error) {
	log.Printf("Starting OS/service fingerprint scan on target: %s", target)

	if ctx.Err() != nil {
		return sirius.Host{}, fmt.Errorf("scan cancelled before starting")
	}

	config := nmap.ScanConfig{
		Target:    target,
		PortRange: n.PortRange,
		Ctx:       ctx,
	}

	if n.PortRange != "" {
		log.Printf("Using port range: %s", n.PortRange)
	}

	results, err := nmap.ScanWithConfig(config)
	if err != nil {
		return sirius.Host{}, err
	}

	if ctx.Err() != nil {
		return sirius.Host{}, fmt.Errorf("scan cancelled")
	}

	log.Printf("Fingerprinted %s: %d ports, %d services", target, len(results.Ports), len(results.Services))
	return results, nil
}

// ExpandVulnerability supplements a vulnerability surfaced by an NSE script
// with NVD info. Scripts report bare CVE identifiers in their output; this
// fills in description and risk score before the finding is persisted.
func ExpandVulnerability(vuln sirius.Vulnerability) sirius.Vulnerability {
	trimmed := strings.TrimSpace(vuln.VID)
	if !strings.HasPrefix(trimmed, "CVE-") {
		// Ensure the ID is properly formatted
		trimmed = "CVE-" + trimmed
	}

	// Ensure vuln.VID matches the properly formatted CVE ID for consistency
	vuln.VID = trimmed

	// Set a meaningful title if it's missing
	if vuln.Title == "" || vuln.Title == vuln.VID {
		vuln.Title = trimmed
	}

	// Try to get details from NVD API
	cveDetails, err := nvd.GetCVE(trimmed)
	if err != nil {
		// Log error but continue with basic vuln info
		log.Printf("Error getting CVE details for %s: %v", trimmed, err)

		// Set minimal details for the vulnerability
		vuln.Description = fmt.Sprintf("No description available for %s. Detected during scan.", trimmed)

		// Set a default risk score if none is available
		if vuln.RiskScore <= 0 {
			vuln.RiskScore = 5.0 // Medium risk as default
		}

		return vuln
	}

	// If we have details, update the vulnerability with them
	if len(cveDetails.Descriptions) > 0 {
		for _, desc := range cveDetails.Descriptions {
			// Prefer English description
			if desc.Lang == "en" {
				vuln.Description = desc.Value
				break
			}
		}

		// If no English description was found, use the first one
		if vuln.Description == "" && len(cveDetails.Descriptions) > 0 {
			vuln.Description = cveDetails.Descriptions[0].Value
		}
	}

	// If still no description, set a default
	if vuln.Description == "" {
		vuln.Description = fmt.Sprintf("No description available for %s. Detected during scan.", trimmed)
	}

	// Set the risk score from the CVSS data if available
	if len(cveDetails.Metrics.CvssMetricV31) > 0 {
		vuln.RiskScore = cveDetails.Metrics.CvssMetricV31[0].CvssData.BaseScore
	} else if len(cveDetails.Metrics.CvssMetricV30) > 0 {
		vuln.RiskScore = cveDetails.Metrics.CvssMetricV30[0].CvssData.BaseScore
	} else if len(cveDetails.Metrics.CvssMetricV2) > 0 {
		vuln.RiskScore = cveDetails.Metrics.CvssMetricV2[0].CvssData.BaseScore
	} else {
		// Default risk score if none available
		vuln.RiskScore = 5.0 // Medium risk as default
	}

	return vuln
}

// NaabuStrategy implements port enumeration using Naabu
type NaabuStrategy struct {
	Ports   string
	Retries int
}

// Execute performs port enumeration using Naabu.
// This is a convenience method that uses context.Background().
func (n *NaabuStrategy) Execute(target string) (sirius.Host, error) {
	return n.ExecuteWithContext(context.Background(), target)
}

// ExecuteWithContext performs port enumeration with cancellation support.
func (n *NaabuStrategy) ExecuteWithContext(ctx context.Context, target string) (sirius.Host, error) {
	// Check for cancellation before starting
	if ctx.Err() != nil {
		return sirius.Host{}, fmt.Errorf("scan cancelled before starting")
	}

	host, err := naabu.Scan(target, naabu.ScanConfig{
		PortRange: n.Ports,
		Retries:   n.Retries,
		Ctx:       ctx, // Pass context for cancellation
	})
	if errors.Is(err, naabu.ErrHostDown) {
		log.Printf("Host %s appears down (no open ports found by NAABU), skipping further scans.", target)
		return sirius.Host{}, nil
	}
	if err != nil {
		return sirius.Host{}, err
	}
	return host, nil
}

// FingerprintResult contains the results of a fingerprint scan.
// It is the result type of the FingerprintStrategy interface.
type FingerprintResult struct {
	IsAlive  bool              // Whether the host is alive/reachable
	OSFamily string            // Detected OS family (e.g., "windows", "linux", "unknown")
	TTL      int               // TTL value from ICMP response
	Details  map[string]string // Additional fingerprint details (confidence, hops, etc.)
}

// FingerprintStrategy defines an interface for host fingerprinting operations.
// This repository contains no implementation of it, and ScanOptions has no
// fingerprinting settings.
type FingerprintStrategy interface {
	Fingerprint(target string) (FingerprintResult, error)
	// FingerprintWithContext performs fingerprinting with cancellation support
	FingerprintWithContext(ctx context.Context, target string) (FingerprintResult, error)
}
