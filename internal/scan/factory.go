package scan

import "log"

// ScanToolFactory creates scan strategies based on the scan type.
type ScanToolFactory struct {
	currentOptions ScanOptions
}

func NewScanToolFactory() *ScanToolFactory {
	return &ScanToolFactory{}
}

func (f *ScanToolFactory) SetOptions(opts ScanOptions) {
	f.currentOptions = opts
}

// CreateTool returns a ScanStrategy based on the provided scan type.
func (f *ScanToolFactory) CreateTool(toolType string) ScanStrategy {
	switch toolType {
	case "enumeration":
		return &NaabuStrategy{
			Ports:   f.currentOptions.PortRange,
			Retries: f.currentOptions.MaxRetries,
		}
	case "discovery":
		return &RustScanStrategy{}
	case "vulnerability":
		// Despite the historical name, this produces the OS/service
		// fingerprint that the Network Scripting Engine scripts against.
		return &NmapStrategy{
			PortRange: f.currentOptions.PortRange,
		}
	default:
		log.Printf("No valid scan strategy for type: %s", toolType)
		return nil
	}
}
