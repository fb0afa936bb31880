package peering

import "fmt"

// SplitSeverity classifies how much of the network a netsplit removed.
type SplitSeverity int

const (
	SeverityMinor SplitSeverity = iota
	SeverityMajor
	SeverityCritical
)

// ClassifySplitSeverity implements spec §4.11 step 4: remaining/total
// ratio >= 0.75 is Minor, >= 0.5 is Major, else Critical.
func ClassifySplitSeverity(connectedServersRemaining, totalServersPreSplit int) SplitSeverity {
	if totalServersPreSplit <= 0 {
		return SeverityCritical
	}
	ratio := float64(connectedServersRemaining) / float64(totalServersPreSplit)
	switch {
	case ratio >= 0.75:
		return SeverityMinor
	case ratio >= 0.5:
		return SeverityMajor
	default:
		return SeverityCritical
	}
}

// NetsplitQuitReason formats the standard two-name netsplit QUIT reason
// (spec §4.11 step 2, glossary "Netsplit").
func NetsplitQuitReason(lostServerName, thisServerName string) string {
	return fmt.Sprintf("%s %s", lostServerName, thisServerName)
}
