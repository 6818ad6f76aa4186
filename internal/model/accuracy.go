package model

import "fmt"

// Accuracy mirrors the accuracy levels of the underlying location provider.
type Accuracy int

const (
	AccuracyLowest Accuracy = iota + 1
	AccuracyLow
	AccuracyBalanced
	AccuracyHigh
	AccuracyHighest
	AccuracyBestForNavigation
)

func (a Accuracy) String() string {
	switch a {
	case AccuracyLowest:
		return "lowest"
	case AccuracyLow:
		return "low"
	case AccuracyBalanced:
		return "balanced"
	case AccuracyHigh:
		return "high"
	case AccuracyHighest:
		return "highest"
	case AccuracyBestForNavigation:
		return "best_for_navigation"
	default:
		return fmt.Sprintf("accuracy(%d)", int(a))
	}
}

// ParseAccuracy converts a configuration string into an Accuracy level.
func ParseAccuracy(s string) (Accuracy, error) {
	switch s {
	case "lowest":
		return AccuracyLowest, nil
	case "low":
		return AccuracyLow, nil
	case "balanced":
		return AccuracyBalanced, nil
	case "high":
		return AccuracyHigh, nil
	case "highest":
		return AccuracyHighest, nil
	case "best_for_navigation":
		return AccuracyBestForNavigation, nil
	default:
		return 0, fmt.Errorf("unknown accuracy level %q", s)
	}
}
