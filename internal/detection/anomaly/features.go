// Package anomaly implements the isolation-forest and one-class-SVM
// detectors of §4.5b: a fixed numeric feature vector per event, a
// warming/trained lifecycle with a persisted model file, and score
// mapping to the 0-1 anomaly scale with severity thresholds.
package anomaly

import (
	"time"

	"github.com/SushanthKS06/IsoLog/internal/model"
)

// knownServicePorts backs the "known-service-port flag for destination"
// feature.
var knownServicePorts = map[int]bool{
	20: true, 21: true, 22: true, 23: true, 25: true, 53: true, 67: true, 68: true,
	80: true, 110: true, 123: true, 143: true, 389: true, 443: true, 445: true,
	465: true, 587: true, 636: true, 993: true, 995: true, 3306: true, 3389: true,
	5432: true, 8080: true, 8443: true,
}

// Sample is the fixed-width numeric feature vector extracted from one
// event, in the exact order listed by §4.5b.
type Sample []float64

const numFeatures = 16

// Extract builds the feature vector for ev. Missing values become 0, per
// spec.
func Extract(ev *model.Event) Sample {
	hour := float64(ev.Timestamp.Hour())
	dow := float64(int(ev.Timestamp.Weekday()))
	weekend := 0.0
	if ev.Timestamp.Weekday() == time.Saturday || ev.Timestamp.Weekday() == time.Sunday {
		weekend = 1.0
	}
	businessHours := 0.0
	if ev.Timestamp.Hour() >= 9 && ev.Timestamp.Hour() < 17 && weekend == 0 {
		businessHours = 1.0
	}

	hasUser := boolFloat(ev.Principal.User != "")
	hasSrcIP := boolFloat(ev.Source.IP != "")
	hasDstIP := boolFloat(ev.Destination.IP != "")
	hasProcess := boolFloat(ev.Process.Name != "")

	srcPort := float64(ev.Source.Port)
	dstPort := float64(ev.Destination.Port)
	highPort := boolFloat(ev.Destination.Port > 1024 || ev.Source.Port > 1024)
	knownPort := boolFloat(knownServicePorts[ev.Destination.Port])

	failure := boolFloat(ev.Outcome == model.OutcomeFailure)
	authCategory := 0.0
	for _, c := range ev.Categories {
		if c == model.CategoryAuthentication {
			authCategory = 1.0
			break
		}
	}

	msgLen := 0.0
	if msg, ok := ev.Extensions["message"]; ok {
		if s, ok := msg.Interface().(string); ok {
			msgLen = float64(len(s))
		}
	}
	cmdLen := float64(len(ev.Process.CommandLine))

	return Sample{
		hour, dow, weekend, businessHours,
		hasUser, hasSrcIP, hasDstIP, hasProcess,
		srcPort, dstPort, highPort, knownPort,
		failure, authCategory, msgLen, cmdLen,
	}
}

func boolFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

func clip(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
