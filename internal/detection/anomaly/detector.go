package anomaly

import (
	"math/rand"
	"sync"
	"time"

	"github.com/SushanthKS06/IsoLog/internal/model"
)

// State is the detector's lifecycle position, per §4.5b.
type State int

const (
	StateWarming State = iota
	StateTrained
)

const warmingTarget = 1000

// Config configures thresholds and persistence per detection.anomaly.*.
type Config struct {
	ModelsPath string
	Threshold  float64 // default 0.85
}

// Detector owns both the isolation-forest and one-class-SVM models,
// sharing one warming buffer and training trigger (§4.5b: "a companion
// one-class-SVM detector shares the same lifecycle").
type Detector struct {
	cfg Config

	mu     sync.Mutex
	state  State
	buffer []Sample
	forest *IsolationForest
	ocsvm  *OneClassSVM
}

func New(cfg Config) *Detector {
	if cfg.Threshold <= 0 {
		cfg.Threshold = 0.85
	}
	d := &Detector{cfg: cfg, state: StateWarming}
	if cfg.ModelsPath != "" {
		if f, err := LoadIsolationForest(cfg.ModelsPath); err == nil {
			d.forest = f
			d.state = StateTrained
		}
		if s, err := LoadOneClassSVM(cfg.ModelsPath); err == nil {
			d.ocsvm = s
		}
	}
	return d
}

// State reports the detector's current lifecycle state.
func (d *Detector) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// Analyze extracts ev's feature vector, buffers it while warming, and
// once trained scores it against both models, returning zero, one, or
// two detections (isolation forest and/or one-class SVM, §4.5b: "both
// may fire on the same event"). A ModelUnavailable condition (still
// warming, or training failed) is a silent no-op per the §7 policy —
// the anomaly stage never surfaces an error to the caller.
func (d *Detector) Analyze(ev *model.Event, now time.Time) []*model.Detection {
	sample := Extract(ev)

	d.mu.Lock()
	if d.state == StateWarming {
		d.buffer = append(d.buffer, sample)
		if len(d.buffer) >= warmingTarget {
			d.trainLocked(now)
		}
		d.mu.Unlock()
		return nil
	}
	forest, ocsvm := d.forest, d.ocsvm
	d.mu.Unlock()

	var out []*model.Detection
	if forest != nil {
		raw := forest.RawDecision(sample)
		score := AnomalyScore(raw)
		if score >= d.cfg.Threshold {
			out = append(out, d.newDetection(ev, "isolation_forest", score))
		}
	}
	if ocsvm != nil {
		score := ocsvm.Score(sample)
		if score >= d.cfg.Threshold {
			out = append(out, d.newDetection(ev, "ocsvm", score))
		}
	}
	return out
}

// trainLocked fits both models from the buffered warming samples and
// persists them; callers must hold d.mu.
func (d *Detector) trainLocked(now time.Time) {
	defer func() {
		// A training panic (malformed feature data) must not take the
		// ingest pipeline down with it — ModelUnavailable policy (§7)
		// degrades the stage to a no-op instead.
		if r := recover(); r != nil {
			d.state = StateWarming
			d.buffer = nil
		}
	}()

	forest := Fit(d.buffer, rand.New(rand.NewSource(now.UnixNano())))
	ocsvm := FitOCSVM(d.buffer)

	if d.cfg.ModelsPath != "" {
		_ = forest.Save(d.cfg.ModelsPath, now)
		_ = ocsvm.Save(d.cfg.ModelsPath, now)
	}

	d.forest = forest
	d.ocsvm = ocsvm
	d.state = StateTrained
	d.buffer = nil
}

func (d *Detector) newDetection(ev *model.Event, source string, score float64) *model.Detection {
	det := model.NewDetection(ev.ID, model.DetectionML, severityFromScore(score))
	det.RuleName = "ml_anomaly"
	det.Description = "anomalous event flagged by " + source
	det.Confidence = score
	det.ThreatScore = score * 100
	det.MatchedFields = map[string]string{"model": source}
	return det
}

func severityFromScore(score float64) model.Severity {
	switch {
	case score >= 0.95:
		return model.SeverityCritical
	case score >= 0.90:
		return model.SeverityHigh
	case score >= 0.85:
		return model.SeverityMedium
	default:
		return model.SeverityLow
	}
}
