package model

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

type Severity string

const (
	SeverityCritical      Severity = "critical"
	SeverityHigh          Severity = "high"
	SeverityMedium        Severity = "medium"
	SeverityLow           Severity = "low"
	SeverityInformational Severity = "informational"
)

type DetectionKind string

const (
	DetectionRule        DetectionKind = "rule"
	DetectionML          DetectionKind = "ml"
	DetectionHeuristic   DetectionKind = "heuristic"
	DetectionCorrelation DetectionKind = "correlation"
)

type Status string

const (
	StatusNew           Status = "new"
	StatusAcknowledged  Status = "acknowledged"
	StatusInvestigating Status = "investigating"
	StatusResolved      Status = "resolved"
	StatusFalsePositive Status = "false_positive"
)

// validTransitions encodes the status lifecycle of §3: new ->
// acknowledged -> investigating -> {resolved, false_positive}. Only
// Transition may move a Detection between these; every other field is
// immutable post-creation.
var validTransitions = map[Status]map[Status]bool{
	StatusNew:           {StatusAcknowledged: true, StatusInvestigating: true},
	StatusAcknowledged:  {StatusInvestigating: true},
	StatusInvestigating: {StatusResolved: true, StatusFalsePositive: true},
}

var (
	ErrInvalidTransition = errors.New("detection status transition not allowed")
	ErrInvalidDetection  = errors.New("detection fails schema validation")
)

// Detection is a rule-or-model-generated observation about exactly one
// event, per §3.
type Detection struct {
	ID            string                `json:"id"`
	EventID       string                `json:"event_id"`
	RuleID        string                `json:"rule_id,omitempty"`
	RuleName      string                `json:"rule_name,omitempty"`
	Description   string                `json:"description,omitempty"`
	Severity      Severity              `json:"severity"`
	Kind          DetectionKind         `json:"kind"`
	MitreTactics  []string              `json:"mitre_tactics,omitempty"`
	Techniques    []string              `json:"mitre_techniques,omitempty"`
	ThreatScore   float64               `json:"threat_score"`
	Confidence    float64               `json:"confidence"`
	// User and Action carry the triggering event's principal.user and
	// action forward onto the detection, so detections can be queried
	// by (user, action) the same way the underlying events can (§4.6
	// idx:user:action).
	User          string                `json:"user,omitempty"`
	Action        string                `json:"action,omitempty"`
	MatchedFields map[string]string     `json:"matched_fields,omitempty"`
	Details       map[string]FieldValue `json:"-"`
	Status        Status                `json:"status"`
	AcknowledgedBy string               `json:"acknowledged_by,omitempty"`
	CreatedAt     time.Time             `json:"created_at"`
}

// NewDetection builds a detection in the "new" status for the given event.
func NewDetection(eventID string, kind DetectionKind, sev Severity) *Detection {
	return &Detection{
		ID:        uuid.NewString(),
		EventID:   eventID,
		Kind:      kind,
		Severity:  sev,
		Status:    StatusNew,
		CreatedAt: time.Now().UTC(),
	}
}

// Validate enforces the score/confidence bounds of P8 and required fields.
func (d *Detection) Validate() error {
	if d == nil || d.ID == "" || d.EventID == "" {
		return ErrInvalidDetection
	}
	if d.ThreatScore < 0 || d.ThreatScore > 100 {
		return ErrInvalidDetection
	}
	if d.Confidence < 0 || d.Confidence > 1 {
		return ErrInvalidDetection
	}
	return nil
}

// Transition moves the detection to a new status if and only if the move
// is allowed by the lifecycle graph; status and acknowledging principal
// are the only post-creation mutable fields (§3).
func (d *Detection) Transition(to Status, by string) error {
	if d.Status == to {
		return nil
	}
	allowed, ok := validTransitions[d.Status]
	if !ok || !allowed[to] {
		return ErrInvalidTransition
	}
	d.Status = to
	if to == StatusAcknowledged {
		d.AcknowledgedBy = by
	}
	return nil
}
