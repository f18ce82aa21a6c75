// Package mitre implements the MITRE ATT&CK enrichment stage of §4.5c:
// technique/tactic normalization, a technique-to-tactics lookup table,
// and keyword-based tactic inference for detections that declare no
// techniques of their own. Grounded on gravwell's pattern of a static,
// optionally file-overridden lookup table loaded once at startup (the
// same shape as gravwell's collectd/winevent type mapping tables), here
// populated from an embedded default and optionally widened from
// `detection.mitre.attack_json_path`.
package mitre

import (
	"encoding/json"
	"os"
	"regexp"
	"strings"

	"github.com/SushanthKS06/IsoLog/internal/model"
)

// techniqueTactics is the built-in technique -> tactics table, covering
// the techniques referenced by the built-in rule pack and seed
// scenarios. It is intentionally small and is widened by LoadOverlay
// from an optional ATT&CK JSON export.
var techniqueTactics = map[string][]string{
	"T1110":     {"credential_access"},
	"T1110.001": {"credential_access"},
	"T1078":     {"defense_evasion", "persistence", "privilege_escalation", "initial_access"},
	"T1021":     {"lateral_movement"},
	"T1021.004": {"lateral_movement"},
	"T1059":     {"execution"},
	"T1059.001": {"execution"},
	"T1053":     {"execution", "persistence", "privilege_escalation"},
	"T1543":     {"persistence", "privilege_escalation"},
	"T1055":     {"defense_evasion", "privilege_escalation"},
	"T1046":     {"discovery"},
	"T1048":     {"exfiltration"},
	"T1486":     {"impact"},
	"T1490":     {"impact"},
	"T1098":     {"persistence"},
}

// keywordTactics is the fixed keyword table used to infer a tactic when
// a rule declares no techniques.
var keywordTactics = []struct {
	keyword string
	tactic  string
}{
	{"brute", "credential_access"},
	{"password", "credential_access"},
	{"credential", "credential_access"},
	{"logon", "initial_access"},
	{"login", "initial_access"},
	{"privilege", "privilege_escalation"},
	{"escalat", "privilege_escalation"},
	{"persist", "persistence"},
	{"lateral", "lateral_movement"},
	{"exfil", "exfiltration"},
	{"ransom", "impact"},
	{"encrypt", "impact"},
	{"delete", "impact"},
	{"discovery", "discovery"},
	{"recon", "discovery"},
	{"execut", "execution"},
	{"command", "execution"},
	{"evade", "defense_evasion"},
	{"evasion", "defense_evasion"},
	{"disable", "defense_evasion"},
}

var techniqueRe = regexp.MustCompile(`(?i)^T\d{4}(\.\d{3})?$`)

type Enricher struct {
	table map[string][]string
}

// New returns an Enricher seeded with the built-in table.
func New() *Enricher {
	cp := make(map[string][]string, len(techniqueTactics))
	for k, v := range techniqueTactics {
		cp[k] = v
	}
	return &Enricher{table: cp}
}

// LoadOverlay widens the technique table from an ATT&CK-export-shaped
// JSON file at path: `{"techniques": {"T1110": ["credential_access"]}}`.
// A missing or malformed file is not fatal — detection.mitre is an
// optional enrichment, per §6's "optional enriched mapping file".
func (e *Enricher) LoadOverlay(path string) error {
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var overlay struct {
		Techniques map[string][]string `json:"techniques"`
	}
	if err := json.Unmarshal(data, &overlay); err != nil {
		return err
	}
	for k, v := range overlay.Techniques {
		e.table[strings.ToUpper(k)] = v
	}
	return nil
}

// Enrich normalizes d's techniques to uppercase, derives tactics from
// the technique table, and — if the rule declared no techniques at
// all — attempts keyword inference against the rule name/description.
func (e *Enricher) Enrich(d *model.Detection) {
	normalized := make([]string, 0, len(d.Techniques))
	tacticSet := map[string]bool{}
	for _, t := range d.MitreTactics {
		tacticSet[strings.ToLower(t)] = true
	}

	for _, t := range d.Techniques {
		u := strings.ToUpper(strings.TrimSpace(t))
		if !techniqueRe.MatchString(u) {
			continue
		}
		normalized = append(normalized, u)
		for _, tac := range e.table[u] {
			tacticSet[tac] = true
		}
	}
	d.Techniques = normalized

	if len(d.Techniques) == 0 {
		for tac := range inferTactics(d.RuleName + " " + d.Description) {
			tacticSet[tac] = true
		}
	}

	tactics := make([]string, 0, len(tacticSet))
	for t := range tacticSet {
		tactics = append(tactics, t)
	}
	d.MitreTactics = tactics
}

func inferTactics(text string) map[string]bool {
	lower := strings.ToLower(text)
	out := map[string]bool{}
	for _, kt := range keywordTactics {
		if strings.Contains(lower, kt.keyword) {
			out[kt.tactic] = true
		}
	}
	return out
}
