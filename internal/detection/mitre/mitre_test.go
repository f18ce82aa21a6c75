package mitre

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/SushanthKS06/IsoLog/internal/model"
)

func TestEnrichDerivesTacticsFromTechnique(t *testing.T) {
	e := New()
	d := &model.Detection{Techniques: []string{"t1110"}}
	e.Enrich(d)
	require.Equal(t, []string{"T1110"}, d.Techniques)
	require.Contains(t, d.MitreTactics, "credential_access")
}

func TestEnrichInfersFromKeywordsWhenNoTechniques(t *testing.T) {
	e := New()
	d := &model.Detection{RuleName: "Possible Brute Force Login"}
	e.Enrich(d)
	require.Contains(t, d.MitreTactics, "credential_access")
}

func TestEnrichOverlayWidensTable(t *testing.T) {
	e := New()
	d := &model.Detection{Techniques: []string{"T9999"}}
	e.table["T9999"] = []string{"impact"}
	e.Enrich(d)
	require.Contains(t, d.MitreTactics, "impact")
}
