// Package builtin wires the initial parser set of §4.3 into a Registry.
package builtin

import (
	"github.com/SushanthKS06/IsoLog/internal/parsers"
	"github.com/SushanthKS06/IsoLog/internal/parsers/csv"
	"github.com/SushanthKS06/IsoLog/internal/parsers/firewall"
	"github.com/SushanthKS06/IsoLog/internal/parsers/jsonline"
	"github.com/SushanthKS06/IsoLog/internal/parsers/syslog"
	"github.com/SushanthKS06/IsoLog/internal/parsers/winevent"
)

// Register populates r with the built-in format parsers at their default
// priorities (lower wins ties; more specific/structural formats are
// checked before the generic CSV/key-value fallback).
func Register(r *parsers.Registry) {
	r.Register(syslog.New(), 10)
	r.Register(jsonline.New(), 20)
	r.Register(winevent.New(), 30)
	r.Register(firewall.New(), 40)
	r.Register(csv.New(), 50)
}
