package workflow

import (
	"strings"

	"servicetrack/config"
)

// Well-known stage names.
const (
	StageSecurityGate   = "Security Gate"
	StageInteractiveBay = "Interactive Bay"
	StageJobCard        = "Job Card Creation + Customer Approval"
	StageBayAllocation  = "Bay Allocation Started"
	StageMaintenance    = "Maintenance Started"
)

// Roles the validator treats specially.
const (
	RoleSecurityGuard = "Security Guard"
	RoleBayTechnician = "Bay Technician"
)

// BayWorkPrefix marks stage names synthesized for bay-technician work.
const BayWorkPrefix = "Bay Work:"

// Kind classifies a stage for validation and board queries.
type Kind int

const (
	KindStandard Kind = iota
	KindGate
	KindBayAllocation
	KindBay
	KindBayWork
)

func (k Kind) String() string {
	switch k {
	case KindGate:
		return "gate"
	case KindBayAllocation:
		return "bay_allocation"
	case KindBay:
		return "bay"
	case KindBayWork:
		return "bay_work"
	default:
		return "standard"
	}
}

// Stage is the structural identity behind a stage name.
type Stage struct {
	Name     string
	Kind     Kind
	WorkType string // set for KindBayWork only
}

// BayRelated reports whether the stage may be started repeatedly and is
// exempt from the started/completed checks.
func (s Stage) BayRelated() bool {
	switch s.Kind {
	case KindBayAllocation, KindBay, KindBayWork:
		return true
	}
	return false
}

// BayWorkName is the stored stage name for bay work of the given type.
func BayWorkName(workType string) string {
	return BayWorkPrefix + " " + workType
}

// Catalog maps configured stage names to kinds.
type Catalog struct {
	kinds map[string]Kind
}

func NewCatalog(stages []config.StageConfig) *Catalog {
	c := &Catalog{kinds: make(map[string]Kind, len(stages))}
	for _, s := range stages {
		c.kinds[s.Name] = parseKind(s.Kind)
	}
	return c
}

func parseKind(s string) Kind {
	switch s {
	case "gate":
		return KindGate
	case "bay_allocation":
		return KindBayAllocation
	case "bay":
		return KindBay
	default:
		return KindStandard
	}
}

// Parse resolves a stage name. "Bay Work: <type>" is always bay work;
// names missing from the catalog count as bay stages when they mention "Bay".
func (c *Catalog) Parse(name string) Stage {
	if wt, ok := strings.CutPrefix(name, BayWorkPrefix); ok {
		return Stage{Name: name, Kind: KindBayWork, WorkType: strings.TrimSpace(wt)}
	}
	if k, ok := c.kinds[name]; ok {
		return Stage{Name: name, Kind: k}
	}
	if strings.Contains(name, "Bay") {
		return Stage{Name: name, Kind: KindBay}
	}
	return Stage{Name: name, Kind: KindStandard}
}
