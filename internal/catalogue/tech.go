// Package catalogue holds the static gameplay definitions: purchasable
// research upgrades, canonical mineral types and the classification-type
// allow-list. Pure data, no store access.
package catalogue

// Tech type tags as stored in researched.tech_type.
const (
	TechProbeReceptors      = "probereceptors"
	TechSatelliteCount      = "satellitecount"
	TechRoverWaypoints      = "roverwaypoints"
	TechSpectroscopy        = "spectroscopy"
	TechFindMinerals        = "findMinerals"
	TechP4Minerals          = "p4Minerals"
	TechRoverExtraction     = "roverExtraction"
	TechSatelliteExtraction = "satelliteExtraction"
	TechNGTSAccess          = "ngtsAccess"
)

const (
	quantityUpgradeCost = 10
	oneTimeUpgradeCost  = 2
)

// PrerequisiteRule gates a purchase on prior progress. Exactly one of
// RequiresTech or RequiresClassification is set.
type PrerequisiteRule struct {
	// RequiresTech names a tech_type that must already be owned.
	RequiresTech string
	// RequiresClassificationType and RequiredClassifications demand a minimum
	// number of classifications of the given type.
	RequiresClassificationType string
	RequiredClassifications    int
}

// Tech describes one purchasable upgrade.
type Tech struct {
	Type string
	Name string
	// Quantity upgrades are the instrument-capacity purchases; they carry the
	// higher price. Naming aside, the gate currently caps them at a single
	// purchase, same as one-time upgrades.
	Quantity     bool
	Prerequisite *PrerequisiteRule
}

var techs = []Tech{
	{Type: TechProbeReceptors, Name: "Telescope Receptors", Quantity: true},
	{Type: TechSatelliteCount, Name: "Additional Satellite", Quantity: true},
	{Type: TechRoverWaypoints, Name: "Rover Navigation Upgrade", Quantity: true},
	{Type: TechSpectroscopy, Name: "Spectroscopy Data"},
	{Type: TechFindMinerals, Name: "Mineral Survey"},
	{Type: TechP4Minerals, Name: "Planet Four Minerals"},
	{
		Type:         TechRoverExtraction,
		Name:         "Rover Extraction Rig",
		Prerequisite: &PrerequisiteRule{RequiresTech: TechFindMinerals},
	},
	{
		Type:         TechSatelliteExtraction,
		Name:         "Satellite Extraction Array",
		Prerequisite: &PrerequisiteRule{RequiresTech: TechP4Minerals},
	},
	{
		Type: TechNGTSAccess,
		Name: "NGTS Survey Access",
		Prerequisite: &PrerequisiteRule{
			RequiresClassificationType: ClassificationPlanet,
			RequiredClassifications:    4,
		},
	},
}

var techsByType = func() map[string]Tech {
	index := make(map[string]Tech, len(techs))
	for _, tech := range techs {
		index[tech.Type] = tech
	}
	return index
}()

// Techs returns every purchasable upgrade in catalogue order.
func Techs() []Tech {
	out := make([]Tech, len(techs))
	copy(out, techs)
	return out
}

// TechByType looks up an upgrade definition by its tech_type tag.
func TechByType(techType string) (Tech, bool) {
	tech, ok := techsByType[techType]
	return tech, ok
}

// TechCount is the catalogue size, the denominator of the all-upgrades
// milestone.
func TechCount() int {
	return len(techs)
}

// Cost returns the stardust price of one purchase of the given tech.
// Quantity upgrades cost 10, everything else 2; each purchase is costed
// independently.
func Cost(techType string) int64 {
	if tech, ok := techsByType[techType]; ok && tech.Quantity {
		return quantityUpgradeCost
	}
	return oneTimeUpgradeCost
}

// IsQuantityUpgrade reports whether the tech belongs to the quantity set.
func IsQuantityUpgrade(techType string) bool {
	tech, ok := techsByType[techType]
	return ok && tech.Quantity
}
