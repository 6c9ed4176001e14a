package catalogue

// Classification type tags referenced by gate prerequisites and the
// diversity milestone.
const (
	ClassificationPlanet      = "planet"
	ClassificationMinorPlanet = "telescope-minorPlanet"
	ClassificationCloud       = "cloud"
	ClassificationSunspot     = "sunspot"
	ClassificationPlanetFour  = "satellite-planetFour"
	ClassificationAI4Mars     = "automaton-aiForMars"
	ClassificationDiskDetect  = "disk-detective"
	ClassificationSuperwasp   = "superwasp-variable"
)

var diversityTypes = []string{
	ClassificationPlanet,
	ClassificationMinorPlanet,
	ClassificationCloud,
	ClassificationSunspot,
	ClassificationPlanetFour,
	ClassificationAI4Mars,
	ClassificationDiskDetect,
	ClassificationSuperwasp,
}

// DiversityTypes returns the fixed allow-list for the classification
// diversity milestone. Types outside this list are excluded from both the
// numerator and the denominator.
func DiversityTypes() []string {
	out := make([]string, len(diversityTypes))
	copy(out, diversityTypes)
	return out
}
