package frames

import (
	"fmt"
	"strings"
)

// Unit is one extracted frame.
type Unit struct {
	ID          string `json:"id"`
	Index       int    `json:"index"`
	ArtifactRef string `json:"artifact_ref"`
}

// UnitID derives the stable identifier of the frame at index within jobID.
func UnitID(jobID string, index int) string {
	return fmt.Sprintf("%s-%06d", jobID, index)
}

// BuildUnits assigns ids and indexes to artifact refs in order.
func BuildUnits(jobID string, refs []string) []Unit {
	units := make([]Unit, len(refs))
	for i, ref := range refs {
		units[i] = Unit{ID: UnitID(jobID, i), Index: i, ArtifactRef: ref}
	}
	return units
}

// ValidateUnits checks that units are contiguous from zero and carry the ids
// derived from jobID.
func ValidateUnits(jobID string, units []Unit) error {
	for i, unit := range units {
		if unit.Index != i {
			return fmt.Errorf("unit %d: index %d out of sequence", i, unit.Index)
		}
		if unit.ID != UnitID(jobID, i) {
			return fmt.Errorf("unit %d: unexpected id %q", i, unit.ID)
		}
		if strings.TrimSpace(unit.ArtifactRef) == "" {
			return fmt.Errorf("unit %d: empty artifact ref", i)
		}
	}
	return nil
}

// IDs returns the unit ids in order.
func IDs(units []Unit) []string {
	ids := make([]string, len(units))
	for i, unit := range units {
		ids[i] = unit.ID
	}
	return ids
}
