package planning

import (
	"github.com/visitplan/visitplan/internal/domain/identity"
)

// EffectivePractitionerID resolves which practitioner a visit belongs to:
// the one-off override if set, otherwise the primary assignment. The second
// return is false when the patient is unassigned.
func EffectivePractitionerID(p *identity.Patient) (int64, bool) {
	if p.OverridePractitionerID != nil {
		return *p.OverridePractitionerID, true
	}
	if p.PrimaryPractitionerID != nil {
		return *p.PrimaryPractitionerID, true
	}
	return 0, false
}
