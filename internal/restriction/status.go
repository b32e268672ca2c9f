package restriction

import (
	"time"

	"github.com/castline/castline/internal/db/models"
	"github.com/castline/castline/internal/trust"
)

// Status is the derived view of an account returned to clients.
type Status struct {
	Account *models.Account         `json:"account"`
	State   models.RestrictionState `json:"state"`
	// CanAct treats a restriction whose expiry passed as lifted, even before the sweep runs.
	CanAct bool          `json:"can_act"`
	Trust  trust.Profile `json:"trust"`
}

// Describe resolves the derived state and trust profile of a at now.
func Describe(a *models.Account, now time.Time) (Status, error) {
	profile, err := trust.ProfileFor(a)
	if err != nil {
		return Status{}, err
	}
	state := a.State()
	if a.RestrictionExpired(now) {
		state = models.StateActive
	}
	return Status{
		Account: a,
		State:   state,
		CanAct:  a.CanAct(now),
		Trust:   profile,
	}, nil
}
