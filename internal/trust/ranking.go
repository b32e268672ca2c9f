package trust

import (
	"sort"

	"github.com/castline/castline/internal/db/models"
)

// RankedJob is an open job with the visibility weight computed at read time.
type RankedJob struct {
	models.Job
	DirectorTrustScore int   `json:"director_trust_score"`
	TrustLevel         Level `json:"trust_level"`
	VisibilityWeight   int   `json:"visibility_weight"`
	PriorityListing    bool  `json:"priority_listing"`
}

// RankJobs orders jobs by visibility weight descending, then deadline ascending.
// Jobs without a deadline follow dated jobs of the same weight. The sort is
// stable, so input order (creation order from the store) breaks remaining ties.
// Nothing is cached: a trust change is visible on the next call.
func RankJobs(jobs []models.JobWithDirectorTrust) ([]RankedJob, error) {
	ranked := make([]RankedJob, 0, len(jobs))
	for _, j := range jobs {
		level, err := ResolveLevel(j.DirectorTrustScore)
		if err != nil {
			return nil, err
		}
		caps, err := DeriveCapabilities(level)
		if err != nil {
			return nil, err
		}
		ranked = append(ranked, RankedJob{
			Job:                j.Job,
			DirectorTrustScore: j.DirectorTrustScore,
			TrustLevel:         level,
			VisibilityWeight:   caps.VisibilityWeight,
			PriorityListing:    caps.PriorityListing,
		})
	}

	sort.SliceStable(ranked, func(i, k int) bool {
		a, b := ranked[i], ranked[k]
		if a.VisibilityWeight != b.VisibilityWeight {
			return a.VisibilityWeight > b.VisibilityWeight
		}
		switch {
		case a.Deadline == nil:
			return false
		case b.Deadline == nil:
			return true
		default:
			return a.Deadline.Before(*b.Deadline)
		}
	})
	return ranked, nil
}
