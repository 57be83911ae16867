package ranking

import (
	"fmt"
	"math"
	"strings"

	"github.com/spigell/jobmatch/internal/index"
	"github.com/spigell/jobmatch/internal/profile"
)

const (
	overlapWeight    = 0.6
	similarityWeight = 0.4
	overlapEpsilon   = 1e-6
	reasonSkillLimit = 4
)

// Heuristic scores each candidate by skill overlap with the profile and its
// retrieval similarity, sorted by descending score.
func Heuristic(p profile.UserProfile, candidates []index.Candidate) []Result {
	userSkills := make(map[string]struct{}, len(p.Skills))
	for _, s := range p.Skills {
		userSkills[s] = struct{}{}
	}

	results := make([]Result, 0, len(candidates))
	for _, c := range candidates {
		shared := overlap(userSkills, c.Job.SkillsList)
		ratio := float64(len(shared)) / (float64(len(userSkills)) + overlapEpsilon)
		score := round3(overlapWeight*ratio + similarityWeight*c.Score)
		results = append(results, hydrate(c.Job, score, heuristicReason(shared, c.Score)))
	}

	sortByScore(results)
	return results
}

// overlap returns the distinct job skills the user has, in job order.
func overlap(userSkills map[string]struct{}, jobSkills []string) []string {
	var shared []string
	seen := make(map[string]struct{}, len(jobSkills))
	for _, s := range jobSkills {
		if _, ok := userSkills[s]; !ok {
			continue
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		shared = append(shared, s)
	}
	return shared
}

func heuristicReason(shared []string, similarity float64) string {
	if len(shared) == 0 {
		return fmt.Sprintf("No direct skill overlap; retrieval similarity %.2f.", similarity)
	}
	named := shared
	if len(named) > reasonSkillLimit {
		named = named[:reasonSkillLimit]
	}
	return fmt.Sprintf("Matches %d of your skills (%s); retrieval similarity %.2f.",
		len(shared), strings.Join(named, ", "), similarity)
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
