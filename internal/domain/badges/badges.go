// Package badges derives achievement badges from activity counters.
package badges

// Automatic badge labels.
const (
	ProjectMaster        = "Project-Master"
	ProjectExpert        = "Project-Expert"
	ProjectBeginner      = "Project-Beginner"
	QuizGenius           = "Quiz-Genius"
	QuizExpert           = "Quiz-Expert"
	QuizAmateur          = "Quiz-Amateur"
	CertificateCollector = "Certificate-Collector"
	Legend               = "Legend"
	Champion             = "Champion"
)

// tier pairs a minimum counter value with the badge it unlocks.
type tier struct {
	min   int
	badge string
}

// Tiers are checked in descending order; the first match wins.
var (
	projectTiers     = []tier{{10, ProjectMaster}, {5, ProjectExpert}, {1, ProjectBeginner}}
	quizTiers        = []tier{{20, QuizGenius}, {10, QuizExpert}, {5, QuizAmateur}}
	certificateTiers = []tier{{5, CertificateCollector}}
	pointTiers       = []tier{{5000, Legend}, {2000, Champion}}
)

// Counters are the achievements a user has accumulated.
type Counters struct {
	CompletedProjects int
	PassedQuizzes     int
	Certificates      int
	TotalPoints       int
}

// Standard returns the automatic badge vocabulary in table order.
func Standard() []string {
	return []string{
		ProjectMaster, ProjectExpert, ProjectBeginner,
		QuizGenius, QuizExpert, QuizAmateur,
		CertificateCollector,
		Legend, Champion,
	}
}

// IsStandard reports whether badge belongs to the automatic vocabulary.
func IsStandard(badge string) bool {
	for _, b := range Standard() {
		if b == badge {
			return true
		}
	}
	return false
}

// Automatic returns at most one badge per counter.
func Automatic(c Counters) []string {
	var out []string
	for _, row := range []struct {
		value int
		tiers []tier
	}{
		{c.CompletedProjects, projectTiers},
		{c.PassedQuizzes, quizTiers},
		{c.Certificates, certificateTiers},
		{c.TotalPoints, pointTiers},
	} {
		if badge, ok := highest(row.value, row.tiers); ok {
			out = append(out, badge)
		}
	}
	return out
}

// Assign merges manual badges (in stored order) with the automatic ones,
// dropping duplicates so that every manual badge is always kept.
func Assign(c Counters, manual []string) []string {
	return Union(manual, Automatic(c))
}

// Union concatenates the lists keeping the first occurrence of each label.
func Union(lists ...[]string) []string {
	seen := make(map[string]struct{})
	out := []string{}
	for _, list := range lists {
		for _, b := range list {
			if _, dup := seen[b]; dup {
				continue
			}
			seen[b] = struct{}{}
			out = append(out, b)
		}
	}
	return out
}

func highest(value int, tiers []tier) (string, bool) {
	for _, t := range tiers {
		if value >= t.min {
			return t.badge, true
		}
	}
	return "", false
}
