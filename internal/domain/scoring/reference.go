package scoring

import "github.com/okian/learnrank/internal/domain/model"

// Reference indexes project and quiz definitions by id. It is read-only
// after construction and safe to share across goroutines.
type Reference struct {
	projects map[string]model.Project
	quizzes  map[string]model.Quiz
}

// NewReference builds a lookup over the given definitions.
func NewReference(projects []model.Project, quizzes []model.Quiz) *Reference {
	r := &Reference{
		projects: make(map[string]model.Project, len(projects)),
		quizzes:  make(map[string]model.Quiz, len(quizzes)),
	}
	for _, p := range projects {
		r.projects[p.ID] = p
	}
	for _, q := range quizzes {
		r.quizzes[q.ID] = q
	}
	return r
}

// Project looks up a project definition.
func (r *Reference) Project(id string) (model.Project, bool) {
	p, ok := r.projects[id]
	return p, ok
}

// Quiz looks up a quiz definition.
func (r *Reference) Quiz(id string) (model.Quiz, bool) {
	q, ok := r.quizzes[id]
	return q, ok
}
