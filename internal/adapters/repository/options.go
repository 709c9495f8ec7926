package repository

import "github.com/okian/learnrank/internal/domain/model"

// Option applies a configuration option to the MemoryStore.
type Option func(*MemoryStore)

// WithUsers preloads users in the given order.
func WithUsers(users ...model.User) Option {
	return func(s *MemoryStore) {
		for _, u := range users {
			s.putUser(u)
		}
	}
}

// WithProjects preloads the project catalogue.
func WithProjects(projects ...model.Project) Option {
	return func(s *MemoryStore) {
		for _, p := range projects {
			s.putProject(p)
		}
	}
}

// WithQuizzes preloads the quiz catalogue.
func WithQuizzes(quizzes ...model.Quiz) Option {
	return func(s *MemoryStore) {
		for _, q := range quizzes {
			s.putQuiz(q)
		}
	}
}
