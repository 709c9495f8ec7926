package cli

import (
	"context"
	"time"

	repository "github.com/okian/learnrank/internal/adapters/repository"
	"github.com/okian/learnrank/internal/seed"
	"github.com/spf13/cobra"
)

// seedFlags are shared by seed and serve --seed-users.
type seedFlags struct {
	users    int
	projects int
	quizzes  int
	seed     int64
}

func (f *seedFlags) register(cmd *cobra.Command, usersFlag string, defaultUsers int) {
	cmd.Flags().IntVar(&f.users, usersFlag, defaultUsers, "number of synthetic accounts")
	cmd.Flags().IntVar(&f.projects, "projects", 30, "number of synthetic projects")
	cmd.Flags().IntVar(&f.quizzes, "quizzes", 20, "number of synthetic quizzes")
	cmd.Flags().Int64Var(&f.seed, "seed", time.Now().UnixNano(), "random seed")
}

func (f *seedFlags) load(ctx context.Context, store repository.Store, workers int) (seed.Stats, error) {
	ds, err := seed.Generate(seed.Config{
		Users:    f.users,
		Projects: f.projects,
		Quizzes:  f.quizzes,
		Seed:     f.seed,
	})
	if err != nil {
		return seed.Stats{}, err
	}
	return seed.Load(ctx, store, store, ds, workers)
}

type seedSummary struct {
	Seed     int64  `json:"seed"`
	Users    int    `json:"users"`
	Eligible int    `json:"eligible"`
	Projects int    `json:"projects"`
	Quizzes  int    `json:"quizzes"`
	Took     string `json:"took"`
}

func newSeedCmd(e *env) *cobra.Command {
	var flags seedFlags
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Write synthetic learners, projects and quizzes to the store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			store, err := e.openStore(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			st, err := flags.load(ctx, store, e.cfg.SnapshotWorkers)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), seedSummary{
				Seed:     flags.seed,
				Users:    st.Users,
				Eligible: st.Eligible,
				Projects: st.Projects,
				Quizzes:  st.Quizzes,
				Took:     st.Duration.String(),
			})
		},
	}
	flags.register(cmd, "users", 100)
	return cmd
}
