package cli

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"gopkg.in/yaml.v3"

	"quiz-session-engine/internal/config"
	"quiz-session-engine/internal/domain"
)

// seedQuestion is the YAML shape of one question in a seed file.
type seedQuestion struct {
	ID           string   `yaml:"id"`
	Prompt       string   `yaml:"prompt"`
	Options      []string `yaml:"options"`
	Correct      string   `yaml:"correct"`
	Explanation  string   `yaml:"explanation"`
	TimeLimitSec int      `yaml:"timeLimitSec"`
	Topic        string   `yaml:"topic"`
	Difficulty   string   `yaml:"difficulty"`
}

// NewSeedCmd loads a YAML question file into Postgres for local development.
func NewSeedCmd(configPath *string) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load questions from a YAML file into the bank",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			if cfg.Postgres.URL == "" {
				return fmt.Errorf("postgres url not configured")
			}
			return seedQuestions(cmd, cfg, file)
		},
	}
	cmd.Flags().StringVar(&file, "file", "config/questions.yaml", "path to the question YAML file")
	return cmd
}

func seedQuestions(cmd *cobra.Command, cfg config.Config, file string) error {
	data, err := os.ReadFile(file)
	if err != nil {
		return err
	}
	var seeds []seedQuestion
	if err := yaml.Unmarshal(data, &seeds); err != nil {
		return fmt.Errorf("parse %s: %w", file, err)
	}

	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(cfg.Postgres.URL)))
	db := bun.NewDB(sqldb, pgdialect.New())
	defer db.Close()

	ctx := cmd.Context()
	for _, seed := range seeds {
		tier, err := domain.ParseTier(seed.Difficulty)
		if err != nil || tier == "" {
			return fmt.Errorf("question %s: invalid difficulty %q", seed.ID, seed.Difficulty)
		}
		if len(seed.Options) < 2 || len(seed.Options) > 6 {
			return fmt.Errorf("question %s: needs 2-6 options, has %d", seed.ID, len(seed.Options))
		}

		question := domain.Question{
			ID:           seed.ID,
			Prompt:       seed.Prompt,
			Options:      seed.Options,
			Correct:      seed.Correct,
			Explanation:  seed.Explanation,
			TimeLimitSec: seed.TimeLimitSec,
			Topic:        seed.Topic,
			Difficulty:   tier,
		}
		payload, err := json.Marshal(question)
		if err != nil {
			return fmt.Errorf("question %s: %w", seed.ID, err)
		}
		if _, err := db.ExecContext(ctx,
			`INSERT INTO questions (id, topic, difficulty, data) VALUES (?, ?, ?, ?::jsonb)
			 ON CONFLICT (id) DO UPDATE SET topic=EXCLUDED.topic, difficulty=EXCLUDED.difficulty, data=EXCLUDED.data`,
			question.ID, question.Topic, string(question.Difficulty), string(payload)); err != nil {
			return fmt.Errorf("insert question %s: %w", seed.ID, err)
		}
	}
	cmd.Printf("seeded %d questions\n", len(seeds))
	return nil
}
