package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/ehr/chart/internal/config"
	"github.com/ehr/chart/internal/domain/notes"
	"github.com/ehr/chart/internal/platform/auth"
	"github.com/ehr/chart/internal/platform/db"
	"github.com/ehr/chart/internal/platform/validation"
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "chart-server",
		Short:         "Medication and chart validation API server",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(seedCmd())
	rootCmd.AddCommand(validateCmd())
	rootCmd.AddCommand(tokenCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, zerolog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, zerolog.Nop(), err
	}
	if err := cfg.Validate(); err != nil {
		return nil, zerolog.Nop(), err
	}
	return cfg, cfg.NewLogger(), nil
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the chart API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func runServer() error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	repo, pool, err := openStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	if pool != nil {
		defer pool.Close()
		logger.Info().Msg("connected to database")
	}

	key, generated, err := resolveSigningKey(cfg.AuthSigningKey)
	if err != nil {
		return err
	}
	if generated {
		logger.Warn().Msg("AUTH_SIGNING_KEY not set, using an ephemeral key; issued tokens will not survive a restart")
	}

	a, err := newApp(cfg, logger, repo, pool, key)
	if err != nil {
		return err
	}
	if cfg.SeedMockData {
		res, err := a.seed(ctx)
		if err != nil {
			return fmt.Errorf("seed mock data: %w", err)
		}
		logger.Info().Int("patients", res.Patients).Int("skipped", res.Skipped).Msg("mock data seeded")
	}

	e := a.router()
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Str("store", cfg.StoreBackend).Msg("starting server")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info().Msg("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return e.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		a.scheduler.Start(gctx)
		return nil
	})
	a.sessions.StartCleanup(gctx, time.Minute)

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info().Msg("server stopped")
	return nil
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	withMigrator := func(run func(ctx context.Context, m *db.Migrator) error) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		if cfg.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for migrations")
		}
		ctx := context.Background()
		pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
		if err != nil {
			return err
		}
		defer pool.Close()
		return run(ctx, db.NewMigrator(pool, db.Migrations()))
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(func(ctx context.Context, m *db.Migrator) error {
				count, err := m.Up(ctx)
				if err != nil {
					return fmt.Errorf("migration failed: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Applied %d migration(s) successfully.\n", count)
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(func(ctx context.Context, m *db.Migrator) error {
				statuses, err := m.Status(ctx)
				if err != nil {
					return fmt.Errorf("failed to get migration status: %w", err)
				}
				printMigrationStatus(cmd.OutOrStdout(), statuses)
				return nil
			})
		},
	})

	return cmd
}

func printMigrationStatus(w io.Writer, statuses []db.MigrationStatus) {
	fmt.Fprintf(w, "%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
	fmt.Fprintln(w, "---------- ---------------------------------------- ---------- --------------------")
	for _, s := range statuses {
		status := "pending"
		appliedAt := ""
		if s.Applied {
			status = "applied"
			if s.AppliedAt != nil {
				appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
			}
		}
		fmt.Fprintf(w, "%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
	}
}

func seedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Load demo patients and medications into the store",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			if cfg.StoreBackend != config.BackendPostgres {
				logger.Warn().Msg("memory store is not persistent; seeded data is discarded on exit")
			}
			ctx := cmd.Context()
			repo, pool, err := openStore(ctx, cfg)
			if err != nil {
				return err
			}
			if pool != nil {
				defer pool.Close()
			}
			a, err := newApp(cfg, logger, repo, pool, nil)
			if err != nil {
				return err
			}
			res, err := a.seed(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Seeded %d patient(s) with %d medication(s); %d already present.\n",
				res.Patients, res.Medications, res.Skipped)
			return nil
		},
	}
}

func validateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate a form document against a template or rule file",
		Long: "Evaluates a JSON object of field values against the rules of a chart\n" +
			"template (--template) or a YAML/JSON rule file (--rules) and prints the\n" +
			"resulting validation state. Exits non-zero when blocking errors remain.",
		RunE: func(cmd *cobra.Command, args []string) error {
			template, _ := cmd.Flags().GetString("template")
			rulesPath, _ := cmd.Flags().GetString("rules")
			dataPath, _ := cmd.Flags().GetString("data")

			var data io.Reader = cmd.InOrStdin()
			if dataPath != "" && dataPath != "-" {
				f, err := os.Open(dataPath)
				if err != nil {
					return err
				}
				defer f.Close()
				data = f
			}
			_, err := runValidate(cmd.OutOrStdout(), template, rulesPath, data)
			return err
		},
	}
	cmd.Flags().String("template", "", "Chart template name, e.g. progress_note")
	cmd.Flags().String("rules", "", "Path to a YAML or JSON rule file")
	cmd.Flags().String("data", "-", "Path to the JSON form data, or - for stdin")
	return cmd
}

func runValidate(w io.Writer, template, rulesPath string, data io.Reader) (validation.State, error) {
	var rules []validation.Rule
	switch {
	case template != "" && rulesPath != "":
		return validation.State{}, fmt.Errorf("use either --template or --rules, not both")
	case template != "":
		var ok bool
		if rules, ok = notes.Catalog(template); !ok {
			return validation.State{}, fmt.Errorf("unknown template %q", template)
		}
	case rulesPath != "":
		var err error
		if rules, err = validation.LoadRuleFile(rulesPath); err != nil {
			return validation.State{}, err
		}
	default:
		return validation.State{}, fmt.Errorf("--template or --rules is required")
	}

	var form map[string]interface{}
	if err := json.NewDecoder(data).Decode(&form); err != nil {
		return validation.State{}, fmt.Errorf("decode form data: %w", err)
	}

	state := validation.NewEngine(zerolog.Nop()).EvaluateForm(form, rules)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(state); err != nil {
		return state, err
	}
	if !state.IsValid {
		return state, fmt.Errorf("validation failed with %d error(s)", len(state.Errors))
	}
	return state, nil
}

func tokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a bearer token for a clinician",
		RunE: func(cmd *cobra.Command, args []string) error {
			sub, _ := cmd.Flags().GetString("sub")
			name, _ := cmd.Flags().GetString("name")
			roles, _ := cmd.Flags().GetStringSlice("roles")
			ttl, _ := cmd.Flags().GetDuration("ttl")
			if sub == "" {
				return fmt.Errorf("--sub is required")
			}

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cfg.AuthSigningKey == "" {
				return fmt.Errorf("AUTH_SIGNING_KEY must be set to issue tokens")
			}
			key, _, err := resolveSigningKey(cfg.AuthSigningKey)
			if err != nil {
				return err
			}
			token, err := auth.IssueToken(auth.JWTConfig{
				Issuer:     cfg.AuthIssuer,
				Audience:   cfg.AuthAudience,
				SigningKey: key,
			}, auth.Identity{ID: sub, Name: name, Roles: trimAll(roles)}, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().String("sub", "", "Clinician id (token subject)")
	cmd.Flags().String("name", "", "Clinician display name")
	cmd.Flags().StringSlice("roles", []string{"physician"}, "Comma-separated roles")
	cmd.Flags().Duration("ttl", 8*time.Hour, "Token lifetime")
	return cmd
}

func trimAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
