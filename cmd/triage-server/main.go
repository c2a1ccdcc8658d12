package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/ehr/triage/internal/config"
	"github.com/ehr/triage/internal/domain/encounter"
	"github.com/ehr/triage/internal/domain/triage"
	"github.com/ehr/triage/internal/platform/db"
	"github.com/ehr/triage/migrations"
)

// EncounterLookupAdapter adapts an encounter.Repository to the
// triage.EncounterLookup interface, keeping the triage package free of
// admission types.
type EncounterLookupAdapter struct {
	repo encounter.Repository
}

// NewEncounterLookupAdapter creates a new adapter.
func NewEncounterLookupAdapter(repo encounter.Repository) *EncounterLookupAdapter {
	return &EncounterLookupAdapter{repo: repo}
}

// LookupEncounter implements triage.EncounterLookup.
func (a *EncounterLookupAdapter) LookupEncounter(ctx context.Context, id uuid.UUID) (*triage.EncounterRef, error) {
	enc, err := a.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, encounter.ErrNotFound) {
			return nil, triage.ErrEncounterNotFound
		}
		return nil, err
	}
	return &triage.EncounterRef{
		ID:               enc.ID,
		PatientID:        enc.PatientID,
		PatientBirthDate: enc.PatientBirthDate,
		ArrivedAt:        enc.PeriodStart,
	}, nil
}

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "triage-server",
		Short:        "Clinical triage classification API server",
		SilenceUsage: true,
	}

	cmd.AddCommand(serveCmd())
	cmd.AddCommand(migrateCmd())
	cmd.AddCommand(protocolsCmd())
	cmd.AddCommand(classifyCmd())
	return cmd
}

func newLogger(env string) zerolog.Logger {
	if env == "development" {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the triage API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			count, err := db.NewMigrator(pool, migrations.FS).Up(ctx)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Applied %d migration(s) successfully.\n", count)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			statuses, err := db.NewMigrator(pool, migrations.FS).Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}
			printStatus(cmd.OutOrStdout(), statuses)
			return nil
		},
	})

	return cmd
}

func printStatus(w io.Writer, statuses []db.MigrationStatus) {
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

func protocolsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "protocols",
		Short: "Print the clinical protocol catalog as YAML",
		RunE: func(cmd *cobra.Command, args []string) error {
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			defer enc.Close()
			return enc.Encode(triage.DefaultCatalog())
		},
	}
}

// newEngine builds the classification engine from configuration.
func newEngine(cfg *config.Config, logger zerolog.Logger) (*triage.Engine, error) {
	level, err := cfg.DefaultLevel()
	if err != nil {
		return nil, err
	}
	matcher := triage.NewMatcher(triage.DefaultCatalog(), logger)
	return triage.NewEngine(matcher, cfg.TriagePolicies(), level, logger), nil
}

func classifyCmd() *cobra.Command {
	var (
		pathway, baseline, complaint, bp, format string
		temperature                              float64
		saturation, heartRate, respRate, pain    int
	)

	cmd := &cobra.Command{
		Use:   "classify",
		Short: "Classify a single presentation without storing it",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadOffline()
			if err != nil {
				return err
			}
			engine, err := newEngine(cfg, zerolog.Nop())
			if err != nil {
				return err
			}

			sub := triage.Submission{Pathway: pathway, Complaint: complaint}
			if baseline != "" {
				l, err := triage.ParseLevel(baseline)
				if err != nil {
					return err
				}
				sub.BaselineLevel = &l
			}
			flags := cmd.Flags()
			if flags.Changed("temperature") {
				sub.Vitals.Temperature = &temperature
			}
			if flags.Changed("saturation") {
				sub.Vitals.OxygenSaturation = &saturation
			}
			if flags.Changed("heart-rate") {
				sub.Vitals.HeartRate = &heartRate
			}
			if flags.Changed("respiratory-rate") {
				sub.Vitals.RespiratoryRate = &respRate
			}
			if flags.Changed("pain") {
				sub.Vitals.PainScore = &pain
			}
			if flags.Changed("blood-pressure") {
				sub.Vitals.BloodPressure = &bp
			}

			res, err := triage.NewService(nil, engine, zerolog.Nop()).Classify(sub)
			if err != nil {
				return err
			}
			return writeResult(cmd.OutOrStdout(), format, res)
		},
	}

	f := cmd.Flags()
	f.StringVar(&pathway, "pathway", "upa", "Care pathway (upa or ambulatory)")
	f.StringVar(&baseline, "baseline", "", "Manual baseline level (red, orange, yellow, green, blue)")
	f.StringVar(&complaint, "complaint", "", "Chief complaint, free text")
	f.Float64Var(&temperature, "temperature", 0, "Temperature in Celsius")
	f.IntVar(&saturation, "saturation", 0, "Oxygen saturation percent")
	f.IntVar(&heartRate, "heart-rate", 0, "Heart rate in bpm")
	f.IntVar(&respRate, "respiratory-rate", 0, "Respiratory rate per minute")
	f.StringVar(&bp, "blood-pressure", "", "Blood pressure as systolic/diastolic")
	f.IntVar(&pain, "pain", 0, "Pain score 0-10")
	f.StringVarP(&format, "output", "o", "json", "Output format (json or yaml)")
	return cmd
}

func writeResult(w io.Writer, format string, res triage.Result) error {
	switch strings.ToLower(format) {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	case "yaml":
		// Round-trip through JSON so levels render as codes.
		b, err := json.Marshal(res)
		if err != nil {
			return err
		}
		var doc map[string]interface{}
		if err := json.Unmarshal(b, &doc); err != nil {
			return err
		}
		enc := yaml.NewEncoder(w)
		defer enc.Close()
		return enc.Encode(doc)
	}
	return fmt.Errorf("unknown output format %q", format)
}
