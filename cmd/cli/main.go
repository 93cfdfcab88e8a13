package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"gorevsig/adapters/excel"
	"gorevsig/adapters/stats/stages"
	"gorevsig/app"
	"gorevsig/internal/config"
	"gorevsig/internal/container"
)

// rankFlags override the environment configuration when set
type rankFlags struct {
	input        string
	output       string
	sheet        string
	seed         int64
	permutations int
	bootstrap    int
	noValidation bool
	store        bool
}

func main() {
	_ = godotenv.Load()

	rootCmd := &cobra.Command{
		Use:   "gorevsig",
		Short: "Rank compounds by how consistently they reverse a disease signature",
	}

	rootCmd.AddCommand(
		newRankCmd(),
		newDeterminismCmd(),
		newRunsCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRankCmd() *cobra.Command {
	var flags rankFlags

	cmd := &cobra.Command{
		Use:   "rank",
		Short: "Score, rank, aggregate and validate a signature table",
		Long: `Run the full ranking engine on a signature table (.xlsx or .csv).

Configuration is read from REVSIG_* environment variables (and .env);
flags override the seed and the validation sizes.

Example: gorevsig rank --input signatures.csv --output ranking.xlsx --seed 7`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRank(cmd.Context(), cmd, flags, cmd.OutOrStdout())
		},
	}

	addInputFlags(cmd, &flags)
	cmd.Flags().StringVarP(&flags.output, "output", "o", "", "Output file (.xlsx or .json); JSON to stdout when empty")
	cmd.Flags().BoolVar(&flags.store, "store", false, "Persist the run (requires REVSIG_DATABASE_URL)")
	return cmd
}

func newDeterminismCmd() *cobra.Command {
	var flags rankFlags

	cmd := &cobra.Command{
		Use:   "determinism",
		Short: "Run the engine twice and compare output fingerprints",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, in, err := setup(cmd, flags)
			if err != nil {
				return err
			}
			defer c.Shutdown(context.Background())

			result, err := c.Ranking.Verify(cmd.Context(), in)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deterministic: %s (replay %s)\n", result.Fingerprint, result.Replay.Fingerprint)
			return nil
		},
	}

	addInputFlags(cmd, &flags)
	return cmd
}

func newRunsCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List stored runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if !cfg.Database.Enabled() {
				return fmt.Errorf("REVSIG_DATABASE_URL is not set")
			}
			c, err := container.New(cfg)
			if err != nil {
				return err
			}
			defer c.Shutdown(context.Background())
			if err := c.InitDatabase(cmd.Context()); err != nil {
				return err
			}

			manifests, err := c.RunRepo.ListRuns(cmd.Context(), limit)
			if err != nil {
				return err
			}
			for _, m := range manifests {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%d compounds\t%s\n", m.RunID, m.CreatedAt, m.CompoundCount, m.OutputFingerprint)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum runs to list")
	return cmd
}

func addInputFlags(cmd *cobra.Command, flags *rankFlags) {
	cmd.Flags().StringVarP(&flags.input, "input", "i", "", "Signature table (.xlsx or .csv)")
	cmd.Flags().StringVar(&flags.sheet, "sheet", excel.InputSheet, "Sheet to read from .xlsx input")
	cmd.Flags().Int64Var(&flags.seed, "seed", 0, "Random seed for deterministic operations")
	cmd.Flags().IntVar(&flags.permutations, "permutations", 0, "Permutations per null distribution")
	cmd.Flags().IntVar(&flags.bootstrap, "bootstrap", 0, "Bootstrap resamples per compound")
	cmd.Flags().BoolVar(&flags.noValidation, "no-validation", false, "Skip permutation and bootstrap validation")
	_ = cmd.MarkFlagRequired("input")
}

// setup loads configuration, applies flag overrides and reads the input
func setup(cmd *cobra.Command, flags rankFlags) (*container.Container, stages.Input, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, stages.Input{}, err
	}
	if cmd.Flags().Changed("seed") {
		cfg.Ranking.Seed = flags.seed
	}
	if cmd.Flags().Changed("permutations") {
		cfg.Ranking.Permutations = flags.permutations
	}
	if cmd.Flags().Changed("bootstrap") {
		cfg.Ranking.BootstrapSamples = flags.bootstrap
	}
	if flags.noValidation {
		cfg.Ranking.RunValidation = false
	}

	c, err := container.New(cfg)
	if err != nil {
		return nil, stages.Input{}, err
	}

	reader := excel.NewDataReader(excel.ExcelConfig{FilePath: flags.input, SheetName: flags.sheet}, c.Logger)
	table, err := reader.ReadTable()
	if err != nil {
		return nil, stages.Input{}, err
	}
	return c, stages.Input{Table: table}, nil
}

func runRank(ctx context.Context, cmd *cobra.Command, flags rankFlags, stdout io.Writer) error {
	c, in, err := setup(cmd, flags)
	if err != nil {
		return err
	}
	defer c.Shutdown(context.Background())

	if flags.store {
		if !c.Config.Database.Enabled() {
			return fmt.Errorf("--store needs REVSIG_DATABASE_URL")
		}
		if err := c.InitDatabase(ctx); err != nil {
			return err
		}
	}

	result, err := c.Ranking.Rank(ctx, in)
	if err != nil {
		return err
	}

	if err := writeResult(flags.output, result, stdout); err != nil {
		return err
	}
	c.Logger.Info("ranked %d compounds, fingerprint %s", len(result.Compounds), result.Fingerprint)
	return nil
}

func writeResult(path string, result *app.RankingResult, stdout io.Writer) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		return excel.WriteFile(path, excel.Workbook{
			Compounds:    result.Compounds,
			Significance: result.SignificanceRows(),
			Signatures:   result.Signatures,
			Contexts:     result.Contexts,
		})
	case "":
		if path != "" {
			break
		}
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}
