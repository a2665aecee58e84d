package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/areluna/finimport/internal/entity"
	"github.com/areluna/finimport/internal/importer"
	"github.com/areluna/finimport/internal/report"
	"github.com/areluna/finimport/pkg/configuration"
)

type importOptions struct {
	input              string
	apply              bool
	batchSize          int
	entities           string
	allowNameMatch     bool
	warnLowDownPayment bool
	country            string
}

func (o *importOptions) addFlags(cmd *cobra.Command) {
	conf := configuration.Use()

	cmd.Flags().StringVar(&o.input, "input", "", "Input path (required)")
	cmd.Flags().BoolVar(&o.apply, "apply", false, "Apply changes to DB (default is dry-run)")
	cmd.Flags().IntVar(&o.batchSize, "batch-size", conf.Import.BatchSize, "Rows per upsert batch")
	cmd.Flags().StringVar(&o.entities, "entities", "", "Comma-separated subset: clients,contracts,payments (default all)")
	cmd.Flags().BoolVar(&o.allowNameMatch, "allow-name-match", conf.Import.AllowNameMatch,
		"Resolve contract clients by normalized name as a last resort")
	cmd.Flags().BoolVar(&o.warnLowDownPayment, "warn-low-down-payment", conf.Import.WarnLowDownPayment,
		"Warn on contracts with a down payment under 30% of the total")
	cmd.Flags().StringVar(&o.country, "country", conf.Import.DefaultCountry, "Default client country")

	_ = cmd.MarkFlagRequired("input")
}

func (o *importOptions) kinds() ([]entity.Kind, error) {
	if strings.TrimSpace(o.entities) == "" {
		return nil, nil
	}
	var kinds []entity.Kind
	for _, part := range strings.Split(o.entities, ",") {
		switch strings.TrimSpace(part) {
		case "clients":
			kinds = append(kinds, entity.KindClient)
		case "contracts":
			kinds = append(kinds, entity.KindContract)
		case "payments":
			kinds = append(kinds, entity.KindPayment)
		case "":
		default:
			return nil, fmt.Errorf("unknown entity %q in --entities", strings.TrimSpace(part))
		}
	}
	return kinds, nil
}

func newImportCmd() *cobra.Command {
	var opts importOptions

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import clients, contracts and payments from a CSV directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			info, err := os.Stat(opts.input)
			if err != nil {
				return withCode(exitUsage, fmt.Errorf("--input: %w", err))
			}
			if !info.IsDir() {
				return withCode(exitUsage, fmt.Errorf("--input %s is not a directory", opts.input))
			}
			set := importer.NewDirSet(opts.input, configuration.Use().Logger())
			defer func() { _ = set.Close() }()
			return runImport(cmd.Context(), set, opts)
		},
	}

	opts.addFlags(cmd)
	return cmd
}

func runImport(ctx context.Context, set importer.SourceSet, opts importOptions) error {
	conf := configuration.Use()
	log := conf.Logger()

	kinds, err := opts.kinds()
	if err != nil {
		return withCode(exitUsage, err)
	}

	st, err := connectStore(ctx)
	if err != nil {
		return withCode(exitDB, err)
	}
	defer st.Close()

	pipeline := importer.New(st, importer.Options{
		BatchSize:          opts.batchSize,
		DryRun:             !opts.apply,
		AllowNameMatch:     opts.allowNameMatch,
		Kinds:              kinds,
		DefaultCountry:     opts.country,
		WarnLowDownPayment: opts.warnLowDownPayment,
	}, log)

	runID := uuid.New()
	log.WithField("run_id", runID).Info("import run starting")

	summary, err := pipeline.Run(ctx, set)
	summary.RunID = runID.String()
	if err != nil {
		var se *importer.SourceError
		if as(err, &se) {
			return withCode(exitValidation, err)
		}
		return withCode(exitDB, err)
	}

	return emitSummary(summary)
}

// emitSummary reports the run outcome. Row-level failures and unresolved
// links are visible in the summary and the log, never in the exit code;
// a non-zero exit means the run itself could not proceed.
func emitSummary(summary report.RunSummary) error {
	summary.Render(os.Stderr)
	return writeJSONLine(summary)
}
