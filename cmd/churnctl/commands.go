package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	service "github.com/okian/attrition/internal/app"
	"github.com/okian/attrition/internal/config"
	"github.com/okian/attrition/internal/domain/model"
	"github.com/okian/attrition/pkg/logger"
)

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(cmd.Context())
	if err != nil {
		return nil, err
	}
	if err := logger.Init(
		logger.WithFormat(cfg.LogFormat),
		logger.WithLevel(cfg.LogLevel),
		logger.WithOutput(cmd.ErrOrStderr()),
	); err != nil {
		return nil, fmt.Errorf("initialize logging: %w", err)
	}
	return cfg, nil
}

func initDBCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init-db",
		Short: "Create the audit table if it does not exist",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			store, err := service.OpenStore(ctx, cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			if err := store.Init(ctx); err != nil {
				return err
			}
			n, err := store.Count(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "audit store %s (%s), %d records\n", store.State(), cfg.DBDriver, n)
			return nil
		},
	}
}

func historyCmd() *cobra.Command {
	var (
		limit  int
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show the most recent audit records, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if limit > cfg.MaxHistoryLimit {
				return fmt.Errorf("limit %d above maximum %d", limit, cfg.MaxHistoryLimit)
			}
			ctx := cmd.Context()
			store, err := service.OpenStore(ctx, cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			if err := store.Init(ctx); err != nil {
				return err
			}
			records, err := store.Recent(ctx, limit)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), records)
			}
			return writeHistoryTable(cmd.OutOrStdout(), records)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", config.New().HistoryDefaultLimit, "Maximum records")
	cmd.Flags().BoolVarP(&asJSON, "json", "j", false, "Output as JSON")
	return cmd
}

func scoreCmd() *cobra.Command {
	var (
		file     string
		noRecord bool
	)
	cmd := &cobra.Command{
		Use:   "score",
		Short: "Score a customer profile read from a JSON file or stdin",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			req, err := readRequest(cmd.InOrStdin(), file)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			svc, err := service.FromConfig(ctx, cfg, logger.Get())
			if err != nil {
				return err
			}
			if err := svc.Start(ctx); err != nil {
				_ = svc.Release()
				return err
			}
			defer svc.Stop()

			out := cmd.OutOrStdout()
			if noRecord {
				res, err := svc.Score(ctx, req)
				if err != nil {
					return err
				}
				return writeJSON(out, res)
			}
			outcome, err := svc.Predict(ctx, req)
			if err != nil {
				return err
			}
			if outcome.AuditErr != nil {
				fmt.Fprintln(cmd.ErrOrStderr(), "warning: result not recorded:", outcome.AuditErr)
			}
			return writeJSON(out, scoreOutput{
				Result:   outcome.Result,
				RecordID: outcome.RecordID,
				Recorded: outcome.Recorded,
			})
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "-", "Request file, - for stdin")
	cmd.Flags().BoolVar(&noRecord, "no-record", false, "Score without writing an audit record")
	return cmd
}

func vocabCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "vocab",
		Short: "List the accepted categorical labels",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			vocab := service.New().Vocabulary()
			names := make([]string, 0, len(vocab))
			for name := range vocab {
				names = append(names, name)
			}
			sort.Strings(names)

			out := cmd.OutOrStdout()
			for _, name := range names {
				fmt.Fprintf(out, "%s: %s\n", name, strings.Join(vocab[name], ", "))
			}
			return nil
		},
	}
}

type scoreOutput struct {
	model.Result
	RecordID int64 `json:"record_id,omitempty"`
	Recorded bool  `json:"recorded"`
}

func readRequest(stdin io.Reader, file string) (model.ScoringRequest, error) {
	var r io.Reader = stdin
	if file != "" && file != "-" {
		f, err := os.Open(file)
		if err != nil {
			return model.ScoringRequest{}, err
		}
		defer f.Close()
		r = f
	}

	req, err := model.DecodeRequest(r)
	if err != nil {
		return model.ScoringRequest{}, fmt.Errorf("decode request: %w", err)
	}
	return req, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeHistoryTable(w io.Writer, records []model.AuditRecord) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTIMESTAMP\tAGE\tCARD\tPREDICTION\tCONFIDENCE")
	for _, rec := range records {
		fmt.Fprintf(tw, "%d\t%s\t%d\t%s\t%s\t%.4f\n",
			rec.ID,
			rec.CreatedAt.UTC().Format(time.DateTime),
			rec.Request.CustomerAge,
			rec.Request.CardCategory,
			rec.Result.Label.Stored(),
			rec.Result.Confidence,
		)
	}
	return tw.Flush()
}
