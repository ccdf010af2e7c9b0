package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/TFMV/sqlgate/cmd/sqlgate/config"
	"github.com/TFMV/sqlgate/pkg/auth"
	"github.com/TFMV/sqlgate/pkg/handlers"
	"github.com/TFMV/sqlgate/pkg/models"
)

// runWithApp loads configuration, wires the application and hands it to fn.
func runWithApp(cmd *cobra.Command, fn func(ctx context.Context, a *app, r *renderer) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger := setupLogging(cfg.LogLevel)
	logger.Debug().
		Str("version", version).
		Str("commit", commit).
		Str("build_date", buildDate).
		Msg("Starting sqlgate")

	r, err := newRenderer(cmd.OutOrStdout(), cfg.Output)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	return fn(ctx, a, r)
}

func grantsFlag(cmd *cobra.Command) []string {
	grants, _ := cmd.Flags().GetStringSlice("grant")
	return grants
}

func newClassifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "classify <query>",
		Short: "Classify and score a query without executing it",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithApp(cmd, func(ctx context.Context, a *app, r *renderer) error {
				return r.Analysis(a.service.Analyze(ctx, strings.Join(args, " ")))
			})
		},
	}
}

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run <query>",
		Short: "Execute a query if the granted permissions allow it",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithApp(cmd, func(ctx context.Context, a *app, r *renderer) error {
				ctx, perms, err := a.authorize(ctx, viper.GetString("token"), grantsFlag(cmd))
				if err != nil {
					return err
				}

				outcome, err := a.service.Execute(ctx, nil, &models.QueryRequest{
					Query:       strings.Join(args, " "),
					Permissions: perms,
					ExecutionContext: models.ExecutionContext{
						Database: a.cfg.DefaultDatabase,
						Token:    viper.GetString("token"),
					},
				})
				if outcome != nil {
					if rerr := r.Outcome(outcome); rerr != nil {
						return rerr
					}
				}
				return err
			})
		},
	}
}

func newShellCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "shell",
		Short: "Start an interactive query shell",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithApp(cmd, func(ctx context.Context, a *app, r *renderer) error {
				token := viper.GetString("token")
				ctx, perms, err := a.authorize(ctx, token, grantsFlag(cmd))
				if err != nil {
					return err
				}
				sh := newShell(a.service, r, cmd.OutOrStdout(), shellOptions{
					Permissions: perms,
					Database:    a.cfg.DefaultDatabase,
					Databases:   a.cfg.DatabaseNames(),
					Token:       token,
				})
				return sh.Run(ctx)
			})
		},
	}
}

func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent query attempts, most recent first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			clearHistory, _ := cmd.Flags().GetBool("clear")
			return runWithApp(cmd, func(ctx context.Context, a *app, r *renderer) error {
				if clearHistory {
					a.service.ClearHistory(ctx)
					fmt.Fprintln(cmd.OutOrStdout(), "history cleared")
					return nil
				}
				return r.History(a.service.History())
			})
		},
	}
	cmd.Flags().Bool("clear", false, "clear the query history")
	return cmd
}

func newExamplesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "examples",
		Short: "List example statements the granted permissions allow",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			table, _ := cmd.Flags().GetString("table")
			return runWithApp(cmd, func(ctx context.Context, a *app, r *renderer) error {
				_, perms, err := a.authorize(ctx, viper.GetString("token"), grantsFlag(cmd))
				if err != nil {
					return err
				}
				return r.Examples(a.service.Examples(perms, table))
			})
		},
	}
	cmd.Flags().String("table", handlers.DefaultExampleTable, "table name used in the examples")
	return cmd
}

func newTokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a signed token granting permissions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			subject, _ := cmd.Flags().GetString("subject")
			ttl, _ := cmd.Flags().GetDuration("ttl")
			if ttl <= 0 {
				ttl = cfg.Auth.TokenTTL
			}
			return issueToken(cmd, cfg, subject, grantsFlag(cmd), ttl)
		},
	}
	cmd.Flags().String("subject", "", "token subject")
	cmd.Flags().Duration("ttl", 0, "token lifetime (defaults to auth.token_ttl)")
	return cmd
}

func issueToken(cmd *cobra.Command, cfg *config.Config, subject string, grants []string, ttl time.Duration) error {
	if len(grants) == 0 {
		grants = cfg.Permissions
	}
	token, err := auth.IssueToken(authConfig(cfg), subject, grants, ttl)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), token)
	return nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "sqlgate\n")
			fmt.Fprintf(out, "Version:    %s\n", version)
			fmt.Fprintf(out, "Commit:     %s\n", commit)
			fmt.Fprintf(out, "Build Date: %s\n", buildDate)
			fmt.Fprintf(out, "Handlers:   %s\n", strings.Join(handlerNames(), ", "))
		},
	}
}

func handlerNames() []string {
	names := make([]string, 0, len(models.AllQueryKinds))
	for _, kind := range models.AllQueryKinds {
		names = append(names, kind.HandlerName())
	}
	return names
}
