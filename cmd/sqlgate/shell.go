package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/peterh/liner"

	"github.com/TFMV/sqlgate/pkg/auth"
	"github.com/TFMV/sqlgate/pkg/handlers"
	"github.com/TFMV/sqlgate/pkg/models"
	"github.com/TFMV/sqlgate/pkg/services"
)

const shellPrompt = "sqlgate> "

const shellHelp = `Enter a SQL statement to execute it, or one of:
  .analyze <query>    classify a query without executing it
  .examples [table]   list example statements the granted permissions allow
  .history            show recent query attempts
  .clear              clear the query history
  .grants             show the granted permissions
  .use <database>     switch the target database
  .help               show this help
  .exit, .quit        leave the shell`

type shellOptions struct {
	Permissions models.PermissionSet
	Database    string
	Databases   []string
	Token       string
}

// shell is an interactive read-eval loop over a QueryService. All
// submissions share one session.
type shell struct {
	service services.QueryService
	render  *renderer
	out     io.Writer
	session *services.Session
	opts    shellOptions
}

func newShell(service services.QueryService, r *renderer, out io.Writer, opts shellOptions) *shell {
	return &shell{
		service: service,
		render:  r,
		out:     out,
		session: services.NewSession(),
		opts:    opts,
	}
}

// Run reads lines until .exit, EOF or ctx is done.
func (s *shell) Run(ctx context.Context) error {
	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)

	fmt.Fprintf(s.out, "Connected to %s. Type '.help' for commands.\n", s.opts.Database)

	for {
		if ctx.Err() != nil {
			return nil
		}

		input, err := line.Prompt(shellPrompt)
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) {
				continue
			}
			if errors.Is(err, io.EOF) {
				fmt.Fprintln(s.out)
				return nil
			}
			return fmt.Errorf("failed to read input: %w", err)
		}

		if strings.TrimSpace(input) != "" {
			line.AppendHistory(input)
		}
		if s.handleLine(ctx, input) {
			return nil
		}
	}
}

// handleLine evaluates one line of input and reports whether the shell
// should exit.
func (s *shell) handleLine(ctx context.Context, input string) bool {
	input = strings.TrimSpace(input)
	if input == "" {
		return false
	}
	if !strings.HasPrefix(input, ".") {
		s.execute(ctx, input)
		return false
	}

	command, arg, _ := strings.Cut(input, " ")
	arg = strings.TrimSpace(arg)

	switch command {
	case ".exit", ".quit":
		return true
	case ".help":
		fmt.Fprintln(s.out, shellHelp)
	case ".analyze":
		if arg == "" {
			fmt.Fprintln(s.out, "usage: .analyze <query>")
			return false
		}
		s.report(s.render.Analysis(s.service.Analyze(ctx, arg)))
	case ".examples":
		table := arg
		if table == "" {
			table = handlers.DefaultExampleTable
		}
		s.report(s.render.Examples(s.service.Examples(s.opts.Permissions, table)))
	case ".history":
		s.report(s.render.History(s.service.History()))
	case ".clear":
		s.service.ClearHistory(ctx)
		fmt.Fprintln(s.out, "history cleared")
	case ".grants":
		s.grants(ctx)
	case ".use":
		s.use(arg)
	default:
		fmt.Fprintf(s.out, "unknown command %s, type .help for commands\n", command)
	}
	return false
}

func (s *shell) execute(ctx context.Context, query string) {
	outcome, err := s.service.Execute(ctx, s.session, &models.QueryRequest{
		Query:       query,
		Permissions: s.opts.Permissions,
		ExecutionContext: models.ExecutionContext{
			Database: s.opts.Database,
			Token:    s.opts.Token,
		},
	})
	if outcome != nil {
		s.report(s.render.Outcome(outcome))
	}
	s.report(err)
}

func (s *shell) grants(ctx context.Context) {
	if p, ok := auth.PrincipalFrom(ctx); ok {
		fmt.Fprintf(s.out, "subject: %s\n", p.Subject)
	}
	granted := s.opts.Permissions.Granted()
	if len(granted) == 0 {
		fmt.Fprintln(s.out, "no permissions granted")
		return
	}
	fmt.Fprintf(s.out, "granted: %s\n", strings.Join(granted, ", "))
}

func (s *shell) use(database string) {
	if database == "" {
		fmt.Fprintf(s.out, "current database: %s\n", s.opts.Database)
		return
	}
	for _, name := range s.opts.Databases {
		if name == database {
			s.opts.Database = database
			fmt.Fprintf(s.out, "using %s\n", database)
			return
		}
	}
	fmt.Fprintf(s.out, "unknown database %q, configured: %s\n", database, strings.Join(s.opts.Databases, ", "))
}

func (s *shell) report(err error) {
	if err != nil {
		fmt.Fprintf(s.out, "error: %v\n", err)
	}
}
