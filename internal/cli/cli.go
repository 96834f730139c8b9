package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/denismitr/ladder"
	"github.com/denismitr/ladder/internal/database"
	"github.com/denismitr/ladder/internal/logger"
	"github.com/pkg/errors"
)

var ErrUnknownAction = errors.New("unknown action")

type Action string

const (
	Migrate  Action = "migrate"
	Status   Action = "status"
	Diff     Action = "diff"
	Describe Action = "describe"
	Versions Action = "versions"
	Init     Action = "init"
)

var allActions = []Action{Migrate, Status, Diff, Describe, Versions, Init}

func ParseAction(s string) (Action, error) {
	for _, a := range allActions {
		if strings.EqualFold(string(a), strings.TrimSpace(s)) {
			return a, nil
		}
	}

	return "", errors.Wrapf(ErrUnknownAction, "[%s], expected one of %v", s, allActions)
}

// Params carry the per action arguments taken from the command line
type Params struct {
	Target  string
	Current string
	Version string
}

type handler struct {
	needsDB bool
	run     func(ctx context.Context, r *ladder.Runner, p Params) ([]string, error)
}

type App struct {
	cfg      Config
	printer  logger.Printer
	openers  openerMap
	connect  *database.ConnectOptions
	handlers map[Action]handler
}

// NewApp creates the command line application. The printer receives the
// runner log output.
func NewApp(cfg Config, printer logger.Printer) *App {
	return &App{
		cfg:     cfg.WithDefaults(),
		printer: printer,
		openers: defaultOpeners(),
		connect: database.NewDefaultConnectOptions(),
		handlers: map[Action]handler{
			Migrate:  {needsDB: true, run: runMigrate},
			Status:   {run: runStatus},
			Diff:     {run: runDiff},
			Describe: {run: runDescribe},
			Versions: {run: runVersions},
		},
	}
}

func (a *App) Config() Config {
	return a.cfg
}

// Run executes the action and returns the lines to present to the user
func (a *App) Run(ctx context.Context, act Action, p Params) (lines []string, err error) {
	h, ok := a.handlers[act]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownAction, "[%s] cannot be run", act)
	}

	if err := a.cfg.Validate(h.needsDB); err != nil {
		return nil, err
	}

	opts := []ladder.OptionFunc{
		ladder.UseLocalFolder(a.cfg.Root),
		ladder.UseStateFile(a.cfg.StateFile),
		ladder.UseDatabaseGroup(a.cfg.Group),
	}

	if a.printer != nil {
		if a.cfg.NoColor {
			opts = append(opts, ladder.UseLogger(a.printer, a.cfg.PrintSQL, a.cfg.Debug))
		} else {
			opts = append(opts, ladder.UseColorLogger(a.printer, a.cfg.PrintSQL, a.cfg.Debug))
		}
	}

	if h.needsDB {
		db, closer, connErr := a.openers.connect(ctx, a.cfg.DatabaseURL, a.connect)
		if connErr != nil {
			return nil, connErr
		}

		defer func() {
			if closeErr := closer(); closeErr != nil && err == nil {
				err = closeErr
			}
		}()

		opts = append(opts, ladder.UseDB(db))
	}

	r, err := ladder.NewRunner(opts...)
	if err != nil {
		return nil, err
	}

	return h.run(ctx, r, p)
}

func runMigrate(ctx context.Context, r *ladder.Runner, p Params) ([]string, error) {
	var cfs []ladder.ActionConfigurator
	if p.Target != "" {
		cfs = append(cfs, ladder.WithTarget(p.Target))
	}

	report, err := r.Migrate(ctx, cfs...)
	if err != nil {
		return nil, err
	}

	return []string{report.Message()}, nil
}

func runStatus(_ context.Context, r *ladder.Runner, _ Params) ([]string, error) {
	s, err := r.Status()
	if err != nil {
		return nil, err
	}

	lines := []string{
		fmt.Sprintf("database group: %s", s.Group),
		fmt.Sprintf("current version: %s", s.Current),
		fmt.Sprintf("latest version: %s", s.Latest),
	}

	if s.UpToDate() {
		return append(lines, "up to date"), nil
	}

	return append(lines, fmt.Sprintf("pending: %s", strings.Join(s.Pending.Strings(), ", "))), nil
}

func runDiff(_ context.Context, r *ladder.Runner, p Params) ([]string, error) {
	files, err := r.Diff(p.Current, p.Target)
	if err != nil {
		return nil, err
	}

	if len(files) == 0 {
		return []string{"There is nothing to do!"}, nil
	}

	return files, nil
}

func runDescribe(_ context.Context, r *ladder.Runner, p Params) ([]string, error) {
	d, err := r.Describe(p.Version)
	if err != nil {
		return nil, err
	}

	lines := []string{fmt.Sprintf("version %s", d.Version)}
	for _, f := range d.Up {
		lines = append(lines, "up: "+f)
	}
	for _, f := range d.Down {
		lines = append(lines, "down: "+f)
	}

	return lines, nil
}

func runVersions(_ context.Context, r *ladder.Runner, _ Params) ([]string, error) {
	infos, err := r.Versions()
	if err != nil {
		return nil, err
	}

	lines := make([]string, 0, len(infos))
	for _, vi := range infos {
		mark := " "
		if vi.Applied {
			mark = "*"
		}

		lines = append(lines, fmt.Sprintf("%s %s up:%t down:%t", mark, vi.Version, vi.HasUp, vi.HasDown))
	}

	return lines, nil
}
