package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"strings"

	users "github.com/goliatone/go-users"
	"github.com/goliatone/go-users/activitymap"
	"github.com/goliatone/go-users/query"
	"github.com/google/uuid"
	"github.com/spf13/cast"
	"github.com/spf13/cobra"
	"github.com/uptrace/bun"
)

type app struct {
	out, errOut io.Writer

	configPath string
	dsn        string

	cfg    *users.FileConfig
	logger users.Logger
	db     *bun.DB
	repo   users.RepositoryManager
	sink   users.ActivitySink
}

func newRootCmd(out, errOut io.Writer) *cobra.Command {
	a := &app{out: out, errOut: errOut}

	root := &cobra.Command{
		Use:           "usersctl",
		Short:         "Manage users from the command line",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup()
		},
		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			if a.db != nil {
				return a.db.Close()
			}
			return nil
		},
	}

	root.SetOut(out)
	root.SetErr(errOut)

	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "path to a TOML config file")
	root.PersistentFlags().StringVar(&a.dsn, "dsn", "", "database DSN, overrides the config file")

	root.AddCommand(
		a.schemaCmd(),
		a.listCmd(),
		a.createCmd(),
		a.deleteCmd(),
	)

	return root
}

func (a *app) setup() error {
	cfg, err := users.LoadConfig(a.configPath)
	if err != nil {
		return err
	}
	if a.dsn != "" {
		cfg.Database.DSN = a.dsn
	}
	a.cfg = cfg

	logger, err := users.NewZapLogger(cfg.GetLogFormat(), cfg.GetLogLevel())
	if err != nil {
		return err
	}
	a.logger = logger

	users.SetPasswordHashCost(cfg.GetPasswordHashCost())

	db, err := users.NewDB(cfg.GetDatabaseDSN())
	if err != nil {
		return err
	}
	a.db = db
	a.repo = users.NewRepositoryManager(db, users.WithUsersLogger(logger))

	a.sink = users.ActivitySinks{
		activitymap.NewWriter(a.errOut, activitymap.WithDefaultChannel("cli")),
		users.NewNotificationSink(cfg, users.LogMailer{Logger: logger}).WithLogger(logger),
	}

	return nil
}

func (a *app) printJSON(v any) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (a *app) schemaCmd() *cobra.Command {
	var apply bool

	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Print or apply the reference schema for the configured database",
		RunE: func(cmd *cobra.Command, _ []string) error {
			dialect := users.DetectDialect(a.cfg.GetDatabaseDSN())

			if !apply {
				ddl, err := users.Schema(dialect)
				if err != nil {
					return err
				}
				_, err = fmt.Fprint(a.out, ddl)
				return err
			}

			stmts, err := users.SchemaStatements(dialect)
			if err != nil {
				return err
			}
			for _, stmt := range stmts {
				if _, err := a.db.ExecContext(contextOf(cmd), stmt); err != nil {
					return err
				}
			}
			a.logger.Info("schema applied", "dialect", dialect, "statements", len(stmts))
			return nil
		},
	}

	cmd.Flags().BoolVar(&apply, "apply", false, "execute the statements instead of printing them")
	return cmd
}

type listFlags struct {
	search   []string
	searchBy []string
	exact    bool
	sortBy   string
	asc      bool
	page     int
	perPage  int
	limit    int
	exclude  []string
	filters  []string
}

func (f listFlags) params() (url.Values, error) {
	params := url.Values{}
	for _, s := range f.search {
		params.Add(query.ParamSearch, s)
	}
	for _, s := range f.searchBy {
		params.Add(query.ParamSearchBy, s)
	}
	if f.exact {
		params.Set(query.ParamSearchExact, "true")
	}
	if f.sortBy != "" {
		params.Set(query.ParamSortBy, f.sortBy)
		params.Set(query.ParamSortDesc, cast.ToString(!f.asc))
	}
	if f.page > 0 {
		params.Set(query.ParamPage, cast.ToString(f.page))
	}
	if f.perPage > 0 {
		params.Set(query.ParamPerPage, cast.ToString(f.perPage))
	}
	if f.limit > 0 {
		params.Set(query.ParamLimit, cast.ToString(f.limit))
	}
	for _, id := range f.exclude {
		params.Add(query.ParamExcludeKey, id)
	}
	for _, filter := range f.filters {
		key, value, ok := strings.Cut(filter, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid filter %q, expected column=value or -column=value", filter)
		}
		if strings.HasPrefix(key, "-") {
			params.Set("-col:"+key[1:], value)
			continue
		}
		params.Set("col:"+key, value)
	}
	return params, nil
}

func (a *app) listCmd() *cobra.Command {
	var f listFlags

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List active users the way the users index does",
		RunE: func(cmd *cobra.Command, _ []string) error {
			params, err := f.params()
			if err != nil {
				return err
			}

			res, err := users.NewListUsersHandler(a.repo, a.cfg).
				WithLogger(a.logger).
				ListUsers(contextOf(cmd), users.SystemActor(), params)
			if err != nil {
				return err
			}
			return a.printJSON(res)
		},
	}

	flags := cmd.Flags()
	flags.StringSliceVarP(&f.search, "search", "s", nil, "search needles")
	flags.StringSliceVar(&f.searchBy, "search-by", nil, "columns to search, relation columns as orders.reference")
	flags.BoolVar(&f.exact, "exact", false, "match needles exactly")
	flags.StringVar(&f.sortBy, "sort-by", "", "sort column")
	flags.BoolVar(&f.asc, "asc", false, "sort ascending")
	flags.IntVar(&f.page, "page", 0, "page number")
	flags.IntVar(&f.perPage, "per-page", 0, "page size, enables pagination")
	flags.IntVar(&f.limit, "limit", 0, "maximum rows when not paginating")
	flags.StringSliceVar(&f.exclude, "exclude", nil, "user ids to leave out")
	flags.StringArrayVar(&f.filters, "filter", nil, "column=value equality filter, -column=value to negate")

	return cmd
}

func (a *app) createCmd() *cobra.Command {
	var (
		msg      users.CreateUserMessage
		role     string
		inactive bool
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a user",
		RunE: func(cmd *cobra.Command, _ []string) error {
			msg.Actor = users.SystemActor()
			msg.Role = users.UserRole(role)
			msg.PasswordConfirmation = msg.Password
			if inactive {
				msg.Active = new(bool)
			}

			user, err := users.NewCreateUserHandler(a.repo).
				WithLogger(a.logger).
				WithActivitySink(a.sink).
				Create(contextOf(cmd), msg)
			if err != nil {
				return err
			}
			return a.printJSON(user)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&msg.Name, "name", "", "display name")
	flags.StringVar(&msg.Email, "email", "", "email address")
	flags.StringVar(&msg.Password, "password", "", "initial password")
	flags.StringVar(&role, "role", string(users.RoleUser), "one of user, manager, admin")
	flags.BoolVar(&inactive, "inactive", false, "create the account disabled")
	flags.BoolVar(&msg.UseHashid, "hashid", false, "derive the id from the email")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")

	return cmd
}

func (a *app) deleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid user id %q: %w", args[0], err)
			}

			return users.NewDeleteUserHandler(a.repo).
				WithLogger(a.logger).
				WithActivitySink(a.sink).
				Execute(contextOf(cmd), users.DeleteUserMessage{
					Actor:  users.SystemActor(),
					UserID: id,
				})
		},
	}
}

func contextOf(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
