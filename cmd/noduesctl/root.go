package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"
	"github.com/localnerve/nodues/internal/certificates"
	"github.com/localnerve/nodues/internal/config"
	"github.com/localnerve/nodues/internal/database"
	"github.com/localnerve/nodues/internal/logging"
	"github.com/localnerve/nodues/internal/notify"
	"github.com/localnerve/nodues/internal/registry"
	"github.com/localnerve/nodues/internal/workflow"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

// app holds what the commands share once the root pre-run has connected.
type app struct {
	envFile string
	actorID string
	role    string

	cfg         *config.Config
	log         zerolog.Logger
	db          *gorm.DB
	departments *registry.Registry
	engine      *workflow.Engine
	closers     []func() error
}

func (a *app) actor() workflow.Actor {
	return workflow.Actor{ID: a.actorID, Role: a.role}
}

func (a *app) connect(cmd *cobra.Command) error {
	if a.envFile != "" {
		if err := godotenv.Load(a.envFile); err != nil {
			return fmt.Errorf("load %s: %w", a.envFile, err)
		}
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.log = logging.New(logging.Config{
		Level:       cfg.LogLevel,
		Environment: cfg.Environment,
		ServiceName: "noduesctl",
		Output:      cmd.ErrOrStderr(),
	})

	a.db, err = database.Connect(cfg, a.log)
	if err != nil {
		return err
	}
	a.closers = append(a.closers, func() error { return database.Close(a.db) })

	a.departments, err = registry.Load(cfg)
	if err != nil {
		return err
	}

	opts := []workflow.Option{workflow.WithLogger(a.log)}
	if cfg.NATSURL != "" {
		nc, err := notify.ConnectNATS(cfg.NATSURL, cfg.NATSSubjectPrefix, a.log)
		if err != nil {
			return err
		}
		a.closers = append(a.closers, nc.Close)
		opts = append(opts, workflow.WithPublisher(nc))
	}
	if cfg.RedisAddr != "" {
		redisOpt := certificates.RedisOpt(cfg)
		client := asynq.NewClient(redisOpt)
		inspector := asynq.NewInspector(redisOpt)
		a.closers = append(a.closers, client.Close, inspector.Close)
		opts = append(opts, workflow.WithCertificateTrigger(
			certificates.NewEnqueuer(client, inspector, cfg.CertQueue, a.log)))
	}
	a.engine = workflow.New(a.db, a.departments, opts...)
	return nil
}

func (a *app) close() error {
	var first error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	a.closers = nil
	return first
}

func printJSON(cmd *cobra.Command, v interface{}) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newRootCommand() *cobra.Command {
	a := &app{}
	cmd := &cobra.Command{
		Use:   "noduesctl",
		Short: "No dues clearance administration CLI",
		Long: `noduesctl runs clearance workflow commands directly against the database,
for back office corrections, imports and scripted operations. Every command
goes through the same workflow rules and audit trail as the HTTP API.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.connect(cmd)
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return a.close()
		},
	}
	cmd.PersistentFlags().StringVarP(&a.envFile, "env-file", "f", "", "Load environment variables from this file")
	cmd.PersistentFlags().StringVar(&a.actorID, "actor", defaultActor(), "Actor id recorded in the audit trail")
	cmd.PersistentFlags().StringVar(&a.role, "role", workflow.RoleAdmin, "Actor role: admin, student or department")

	cmd.AddCommand(
		newMigrateCmd(a),
		newDepartmentsCmd(a),
		newCreateCmd(a),
		newStateCmd(a),
		newDecideCmd(a),
		newBulkDecideCmd(a),
		newReapplyCmd(a),
		newManualReviewCmd(a),
		newRetryCertificateCmd(a),
		newAuditCmd(a),
		newQueueCmd(a),
	)
	return cmd
}

func defaultActor() string {
	if u := os.Getenv("USER"); u != "" {
		return "cli:" + u
	}
	return "cli"
}
