package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/localnerve/nodues/internal/database"
	"github.com/localnerve/nodues/internal/models"
	"github.com/localnerve/nodues/internal/store"
	"github.com/localnerve/nodues/internal/workflow"
	"github.com/spf13/cobra"
)

func newMigrateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the workflow tables",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := database.AutoMigrate(a.db); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "migrated")
			return nil
		},
	}
}

func newDepartmentsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "departments",
		Short: "List the department registry",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return printJSON(cmd, a.departments.All())
		},
	}
}

func newCreateCmd(a *app) *cobra.Command {
	var (
		manual      bool
		departments []string
	)
	cmd := &cobra.Command{
		Use:   "create REGISTRATION_NO",
		Short: "Submit a clearance application",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind := models.EntryStandard
			if manual {
				kind = models.EntryManual
			}
			state, err := a.engine.CreateApplication(cmd.Context(), workflow.CreateInput{
				RegistrationNo: args[0],
				EntryKind:      kind,
				Departments:    departments,
				Actor:          a.actor(),
			})
			if err != nil {
				return err
			}
			return printJSON(cmd, state)
		},
	}
	cmd.Flags().BoolVar(&manual, "manual", false, "Create a manual entry reviewed by an admin")
	cmd.Flags().StringSliceVarP(&departments, "departments", "d", nil, "Departments to clear (default: every active department)")
	return cmd
}

func newStateCmd(a *app) *cobra.Command {
	var byRegistration bool
	cmd := &cobra.Command{
		Use:   "state ID",
		Short: "Show an application with its approvals",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				state *workflow.ApplicationState
				err   error
			)
			if byRegistration {
				state, err = a.engine.GetByRegistration(cmd.Context(), args[0])
			} else {
				state, err = a.engine.GetApplicationState(cmd.Context(), args[0])
			}
			if err != nil {
				return err
			}
			return printJSON(cmd, state)
		},
	}
	cmd.Flags().BoolVarP(&byRegistration, "registration", "r", false, "Treat the argument as a registration number")
	return cmd
}

func parseDecision(s string) (models.ApprovalStatus, error) {
	switch d := models.ApprovalStatus(strings.ToLower(s)); d {
	case models.ApprovalApproved, models.ApprovalRejected:
		return d, nil
	}
	return "", fmt.Errorf("decision must be approved or rejected, got %q", s)
}

func newDecideCmd(a *app) *cobra.Command {
	var remarks, reason string
	cmd := &cobra.Command{
		Use:   "decide ID DEPARTMENT approved|rejected",
		Short: "Record a department decision",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			decision, err := parseDecision(args[2])
			if err != nil {
				return err
			}
			state, err := a.engine.Decide(cmd.Context(), workflow.DecisionInput{
				ApplicationID: args[0],
				Department:    args[1],
				Decision:      decision,
				Actor:         a.actor(),
				Remarks:       remarks,
				Reason:        reason,
			})
			if err != nil {
				return err
			}
			return printJSON(cmd, state)
		},
	}
	cmd.Flags().StringVar(&remarks, "remarks", "", "Free text remarks")
	cmd.Flags().StringVar(&reason, "reason", "", "Rejection reason, required when rejecting")
	return cmd
}

// readIDs returns ids from args, or one per line from r when args is "-".
func readIDs(args []string, r io.Reader) ([]string, error) {
	if len(args) != 1 || args[0] != "-" {
		return args, nil
	}
	var ids []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		if id := strings.TrimSpace(sc.Text()); id != "" && !strings.HasPrefix(id, "#") {
			ids = append(ids, id)
		}
	}
	return ids, sc.Err()
}

func newBulkDecideCmd(a *app) *cobra.Command {
	var department, decisionFlag, remarks, reason string
	cmd := &cobra.Command{
		Use:   "bulk-decide ID... | -",
		Short: "Apply one department decision to many applications",
		Long:  "Each application is decided on its own. Pass - to read ids from stdin, one per line.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			decision, err := parseDecision(decisionFlag)
			if err != nil {
				return err
			}
			ids, err := readIDs(args, cmd.InOrStdin())
			if err != nil {
				return err
			}
			results, err := a.engine.BulkDecide(cmd.Context(), workflow.BulkDecisionInput{
				ApplicationIDs: ids,
				Department:     department,
				Decision:       decision,
				Actor:          a.actor(),
				Remarks:        remarks,
				Reason:         reason,
			})
			if err != nil {
				return err
			}
			failed := 0
			for _, r := range results {
				if !r.OK {
					failed++
				}
			}
			if err := printJSON(cmd, results); err != nil {
				return err
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d decisions failed", failed, len(results))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&department, "department", "", "Deciding department")
	cmd.Flags().StringVar(&decisionFlag, "decision", "", "approved or rejected")
	cmd.Flags().StringVar(&remarks, "remarks", "", "Free text remarks")
	cmd.Flags().StringVar(&reason, "reason", "", "Rejection reason, required when rejecting")
	_ = cmd.MarkFlagRequired("department")
	_ = cmd.MarkFlagRequired("decision")
	return cmd
}

func newReapplyCmd(a *app) *cobra.Command {
	var department string
	cmd := &cobra.Command{
		Use:   "reapply ID MESSAGE",
		Short: "Respond to rejections and reset them to pending",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			state, err := a.engine.Reapply(cmd.Context(), workflow.ReapplyInput{
				ApplicationID: args[0],
				Department:    department,
				Message:       args[1],
				Actor:         a.actor(),
			})
			if err != nil {
				return err
			}
			return printJSON(cmd, state)
		},
	}
	cmd.Flags().StringVar(&department, "department", workflow.AllDepartments, "Rejected department to reset, or ALL")
	return cmd
}

func newManualReviewCmd(a *app) *cobra.Command {
	var reason string
	cmd := &cobra.Command{
		Use:   "manual-review ID approved|rejected",
		Short: "Settle a manual entry",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			state, err := a.engine.ReviewManual(cmd.Context(), workflow.ManualReviewInput{
				ApplicationID: args[0],
				Decision:      models.ManualStatus(strings.ToLower(args[1])),
				Reason:        reason,
				Actor:         a.actor(),
			})
			if err != nil {
				return err
			}
			return printJSON(cmd, state)
		},
	}
	cmd.Flags().StringVar(&reason, "reason", "", "Rejection reason, required when rejecting")
	return cmd
}

func newRetryCertificateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "retry-certificate ID",
		Short: "Queue certificate generation again after a failure",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.cfg.RedisAddr == "" {
				fmt.Fprintln(os.Stderr, "warning: REDIS_ADDR not set, the certificate is reset but not queued")
			}
			state, err := a.engine.RetryCertificate(cmd.Context(), args[0], a.actor())
			if err != nil {
				return err
			}
			return printJSON(cmd, state)
		},
	}
}

func newAuditCmd(a *app) *cobra.Command {
	var department string
	var page, size int
	cmd := &cobra.Command{
		Use:   "audit [ID]",
		Short: "Show audit history, newest first",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			q := workflow.AuditQuery{
				Department: department,
				Page:       store.Page{Number: page, Size: size},
			}
			if len(args) == 1 {
				q.ApplicationID = args[0]
			}
			result, err := a.engine.ListAudit(cmd.Context(), q)
			if err != nil {
				return err
			}
			return printJSON(cmd, result)
		},
	}
	cmd.Flags().StringVar(&department, "department", "", "Department whose history to show")
	cmd.Flags().IntVar(&page, "page", 1, "Page number")
	cmd.Flags().IntVar(&size, "page-size", store.DefaultPageSize, "Entries per page")
	return cmd
}

func newQueueCmd(a *app) *cobra.Command {
	var status string
	var page, size int
	cmd := &cobra.Command{
		Use:   "queue DEPARTMENT",
		Short: "List a department's approval records",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := a.engine.ListApprovals(cmd.Context(), workflow.ApprovalQuery{
				Department: args[0],
				Status:     models.ApprovalStatus(status),
				Page:       store.Page{Number: page, Size: size},
			})
			if err != nil {
				return err
			}
			return printJSON(cmd, result)
		},
	}
	cmd.Flags().StringVar(&status, "status", string(models.ApprovalPending), "pending, approved or rejected; empty for all")
	cmd.Flags().IntVar(&page, "page", 1, "Page number")
	cmd.Flags().IntVar(&size, "page-size", store.DefaultPageSize, "Entries per page")
	return cmd
}
