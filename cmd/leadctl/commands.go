package main

import (
	"fmt"
	"strings"

	authsvc "leadmarket-backend/internal/application/auth"
	contractorsvc "leadmarket-backend/internal/application/contractors"
	ledgersvc "leadmarket-backend/internal/application/ledger"
	"leadmarket-backend/internal/application/notifications"
	"leadmarket-backend/internal/config"
	"leadmarket-backend/internal/domain"
	"leadmarket-backend/internal/infrastructure/database"
	"leadmarket-backend/internal/pkg/constants"
	"leadmarket-backend/internal/pkg/validation"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

type opener func() (*gorm.DB, *config.Config, error)

type env struct {
	db          *gorm.DB
	ledger      *ledgersvc.Service
	contractors *contractorsvc.Service
}

func connect(open opener) (*env, error) {
	db, cfg, err := open()
	if err != nil {
		return nil, err
	}
	tx := database.NewTxRunner(db, cfg.TxPolicy())
	return &env{
		db:          db,
		ledger:      &ledgersvc.Service{DB: db, Tx: tx},
		contractors: &contractorsvc.Service{DB: db, Tx: tx, Notifier: &notifications.Dispatcher{DB: db}},
	}, nil
}

func newRootCmd(open opener) *cobra.Command {
	root := &cobra.Command{
		Use:           "leadctl",
		Short:         "Administer the lead marketplace store",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.AddCommand(
		migrateCmd(open),
		registerContractorCmd(open),
		topUpCmd(open),
		reviewCmd(open, "approve"),
		reviewCmd(open, "reject"),
		reconcileCmd(open),
	)
	return root
}

func migrateCmd(open opener) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update all tables and constraints",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, _, err := open()
			if err != nil {
				return err
			}
			if err := database.AutoMigrate(db); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "migrated")
			return nil
		},
	}
}

func registerContractorCmd(open opener) *cobra.Command {
	var fullname, password string
	cmd := &cobra.Command{
		Use:   "register-contractor EMAIL",
		Short: "Create a contractor user with a pending account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			email := validation.NormalizeEmail(args[0])
			if !validation.IsValidEmail(email) {
				return fmt.Errorf("invalid email %q", args[0])
			}
			if !validation.IsValidFullname(fullname) {
				return fmt.Errorf("invalid name %q", fullname)
			}
			if err := validation.CheckPassword(password); err != nil {
				return err
			}
			e, err := connect(open)
			if err != nil {
				return err
			}
			hash, err := authsvc.HashPassword(password)
			if err != nil {
				return err
			}
			user := &domain.User{Fullname: fullname, Email: email, PasswordHash: hash, Role: constants.Contractor}
			acct, err := e.contractors.SignUp(cmd.Context(), user)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "contractor %s (%s) pending\n", acct.ContractorID, email)
			return nil
		},
	}
	cmd.Flags().StringVar(&fullname, "name", "", "Full name")
	cmd.Flags().StringVar(&password, "password", "", "Initial password")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func topUpCmd(open opener) *cobra.Command {
	var note string
	cmd := &cobra.Command{
		Use:   "topup CONTRACTOR_ID AMOUNT",
		Short: "Credit a contractor balance through the ledger",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid contractor id: %w", err)
			}
			var amount int64
			if _, err := fmt.Sscan(args[1], &amount); err != nil {
				return fmt.Errorf("invalid amount %q", args[1])
			}
			e, err := connect(open)
			if err != nil {
				return err
			}
			entry, err := e.ledger.TopUp(cmd.Context(), id, amount, note)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "balance %d\n", entry.BalanceAfter)
			return nil
		},
	}
	cmd.Flags().StringVar(&note, "note", "", "Reason recorded on the ledger entry")
	return cmd
}

func reviewCmd(open opener, action string) *cobra.Command {
	var text string
	cmd := &cobra.Command{
		Use:   action + " CONTRACTOR_ID",
		Short: strings.ToUpper(action[:1]) + action[1:] + " a pending contractor",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid contractor id: %w", err)
			}
			e, err := connect(open)
			if err != nil {
				return err
			}
			review := e.contractors.Approve
			if action == "reject" {
				review = e.contractors.Reject
			}
			res, err := review(cmd.Context(), id, text)
			if err != nil {
				return err
			}
			if !res.Changed {
				fmt.Fprintf(cmd.OutOrStdout(), "contractor %s already %s\n", id, res.Account.Status)
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "contractor %s %s\n", id, res.Account.Status)
			return nil
		},
	}
	cmd.Flags().StringVar(&text, "note", "", "Review notes or rejection reason")
	return cmd
}

func reconcileCmd(open opener) *cobra.Command {
	var repair bool
	cmd := &cobra.Command{
		Use:   "reconcile [CONTRACTOR_ID]",
		Short: "Compare cached balances with the ledger",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := connect(open)
			if err != nil {
				return err
			}
			var ids []uuid.UUID
			if len(args) == 1 {
				id, err := uuid.Parse(args[0])
				if err != nil {
					return fmt.Errorf("invalid contractor id: %w", err)
				}
				ids = append(ids, id)
			} else if err := e.db.WithContext(cmd.Context()).Model(&domain.ContractorAccount{}).
				Order("created_at").Pluck("contractor_id", &ids).Error; err != nil {
				return err
			}

			drifted := 0
			for _, id := range ids {
				report, err := e.ledger.Reconcile(cmd.Context(), id)
				if err != nil {
					return err
				}
				if report.Drift != 0 && repair {
					if report, err = e.ledger.Recompute(cmd.Context(), id); err != nil {
						return err
					}
				}
				if report.Drift != 0 {
					drifted++
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s cached=%d ledger=%d drift=%d repaired=%t\n",
					report.ContractorID, report.Cached, report.LedgerSum, report.Drift, report.Repaired)
			}
			if drifted > 0 && !repair {
				return fmt.Errorf("%d account(s) drifted; rerun with --repair", drifted)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&repair, "repair", false, "Rewrite drifted cached balances from the ledger")
	return cmd
}
