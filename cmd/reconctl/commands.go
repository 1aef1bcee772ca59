package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/viban-reconciler/internal/domain/shared"
	"github.com/viban-reconciler/internal/reconciliation/service"
)

func pollCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "poll",
		Short: "Run one polling recovery pass over every segregated account",
		RunE: withRuntime(func(ctx context.Context, r *runtime, cmd *cobra.Command, _ []string) error {
			ctx, cancel := context.WithTimeout(ctx, r.cfg.Polling.Timeout)
			defer cancel()

			result, err := r.jobs.Polling.Poll(ctx)
			fmt.Fprintf(cmd.OutOrStdout(), "recovered=%d unresolved=%d skipped=%d\n",
				result.Recovered, result.Unresolved, result.Skipped)
			return err
		}),
	}
}

func validateBalancesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate-balances",
		Short: "Compare provider balances with the sum of virtual IBAN balances",
		RunE: withRuntime(func(ctx context.Context, r *runtime, cmd *cobra.Command, _ []string) error {
			ctx, cancel := context.WithTimeout(ctx, r.cfg.BalanceValidation.Timeout)
			defer cancel()

			snapshots, err := r.jobs.Balance.ValidateAll(ctx)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			invalid := 0
			for _, s := range snapshots {
				status := "OK"
				if !s.IsValid {
					status = "MISMATCH"
					invalid++
				}
				fmt.Fprintf(out, "%-24s %s provider=%s local=%s difference=%s %s\n",
					s.SegregatedAccountID,
					s.Currency,
					shared.FormatMinor(s.ProviderTotal, s.Currency),
					shared.FormatMinor(s.LocalTotal, s.Currency),
					shared.FormatMinor(s.Difference, s.Currency),
					status,
				)
			}

			if skipped := len(r.cfg.SegregatedAccounts) - len(snapshots); skipped > 0 {
				fmt.Fprintf(out, "%d segregated account(s) could not be validated, see the audit log\n", skipped)
			}
			if invalid > 0 {
				return fmt.Errorf("%d segregated account(s) out of tolerance", invalid)
			}
			return nil
		}),
	}
}

func expireTopUpsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "expire-topups",
		Short: "Expire PENDING top-up requests past their expiry",
		RunE: withRuntime(func(ctx context.Context, r *runtime, cmd *cobra.Command, _ []string) error {
			if err := r.jobs.Expiry.Run(ctx); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "expiry sweep completed")
			return nil
		}),
	}
}

func resolveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "resolve [provider-transaction-id]",
		Short: "Apply an operator decision to a HELD_VOP or UNMATCHED payment",
		Args:  cobra.ExactArgs(1),
		RunE: withRuntime(func(ctx context.Context, r *runtime, cmd *cobra.Command, args []string) error {
			resolve, err := parseResolveFlags(cmd, args[0])
			if err != nil {
				return err
			}

			outcome, err := r.pipeline.Resolution.Resolve(ctx, resolve)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s match_type=%s reconciled=%t %s\n",
				outcome.TransactionID, outcome.MatchType, outcome.Reconciled, outcome.Message)
			return nil
		}),
	}

	cmd.Flags().String("topup", "", "Top-up request id to credit")
	cmd.Flags().String("order", "", "Order id to mark as paid")
	cmd.Flags().StringP("operator", "o", "", "Operator taking the decision")
	cmd.Flags().StringP("reason", "r", "", "Reason recorded in the audit trail")
	_ = cmd.MarkFlagRequired("operator")
	_ = cmd.MarkFlagRequired("reason")

	return cmd
}

func parseResolveFlags(cmd *cobra.Command, transactionID string) (service.ResolveCommand, error) {
	operator, _ := cmd.Flags().GetString("operator")
	reason, _ := cmd.Flags().GetString("reason")
	resolve := service.ResolveCommand{
		ProviderTransactionID: transactionID,
		Operator:              operator,
		Reason:                reason,
	}

	topUp, _ := cmd.Flags().GetString("topup")
	orderID, _ := cmd.Flags().GetString("order")
	if (topUp == "") == (orderID == "") {
		return resolve, errors.New("exactly one of --topup or --order is required")
	}

	if topUp != "" {
		id, err := uuid.Parse(topUp)
		if err != nil {
			return resolve, fmt.Errorf("invalid --topup: %w", err)
		}
		resolve.TopUpRequestID = &id
	}
	if orderID != "" {
		id, err := uuid.Parse(orderID)
		if err != nil {
			return resolve, fmt.Errorf("invalid --order: %w", err)
		}
		resolve.OrderID = &id
	}

	return resolve, nil
}
