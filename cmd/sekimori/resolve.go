package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/harunnryd/sekimori/internal/approval"
)

// resolveCmd settles a pending ticket from outside the daemon process. The
// daemon's coordinator picks the record up on its next poll.
var resolveCmd = &cobra.Command{
	Use:   "resolve <ticket-id>",
	Short: "Approve or deny a pending ticket from the command line",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ticketID := args[0]
		deny, _ := cmd.Flags().GetBool("deny")
		reason, _ := cmd.Flags().GetString("reason")
		decider, _ := cmd.Flags().GetString("as")
		editedInput, _ := cmd.Flags().GetString("input")

		mailbox, err := approval.NewMailbox(cfg.Daemon.StateDir)
		if err != nil {
			return fmt.Errorf("open mailbox: %w", err)
		}

		rec := approval.Record{Approved: !deny, Reason: reason, Decider: decider}
		if deny && reason == "" {
			rec.Reason = approval.ReasonDeniedByUser
		}
		if editedInput != "" {
			if !json.Valid([]byte(editedInput)) {
				return fmt.Errorf("edited input is not valid JSON")
			}
			rec.EditedInput = json.RawMessage(editedInput)
		}

		if err := mailbox.Deposit(ticketID, rec); err != nil {
			return fmt.Errorf("deposit resolution: %w", err)
		}

		verb := "approved"
		if deny {
			verb = "denied"
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Ticket %s %s\n", ticketID, verb)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(resolveCmd)
	resolveCmd.Flags().Bool("deny", false, "Deny instead of approve")
	resolveCmd.Flags().String("reason", "", "Reason recorded with the resolution")
	resolveCmd.Flags().String("as", "cli", "Decider identity recorded with the resolution")
	resolveCmd.Flags().String("input", "", "Replacement tool input JSON (approve only)")
}
