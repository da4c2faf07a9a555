package main

import (
	"fmt"
	"sort"

	"charm.land/lipgloss/v2"
	"charm.land/lipgloss/v2/table"
	"github.com/spf13/cobra"

	"github.com/harunnryd/sekimori/internal/approval"
)

var approvalsCmd = &cobra.Command{
	Use:   "approvals",
	Short: "List approval tickets",
	Long:  `Shows the gateway's approval tickets, pending first, newest first.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		pendingOnly, _ := cmd.Flags().GetBool("pending")

		tickets, err := approval.ReadTickets(cfg.Daemon.StateDir)
		if err != nil {
			return fmt.Errorf("read tickets: %w", err)
		}

		rows := make([]approval.Ticket, 0, len(tickets))
		for _, t := range tickets {
			if pendingOnly && t.Status != approval.StatusPending {
				continue
			}
			rows = append(rows, t)
		}
		if len(rows) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No approval tickets found")
			return nil
		}

		sort.Slice(rows, func(i, j int) bool {
			if (rows[i].Status == approval.StatusPending) != (rows[j].Status == approval.StatusPending) {
				return rows[i].Status == approval.StatusPending
			}
			return rows[i].CreatedAt.After(rows[j].CreatedAt)
		})

		fmt.Fprintln(cmd.OutOrStdout(), renderTickets(rows))
		return nil
	},
}

func renderTickets(tickets []approval.Ticket) string {
	purple := lipgloss.Color("99")
	gray := lipgloss.Color("245")
	lightGray := lipgloss.Color("241")

	headerStyle := lipgloss.NewStyle().Foreground(purple).Bold(true).Align(lipgloss.Center).Padding(0, 1)
	oddRowStyle := lipgloss.NewStyle().Foreground(gray).Padding(0, 1)
	evenRowStyle := lipgloss.NewStyle().Foreground(lightGray).Padding(0, 1)

	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(purple)).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return headerStyle
			case row%2 == 0:
				return evenRowStyle
			default:
				return oddRowStyle
			}
		}).
		Headers("ID", "Tool", "Channel", "Status", "Reason", "Created")

	for _, ticket := range tickets {
		t.Row(
			ticket.ID,
			truncateString(ticket.Tool, 16),
			ticket.ChannelID,
			string(ticket.Status),
			truncateString(ticket.Reason, 24),
			ticket.CreatedAt.Format("2006-01-02 15:04:05"),
		)
	}

	return t.String()
}

func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}

func init() {
	rootCmd.AddCommand(approvalsCmd)
	approvalsCmd.Flags().Bool("pending", false, "Show only pending tickets")
}
