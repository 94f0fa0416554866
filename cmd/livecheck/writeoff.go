package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"livecheck/internal/scan"
)

var (
	writeOffReason  string
	writeOffComment string
)

var writeOffCmd = &cobra.Command{
	Use:   "writeoff",
	Short: "Manage write-off requests",
}

var writeOffRequestCmd = &cobra.Command{
	Use:   "request <file> <issue-id>",
	Short: "Request a write-off for an issue",
	Long: `Ask for an issue in a scanned file to be written off. The issue id is the
one shown in json output.

Examples:
  livecheck writeoff request main.go 6f1c --reason "false positive"`,
	Args: cobra.ExactArgs(2),
	RunE: runWriteOffRequest,
}

var writeOffWithdrawCmd = &cobra.Command{
	Use:   "withdraw <issue-id>",
	Short: "Forget a local write-off request",
	Args:  cobra.ExactArgs(1),
	RunE:  runWriteOffWithdraw,
}

var writeOffStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "List local write-off requests",
	Args:  cobra.NoArgs,
	RunE:  runWriteOffStatus,
}

var writeOffReasonsCmd = &cobra.Command{
	Use:   "reasons",
	Short: "List the write-off reasons last fetched from the service",
	Args:  cobra.NoArgs,
	RunE:  runWriteOffReasons,
}

func init() {
	writeOffRequestCmd.Flags().StringVar(&writeOffReason, "reason", "", "Write-off reason (required)")
	writeOffRequestCmd.Flags().StringVar(&writeOffComment, "comment", "", "Optional comment for the reviewer")
	_ = writeOffRequestCmd.MarkFlagRequired("reason")

	writeOffCmd.AddCommand(writeOffRequestCmd)
	writeOffCmd.AddCommand(writeOffWithdrawCmd)
	writeOffCmd.AddCommand(writeOffStatusCmd)
	writeOffCmd.AddCommand(writeOffReasonsCmd)
	rootCmd.AddCommand(writeOffCmd)
}

func runWriteOffRequest(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	st, err := a.wo.Request(cmd.Context(), args[0], args[1], writeOffReason, writeOffComment)
	if err != nil {
		return err
	}
	return printResponse(st)
}

func runWriteOffWithdraw(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.wo.Withdraw(cmd.Context(), args[0]); err != nil {
		return err
	}
	a.console.ShowInfo(fmt.Sprintf("Write-off for %s withdrawn", args[0]))
	return nil
}

func runWriteOffStatus(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	entries, err := a.wo.Statuses()
	if err != nil {
		return err
	}
	return printResponse(entries)
}

func runWriteOffReasons(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	reasons := []string{}
	if _, err := a.store.GetUserData(scan.KeyWriteOffReasons, &reasons); err != nil {
		return err
	}
	return printResponse(reasons)
}
