package main

import (
	"github.com/spf13/cobra"

	"livecheck/internal/scan"
)

var scanCmd = &cobra.Command{
	Use:   "scan <file>...",
	Short: "Analyze files and print diagnostics",
	Long: `Send each file to the analysis service, cache the result and print the
diagnostics. Press Ctrl-C to stop waiting; a late result is dropped.

Examples:
  livecheck scan main.go
  livecheck scan --format json internal/*.go`,
	Args: cobra.MinimumNArgs(1),
	RunE: runScan,
}

var restoreCmd = &cobra.Command{
	Use:   "restore",
	Short: "Print diagnostics for every cached result",
	Args:  cobra.NoArgs,
	RunE:  runRestore,
}

var showCmd = &cobra.Command{
	Use:   "show <file>",
	Short: "Print cached diagnostics for a file",
	Long: `Print the cached diagnostics for a file, as when it becomes the active
document in an editor. With scan.autoScanOnOpen set, an uncached file is
scanned.`,
	Args: cobra.ExactArgs(1),
	RunE: runShow,
}

func init() {
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(restoreCmd)
	rootCmd.AddCommand(showCmd)
}

func runScan(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	results := make([]*scan.Result, 0, len(args))
	for _, path := range args {
		res, err := a.orch.Scan(cmd.Context(), path)
		if err != nil {
			return shownError{err}
		}
		results = append(results, res)
		if res.Outcome == scan.Cancelled {
			break
		}
	}
	return printResponse(results)
}

func runRestore(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	n, err := a.orch.Restore(cmd.Context())
	if err != nil {
		return shownError{err}
	}
	return printResponse(&countResponse{Action: "restored", Count: n})
}

func runShow(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	doc, err := a.console.OpenDocument(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	a.console.SetActive(doc)
	res, err := a.orch.ActiveDocumentChanged(cmd.Context(), doc)
	if err != nil {
		return shownError{err}
	}
	if res == nil {
		a.console.ShowInfo(doc.Path + " has not been scanned (try: livecheck scan " + args[0] + ")")
		return nil
	}
	return printResponse([]*scan.Result{res})
}
