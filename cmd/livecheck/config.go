package main

import (
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"livecheck/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage livecheck configuration",
	Long:  "View and change configuration stored in <home>/config.toml. LIVECHECK_* environment variables override file values.",
}

var configGetCmd = &cobra.Command{
	Use:   "get [key]",
	Short: "Show one value, or every value when no key is given",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runConfigGet,
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Change a value and save the configuration",
	Long: `Change a value and save the configuration.

Examples:
  livecheck config set server.baseURL https://livecheck.example.com
  livecheck config set scan.onlyBlockers true
  livecheck config set scan.informationalIssueTypes todo,style`,
	Args: cobra.ExactArgs(2),
	RunE: runConfigSet,
}

func init() {
	configCmd.AddCommand(configGetCmd)
	configCmd.AddCommand(configSetCmd)
	rootCmd.AddCommand(configCmd)
}

type configValue struct {
	Key   string `json:"key" yaml:"key"`
	Value any    `json:"value" yaml:"value"`
}

func runConfigGet(cmd *cobra.Command, args []string) error {
	dir, err := storageDir()
	if err != nil {
		return err
	}

	keys := config.Keys()
	if len(args) == 1 {
		keys = args
	}
	sort.Strings(keys)

	values := make([]configValue, 0, len(keys))
	for _, key := range keys {
		v, err := config.GetValue(dir, key)
		if err != nil {
			return err
		}
		values = append(values, configValue{Key: key, Value: v})
	}

	if formatFlag == string(FormatHuman) {
		for _, v := range values {
			fmt.Fprintf(os.Stdout, "%s = %v\n", v.Key, v.Value)
		}
		return nil
	}
	return printResponse(values)
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	dir, err := storageDir()
	if err != nil {
		return err
	}
	if _, err := config.SetValue(dir, args[0], args[1]); err != nil {
		return err
	}

	// the stored override wins over the file, so drop it and republish
	if args[0] == "scan.onlyBlockers" {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()
		if err := a.orch.SetOnlyBlockers(nil); err != nil {
			return err
		}
	}
	fmt.Fprintf(os.Stdout, "%s = %s\n", args[0], args[1])
	return nil
}
