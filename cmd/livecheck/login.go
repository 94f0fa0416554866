package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"livecheck/internal/auth"
)

var (
	loginAPIKey       string
	loginAccessToken  string
	loginRefreshToken string
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Store credentials for the analysis service",
	Long: `Store credentials for the analysis service. Secrets are sealed with a
key kept in <home>/credentials.key.

Examples:
  livecheck login --api-key lc_abc123
  livecheck login --access-token eyJ... --refresh-token r_456
  echo lc_abc123 | livecheck login`,
	Args: cobra.NoArgs,
	RunE: runLogin,
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Remove stored credentials",
	Args:  cobra.NoArgs,
	RunE:  runLogout,
}

func init() {
	loginCmd.Flags().StringVar(&loginAPIKey, "api-key", "", "Long-lived API key")
	loginCmd.Flags().StringVar(&loginAccessToken, "access-token", "", "Access token (token mode)")
	loginCmd.Flags().StringVar(&loginRefreshToken, "refresh-token", "", "Refresh token (token mode)")
	loginCmd.MarkFlagsMutuallyExclusive("api-key", "access-token")

	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
}

func runLogin(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	switch {
	case loginAccessToken != "":
		if loginRefreshToken == "" {
			return fmt.Errorf("--refresh-token is required with --access-token")
		}
		err = a.creds.SaveTokens(auth.TokenPair{AccessToken: loginAccessToken, RefreshToken: loginRefreshToken})
	default:
		key := loginAPIKey
		if key == "" {
			key, err = readSecret(cmd)
			if err != nil {
				return err
			}
		}
		err = a.creds.SaveAPIKey(key)
	}
	if err != nil {
		return err
	}
	a.logger.Info("Credentials stored")
	a.console.ShowInfo("Credentials stored.")
	return nil
}

func runLogout(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.creds.Clear(); err != nil {
		return err
	}
	a.console.ShowInfo("Credentials removed.")
	return nil
}

// readSecret prompts without echo on a terminal and reads one line otherwise.
func readSecret(cmd *cobra.Command) (string, error) {
	var line string
	if f, ok := cmd.InOrStdin().(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(os.Stderr, "API key: ")
		raw, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", fmt.Errorf("read API key: %w", err)
		}
		line = string(raw)
	} else {
		read, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
		if err != nil && read == "" {
			return "", fmt.Errorf("read API key: %w", err)
		}
		line = read
	}

	key := strings.TrimSpace(line)
	if key == "" {
		return "", fmt.Errorf("no API key given")
	}
	return key, nil
}
