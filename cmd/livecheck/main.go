package main

import (
	"errors"
	"fmt"
	"os"
)

// shownError marks an error the console has already shown to the user.
type shownError struct{ err error }

func (e shownError) Error() string { return e.err.Error() }
func (e shownError) Unwrap() error { return e.err }

func main() {
	if err := rootCmd.Execute(); err != nil {
		var shown shownError
		if !errors.As(err, &shown) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}
