package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/jrsteele09/go-priority-dashboard/users"
	"github.com/spf13/cobra"
)

var hashAlgorithm string

var hashPasswordCmd = &cobra.Command{
	Use:   "hash-password [password]",
	Short: "Hash a password for the local users file",
	Long: `Hash a password for use as a value in the local users file.

Without an argument the password is read from the first line of stdin, which keeps
it out of the shell history.

Example:
  priority-dashboard hash-password --algorithm argon2id
  # Output: $argon2id$v=19$m=65536,t=1,p=...`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		password, err := passwordArg(args)
		if err != nil {
			return err
		}
		if err := users.ValidatePasswordStrength(password); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "warning: %v\n", err)
		}

		hash, err := users.HashPassword(password, users.HashAlgorithm(hashAlgorithm))
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), hash)
		return nil
	},
}

func init() {
	hashPasswordCmd.Flags().StringVar(&hashAlgorithm, "algorithm", string(users.HashBcrypt), "hash algorithm: bcrypt or argon2id")
	rootCmd.AddCommand(hashPasswordCmd)
}

func passwordArg(args []string) (string, error) {
	if len(args) == 1 {
		return args[0], nil
	}
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("no password given: %w", err)
	}
	password := strings.TrimRight(line, "\r\n")
	if password == "" {
		return "", fmt.Errorf("password is empty")
	}
	return password, nil
}
