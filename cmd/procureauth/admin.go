package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/MrEthical07/procureauth/password"
	"github.com/MrEthical07/procureauth/store"
	"github.com/spf13/cobra"
)

var (
	flagJSON   bool
	flagDryRun bool
)

var hashPasswordCmd = &cobra.Command{
	Use:   "hash-password [password]",
	Short: "Print a bcrypt hash for seeding an account",
	Long: `Print a bcrypt (cost 10) hash of the password argument. With no
argument, or "-", the password is read from the first line of stdin.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		plaintext := ""
		if len(args) == 1 && args[0] != "-" {
			plaintext = args[0]
		} else {
			line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
			if err != nil && err != io.EOF {
				return fmt.Errorf("reading password: %w", err)
			}
			plaintext = strings.TrimRight(line, "\r\n")
		}
		if plaintext == "" {
			return fmt.Errorf("password must not be empty")
		}

		h, err := password.NewHasher(password.Config{Algorithm: password.AlgorithmBcrypt, BcryptCost: 10})
		if err != nil {
			return err
		}
		hash, err := h.Hash(plaintext)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), hash)
		return nil
	},
}

var mfaStatusCmd = &cobra.Command{
	Use:   "mfa-status",
	Short: "List the MFA state of every account",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, closeDB, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer closeDB()

		rows, err := s.ListMFAStatus(cmd.Context())
		if err != nil {
			return fmt.Errorf("listing mfa status: %w", err)
		}
		if flagJSON {
			return writeJSON(cmd.OutOrStdout(), rows)
		}
		printMFATable(cmd.OutOrStdout(), rows)
		return nil
	},
}

var mfaDisableCmd = &cobra.Command{
	Use:   "mfa-disable <login_id>",
	Short: "Remove an account's MFA enrollment and recovery codes",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, closeDB, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer closeDB()

		if err := s.DisableMFAByLoginID(cmd.Context(), args[0]); err != nil {
			return fmt.Errorf("disabling mfa for %s: %w", args[0], err)
		}
		log.Info("mfa disabled by operator", map[string]interface{}{"login_id": args[0]})
		fmt.Fprintf(cmd.OutOrStdout(), "MFA disabled for %s\n", args[0])
		return nil
	},
}

var migrateAccountsCmd = &cobra.Command{
	Use:   "migrate-accounts",
	Short: "Copy legacy employee accounts into the login account table",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, closeDB, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer closeDB()

		report, err := s.MigrateLegacyAccounts(cmd.Context(), flagDryRun)
		if err != nil {
			return fmt.Errorf("migrating accounts: %w", err)
		}
		if flagJSON {
			return writeJSON(cmd.OutOrStdout(), report)
		}
		printMigration(cmd.OutOrStdout(), report)
		return nil
	},
}

func init() {
	mfaStatusCmd.Flags().BoolVar(&flagJSON, "json", false, "Output as JSON")
	migrateAccountsCmd.Flags().BoolVar(&flagJSON, "json", false, "Output as JSON")
	migrateAccountsCmd.Flags().BoolVar(&flagDryRun, "dry-run", false, "Report what would be copied without writing")

	rootCmd.AddCommand(hashPasswordCmd, mfaStatusCmd, mfaDisableCmd, migrateAccountsCmd)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printMFATable(out io.Writer, rows []store.MFAStatusRow) {
	if len(rows) == 0 {
		fmt.Fprintln(out, "No accounts found.")
		return
	}
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "LOGIN\tMFA\tSECRET\tRECOVERY CODES\tLAST USED")
	for _, r := range rows {
		enabled := "off"
		if r.Enabled {
			enabled = "on"
		}
		secret := "-"
		if r.HasSecret {
			secret = "set"
		}
		lastUsed := "-"
		if r.LastUsedAt != nil {
			lastUsed = r.LastUsedAt.UTC().Format(time.RFC3339)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n", r.LoginID, enabled, secret, r.RecoveryCodesRemaining, lastUsed)
	}
	_ = w.Flush()
}

func printMigration(out io.Writer, r store.MigrationReport) {
	verb := "Migrated"
	if r.DryRun {
		verb = "Would migrate"
	}
	fmt.Fprintf(out, "%s %d account(s), skipped %d already present.\n", verb, len(r.Migrated), len(r.Skipped))
	for _, code := range r.Migrated {
		fmt.Fprintf(out, "  + %s\n", code)
	}
	for _, code := range r.Skipped {
		fmt.Fprintf(out, "  = %s\n", code)
	}
}
