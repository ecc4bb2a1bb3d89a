package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"finamily/categorizer"
	"finamily/database"
	"finamily/importer"
	"finamily/middleware"
	"finamily/router"

	"github.com/spf13/cobra"
)

func openStore() (*database.Store, error) {
	if err := database.Init(cfg); err != nil {
		return nil, fmt.Errorf("init database: %w", err)
	}
	return database.NewStore(database.GetDB()), nil
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func importCmd() *cobra.Command {
	var userID, memberID, bankID string
	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Import a CSV or OFX statement for a member and bank",
		Example: `  finamily import --user fam-1 --member m-1 --bank b-1 ~/Downloads/extrato.csv
  finamily import -u fam-1 -m m-1 -b b-1 fatura.ofx`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			if _, err := importer.DetectFormat(path); err != nil {
				return err
			}
			store, err := openStore()
			if err != nil {
				return err
			}

			f, err := os.Open(path)
			if err != nil {
				return err
			}
			defer f.Close()

			summary, err := router.NewImporter(cfg, store, nil).Import(cmd.Context(), importer.Request{
				UserID:   userID,
				MemberID: memberID,
				BankID:   bankID,
				Filename: filepath.Base(path),
				Body:     f,
			})
			if err != nil {
				return err
			}
			return printJSON(cmd, summary)
		},
	}
	cmd.Flags().StringVarP(&userID, "user", "u", "", "family account id")
	cmd.Flags().StringVarP(&memberID, "member", "m", "", "member id")
	cmd.Flags().StringVarP(&bankID, "bank", "b", "", "bank id")
	_ = cmd.MarkFlagRequired("user")
	_ = cmd.MarkFlagRequired("member")
	_ = cmd.MarkFlagRequired("bank")
	return cmd
}

func rulesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Inspect categorization rules",
	}

	var userID string
	var all bool
	testCmd := &cobra.Command{
		Use:   "test <description>",
		Short: "Show which active rule would categorize a description",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore()
			if err != nil {
				return err
			}
			rules, err := store.ActiveRules(cmd.Context(), userID)
			if err != nil {
				return err
			}
			set := categorizer.NewRuleSet(rules)
			if all {
				return printJSON(cmd, matchingRules(set, args[0]))
			}
			r, ok := set.Match(args[0])
			if !ok {
				fmt.Fprintln(cmd.OutOrStdout(), "no rule matches")
				return nil
			}
			return printJSON(cmd, r)
		},
	}
	testCmd.Flags().StringVarP(&userID, "user", "u", "", "family account id")
	testCmd.Flags().BoolVar(&all, "all", false, "list every matching rule in evaluation order, winner first")
	_ = testCmd.MarkFlagRequired("user")

	applyCmd := &cobra.Command{
		Use:   "apply",
		Short: "Apply active rules to uncategorized transactions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := openStore()
			if err != nil {
				return err
			}
			n, err := categorizer.ApplyToUncategorized(cmd.Context(), store, userID)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d transactions categorized\n", n)
			return nil
		},
	}
	applyCmd.Flags().StringVarP(&userID, "user", "u", "", "family account id")
	_ = applyCmd.MarkFlagRequired("user")

	cmd.AddCommand(testCmd, applyCmd)
	return cmd
}

// matchingRules every active rule that matches description, in evaluation
// order. The first entry is the one Match would pick.
func matchingRules(set categorizer.RuleSet, description string) []categorizer.Rule {
	var out []categorizer.Rule
	for _, r := range set.Rules() {
		if r.Matches(description) {
			out = append(out, r)
		}
	}
	return out
}

func tokenCmd() *cobra.Command {
	var ttl time.Duration
	cmd := &cobra.Command{
		Use:   "token <user-id>",
		Short: "Sign a bearer token for local testing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			middleware.InitJWT(cfg)
			if ttl <= 0 {
				ttl = cfg.JWT.ExpireTime
			}
			token, err := middleware.GenerateToken(args[0], ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "token lifetime (default jwt.expire_hours)")
	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		RunE: func(cmd *cobra.Command, _ []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), "finamily", version)
			return nil
		},
	}
}
