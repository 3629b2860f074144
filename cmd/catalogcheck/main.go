package main

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kirillkom/filing-assembler/internal/core/catalog"
	"github.com/kirillkom/filing-assembler/internal/core/domain"
)

var jsonOutput bool

type lintResult struct {
	OK           bool     `json:"ok"`
	Source       string   `json:"source"`
	Version      string   `json:"version,omitempty"`
	Jurisdiction string   `json:"jurisdiction,omitempty"`
	Forums       []string `json:"forums,omitempty"`
	Profiles     int      `json:"profiles,omitempty"`
	Rules        int      `json:"rules,omitempty"`
	Error        string   `json:"error,omitempty"`
}

func main() {
	rootCmd := &cobra.Command{
		Use:          "catalogcheck",
		Short:        "Validate and inspect compilation rule catalogs",
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().BoolVarP(&jsonOutput, "json", "j", false, "Output as JSON")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "lint [catalog.yaml]",
		Short: "Check a catalog for integrity violations (embedded catalog when no path is given)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := pathArg(args)
			result := lintResult{OK: true, Source: sourceName(path)}

			cat, err := catalog.LoadFile(path)
			if err != nil {
				result.OK = false
				result.Error = err.Error()
				report(result)
				return fmt.Errorf("catalog %s is invalid", result.Source)
			}
			result.Version = cat.Version()
			result.Jurisdiction = cat.Jurisdiction()
			result.Forums = cat.Forums()
			result.Profiles = len(cat.Profiles())
			result.Rules = len(cat.RuleIDs())
			report(result)
			return nil
		},
	})

	var forum string
	profilesCmd := &cobra.Command{
		Use:   "profiles [catalog.yaml]",
		Short: "List compilation profiles and their rules",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := catalog.LoadFile(pathArg(args))
			if err != nil {
				return err
			}
			var profiles []domain.CompilationProfile
			for _, p := range cat.Profiles() {
				if forum == "" || p.Forum == forum {
					profiles = append(profiles, p)
				}
			}
			if jsonOutput {
				printJSON(profiles)
				return nil
			}
			for _, p := range profiles {
				ids := p.RuleIDs()
				sort.Strings(ids)
				fmt.Printf("%s\t%s\t%s\n", p.ProfileID, p.Forum, p.Title)
				fmt.Printf("\trules: %s\n", strings.Join(ids, ", "))
				if p.Deadline != nil {
					fmt.Printf("\tdeadline: %d days %s %s\n", p.Deadline.Days, p.Deadline.Direction, p.Deadline.ReferenceField)
				}
			}
			return nil
		},
	}
	profilesCmd.Flags().StringVar(&forum, "forum", "", "Only list profiles of this forum")
	rootCmd.AddCommand(profilesCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// pathArg falls back to CATALOG_PATH, then to the embedded catalog.
func pathArg(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return os.Getenv("CATALOG_PATH")
}

func sourceName(path string) string {
	if strings.TrimSpace(path) == "" {
		return "embedded"
	}
	return path
}

func report(result lintResult) {
	if jsonOutput {
		printJSON(result)
		return
	}
	if !result.OK {
		fmt.Fprintf(os.Stderr, "FAIL %s: %s\n", result.Source, result.Error)
		return
	}
	fmt.Printf("OK %s: version %s, %d profiles across %s, %d rules\n",
		result.Source, result.Version, result.Profiles, strings.Join(result.Forums, ", "), result.Rules)
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}
