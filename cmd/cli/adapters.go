package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/lensly/catalog-service/internal/adapters/sdk"
	_ "github.com/lensly/catalog-service/internal/adapters/vendoradapters"
)

var (
	scaffoldDir    string
	scaffoldDryRun bool
	scaffoldForce  bool
)

// adaptersCmd groups adapter development commands.
var adaptersCmd = &cobra.Command{
	Use:   "adapters",
	Short: "Develop and validate vendor adapters",
}

var adaptersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered adapters",
	RunE:  runAdaptersList,
}

var adaptersScaffoldCmd = &cobra.Command{
	Use:   "scaffold <slug>",
	Short: "Generate a new adapter stub",
	Long: `Generate a self-registering adapter stub for a vendor slug. The stub
compiles as-is and fails validation until its Transform is filled in.`,
	Example: `  catalog-service adapters scaffold warby-parker
  catalog-service adapters scaffold warby-parker --dry-run`,
	Args: cobra.ExactArgs(1),
	RunE: runAdaptersScaffold,
}

var adaptersValidateCmd = &cobra.Command{
	Use:   "validate [slug]",
	Short: "Validate registered adapters",
	Long: `Check that an adapter is registered under its slug and that its sample
fixture, when present, survives a transform and normalize round trip.
Without a slug every registered adapter is validated.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runAdaptersValidate,
}

func init() {
	rootCmd.AddCommand(adaptersCmd)
	adaptersCmd.AddCommand(adaptersListCmd)
	adaptersCmd.AddCommand(adaptersScaffoldCmd)
	adaptersCmd.AddCommand(adaptersValidateCmd)

	adaptersScaffoldCmd.Flags().StringVar(&scaffoldDir, "dir", "internal/adapters/vendoradapters", "Directory for the generated adapter file")
	adaptersScaffoldCmd.Flags().BoolVar(&scaffoldDryRun, "dry-run", false, "Print the generated file without writing it")
	adaptersScaffoldCmd.Flags().BoolVar(&scaffoldForce, "force", false, "Overwrite an existing adapter file")
}

func runAdaptersList(cmd *cobra.Command, args []string) error {
	slugs := sdk.Default.Slugs()
	if len(slugs) == 0 {
		fmt.Println("no adapters registered")
		return nil
	}
	for _, slug := range slugs {
		fmt.Println(slug)
	}
	return nil
}

func runAdaptersScaffold(cmd *cobra.Command, args []string) error {
	plan, err := sdk.Scaffold(sdk.ScaffoldOptions{
		Slug:   args[0],
		Dir:    scaffoldDir,
		DryRun: scaffoldDryRun,
		Force:  scaffoldForce,
	})
	if err != nil {
		return err
	}

	if scaffoldDryRun {
		fmt.Print(plan.Content)
		return nil
	}
	fmt.Printf("wrote %s\n", plan.Path)
	return nil
}

func runAdaptersValidate(cmd *cobra.Command, args []string) error {
	slugs := sdk.Default.Slugs()
	if len(args) == 1 {
		slugs = []string{args[0]}
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SLUG\tCHECK\tRESULT")

	failed := 0
	for _, slug := range slugs {
		report := sdk.Validate(sdk.Default, slug)
		for _, check := range report.Checks {
			result := "ok"
			if !check.OK {
				result = check.Detail
				failed++
			}
			fmt.Fprintf(w, "%s\t%s\t%s\n", slug, check.Name, result)
		}
	}
	w.Flush()

	if failed > 0 {
		return fmt.Errorf("%d validation checks failed", failed)
	}
	return nil
}
