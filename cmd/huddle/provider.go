package main

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/huddle/internal/config"
	"github.com/ShayCichocki/huddle/pkg/models"
)

var (
	providerID          string
	providerName        string
	providerCategory    string
	providerRating      float64
	providerDescription string
	providerLocation    string
	providerInactive    bool
	providerListFilter  string
)

var providerCmd = &cobra.Command{
	Use:   "provider",
	Short: "Manage the service provider directory",
}

var providerAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add or update a provider",
	Long: `Add a provider to the directory, or update it when --id names an
existing one.

Example:
  huddle provider add --name "Bloom & Co" --category florist --rating 4.8`,
	RunE: runProviderAdd,
}

var providerListCmd = &cobra.Command{
	Use:   "list",
	Short: "List providers by rating",
	RunE:  runProviderList,
}

var providerImportCmd = &cobra.Command{
	Use:   "import <file.yaml>",
	Short: "Load providers from a YAML file",
	Long: `Load providers from a YAML file of the form:

  providers:
    - id: bloom
      name: Bloom & Co
      category: florist
      rating: 4.8
      active: true`,
	Args: cobra.ExactArgs(1),
	RunE: runProviderImport,
}

func init() {
	f := providerAddCmd.Flags()
	f.StringVar(&providerID, "id", "", "Provider id (default generated)")
	f.StringVar(&providerName, "name", "", "Business name")
	f.StringVar(&providerCategory, "category", "", "Service category")
	f.Float64Var(&providerRating, "rating", 0, "Rating, higher is better")
	f.StringVar(&providerDescription, "description", "", "Short profile")
	f.StringVar(&providerLocation, "location", "", "Where they operate")
	f.BoolVar(&providerInactive, "inactive", false, "Exclude from pitches")
	providerAddCmd.MarkFlagRequired("name")
	providerAddCmd.MarkFlagRequired("category")

	providerListCmd.Flags().StringVarP(&providerListFilter, "category", "c", "", "Only this category")

	providerCmd.AddCommand(providerAddCmd)
	providerCmd.AddCommand(providerListCmd)
	providerCmd.AddCommand(providerImportCmd)
}

func runProviderAdd(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	db, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	p := &models.Provider{
		ID:          providerID,
		Name:        providerName,
		Category:    providerCategory,
		Rating:      providerRating,
		Description: providerDescription,
		Location:    providerLocation,
		Active:      !providerInactive,
	}
	if err := db.UpsertProvider(context.Background(), p); err != nil {
		return err
	}
	printStatus("✓", fmt.Sprintf("Saved %s (%s)", p.Name, p.ID), color.FgGreen)
	return nil
}

func runProviderList(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	db, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	providers, err := db.ListProviders(context.Background(), providerListFilter)
	if err != nil {
		return err
	}
	if len(providers) == 0 {
		fmt.Println("No providers.")
		return nil
	}
	for _, p := range providers {
		name := p.Name
		if !p.Active {
			name = color.HiBlackString("%s (inactive)", p.Name)
		}
		fmt.Printf("%-14s %.1f  %s  [%s]\n", p.Category, p.Rating, name, p.ID)
	}
	return nil
}

func runProviderImport(cmd *cobra.Command, args []string) error {
	providers, err := config.LoadProviders(args[0])
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	db, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx := context.Background()
	for i := range providers {
		if err := db.UpsertProvider(ctx, &providers[i]); err != nil {
			return fmt.Errorf("provider %d (%s): %w", i+1, providers[i].Name, err)
		}
	}
	printStatus("✓", fmt.Sprintf("Imported %d provider(s)", len(providers)), color.FgGreen)
	return nil
}
