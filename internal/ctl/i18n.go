package ctl

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ibcol/portal/internal/translation"
)

func newI18nCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "i18n",
		Short: "Translation catalog tools",
	}

	var (
		defaultLocale string
		locales       []string
	)
	check := &cobra.Command{
		Use:   "check [dir]",
		Short: "Load and validate a locales directory",
		Long: `Load every locale under dir (default ./locales) and check the default
locale against manifest.yaml. Exits non-zero when a required namespace or key
is missing.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "./locales"
			if len(args) == 1 {
				dir = args[0]
			}

			catalog, err := translation.Load(os.DirFS(dir), translation.Options{
				DefaultLocale:    defaultLocale,
				SupportedLocales: locales,
			})
			if err != nil {
				return fmt.Errorf("%s: %w", dir, err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "ok: %s (default %s; locales %s; namespaces %s)\n",
				dir, catalog.DefaultLocale(),
				strings.Join(catalog.SupportedLocales(), ", "),
				strings.Join(catalog.Namespaces(), ", "))
			return nil
		},
	}
	check.Flags().StringVar(&defaultLocale, "default-locale", "en-us", "default locale")
	check.Flags().StringSliceVar(&locales, "locales", []string{"en-us", "zh-hk"}, "supported locales")

	cmd.AddCommand(check)
	return cmd
}
