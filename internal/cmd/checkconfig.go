package cmd

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/xaenox/mailsift/internal/models"
	"github.com/xaenox/mailsift/internal/provider"
	"github.com/xaenox/mailsift/pkg/config"
)

var checkConfigCmd = &cobra.Command{
	Use:   "check-config",
	Short: "Validate the configuration and print the provider bindings",
	RunE:  runCheckConfig,
}

func init() {
	rootCmd.AddCommand(checkConfigCmd)
}

func runCheckConfig(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	registry, err := provider.NewRegistry(cfg.ProviderConfigs(), cfg.TaskBindings(), provider.DefaultFactories())
	if err != nil {
		return err
	}
	return writeReport(cmd.OutOrStdout(), cfg, registry)
}

func writeReport(out io.Writer, cfg *config.Config, registry *provider.Registry) error {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TASK\tPRIMARY\tFALLBACK")
	for _, task := range models.TaskTypes {
		b, err := registry.Resolve(task)
		if err != nil {
			return err
		}
		fallback := "-"
		if b.Fallback != nil {
			fallback = describe(*b.Fallback, task)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", task, describe(b.Primary, task), fallback)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(out, "\nconfidence threshold %.2f, spam threshold %d, content %d/%d/%d\n",
		cfg.Classification.ConfidenceThreshold,
		cfg.Classification.SpamThreshold,
		cfg.Classification.Content.MaxLength,
		cfg.Classification.Content.HeadLength,
		cfg.Classification.Content.TailLength)
	return nil
}

func describe(e provider.Endpoint, task models.TaskType) string {
	return fmt.Sprintf("%s (%s, %s, %d attempts)", e.Config.Name, e.Config.Kind, e.Config.ModelFor(task), e.Config.RetryAttempts)
}
