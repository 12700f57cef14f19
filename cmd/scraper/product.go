package main

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aluiziolira/go-scrape-catalog/config"
	"github.com/aluiziolira/go-scrape-catalog/models"
)

func newProductCmd(cfg *config.Config) *cobra.Command {
	var save bool

	cmd := &cobra.Command{
		Use:   "product <product-url>",
		Short: "Extract one product page and print it as JSON",
		Long: "Without --save nothing is written and the structured result is printed.\n" +
			"With --save the product goes through the full pipeline and its outcome\n" +
			"is printed instead.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")

			if save {
				out := a.pipeline.ScrapeURL(cmd.Context(), args[0])
				if err := enc.Encode(out); err != nil {
					return err
				}
				if out.Status == models.StatusFailed {
					return fmt.Errorf("scrape %s: %s", args[0], out.Reason)
				}
				return nil
			}

			result := a.pipeline.Lookup(cmd.Context(), args[0])
			if err := enc.Encode(result); err != nil {
				return err
			}
			if !result.Success {
				return errors.New(result.Error)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&save, "save", false, "Write the product to the output tree")
	return cmd
}
