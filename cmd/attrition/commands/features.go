package commands

import (
	"github.com/spf13/cobra"

	"github.com/crimson-sun/attrition/pkg/attrition"
)

func featuresCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "features",
		Short: "Print the feature list and categorical options",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := attrition.New(predictorOptions(cfg)...)
			if err != nil {
				return err
			}
			defer p.Close()

			schema, err := p.Features(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), schema)
		},
	}
	return cmd
}
