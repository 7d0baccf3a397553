package nginx

import (
	"fmt"

	"handv-deploy/internal/config"
	"handv-deploy/internal/nginx"

	"github.com/spf13/cobra"
)

var renderCmd = &cobra.Command{
	Use:   "render",
	Short: "Print the nginx site without installing it",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		text, err := nginx.Render(params(cmd, config.App()))
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), text)
		return nil
	},
}
