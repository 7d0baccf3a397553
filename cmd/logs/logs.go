package logs

import (
	"fmt"

	"handv-deploy/cmd/root"
	"handv-deploy/internal/config"
	"handv-deploy/services"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

var (
	lines  int
	follow bool
)

func init() {
	root.RootCmd.AddCommand(Cmd)
	Cmd.Flags().SortFlags = false
	Cmd.Flags().IntVarP(&lines, "lines", "n", 50, "number of lines to show, 0 for the whole file")
	Cmd.Flags().BoolVarP(&follow, "follow", "f", false, "keep printing appended output")
}

var Cmd = &cobra.Command{
	Use:   "logs <service>",
	Short: "Show the output log of a service",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		logService := services.NewLogService(afero.NewOsFs(), config.App())
		tail, err := logService.Tail(args[0], lines)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		for _, line := range tail {
			fmt.Fprintln(out, line)
		}
		if !follow {
			return nil
		}
		return logService.Follow(cmd.Context(), args[0], out)
	},
}
