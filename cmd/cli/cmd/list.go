package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/picogrid/hexfleet/pkg/logger"
	"github.com/picogrid/hexfleet/pkg/simulation"
	"github.com/picogrid/hexfleet/pkg/utils"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List available simulations",
	Long:  `List all available simulations with their descriptions`,
	RunE:  listSimulations,
}

func listSimulations(cmd *cobra.Command, args []string) error {
	simInfos, err := utils.DiscoverSimulations()
	if err != nil {
		return fmt.Errorf("failed to discover simulations: %w", err)
	}

	if len(simInfos) == 0 {
		fmt.Println("No simulations found")
		return nil
	}

	table := logger.NewTable("NAME", "VERSION", "CATEGORY", "PARAMS", "DESCRIPTION")
	for _, info := range simInfos {
		name := info.Config.Name
		if !simulation.DefaultRegistry.Has(name) {
			name += " (not built)"
		}
		table.AddRow(
			name,
			info.Config.Version,
			info.Config.Category,
			fmt.Sprint(len(info.Config.Parameters)),
			info.Config.Description,
		)
	}
	table.Fprint(os.Stdout)
	return nil
}
