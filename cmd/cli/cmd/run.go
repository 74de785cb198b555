package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/AlecAivazis/survey/v2"
	"github.com/spf13/cobra"

	"github.com/picogrid/hexfleet/pkg/logger"
	"github.com/picogrid/hexfleet/pkg/notify"
	"github.com/picogrid/hexfleet/pkg/render"
	"github.com/picogrid/hexfleet/pkg/simulation"
	"github.com/picogrid/hexfleet/pkg/utils"

	// Import simulations to register them
	_ "github.com/picogrid/hexfleet/cmd/metro-deliveries"
	_ "github.com/picogrid/hexfleet/cmd/surge-fleet"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a simulation",
	Long:  `Run a simulation interactively or with parameters taken from HEXFLEET_ environment variables`,
	RunE:  runSimulation,
}

func init() {
	runCmd.Flags().StringP("simulation", "s", "", "simulation name to run")
	runCmd.Flags().Int("every", 1, "print every n-th frame to the console")
	runCmd.Flags().Int("max-cells", 10, "cells listed per console frame")
	runCmd.Flags().Bool("quiet", false, "do not print frames to the console")
	runCmd.Flags().String("geojson", "", "append every frame as GeoJSON to this file")
	runCmd.Flags().String("report", "", "write the transition summary as YAML to this file")
}

func runSimulation(cmd *cobra.Command, _ []string) error {
	sim, simConfig, err := selectSimulation(cmd)
	if err != nil {
		return err
	}

	params, err := utils.PromptForParameters(simConfig.Parameters)
	if err != nil {
		return fmt.Errorf("failed to get parameters: %w", err)
	}
	if err := sim.Configure(params); err != nil {
		return fmt.Errorf("failed to configure simulation: %w", err)
	}

	engineCfg, err := engineConfig()
	if err != nil {
		return fmt.Errorf("invalid engine configuration: %w", err)
	}
	logger.Debugf("Engine configuration: %s", engineCfg)

	events := notify.NewEventLog(os.Stdout, engineCfg.EventHistory, colorOff())

	var renderers render.Multi
	if quiet, _ := cmd.Flags().GetBool("quiet"); !quiet {
		every, _ := cmd.Flags().GetInt("every")
		maxCells, _ := cmd.Flags().GetInt("max-cells")
		renderers = append(renderers, render.NewConsole(os.Stdout,
			render.Every(every),
			render.MaxCells(maxCells),
			render.NoColor(colorOff()),
		))
	}
	if path, _ := cmd.Flags().GetString("geojson"); path != "" {
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("failed to create geojson output: %w", err)
		}
		defer func() { _ = f.Close() }()
		renderers = append(renderers, render.NewGeoJSON(f))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	stopOnSignal(sim, cancel)

	logger.LogSection(fmt.Sprintf("Starting %s", sim.Name()))
	err = sim.Run(ctx, simulation.Runtime{
		Engine:   engineCfg,
		Renderer: renderers,
		Notifier: events,
		Logger:   logger.WithPrefix(sim.Name()),
	})
	if err != nil && ctx.Err() == nil {
		return fmt.Errorf("simulation failed: %w", err)
	}

	printSummary(events.Summary())
	if path, _ := cmd.Flags().GetString("report"); path != "" {
		if err := writeReport(events, path); err != nil {
			return err
		}
		logger.Successf("Report written to %s", path)
	}

	logger.Success("Simulation completed successfully")
	return nil
}

// stopOnSignal stops sim and cancels the run on SIGINT or SIGTERM.
func stopOnSignal(sim simulation.Simulation, cancel context.CancelFunc) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		logger.Warn("Received interrupt signal, stopping simulation...")
		if err := sim.Stop(); err != nil {
			logger.Errorf("Failed to stop simulation: %v", err)
		}
		cancel()
	}()
}

func printSummary(s notify.Summary) {
	logger.LogSection("Geofence transitions")
	logger.LogKeyValue("Run", s.RunID)
	logger.LogKeyValue("Duration", s.Duration)
	logger.LogKeyValue("Events", s.Total)
	if len(s.Fences) == 0 {
		return
	}
	table := logger.NewTable("GEOFENCE", "ENTERED", "EXITED")
	for _, f := range s.Fences {
		table.AddRow(f.Geofence, fmt.Sprint(f.Entered), fmt.Sprint(f.Exited))
	}
	table.Print()
}

func writeReport(events *notify.EventLog, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create report: %w", err)
	}
	if err := events.WriteReport(f); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to write report: %w", err)
	}
	return f.Close()
}

// selectSimulation resolves the simulation from the --simulation flag or
// an interactive prompt, together with its descriptor.
func selectSimulation(cmd *cobra.Command) (simulation.Simulation, *simulation.SimulationConfig, error) {
	simInfos, err := utils.DiscoverSimulations()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to discover simulations: %w", err)
	}
	if len(simInfos) == 0 {
		return nil, nil, fmt.Errorf("no simulations found")
	}

	simName, _ := cmd.Flags().GetString("simulation")
	if simName == "" {
		if utils.SkipPrompts() {
			return nil, nil, fmt.Errorf("--simulation is required when prompts are disabled")
		}
		options := make([]string, len(simInfos))
		descriptions := make(map[string]string)
		for i, info := range simInfos {
			options[i] = info.Config.Name
			descriptions[info.Config.Name] = info.Config.Description
		}

		prompt := &survey.Select{
			Message: "Select simulation:",
			Options: options,
			Description: func(value string, index int) string {
				return descriptions[value]
			},
		}
		if err := survey.AskOne(prompt, &simName); err != nil {
			return nil, nil, err
		}
	}

	info, ok := utils.FindSimulation(simInfos, simName)
	if !ok {
		return nil, nil, fmt.Errorf("simulation configuration not found for %s", simName)
	}

	sim, err := simulation.DefaultRegistry.Get(simName)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get simulation: %w", err)
	}
	return sim, &info.Config, nil
}
