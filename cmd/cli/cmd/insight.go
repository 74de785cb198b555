package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/picogrid/hexfleet/pkg/config"
	"github.com/picogrid/hexfleet/pkg/engine"
	"github.com/picogrid/hexfleet/pkg/insight"
	"github.com/picogrid/hexfleet/pkg/logger"
	"github.com/picogrid/hexfleet/pkg/models"
	"github.com/picogrid/hexfleet/pkg/utils"
)

var insightCmd = &cobra.Command{
	Use:   "insight [delivery-id]",
	Short: "Request an AI route assessment for a delivery",
	Long: `Advance a scenario, then ask the configured insight provider to assess
a delivery using its position, grid metrics and geofence memberships.
Without a provider key a degraded assessment is shown.`,
	Args: cobra.MaximumNArgs(1),
	RunE: requestInsight,
}

func init() {
	insightCmd.Flags().String("scenario", "", "scenario file (default is the built-in metro scenario)")
	insightCmd.Flags().Float64("zoom", 0, "map zoom level (overrides configuration)")
	insightCmd.Flags().Int("ticks", 10, "ticks to advance before requesting")
	insightCmd.Flags().Duration("timeout", 30*time.Second, "request timeout")
}

// insightClient builds a client from the --profile flag, the selected
// profile, or GEMINI_API_KEY when no profile file exists.
func insightClient(timeout time.Duration) (insight.Client, string, error) {
	profiles, err := config.LoadProfiles()
	if err != nil {
		return nil, "", fmt.Errorf("failed to load profiles: %w", err)
	}
	p, err := profiles.Active(profileName)
	if err != nil {
		if profileName != "" {
			return nil, "", err
		}
		p = config.Profile{Name: "env", KeyEnv: "GEMINI_API_KEY"}
	}

	client := insight.NewGemini(insight.GeminiConfig{
		BaseURL: p.BaseURL,
		Model:   p.Model,
		APIKey:  p.ResolveKey(),
		Timeout: timeout,
		Logger:  logger.Default(),
	})
	return client, p.Name, nil
}

func requestInsight(cmd *cobra.Command, args []string) error {
	timeout, _ := cmd.Flags().GetDuration("timeout")
	client, profile, err := insightClient(timeout)
	if err != nil {
		return err
	}
	logger.Debugf("Using insight profile %s", profile)

	eng, _, err := scenarioEngine(cmd)
	if err != nil {
		return err
	}

	selector := insight.NewSelector(client, nil)
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	id := ""
	if len(args) == 1 {
		id = args[0]
	}
	for {
		if id == "" {
			if id, err = pickDelivery(eng); err != nil {
				return err
			}
		}

		req, err := insightRequest(eng, id)
		if err != nil {
			return err
		}

		_ = logger.WithSpinner(fmt.Sprintf("Assessing %s", id), func() error {
			selector.Select(ctx, req)
			selector.Wait()
			return nil
		})

		_, result := selector.Current()
		if result == nil {
			return fmt.Errorf("no assessment received for %s", id)
		}
		printInsight(result.Response)

		if len(args) == 1 || utils.SkipPrompts() {
			return nil
		}
		again, err := utils.PromptConfirm("Assess another delivery?", false)
		if err != nil || !again {
			return err
		}
		id = ""
	}
}

// insightRequest builds a request from the engine's latest frame.
func insightRequest(eng *engine.Engine, id string) (insight.Request, error) {
	d, ok := eng.Frame().Delivery(id)
	if !ok {
		return insight.Request{}, fmt.Errorf("delivery %s: %w", id, models.ErrNotFound)
	}
	return insight.RequestFor(d, eng.Inside(id)), nil
}

func pickDelivery(eng *engine.Engine) (string, error) {
	frame := eng.Frame()
	if len(frame.Deliveries) == 0 {
		return "", fmt.Errorf("scenario has no deliveries")
	}
	if utils.SkipPrompts() {
		return "", fmt.Errorf("a delivery id is required when prompts are disabled")
	}

	options := make([]string, len(frame.Deliveries))
	for i, d := range frame.Deliveries {
		options[i] = d.ID
	}
	return utils.PromptSelect("Select delivery:", options, "")
}

func printInsight(r insight.Response) {
	if r.Degraded() {
		logger.Warnf("Assessment degraded (%s): %s", r.ErrorKind, r.Error)
	}
	logger.LogSection("Route assessment")
	logger.LogKeyValue("Risk", r.RiskLevel)
	logger.LogKeyValue("Wellness", fmt.Sprintf("%s %.0f", logger.Bar(r.WellnessScore/100, 20), r.WellnessScore))
	logger.LogKeyValue("Efficiency", r.EfficiencyInsight)
	logger.LogKeyValue("Summary", r.Summary)
	if r.OptimalModality != "" {
		logger.LogKeyValue("Modality", r.OptimalModality)
	}
	if len(r.DangerZones) > 0 {
		logger.LogKeyValue("Danger zones", strings.Join(r.DangerZones, ", "))
	}
	if r.EstimatedSavings != "" {
		logger.LogKeyValue("Savings", r.EstimatedSavings)
	}
}
