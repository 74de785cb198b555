package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/picogrid/hexfleet/pkg/config"
	"github.com/picogrid/hexfleet/pkg/insight"
	"github.com/picogrid/hexfleet/pkg/logger"
	"github.com/picogrid/hexfleet/pkg/utils"
)

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Manage insight provider profiles",
	Long:  `Manage the AI insight provider profiles stored in $HOME/.hexfleet/profiles.yaml`,
}

var profileListCmd = &cobra.Command{
	Use:   "list",
	Short: "List configured profiles",
	RunE:  listProfiles,
}

var profileAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add or replace a profile",
	RunE:  addProfile,
}

var profileRemoveCmd = &cobra.Command{
	Use:   "remove [name]",
	Short: "Remove a profile",
	Args:  cobra.MaximumNArgs(1),
	RunE:  removeProfile,
}

var profileUseCmd = &cobra.Command{
	Use:   "use [name]",
	Short: "Select the profile used by default",
	Args:  cobra.MaximumNArgs(1),
	RunE:  useProfile,
}

func init() {
	profileCmd.AddCommand(profileListCmd)
	profileCmd.AddCommand(profileAddCmd)
	profileCmd.AddCommand(profileRemoveCmd)
	profileCmd.AddCommand(profileUseCmd)
}

func listProfiles(cmd *cobra.Command, args []string) error {
	profiles, err := config.LoadProfiles()
	if err != nil {
		return fmt.Errorf("failed to load profiles: %w", err)
	}

	if len(profiles.Profiles) == 0 {
		fmt.Println("No profiles configured")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "\tNAME\tMODEL\tAPI KEY")
	_, _ = fmt.Fprintln(w, "\t----\t-----\t-------")

	for _, p := range profiles.Profiles {
		marker := ""
		if p.Name == profiles.Selected {
			marker = "*"
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", marker, p.Name, modelOf(p), keySource(p))
	}

	return w.Flush()
}

func modelOf(p config.Profile) string {
	if p.Model == "" {
		return insight.DefaultModel
	}
	return p.Model
}

func keySource(p config.Profile) string {
	switch {
	case p.APIKey != "":
		return "stored"
	case p.KeyEnv != "" && os.Getenv(p.KeyEnv) != "":
		return fmt.Sprintf("env %s", p.KeyEnv)
	case p.KeyEnv != "":
		return fmt.Sprintf("env %s (unset)", p.KeyEnv)
	default:
		return "none (offline)"
	}
}

func addProfile(cmd *cobra.Command, args []string) error {
	profiles, err := config.LoadProfiles()
	if err != nil {
		return fmt.Errorf("failed to load profiles: %w", err)
	}

	var p config.Profile
	if p.Name, err = utils.PromptInput("Profile name:", "", true); err != nil {
		return err
	}
	if _, exists := profiles.Find(p.Name); exists {
		replace, err := utils.PromptConfirm(fmt.Sprintf("Profile %s exists. Replace it?", p.Name), false)
		if err != nil {
			return err
		}
		if !replace {
			return nil
		}
	}

	if p.BaseURL, err = utils.PromptInput("Provider base URL:", insight.DefaultBaseURL, true); err != nil {
		return err
	}
	if p.Model, err = utils.PromptInput("Model:", insight.DefaultModel, true); err != nil {
		return err
	}

	method, err := utils.PromptSelect("API key source:", []string{
		"Environment variable (recommended)",
		"Store in profile",
		"No key (offline)",
	}, "Environment variable (recommended)")
	if err != nil {
		return err
	}

	switch method {
	case "Environment variable (recommended)":
		if p.KeyEnv, err = utils.PromptInput("Environment variable name:", "GEMINI_API_KEY", true); err != nil {
			return err
		}
	case "Store in profile":
		if p.APIKey, err = utils.PromptPassword("API key:"); err != nil {
			return err
		}
	}

	if err := profiles.Add(p); err != nil {
		return err
	}
	if err := config.SaveProfiles(profiles); err != nil {
		return fmt.Errorf("failed to save profiles: %w", err)
	}

	logger.Successf("Profile %s saved", p.Name)
	return nil
}

func removeProfile(cmd *cobra.Command, args []string) error {
	profiles, err := config.LoadProfiles()
	if err != nil {
		return fmt.Errorf("failed to load profiles: %w", err)
	}

	name, err := profileArg(profiles, args, "Select profile to remove:")
	if err != nil {
		return err
	}

	confirm, err := utils.PromptConfirm(fmt.Sprintf("Remove profile %s?", name), false)
	if err != nil {
		return err
	}
	if !confirm {
		return nil
	}

	if err := profiles.Remove(name); err != nil {
		return err
	}
	if err := config.SaveProfiles(profiles); err != nil {
		return fmt.Errorf("failed to save profiles: %w", err)
	}

	logger.Successf("Profile %s removed", name)
	return nil
}

func useProfile(cmd *cobra.Command, args []string) error {
	profiles, err := config.LoadProfiles()
	if err != nil {
		return fmt.Errorf("failed to load profiles: %w", err)
	}

	name, err := profileArg(profiles, args, "Select default profile:")
	if err != nil {
		return err
	}
	p, ok := profiles.Find(name)
	if !ok {
		return fmt.Errorf("profile %q not found", name)
	}

	profiles.Selected = p.Name
	if err := config.SaveProfiles(profiles); err != nil {
		return fmt.Errorf("failed to save profiles: %w", err)
	}

	logger.Successf("Using profile %s", p.Name)
	return nil
}

// profileArg returns the profile named on the command line or asks for one.
func profileArg(profiles *config.Profiles, args []string, message string) (string, error) {
	if len(args) == 1 {
		return args[0], nil
	}
	if len(profiles.Profiles) == 0 {
		return "", fmt.Errorf("no profiles configured")
	}
	options := make([]string, len(profiles.Profiles))
	for i, p := range profiles.Profiles {
		options[i] = p.Name
	}
	return utils.PromptSelect(message, options, profiles.Selected)
}
