package cli

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/guiyumin/vbrief/internal/core/config"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create vbrief config file",
	RunE: func(cmd *cobra.Command, args []string) error {
		// existing config seeds the wizard
		cfg, err := config.RunInitWizard()
		if err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return err
		}
		if err := config.Save(cfg); err != nil {
			return err
		}

		fmt.Printf("\n%s Saved %s\n", color.GreenString("✓"), config.SavePath())
		if cfg.Transcription.Engine == "local" {
			fmt.Printf("  The %s model downloads the first time a video needs transcription.\n", cfg.Transcription.Model)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
