package cli

import (
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/guiyumin/vbrief/internal/core/config"
)

var completionCmd = &cobra.Command{
	Use:   "completion [bash|zsh|fish|powershell]",
	Short: "Generate shell completion script",
	Long: `Generate shell completion script for vbrief.

Bash:
  # Add to ~/.bashrc:
  source <(vbrief completion bash)

Zsh:
  # Add to ~/.zshrc:
  source <(vbrief completion zsh)

Fish:
  vbrief completion fish > ~/.config/fish/completions/vbrief.fish

PowerShell:
  vbrief completion powershell >> $PROFILE
`,
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"bash", "zsh", "fish", "powershell"},
	RunE: func(cmd *cobra.Command, args []string) error {
		switch args[0] {
		case "bash":
			return rootCmd.GenBashCompletion(os.Stdout)
		case "zsh":
			return rootCmd.GenZshCompletion(os.Stdout)
		case "fish":
			return rootCmd.GenFishCompletion(os.Stdout, true)
		case "powershell":
			return rootCmd.GenPowerShellCompletion(os.Stdout)
		default:
			return cmd.Help()
		}
	},
}

func init() {
	rootCmd.AddCommand(completionCmd)
	configSetCmd.ValidArgsFunction = completeConfigKeys
}

func fixedCompletions(values ...string) func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
	return func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		return filterPrefix(values, toComplete), cobra.ShellCompDirectiveNoFileComp
	}
}

// completeConfigKeys completes the key of `config set`, then provider names
// for provider.name.
func completeConfigKeys(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	switch len(args) {
	case 0:
		return filterPrefix(configKeys, toComplete), cobra.ShellCompDirectiveNoFileComp
	case 1:
		switch args[0] {
		case "provider.name":
			return filterPrefix(config.Providers, toComplete), cobra.ShellCompDirectiveNoFileComp
		case "transcription.engine":
			return filterPrefix([]string{"local", "openai", "none"}, toComplete), cobra.ShellCompDirectiveNoFileComp
		}
	}
	return nil, cobra.ShellCompDirectiveNoFileComp
}

func filterPrefix(values []string, prefix string) []string {
	var out []string
	for _, v := range values {
		if strings.HasPrefix(v, prefix) {
			out = append(out, v)
		}
	}
	return out
}
