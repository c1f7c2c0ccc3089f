package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/elektrokombinacija/cbs-sipp/internal/config"
)

// configDirFunc returns the config directory, replaceable in tests.
var configDirFunc = config.Dir

func configFilePath() (string, error) {
	dir, err := configDirFunc()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

func (a *app) configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or manage configuration",
		Long: `Show or manage cbssipp configuration.

Running bare 'cbssipp config' is the same as 'cbssipp config show'.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.configShowRun()
		},
	}

	var force bool
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Create config file with commented defaults",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.configInitRun(force)
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "Overwrite existing config file")

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Show effective configuration with sources",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.configShowRun()
		},
	}

	cmd.AddCommand(initCmd, showCmd)
	return cmd
}

func (a *app) configInitRun(force bool) error {
	cfgPath, err := configFilePath()
	if err != nil {
		return err
	}
	if fileExists(cfgPath) {
		if !force {
			return fmt.Errorf("config file already exists: %s (use --force to overwrite)", cfgPath)
		}
		a.ui.Warning("Overwriting existing config file")
	}

	data, err := config.Render(a.cfg)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(cfgPath), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(cfgPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	a.ui.Success("Config file created: %s", cfgPath)
	fmt.Fprintln(a.ui.Out)
	fmt.Fprint(a.ui.Out, string(data))
	return nil
}

func (a *app) configShowRun() error {
	used := a.v.ConfigFileUsed()
	if used != "" && fileExists(used) {
		a.ui.Info("Config file: %s", used)
	} else {
		a.ui.Info("Config file: (none)")
		used = ""
	}
	fmt.Fprintln(a.ui.Out)

	fileKeys := config.FileKeys(used)
	for _, k := range config.Keys {
		fmt.Fprintf(a.ui.Out, "  %-18s %v  %s\n", k.Name, a.v.Get(k.Name), config.Source(k, fileKeys))
	}
	return nil
}
