package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"tilebridge/pkg/config"
)

var configShowFlat bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration as YAML, secrets masked",
	RunE: func(cmd *cobra.Command, args []string) error {
		loader := config.NewLoader()
		cfg, err := loader.Load(configPath)
		if err != nil {
			return err
		}

		out, err := renderConfig(cfg, configShowFlat)
		if err != nil {
			return err
		}
		fmt.Printf("# %s\n%s", loader.GetConfigPath(), out)
		return nil
	},
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the config file in use",
	RunE: func(cmd *cobra.Command, args []string) error {
		loader := config.NewLoader()
		if _, err := loader.Load(configPath); err != nil {
			return err
		}
		fmt.Println(loader.GetConfigPath())
		return nil
	},
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the configuration for errors",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.NewLoader().Load(configPath)
		if err != nil {
			return err
		}
		if err := config.ValidateConfig(cfg); err != nil {
			return err
		}
		fmt.Println("Configuration is valid.")
		return nil
	},
}

func init() {
	configShowCmd.Flags().BoolVar(&configShowFlat, "flat", false, "print dot-separated keys")
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configPathCmd)
	configCmd.AddCommand(configValidateCmd)
	rootCmd.AddCommand(configCmd)
}

// renderConfig encodes cfg as YAML with secrets masked.
func renderConfig(cfg *config.Config, flat bool) (string, error) {
	raw, err := json.Marshal(cfg)
	if err != nil {
		return "", err
	}
	var nested map[string]any
	if err := json.Unmarshal(raw, &nested); err != nil {
		return "", err
	}

	masked := config.MaskSecrets(config.Flatten(nested))
	var v any = masked
	if !flat {
		v = unflatten(masked)
	}

	data, err := yaml.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// unflatten reverses config.Flatten for display.
func unflatten(flat map[string]any) map[string]any {
	out := make(map[string]any)
	for key, v := range flat {
		parts := strings.Split(key, ".")
		m := out
		for _, p := range parts[:len(parts)-1] {
			child, ok := m[p].(map[string]any)
			if !ok {
				child = make(map[string]any)
				m[p] = child
			}
			m = child
		}
		m[parts[len(parts)-1]] = v
	}
	return out
}
