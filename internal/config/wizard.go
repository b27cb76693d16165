package config

import (
	"fmt"
	"strconv"

	"github.com/manifoldco/promptui"
)

// RunWizard runs an interactive configuration wizard and returns the
// resulting Config. It also saves the config to .badyet.yml.
func RunWizard() (*Config, error) {
	fmt.Println("Welcome to badyet! Let's configure your budget assistant.")
	fmt.Println()

	cfg := DefaultConfig()

	// 1. Pipeline service URL.
	urlPrompt := promptui.Prompt{
		Label:   "Retrieval pipeline base URL",
		Default: cfg.Pipeline.BaseURL,
	}
	baseURL, err := urlPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("pipeline URL: %w", err)
	}
	cfg.Pipeline.BaseURL = baseURL

	// 2. Pipeline token.
	tokenPrompt := promptui.Prompt{
		Label: "Pipeline bearer token (leave empty to read BADYET_PIPELINE__TOKEN)",
		Mask:  '*',
	}
	token, err := tokenPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("pipeline token: %w", err)
	}
	cfg.Pipeline.Token = token

	// 3. Database path.
	dbPrompt := promptui.Prompt{
		Label:   "SQLite database path",
		Default: cfg.Database.Path,
	}
	dbPath, err := dbPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("database path: %w", err)
	}
	cfg.Database.Path = dbPath

	// 4. Listen port.
	portPrompt := promptui.Prompt{
		Label:   "HTTP listen port",
		Default: strconv.Itoa(cfg.Server.Port),
		Validate: func(s string) error {
			n, err := strconv.Atoi(s)
			if err != nil || n <= 0 || n > 65535 {
				return fmt.Errorf("enter a port between 1 and 65535")
			}
			return nil
		},
	}
	portStr, err := portPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("port: %w", err)
	}
	cfg.Server.Port, _ = strconv.Atoi(portStr)

	// 5. Log level.
	levelPrompt := promptui.Select{
		Label: "Log level",
		Items: []string{"debug", "info", "warn", "error"},
	}
	_, level, err := levelPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	cfg.LogLevel = level

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if err := cfg.Save(".badyet.yml"); err != nil {
		return nil, err
	}
	fmt.Println("\nConfiguration saved to .badyet.yml")

	return cfg, nil
}
