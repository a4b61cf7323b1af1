package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/joho/godotenv"
	"github.com/raine/auction-bot/config"
	"github.com/raine/auction-bot/internal/ipcheck"
	"golang.org/x/term"
)

// getConfigFilePath returns the path of the env file in the user's config
// directory, creating the directory if needed.
func getConfigFilePath() (string, error) {
	configBase, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user config directory: %w", err)
	}
	configDir := filepath.Join(configBase, config.AppName)
	if err := os.MkdirAll(configDir, 0700); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}
	return filepath.Join(configDir, config.EnvFileName), nil
}

// isInteractiveTerminal returns true if both stdin and stdout are TTYs.
func isInteractiveTerminal() bool {
	return term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd()))
}

// runSetupWizard asks for the settings listed in missing and writes them to
// the config file. Returns true if the run should continue.
func runSetupWizard(missing []string) bool {
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("99")).
		MarginBottom(1)

	fmt.Println()
	fmt.Println(titleStyle.Render("Auction Bot - First-time Setup"))
	fmt.Println()

	values := make(map[string]*string, len(missing))
	var groups []*huh.Group
	for _, key := range missing {
		v := new(string)
		values[key] = v
		if key == "HOME_IP" {
			*v = detectPublicIP()
		}
		groups = append(groups, huh.NewGroup(setupInput(key, v)))
	}

	form := huh.NewForm(groups...).WithTheme(huh.ThemeBase16())
	if err := form.Run(); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			fmt.Println("\nSetup cancelled.")
			return false
		}
		fmt.Printf("\nError: %v\n", err)
		return false
	}

	env := make(map[string]string, len(values))
	for k, v := range values {
		env[k] = strings.TrimSpace(*v)
	}
	configPath, err := writeEnvFile(env)
	if err != nil {
		fmt.Printf("\nError saving configuration: %v\n", err)
		waitOnWindows()
		return false
	}
	for k, v := range env {
		os.Setenv(k, v)
	}

	successStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("42")).
		Bold(true)
	pathStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("245"))

	fmt.Println()
	fmt.Println(successStyle.Render("✓ Configuration saved"))
	fmt.Println(pathStyle.Render("  " + configPath))
	fmt.Println()
	return true
}

func setupInput(key string, value *string) *huh.Input {
	in := huh.NewInput().Value(value)
	switch key {
	case "AUCTION_URL":
		return in.
			Title("Auction URL").
			Description("The auction listing page to scan, e.g. https://www.bidrl.com/auction/...").
			Validate(validateAuctionURL)
	case "HOME_IP":
		return in.
			Title("Home IP address").
			Description("Scraping is refused while your public IP equals this address. Pre-filled with your current IP; change it if a VPN is already on.").
			Validate(func(s string) error {
				if net.ParseIP(strings.TrimSpace(s)) == nil {
					return errors.New("must be an IP address")
				}
				return nil
			})
	case "OPENROUTER_API_KEY":
		return in.
			Title("OpenRouter API Key").
			Description("Get yours at https://openrouter.ai/keys").
			EchoMode(huh.EchoModePassword).
			Validate(required("API key is required"))
	case "GEMINI_API_KEY":
		return in.
			Title("Gemini API Key").
			Description("Get yours at https://aistudio.google.com/apikey").
			EchoMode(huh.EchoModePassword).
			Validate(required("API key is required"))
	}
	return in.Title(key).Validate(required(key + " is required"))
}

func required(msg string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return errors.New(msg)
		}
		return nil
	}
}

func validateAuctionURL(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return errors.New("auction URL is required")
	}
	u, err := url.Parse(s)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return errors.New("must be an http(s) URL")
	}
	return nil
}

func detectPublicIP() string {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	ip, err := ipcheck.New("").PublicIP(ctx)
	if err != nil {
		return ""
	}
	return ip
}

// writeEnvFile merges values into the config file, keeping settings that
// are already there. The file holds API keys so it is readable only by the
// owner.
func writeEnvFile(values map[string]string) (string, error) {
	configPath, err := getConfigFilePath()
	if err != nil {
		return "", err
	}
	existing, err := godotenv.Read(configPath)
	if err != nil {
		existing = map[string]string{}
	}
	for k, v := range values {
		existing[k] = v
	}
	if err := godotenv.Write(existing, configPath); err != nil {
		return "", fmt.Errorf("failed to write config file: %w", err)
	}
	if err := os.Chmod(configPath, 0600); err != nil {
		return "", fmt.Errorf("failed to restrict config file: %w", err)
	}
	return configPath, nil
}
