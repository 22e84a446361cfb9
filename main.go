// Package main provides the entry point for CILPEA VPN.
// CILPEA VPN drives a simulated tunnel session through its full lifecycle:
// connect, live telemetry, drop detection, auto-reconnect and disconnect.
//
// Features:
//   - Terminal dashboard with traffic sparklines and the session log
//   - System tray indicator with desktop notifications
//   - Headless mode that streams the session log to stdout
//   - Local HTTP API for status and control
//   - Secure credential storage using the system keyring
//
// Usage:
//
//	cilpea-vpn [command] [flags]
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/yllada/cilpea-vpn/cli"
	"github.com/yllada/cilpea-vpn/common"
	"github.com/yllada/cilpea-vpn/config"
	"github.com/yllada/cilpea-vpn/keyring"
	"github.com/yllada/cilpea-vpn/ui"
	"golang.org/x/term"
)

// Build-time variables injected via ldflags (-X main.appVersion=x.y.z)
// Default values are used for local development builds
var (
	appVersion = "dev"
	buildTime  = "unknown"
	commitSHA  = "unknown"
)

// Global flags
var (
	configFile string
	verbose    bool
)

// Exit codes
const (
	ExitError  = 1
	ExitConfig = 3
)

// overrideExitCode is set by check-config so main() can exit after
// deferred cleanup has run. -1 means "use default".
var overrideExitCode = -1

var rootCmd = &cobra.Command{
	Use:   "cilpea-vpn",
	Short: "CILPEA VPN session controller",
	Long: `CILPEA VPN drives a simulated tunnel session through connect,
live telemetry, drop detection, auto-reconnect and disconnect.

Run without a command to open the terminal dashboard.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runDashboard,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Open the terminal dashboard",
	Long: `Open the interactive dashboard.

Keys:
  enter/space  power toggle       c/d  connect / disconnect
  a            auto-reconnect     x    simulate drop
  ?            help               q    quit

Falls back to headless mode when stdout is not a terminal.`,
	RunE: runDashboard,
}

var headlessCmd = &cobra.Command{
	Use:   "headless",
	Short: "Connect and stream the session log to stdout",
	Long: `Connect immediately and print every session log entry until
interrupted. On SIGINT or SIGTERM the session is disconnected cleanly.`,
	RunE: runHeadless,
}

var trayCmd = &cobra.Command{
	Use:   "tray",
	Short: "Run as a system tray indicator",
	RunE:  runTray,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the session status from a running instance",
	Long: `Query the local API of a running instance. The API must be
enabled in the configuration (api.enabled: true).`,
	RunE: runStatus,
}

var credentialsCmd = &cobra.Command{
	Use:   "credentials",
	Short: "Manage gateway access keys",
}

var credentialsSetCmd = &cobra.Command{
	Use:   "set [profile]",
	Short: "Store the access key for a gateway profile",
	Long: `Store the access key for a gateway profile in the system keyring,
or in an encrypted file when no keyring is available. The key is read
from the terminal without echo, or from stdin when piped.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runCredentialsSet,
}

var credentialsDeleteCmd = &cobra.Command{
	Use:   "delete [profile]",
	Short: "Remove the access key for a gateway profile",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runCredentialsDelete,
}

var checkConfigCmd = &cobra.Command{
	Use:   "check-config",
	Short: "Validate configuration file",
	RunE:  runCheckConfig,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Display version information",
	Run:   runVersion,
}

var statusURL string

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "",
		"Path to configuration file (default ~/.config/cilpea-vpn/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false,
		"Enable debug logging")

	statusCmd.Flags().StringVar(&statusURL, "url", "",
		"API base URL (default from api.listen)")

	credentialsCmd.AddCommand(credentialsSetCmd, credentialsDeleteCmd)
	rootCmd.AddCommand(runCmd, headlessCmd, trayCmd, statusCmd, credentialsCmd, checkConfigCmd, versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(ExitError)
	}
	if overrideExitCode >= 0 {
		os.Exit(overrideExitCode)
	}
}

// setup loads configuration and initializes logging. quiet keeps the
// console clear for front ends that own stdout.
func setup(quiet bool) (*config.Config, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, err
	}

	level := common.ParseLevel(cfg.Log.Level)
	if verbose {
		level = common.LevelDebug
	}
	if err := common.InitLogger(common.LogConfig{
		Level:       level,
		EnableFile:  cfg.Log.File,
		Quiet:       quiet,
		MaxFileSize: 5 * 1024 * 1024, // 5MB
		MaxBackups:  5,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: Could not initialize file logging: %v\n", err)
	}

	common.LogInfo("Starting %s v%s (config %s)", common.AppName, appVersion, cfg.Path())
	return cfg, nil
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// startApp builds and starts the session controller.
func startApp(cfg *config.Config) (*cli.App, error) {
	app := cli.New(cfg, keyring.Default())
	if err := app.Start(); err != nil {
		_ = app.Close(context.Background())
		return nil, err
	}
	return app, nil
}

func closeApp(app *cli.App) {
	ctx, cancel := context.WithTimeout(context.Background(), common.ShutdownTimeout)
	defer cancel()
	if err := app.Close(ctx); err != nil {
		common.LogWarn("Shutdown: %v", err)
	}
	_ = common.CloseLogger()
}

// watchNotifications forwards status changes to the desktop when enabled.
func watchNotifications(ctx context.Context, cfg *config.Config, ctrl ui.Controller) {
	if !cfg.ShowNotifications {
		return
	}
	notifier, err := ui.NewDesktopNotifier()
	if err != nil {
		common.LogDebug("Desktop notifications unavailable: %v", err)
		return
	}
	go ui.WatchNotifications(ctx, ctrl, notifier)
}

func runDashboard(cmd *cobra.Command, args []string) error {
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		return runHeadless(cmd, args)
	}

	cfg, err := setup(true)
	if err != nil {
		return err
	}
	app, err := startApp(cfg)
	if err != nil {
		return err
	}
	defer closeApp(app)

	ctx, cancel := signalContext()
	defer cancel()
	watchNotifications(ctx, cfg, app.Controller())

	return ui.Run(app.Controller())
}

func runHeadless(cmd *cobra.Command, args []string) error {
	// The session log is printed by RunHeadless; keep the console logger out.
	cfg, err := setup(true)
	if err != nil {
		return err
	}
	app, err := startApp(cfg)
	if err != nil {
		return err
	}
	defer closeApp(app)

	ctx, cancel := signalContext()
	defer cancel()

	if app.API != nil {
		fmt.Printf("API listening on http://%s/%s\n", app.API.Addr(), common.APIVersion)
	}
	return cli.RunHeadless(ctx, app.Controller(), os.Stdout)
}

func runTray(cmd *cobra.Command, args []string) error {
	cfg, err := setup(false)
	if err != nil {
		return err
	}
	app, err := startApp(cfg)
	if err != nil {
		return err
	}
	defer closeApp(app)

	ctx, cancel := signalContext()
	defer cancel()
	watchNotifications(ctx, cfg, app.Controller())

	tray := ui.NewTrayIndicator(app.Controller(), cancel)
	go func() {
		<-ctx.Done()
		tray.Quit()
	}()
	tray.Run()
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	base := statusURL
	if base == "" {
		cfg, err := config.Load(configFile)
		if err != nil {
			return err
		}
		base = "http://" + cfg.API.Listen
	}

	snap, err := cli.FetchStatus(cmd.Context(), base)
	if err != nil {
		return fmt.Errorf("%w (is a %s instance running with api.enabled?)", err, common.AppName)
	}
	return cli.PrintStatus(os.Stdout, snap)
}

// profileArg returns the profile named on the command line or the
// configured gateway profile.
func profileArg(args []string) (string, error) {
	if len(args) == 1 {
		return args[0], nil
	}
	cfg, err := config.Load(configFile)
	if err != nil {
		return "", err
	}
	return cfg.Gateway.Profile, nil
}

func runCredentialsSet(cmd *cobra.Command, args []string) error {
	profile, err := profileArg(args)
	if err != nil {
		return err
	}

	secret, err := readSecret(fmt.Sprintf("Access key for %s: ", profile))
	if err != nil {
		return err
	}

	store := keyring.Default()
	if err := cli.SetCredential(store, profile, secret); err != nil {
		return err
	}
	fmt.Printf("✓ Access key stored for %s (%s backend)\n", profile, store.Backend())
	return nil
}

func runCredentialsDelete(cmd *cobra.Command, args []string) error {
	profile, err := profileArg(args)
	if err != nil {
		return err
	}
	if err := cli.DeleteCredential(keyring.Default(), profile); err != nil {
		return err
	}
	fmt.Printf("✓ Access key removed for %s\n", profile)
	return nil
}

// readSecret reads a line without echo from a terminal, or plainly from
// piped stdin.
func readSecret(prompt string) (string, error) {
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		fmt.Fprint(os.Stderr, prompt)
		b, err := term.ReadPassword(fd)
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", fmt.Errorf("reading access key: %w", err)
		}
		return string(b), nil
	}

	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("reading access key: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func runCheckConfig(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ Configuration validation failed:\n")
		fmt.Fprintf(os.Stderr, "   %v\n", err)
		overrideExitCode = ExitConfig
		return nil
	}

	fmt.Printf("Checking configuration: %s\n\n", cfg.Path())
	fmt.Println("✅ Configuration is valid")
	fmt.Println()
	fmt.Println("Configuration summary:")
	fmt.Printf("  Auto-reconnect:   %v (countdown %ds)\n", cfg.AutoReconnect, cfg.ReconnectCountdown)
	fmt.Printf("  Grace period:     %s\n", cfg.GracePeriodDuration())
	fmt.Printf("  Gateway profile:  %s\n", cfg.Gateway.Profile)
	fmt.Printf("  Tunnel address:   %s (%s, %s)\n", cfg.Gateway.Address, cfg.Gateway.Protocol, cfg.Gateway.Cipher)
	fmt.Printf("  Gateway timeout:  %s\n", cfg.Gateway.Timeout())
	fmt.Printf("  Failure rate:     %.2f\n", cfg.Gateway.FailureRate)
	fmt.Printf("  Credentials:      required=%v\n", cfg.Gateway.RequireCredentials)
	fmt.Printf("  Health checks:    %v (every %s, threshold %d)\n", cfg.Health.Enabled, cfg.Health.Interval(), cfg.Health.FailureThreshold)
	fmt.Printf("  API:              %v (%s)\n", cfg.API.Enabled, cfg.API.Listen)
	fmt.Printf("  Log level:        %s (file %v)\n", cfg.Log.Level, cfg.Log.File)
	return nil
}

func runVersion(cmd *cobra.Command, args []string) {
	fmt.Printf("%s v%s (core %s)\n", common.AppName, appVersion, common.CoreVersion)
	if buildTime != "unknown" {
		fmt.Printf("  Build:      %s\n", buildTime)
		fmt.Printf("  Commit:     %s\n", commitSHA)
	}
	fmt.Printf("  Go version: %s\n", runtime.Version())
}
