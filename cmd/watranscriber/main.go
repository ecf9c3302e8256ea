package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/leonardotrapani/watranscriber/internal/bus"
	"github.com/leonardotrapani/watranscriber/internal/config"
	"github.com/leonardotrapani/watranscriber/internal/daemon"
	"github.com/leonardotrapani/watranscriber/internal/deps"
	"github.com/leonardotrapani/watranscriber/internal/logging"
	"github.com/leonardotrapani/watranscriber/internal/notify"
	"github.com/leonardotrapani/watranscriber/internal/page"
	"github.com/leonardotrapani/watranscriber/internal/pipeline"
	"github.com/leonardotrapani/watranscriber/internal/provider"
	"github.com/leonardotrapani/watranscriber/internal/registry"
	"github.com/leonardotrapani/watranscriber/internal/settings"
	"github.com/leonardotrapani/watranscriber/internal/tui"
)

var configPath string

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:          "watranscriber",
	Short:        "Transcribe and post-process WhatsApp voice messages",
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default $XDG_CONFIG_HOME/watranscriber/config.toml)")

	rootCmd.AddCommand(
		serveCmd(),
		statusCmd(),
		settingsCmd(),
		verifyCmd(),
		transcribeCmd(),
		cacheCmd(),
		pageCmd(),
		configureCmd(),
		configCmd(),
		doctorCmd(),
	)
}

// loadConfig reads the --config file, or the default location when unset.
func loadConfig() (*config.Config, error) {
	if configPath == "" {
		return config.Load()
	}
	return config.LoadFile(configPath)
}

func newClient() (*daemon.Client, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	sock, err := cfg.SocketPath()
	if err != nil {
		return nil, err
	}
	return daemon.NewClient(sock), nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := configPath
			if path == "" {
				p, err := config.GetConfigPath()
				if err != nil {
					return err
				}
				path = p
			}
			mgr, err := config.NewManager(path)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			cfg := mgr.GetConfig()
			logging.Setup(cfg.Log.Level, cfg.Log.Format, os.Stderr)

			d, err := daemon.New(cfg, daemon.WithConfigManager(mgr))
			if err != nil {
				return fmt.Errorf("failed to create daemon: %w", err)
			}
			return d.Run(cmd.Context())
		},
	}
}

func statusCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show provider readiness and pending transcriptions",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient()
			if err != nil {
				return err
			}
			resp, err := c.Status(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to get status: %w", err)
			}
			if asJSON {
				return printJSON(resp)
			}
			fmt.Println(tui.RenderStatus(resp.Display, resp.Status, resp.Pages))
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print the raw status")
	return cmd
}

func settingsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Read or change the extension settings",
	}
	cmd.AddCommand(settingsGetCmd(), settingsSetCmd(), settingsResetCmd())
	return cmd
}

func settingsGetCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "get",
		Short: "Print the current settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient()
			if err != nil {
				return err
			}
			s, err := c.Settings(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to get settings: %w", err)
			}
			if asJSON {
				return printJSON(s)
			}
			fmt.Println(tui.RenderSettings(s))
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print unmasked JSON")
	return cmd
}

func settingsSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <key=value>...",
		Short: "Change one or more settings",
		Long: "Change settings by JSON key, e.g.\n  watranscriber settings set language=es isExtensionEnabled=false\n\nKeys: " +
			strings.Join(settings.Keys(), ", "),
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var p settings.Patch
			for _, arg := range args {
				key, value, ok := strings.Cut(arg, "=")
				if !ok {
					return fmt.Errorf("expected key=value, got %q", arg)
				}
				if err := p.SetField(strings.TrimSpace(key), value); err != nil {
					return err
				}
			}
			c, err := newClient()
			if err != nil {
				return err
			}
			s, err := c.UpdateSettings(cmd.Context(), p)
			if err != nil {
				return fmt.Errorf("failed to update settings: %w", err)
			}
			fmt.Println(tui.RenderSettings(s))
			return nil
		},
	}
}

func settingsResetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Restore the default settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient()
			if err != nil {
				return err
			}
			s, err := c.ResetSettings(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to reset settings: %w", err)
			}
			fmt.Println(tui.RenderSettings(s))
			return nil
		},
	}
}

func verifyCmd() *cobra.Command {
	var (
		req  pipeline.VerifyRequest
		cat  string
		save bool
	)

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Check an API key or local server",
		RunE: func(cmd *cobra.Command, args []string) error {
			req.Category = provider.Category(cat)
			if req.Category == provider.Processing {
				req.OllamaServerURL = req.LocalWhisperURL
				req.LocalWhisperURL = ""
			}
			c, err := newClient()
			if err != nil {
				return err
			}
			res, err := c.Verify(cmd.Context(), req, save)
			if err != nil {
				return fmt.Errorf("failed to verify: %w", err)
			}
			if !res.Valid {
				fmt.Println(tui.StyleError.Render("❌ " + res.Error))
				return errors.New("verification failed")
			}
			msg := "✅ valid"
			if save {
				msg += " and saved"
			}
			fmt.Println(tui.StyleSuccess.Render(msg))
			return nil
		},
	}

	cmd.Flags().StringVar(&cat, "category", string(provider.Transcription), "transcription or processing")
	cmd.Flags().StringVar(&req.ProviderType, "provider", provider.IDOpenAI, "provider id")
	cmd.Flags().StringVar(&req.APIKey, "key", "", "API key to check")
	cmd.Flags().StringVar(&req.LocalWhisperURL, "url", "", "server URL for local providers")
	cmd.Flags().BoolVar(&save, "save", false, "store the key when it is valid")
	return cmd
}

func transcribeCmd() *cobra.Command {
	var id string

	cmd := &cobra.Command{
		Use:   "transcribe <audio-file>",
		Short: "Transcribe and process a voice message",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			if id == "" {
				id = uuid.NewString()
			}
			c, err := newClient()
			if err != nil {
				return err
			}
			resp, err := c.Transcribe(cmd.Context(), id, provider.Audio{
				Data:     data,
				MIMEType: audioType(args[0]),
			})
			if err != nil {
				return fmt.Errorf("failed to transcribe: %w", err)
			}
			printResult(id, resp.Result, resp.Cached)
			return nil
		},
	}

	cmd.Flags().StringVar(&id, "id", "", "message id used as the cache key (default random)")
	return cmd
}

// audioType guesses the MIME type from the file extension. WhatsApp voice
// notes are ogg/opus.
func audioType(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".opus" || ext == ".ogg" {
		return "audio/ogg"
	}
	if t := mime.TypeByExtension(ext); t != "" {
		return t
	}
	return "audio/ogg"
}

func printResult(id string, r provider.ProcessedResult, cached bool) {
	header := "Message " + id
	if cached {
		header += " (cached)"
	}
	fmt.Println(tui.StyleHeader.Render(header))
	fmt.Printf("%s %s\n", tui.StyleLabel.Render("Original: "), r.Original)
	if r.Processed != r.Original {
		fmt.Printf("%s %s\n", tui.StyleLabel.Render("Processed:"), r.Processed)
	}
	if r.Summary != "" {
		fmt.Printf("%s %s\n", tui.StyleLabel.Render("Summary:  "), r.Summary)
	}
	if r.Reply != "" {
		fmt.Printf("%s %s\n", tui.StyleLabel.Render("Reply:    "), r.Reply)
	}
	if r.Error != "" {
		fmt.Println(tui.StyleError.Render(r.Error))
	}
}

func cacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect cached transcriptions",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "get <message-id>",
		Short: "Print a cached transcription",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient()
			if err != nil {
				return err
			}
			r, err := c.Cached(cmd.Context(), args[0])
			if errors.Is(err, daemon.ErrNotCached) {
				return fmt.Errorf("no cached transcription for %s", args[0])
			}
			if err != nil {
				return err
			}
			printResult(args[0], r, true)
			return nil
		},
	})
	return cmd
}

func pageCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "page",
		Short: "Attach a page to the daemon and follow settings changes",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			logging.Setup(cfg.Log.Level, cfg.Log.Format, os.Stderr)
			sock, err := cfg.SocketPath()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			client, err := bus.Dial(ctx, sock)
			if err != nil {
				return fmt.Errorf("failed to connect: %w", err)
			}
			defer client.Close()

			p := page.New(client, notify.New(cfg.Notifications.Type))
			p.OnReload(func(s settings.Settings) {
				fmt.Println(tui.StylePending.Render("settings changed, page reloaded"))
				fmt.Println(tui.RenderSettings(s))
			})
			if err := p.Start(ctx); err != nil {
				return err
			}
			fmt.Println(tui.RenderSettings(p.Settings()))

			select {
			case <-ctx.Done():
			case <-client.Done():
				return errors.New("daemon closed the connection")
			}
			return nil
		},
	}
}

func configureCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "configure",
		Short: "Interactive settings editor",
		Long: `Interactive settings editor. Requires a running daemon.
This lets you pick:
- Transcription and processing providers, with key checks
- Output language and prompt template
- Whether the extension is enabled`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigure(cmd.Context())
		},
	}
}

func runConfigure(ctx context.Context) error {
	c, err := newClient()
	if err != nil {
		return err
	}

	result, err := tui.Run(ctx, c, registry.New())
	if err != nil {
		return fmt.Errorf("settings editor error: %w", err)
	}
	if result.Cancelled {
		fmt.Println("No changes saved.")
		return nil
	}

	fmt.Println()
	fmt.Println("Settings saved. Open pages reload automatically.")
	fmt.Println()
	fmt.Println(tui.RenderSettings(result.Settings))
	return nil
}

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the daemon config file",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Write a commented default config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := configPath
			if path == "" {
				p, err := config.GetConfigPath()
				if err != nil {
					return err
				}
				path = p
			}
			if err := config.SaveDefaultConfig(path); err != nil {
				return err
			}
			fmt.Printf("Config file written to %s\n", path)
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Print the config file location",
		RunE: func(cmd *cobra.Command, args []string) error {
			if configPath != "" {
				fmt.Println(configPath)
				return nil
			}
			p, err := config.GetConfigPath()
			if err != nil {
				return err
			}
			fmt.Println(p)
			return nil
		},
	})
	return cmd
}

func doctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check config, external tools and the daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				fmt.Println(tui.StyleError.Render("❌ config: " + err.Error()))
				return err
			}
			if err := cfg.Validate(); err != nil {
				fmt.Println(tui.StyleError.Render("❌ config: " + err.Error()))
			} else {
				fmt.Println(tui.StyleSuccess.Render("✅ config valid"))
			}

			for _, st := range deps.CheckAll(cfg.Notifications.Type) {
				if !st.Installed {
					fmt.Println(tui.StyleWarning.Render(fmt.Sprintf("⚠️  %s not found (%s)", st.Tool.Name, st.Tool.Purpose)))
					continue
				}
				fmt.Println(tui.StyleSuccess.Render(fmt.Sprintf("✅ %s %s", st.Path, st.Version)))
			}

			sock, err := cfg.SocketPath()
			if err != nil {
				return err
			}
			resp, err := daemon.NewClient(sock).Status(cmd.Context())
			if err != nil {
				fmt.Println(tui.StyleWarning.Render("⚠️  daemon not reachable at " + sock))
				return nil
			}
			fmt.Println(tui.StyleSuccess.Render(fmt.Sprintf("✅ daemon running (protocol %s, %d pages)", resp.Proto, resp.Pages)))
			return nil
		},
	}
}
