package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/zen-systems/pulseboard/pkg/adapter"
	"github.com/zen-systems/pulseboard/pkg/dashboard"
	"github.com/zen-systems/pulseboard/pkg/logger"
	"github.com/zen-systems/pulseboard/pkg/realtime"
	"github.com/zen-systems/pulseboard/pkg/settings"
)

var (
	logLevelFlag string
	profileFlag  string
	offlineFlag  bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "pulseboard",
		Short: "Sales dashboard assistant backed by Ollama, Claude, Groq or Gemini",
		Long: `Pulseboard answers questions about a simulated sales dashboard using
	whichever AI backend is configured, and can replay the live event feed
	that drives the dashboard.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if logLevelFlag != "" {
				logger.SetLevel(logLevelFlag)
			}
		},
	}

	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&profileFlag, "profile", "default", "namespace for saved usage and settings")
	rootCmd.PersistentFlags().BoolVar(&offlineFlag, "offline", false, "answer with canned replies instead of calling a backend")

	rootCmd.AddCommand(askCmd())
	rootCmd.AddCommand(summaryCmd())
	rootCmd.AddCommand(providersCmd())
	rootCmd.AddCommand(usageCmd())
	rootCmd.AddCommand(settingsCmd())
	rootCmd.AddCommand(simulateCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func askCmd() *cobra.Command {
	var providerFlag, modelFlag, systemFlag string
	var streamFlag bool

	cmd := &cobra.Command{
		Use:   "ask [prompt]",
		Short: "Ask the assistant a question about the dashboard",
		Long: `Sends the prompt to the active backend with the current dashboard data as
	context. Use --system to replace that context with your own system prompt.

	Streaming follows the saved settings unless --stream is given.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp()
			if err != nil {
				return err
			}
			defer a.Close()

			gw, err := a.gateway(providerFlag, modelFlag)
			if err != nil {
				return err
			}
			fmt.Fprintf(os.Stderr, "Using %s/%s\n", gw.ProviderName(), gw.Model())

			stream := a.settings.AI.Streaming
			if cmd.Flags().Changed("stream") {
				stream = streamFlag
			}

			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			if systemFlag != "" {
				messages := []adapter.Message{adapter.UserMessage(args[0])}
				if stream {
					for chunk, err := range gw.Stream(ctx, messages, systemFlag) {
						if err != nil {
							return err
						}
						fmt.Print(chunk)
					}
					fmt.Println()
					return nil
				}
				resp, err := gw.Chat(ctx, messages, systemFlag)
				if err != nil {
					return err
				}
				fmt.Println(resp.Content)
				return nil
			}

			conv := conversation(gw)
			if stream {
				if _, err := conv.SendStream(ctx, args[0], func(chunk string) { fmt.Print(chunk) }); err != nil {
					return err
				}
				fmt.Println()
				return nil
			}
			reply, err := conv.Send(ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Println(reply)
			return nil
		},
	}

	cmd.Flags().StringVar(&providerFlag, "provider", "", "override provider (ollama, claude, groq, gemini)")
	cmd.Flags().StringVar(&modelFlag, "model", "", "override model")
	cmd.Flags().StringVar(&systemFlag, "system", "", "system prompt to use instead of the dashboard context")
	cmd.Flags().BoolVar(&streamFlag, "stream", false, "print the reply as it arrives")

	return cmd
}

func summaryCmd() *cobra.Command {
	var providerFlag, modelFlag string
	var dataFlag bool

	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Get an executive summary of the dashboard",
		RunE: func(cmd *cobra.Command, args []string) error {
			if dataFlag {
				sim := realtime.NewSimulator()
				fmt.Print(dashboard.Summary(dashboard.NewFeed(sim, time.Now).Snapshot()))
				return nil
			}

			a, err := loadApp()
			if err != nil {
				return err
			}
			defer a.Close()

			gw, err := a.gateway(providerFlag, modelFlag)
			if err != nil {
				return err
			}
			reply, err := conversation(gw).Summarize(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Println(reply)
			return nil
		},
	}

	cmd.Flags().StringVar(&providerFlag, "provider", "", "override provider")
	cmd.Flags().StringVar(&modelFlag, "model", "", "override model")
	cmd.Flags().BoolVar(&dataFlag, "data", false, "print the data the assistant sees instead of asking it")

	return cmd
}

func providersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "providers",
		Short: "List AI backends and whether they are configured",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp()
			if err != nil {
				return err
			}
			defer a.Close()

			creds := a.cfg.Credentials()
			active := a.settings.AI.Provider

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "PROVIDER\tNAME\tMODEL\tSTATUS\tACTIVE")
			for _, p := range adapter.Providers {
				status := "no key"
				if adapter.Available(p, creds) {
					status = "ready"
				}
				if p == adapter.ProviderOllama {
					status = "local " + a.cfg.OllamaURL
				}
				mark := ""
				if p == active {
					mark = "*"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", p, p.DisplayName(), a.cfg.Model(p), status, mark)
			}
			return w.Flush()
		},
	}
}

func usageCmd() *cobra.Command {
	var resetFlag bool

	cmd := &cobra.Command{
		Use:   "usage",
		Short: "Show or reset the demo prompt allowance",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp()
			if err != nil {
				return err
			}
			defer a.Close()

			if resetFlag {
				a.limiter.Reset()
				fmt.Println("Usage reset.")
				return nil
			}

			if !a.limiter.Production() {
				fmt.Println("Environment: development (prompts are not metered)")
				return nil
			}
			rec := a.limiter.Record()
			remaining, _ := a.limiter.RemainingUses()
			fmt.Printf("Used: %d of %d\n", rec.Count, a.limiter.Limit())
			fmt.Printf("Remaining: %d\n", remaining)
			if !rec.FirstUsedAt.IsZero() {
				fmt.Printf("First used: %s\n", rec.FirstUsedAt.Local().Format(time.RFC1123))
			}
			if a.limiter.IsLimitReached() {
				fmt.Println()
				fmt.Println(a.limiter.BlockedMessage())
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&resetFlag, "reset", false, "clear the recorded usage")
	return cmd
}

func settingsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Manage saved dashboard settings",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the saved settings as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp()
			if err != nil {
				return err
			}
			defer a.Close()

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(a.settings)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "set-provider <provider> [model]",
		Short: "Choose the AI backend used by ask and summary",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp()
			if err != nil {
				return err
			}
			defer a.Close()

			p, err := adapter.ParseProvider(args[0])
			if err != nil {
				return err
			}
			s := a.settings
			s.AI.Provider = p
			s.AI.Model = ""
			if len(args) == 2 {
				s.AI.Model = args[1]
			}
			if err := settings.Save(a.kv, s); err != nil {
				return err
			}
			if !adapter.Available(p, a.cfg.Credentials()) {
				fmt.Fprintf(os.Stderr, "warning: %s has no API key configured\n", p.DisplayName())
			}
			fmt.Printf("Provider set to %s\n", p.DisplayName())
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "reset",
		Short: "Restore the default settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp()
			if err != nil {
				return err
			}
			defer a.Close()

			settings.Clear(a.kv)
			fmt.Println("Settings reset.")
			return nil
		},
	})

	return cmd
}

var kindColors = map[realtime.Kind]*color.Color{
	realtime.KindNewOrder:   color.New(color.FgGreen),
	realtime.KindInsight:    color.New(color.FgCyan),
	realtime.KindMilestone:  color.New(color.FgMagenta, color.Bold),
	realtime.KindWarning:    color.New(color.FgYellow),
	realtime.KindCapReached: color.New(color.FgRed, color.Bold),
}

func simulateCmd() *cobra.Command {
	var speedFlag float64
	var eventsFlag int
	var summaryFlag bool

	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Replay the live event feed",
		Long: `Runs the event simulator and prints one JSON line per event until the
	event cap is reached or the command is interrupted.

	Use --speed to shorten every interval, e.g. --speed 100 for a quick run.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if eventsFlag <= 0 {
				return fmt.Errorf("--events must be positive")
			}
			sim := realtime.NewSimulator(
				realtime.WithCap(eventsFlag),
				realtime.WithIntervals(realtime.DefaultIntervals.Scaled(speedFlag)),
			)
			feed := dashboard.NewFeed(sim, time.Now)
			feed.Attach(sim)
			defer feed.Detach(sim)

			done := make(chan struct{})
			emit := func(ev realtime.Event) {
				line, err := json.Marshal(struct {
					Kind realtime.Kind  `json:"kind"`
					At   string         `json:"at"`
					Data realtime.Event `json:"data"`
				}{ev.Kind(), time.Now().Format(time.TimeOnly), ev})
				if err != nil {
					logger.Log.WithError(err).Warn("failed to encode event")
					return
				}
				kindColors[ev.Kind()].Println(string(line))
			}
			for _, kind := range realtime.Kinds {
				sim.Subscribe(kind, emit)
			}
			sim.Subscribe(realtime.KindCapReached, func(realtime.Event) { close(done) })

			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			sim.Start()
			select {
			case <-done:
			case <-ctx.Done():
				sim.Stop()
				fmt.Fprintln(os.Stderr, "\nStopped.")
			}

			if summaryFlag {
				fmt.Println()
				fmt.Print(dashboard.Summary(feed.Snapshot()))
				return nil
			}
			m := sim.Metrics()
			fmt.Fprintf(os.Stderr, "%d events, revenue $%.2f over %d orders\n",
				sim.EventCount(), m.Revenue, m.Orders)
			return nil
		},
	}

	cmd.Flags().Float64Var(&speedFlag, "speed", 1, "divide every interval by this factor")
	cmd.Flags().IntVar(&eventsFlag, "events", realtime.DefaultCap, "stop after this many events")
	cmd.Flags().BoolVar(&summaryFlag, "summary", false, "print the dashboard summary when the run ends")

	return cmd
}
