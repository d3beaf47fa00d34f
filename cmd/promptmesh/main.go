// Command promptmesh runs prompt interactions, consensus pipelines and chains
// against the agents of a configuration file.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/hupe1980/promptmesh"
	"github.com/hupe1980/promptmesh/config"
	"github.com/hupe1980/promptmesh/consensus"
	"github.com/hupe1980/promptmesh/core"
)

type flags struct {
	configPath string
	timeout    time.Duration
	watch      bool

	template       string
	websearch      bool
	websearchDepth int
	contextResults int
	shots          int
	learnFile      string
}

func newRootCmd() *cobra.Command {
	f := &flags{}

	root := &cobra.Command{
		Use:   "promptmesh",
		Short: "Run prompt driven agents",
		Long: `promptmesh formats prompt templates with memory context, sends them to the
configured model, executes the commands the model asks for and stores the
result in the agent's memory.`,
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVarP(&f.configPath, "config", "c", "promptmesh.yaml", "Configuration file")
	root.PersistentFlags().DurationVar(&f.timeout, "timeout", 10*time.Minute, "Operation timeout")
	root.PersistentFlags().BoolVar(&f.watch, "watch", false, "Reload templates when their files change")

	runCmd := &cobra.Command{
		Use:   "run [agent] [input]",
		Short: "Run a single interaction",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMesh(cmd, f, func(ctx context.Context, m *promptmesh.Mesh) (string, error) {
				return m.RunAgent(ctx, args[0], f.request(args[1:], "chat"))
			})
		},
	}

	smartInstructCmd := &cobra.Command{
		Use:   "smart-instruct [agent] [input]",
		Short: "Run the instruct consensus pipeline",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMesh(cmd, f, func(ctx context.Context, m *promptmesh.Mesh) (string, error) {
				return m.SmartInstruct(ctx, args[0], f.request(args[1:], ""))
			})
		},
	}

	smartChatCmd := &cobra.Command{
		Use:   "smart-chat [agent] [input]",
		Short: "Run the chat consensus pipeline",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMesh(cmd, f, func(ctx context.Context, m *promptmesh.Mesh) (string, error) {
				return m.SmartChat(ctx, args[0], f.request(args[1:], ""))
			})
		},
	}

	chainCmd := &cobra.Command{
		Use:   "chain [name] [input]",
		Short: "Run a configured chain",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMesh(cmd, f, func(ctx context.Context, m *promptmesh.Mesh) (string, error) {
				responses, err := m.RunChain(ctx, args[0], strings.Join(args[1:], " "))
				if err != nil {
					return "", err
				}

				blocks := make([]string, len(responses))
				for i, r := range responses {
					blocks[i] = fmt.Sprintf("Step %d:\n%s", i+1, r)
				}

				return strings.Join(blocks, "\n\n"), nil
			})
		},
	}

	for _, cmd := range []*cobra.Command{runCmd, smartInstructCmd, smartChatCmd} {
		cmd.Flags().IntVar(&f.websearchDepth, "websearch-depth", core.DefaultWebSearchDepth, "Links followed per search result page")
		cmd.Flags().IntVar(&f.contextResults, "context-results", core.DefaultContextDepth, "Memory chunks retrieved as context")
		cmd.Flags().BoolVar(&f.websearch, "websearch", false, "Research the web before answering")
	}

	runCmd.Flags().StringVarP(&f.template, "template", "t", "chat", "Prompt template")
	for _, cmd := range []*cobra.Command{smartInstructCmd, smartChatCmd} {
		cmd.Flags().IntVar(&f.shots, "shots", consensus.DefaultShots, "Number of step by step samples")
	}

	runCmd.Flags().StringVar(&f.learnFile, "learn-file", "", "File ingested into memory before the run")

	root.AddCommand(runCmd, smartInstructCmd, smartChatCmd, chainCmd)

	return root
}

func (f *flags) request(args []string, template string) core.InteractionRequest {
	if f.template != "" {
		template = f.template
	}

	return core.NewRequest(strings.Join(args, " "), func(r *core.InteractionRequest) {
		r.Template = template
		r.WebSearch = f.websearch
		r.WebSearchDepth = f.websearchDepth
		r.ContextDepth = f.contextResults
		r.Shots = f.shots
		r.LearnFile = f.learnFile
	})
}

func withMesh(cmd *cobra.Command, f *flags, fn func(ctx context.Context, m *promptmesh.Mesh) (string, error)) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), f.timeout)
	defer cancel()

	cfg, err := config.Load(f.configPath)
	if err != nil {
		return err
	}

	m, err := promptmesh.NewFromConfig(ctx, cfg)
	if err != nil {
		return err
	}
	defer m.Close()

	if f.watch {
		go func() {
			if err := m.WatchTemplates(ctx); err != nil {
				fmt.Fprintln(cmd.ErrOrStderr(), "template watch:", err)
			}
		}()
	}

	out, err := fn(ctx, m)
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), out)

	return nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}
