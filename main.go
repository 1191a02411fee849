package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
)

// Version information
const (
	Version = "1.0.0"
)

// Global configuration
var globalConfig *Config

// app wires the client, compiler table, workspace and workbench together
type app struct {
	client    *Client
	compilers *CompilerTable
	workspace *DiskWorkspace
	bench     *Workbench
}

func newApp(config *Config) (*app, error) {
	client := NewClient(config.Service)
	compilers, err := NewCompilerTable(client, config.Service.CompilerCacheSize)
	if err != nil {
		return nil, err
	}
	root, err := filepath.Abs(config.Workspace.Root)
	if err != nil {
		return nil, fmt.Errorf("invalid workspace root: %w", err)
	}
	workspace := NewDiskWorkspace(root, config.Workspace.StagingDir)
	return &app{
		client:    client,
		compilers: compilers,
		workspace: workspace,
		bench:     NewWorkbench(config, client, workspace, compilers),
	}, nil
}

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:           "cexplorer",
		Short:         "Compile code on a remote Compiler Explorer service and view the results",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			globalConfig, err = LoadConfig(configPath)
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}

			// Initialize logger with config
			InitializeLogger(globalConfig)
			LogDebugf("Configuration loaded from %s", configPath)
			return nil
		},
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "path to the configuration file")

	rootCmd.AddCommand(
		newServeCommand(),
		newCompileCommand(),
		newShareCommand(),
		newLoadCommand(),
		newCompilersCommand(),
	)

	if err := rootCmd.Execute(); err != nil {
		LogFatalf("%v", err)
	}
}

// signalContext is cancelled on SIGINT or SIGTERM
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-sigChan:
			LogInfof("Shutting down...")
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigChan)
	}()
	return ctx, cancel
}

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the result view and the editor API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()
			return runServe(ctx, globalConfig)
		},
	}
}

func runServe(ctx context.Context, config *Config) error {
	LogInfof("Starting cexplorer %s against %s", Version, config.Service.URL)

	a, err := newApp(config)
	if err != nil {
		return err
	}

	if config.Defaults.Link != "" {
		if _, err := a.bench.LoadLink(ctx, config.Defaults.Link); err != nil {
			LogErrorf("Failed to preload %s: %v", config.Defaults.Link, err)
		}
	}
	if len(a.bench.List()) == 0 {
		if _, err := a.bench.NewDefault(ctx, SingleFile); err != nil {
			LogErrorf("Failed to create the default instance: %v", err)
		}
	}

	webServer := NewWebServer(config, a.bench, a.compilers, a.workspace)
	LogInfof("Web interface available at http://localhost:%d", config.Web.Port)
	return webServer.Start(ctx)
}

func newCompileCommand() *cobra.Command {
	var (
		compiler string
		options  string
		exec     string
		stdin    string
		output   string
		execute  bool
	)

	cmd := &cobra.Command{
		Use:   "compile <file|dir>",
		Short: "Compile a source file or a CMake project directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			a, err := newApp(globalConfig)
			if err != nil {
				return err
			}

			inst, err := a.instanceFor(ctx, args[0], compiler)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("options") {
				inst.Options = options
			}
			inst.Exec = exec
			inst.Stdin = stdin
			if cmd.Flags().Changed("execute") {
				inst.Filters.Execute = execute
			}
			if output != "" {
				inst.Output = output
			}
			if err := a.bench.Add(inst); err != nil {
				return err
			}

			response, err := a.bench.Compile(ctx, inst.ID)
			if err != nil {
				return err
			}
			printResponse(cmd, inst, response)
			return nil
		},
	}

	cmd.Flags().StringVar(&compiler, "compiler", "", "compiler name or id (default from configuration)")
	cmd.Flags().StringVar(&options, "options", "", "compiler options")
	cmd.Flags().StringVar(&exec, "exec", "", "program arguments")
	cmd.Flags().StringVar(&stdin, "stdin", "", "program input")
	cmd.Flags().StringVarP(&output, "output", "o", "", "write the assembly to this file")
	cmd.Flags().BoolVar(&execute, "execute", false, "run the program after compiling")
	return cmd
}

// instanceFor builds an instance reading path: a directory becomes a CMake
// project, anything else a single file
func (a *app) instanceFor(ctx context.Context, path, compiler string) (*Instance, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, configurationErrorf("file not found: %s", abs)
	}

	compilerInfo, err := a.compilers.Lookup(ctx, globalConfig.Service.Language, firstNonEmpty(compiler, globalConfig.Defaults.Compiler))
	if err != nil {
		return nil, err
	}

	if info.IsDir() {
		inst := NewInstance(MultiFile, globalConfig, compilerInfo)
		inst.Src = abs
		return inst, nil
	}
	inst := NewInstance(SingleFile, globalConfig, compilerInfo)
	inst.Input = abs
	return inst, nil
}

func printResponse(cmd *cobra.Command, inst *Instance, response *Response) {
	out := cmd.OutOrStdout()
	if inst.RendersInline() && response.CompileResult != nil {
		fmt.Fprintln(out, response.CompileResult.AsmText())
	}
	if response.CompileResult != nil {
		for _, line := range response.CompileResult.diagnostics() {
			fmt.Fprintln(cmd.ErrOrStderr(), line.Text)
		}
	}
	if response.ExecuteResult != nil {
		for _, line := range response.ExecuteResult.Stdout {
			fmt.Fprintln(out, line.Text)
		}
		for _, line := range response.ExecuteResult.Stderr {
			fmt.Fprintln(cmd.ErrOrStderr(), line.Text)
		}
	}
}

func newShareCommand() *cobra.Command {
	var compiler string

	cmd := &cobra.Command{
		Use:   "share <file|dir>...",
		Short: "Create a short link for one or more sources",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			a, err := newApp(globalConfig)
			if err != nil {
				return err
			}
			for _, path := range args {
				inst, err := a.instanceFor(ctx, path, compiler)
				if err != nil {
					return err
				}
				if err := a.bench.Add(inst); err != nil {
					return err
				}
			}

			link, err := a.bench.Share(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), link)
			return nil
		},
	}
	cmd.Flags().StringVar(&compiler, "compiler", "", "compiler name or id (default from configuration)")
	return cmd
}

func newLoadCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "load <link>",
		Short: "Load a short link into the workspace",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			a, err := newApp(globalConfig)
			if err != nil {
				return err
			}
			instances, err := a.bench.LoadLink(ctx, args[0])
			if err != nil {
				return err
			}
			for _, inst := range instances {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\t%s\n", inst.Kind, inst.Compiler.Name, inst.Source(), inst.Options)
			}
			return nil
		},
	}
}

func newCompilersCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "compilers [lang]",
		Short: "List the compilers of a language",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			lang := globalConfig.Service.Language
			if len(args) == 1 {
				lang = args[0]
			}
			a, err := newApp(globalConfig)
			if err != nil {
				return err
			}
			infos, err := a.compilers.List(ctx, lang)
			if err != nil {
				return err
			}
			for _, info := range infos {
				var caps []string
				if info.SupportsExecute {
					caps = append(caps, "execute")
				}
				if info.SupportsBinary {
					caps = append(caps, "binary")
				}
				if info.SupportsIntel {
					caps = append(caps, "intel")
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\n", info.ID, info.Name, strings.Join(caps, ","))
			}
			return nil
		},
	}
}
