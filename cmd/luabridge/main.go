package main

import (
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/wippyai/luabridge"
	"github.com/wippyai/luabridge/config"
	"github.com/wippyai/luabridge/meta"
)

func main() {
	var (
		scriptFile  = flag.String("script", "", "Path to a Lua script to run")
		chunk       = flag.String("e", "", "Lua chunk to run")
		configFile  = flag.String("config", "", "Bridge configuration (.yaml, .yml or .toml)")
		list        = flag.Bool("list", false, "List exposed types and exit")
		interactive = flag.Bool("i", false, "Interactive mode with TUI")
		verbose     = flag.Bool("v", false, "Debug logging")
	)
	flag.Parse()

	if *scriptFile == "" && *chunk == "" && !*list && !*interactive {
		if !term.IsTerminal(int(os.Stdin.Fd())) {
			fmt.Fprintln(os.Stderr, "Usage: luabridge -script <file.lua> [-config bridge.yaml] [-v]")
			fmt.Fprintln(os.Stderr, "       luabridge -e 'print(square:area())'")
			fmt.Fprintln(os.Stderr, "       luabridge -list")
			fmt.Fprintln(os.Stderr, "       luabridge -i  (interactive mode)")
			os.Exit(1)
		}
		*interactive = true
	}

	b, err := newBridge(*configFile, *verbose)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if *list {
		listTypes(b)
		return
	}

	if *interactive {
		if err := runInteractive(b); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := run(b, *scriptFile, *chunk); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newBridge(configFile string, verbose bool) (*luabridge.Bridge, error) {
	var opts []luabridge.Option
	if configFile != "" {
		cfg, err := config.Load(configFile)
		if err != nil {
			return nil, err
		}
		opts = append(opts, luabridge.WithConfig(cfg))
	}
	if verbose {
		log, err := zap.NewDevelopment()
		if err != nil {
			return nil, fmt.Errorf("create logger: %w", err)
		}
		opts = append(opts, luabridge.WithLogger(log))
	}

	b, err := luabridge.New(opts...)
	if err != nil {
		return nil, err
	}
	if err := registerHost(b); err != nil {
		return nil, fmt.Errorf("register host model: %w", err)
	}
	return b, nil
}

func run(b *luabridge.Bridge, scriptFile, chunk string) error {
	env := b.NewEnv()
	defer env.Close()

	if err := exposeHost(env); err != nil {
		return fmt.Errorf("expose host model: %w", err)
	}

	if scriptFile != "" {
		if err := env.DoFile(scriptFile); err != nil {
			return fmt.Errorf("run %s: %w", scriptFile, err)
		}
	}
	if chunk != "" {
		if err := env.DoString(chunk); err != nil {
			return fmt.Errorf("run chunk: %w", err)
		}
	}
	return nil
}

func listTypes(b *luabridge.Bridge) {
	types := b.Registry().Types()
	sort.Slice(types, func(i, j int) bool { return types[i].Name() < types[j].Name() })
	for _, td := range types {
		fmt.Printf("%s\n", td.Name())
		for _, line := range describeType(td) {
			fmt.Printf("  %s\n", line)
		}
	}
}

// describeType lists the exposed members of td, one per line.
func describeType(td *meta.TypeDescriptor) []string {
	var lines []string
	for _, f := range td.Fields() {
		lines = append(lines, fmt.Sprintf("%s: %s", f.Name, f.Type))
	}
	for _, m := range td.Members() {
		lines = append(lines, memberLine(m))
	}
	for _, s := range td.Slots() {
		m, _ := td.Slot(s)
		lines = append(lines, fmt.Sprintf("%s -> %s", s.Metamethod(), m.NativeID))
	}
	for _, m := range td.Statics() {
		lines = append(lines, fmt.Sprintf("%s.%s(...) static", td.Name(), m.Name))
	}
	return lines
}

func memberLine(m *meta.Member) string {
	var flags []string
	if m.Overridable {
		flags = append(flags, "overridable")
	}
	if m.Abstract() {
		flags = append(flags, "abstract")
	}
	line := fmt.Sprintf(":%s(", m.Name)
	if m.Binding != nil {
		params := make([]string, len(m.Binding.Params()))
		for i, p := range m.Binding.Params() {
			params[i] = p.String()
		}
		line += strings.Join(params, ", ")
	}
	line += ")"
	if len(flags) > 0 {
		line += " [" + strings.Join(flags, ", ") + "]"
	}
	return line
}
