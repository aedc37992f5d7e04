//go:build !ios && !android && (darwin || linux) && (amd64 || arm64)

// Command ptrbridge inspects bridge libraries.
//
// Usage:
//
//	ptrbridge symbols [-config bridge.yaml] [-builtin=true] [-prefix p] [-names]
//	ptrbridge check   [-config bridge.yaml] [-library path] [-builtin=true]
//
// symbols prints every trampoline name the built-in pointee types and the
// manifest's generated types require. check opens the library and reports
// the ones it does not export.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"

	"go.uber.org/zap"

	"github.com/obinnaokechukwu/ptrbridge"
	"github.com/obinnaokechukwu/ptrbridge/internal/bindings"
	"github.com/obinnaokechukwu/ptrbridge/internal/config"
)

// errMissing is returned by check when the library lacks trampolines.
var errMissing = errors.New("library is missing trampolines")

func main() {
	if len(os.Args) < 2 {
		usage(os.Stderr)
		os.Exit(2)
	}

	var err error
	switch os.Args[1] {
	case "symbols":
		err = runSymbols(os.Args[2:], os.Stdout)
	case "check":
		err = runCheck(os.Args[2:], os.Stdout)
	case "-h", "-help", "--help", "help":
		usage(os.Stdout)
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n", os.Args[1])
		usage(os.Stderr)
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "ptrbridge %s: %v\n", os.Args[1], err)
		os.Exit(1)
	}
}

func usage(w io.Writer) {
	fmt.Fprintf(w, "Usage:\n")
	fmt.Fprintf(w, "  ptrbridge symbols [-config bridge.yaml] [-builtin=true] [-prefix p] [-names]\n")
	fmt.Fprintf(w, "  ptrbridge check   [-config bridge.yaml] [-library path] [-builtin=true]\n")
}

// loadManifest returns the manifest at path, or defaults when path is empty.
func loadManifest(path string) (*config.Manifest, error) {
	if path == "" {
		return config.Parse(nil)
	}
	return config.Load(path)
}

func newLogger(m *config.Manifest) (*zap.Logger, error) {
	lvl, err := m.Level()
	if err != nil {
		return nil, err
	}
	cfg := zap.NewDevelopmentConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.OutputPaths = []string{"stderr"}
	return cfg.Build()
}

// expectedSymbols lists the trampolines of the built-in bindings (if builtin)
// and of the manifest's types, sorted by name and deduplicated.
func expectedSymbols(m *config.Manifest, builtin bool) []config.Symbol {
	seen := make(map[string]string)
	if builtin {
		for _, info := range ptrbridge.Bindings() {
			for _, s := range info.Symbols(m.Prefix) {
				seen[s] = info.TypeName
			}
		}
	}
	for _, s := range m.Symbols() {
		seen[s.Name] = s.TypeName
	}
	out := make([]config.Symbol, 0, len(seen))
	for name, typeName := range seen {
		out = append(out, config.Symbol{Name: name, TypeName: typeName})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func runSymbols(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("symbols", flag.ContinueOnError)
	configPath := fs.String("config", "", "bridge manifest (YAML)")
	builtin := fs.Bool("builtin", true, "include the built-in primitive and string pointees")
	prefix := fs.String("prefix", "", "override the manifest's symbol prefix")
	names := fs.Bool("names", false, "follow each symbol with a tab and its pointee type name")
	if err := fs.Parse(args); err != nil {
		return err
	}

	m, err := loadManifest(*configPath)
	if err != nil {
		return err
	}
	if *prefix != "" {
		m.Prefix = *prefix
	}
	for _, s := range expectedSymbols(m, *builtin) {
		if *names {
			fmt.Fprintf(out, "%s\t%s\n", s.Name, s.TypeName)
		} else {
			fmt.Fprintln(out, s.Name)
		}
	}
	return nil
}

func runCheck(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("check", flag.ContinueOnError)
	configPath := fs.String("config", "", "bridge manifest (YAML)")
	library := fs.String("library", "", "library path (overrides the manifest)")
	builtin := fs.Bool("builtin", true, "include the built-in primitive and string pointees")
	if err := fs.Parse(args); err != nil {
		return err
	}

	m, err := loadManifest(*configPath)
	if err != nil {
		return err
	}
	if *library != "" {
		m.Library = *library
	}

	logger, err := newLogger(m)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()
	ptrbridge.SetLogger(logger)

	path, err := resolveLibrary(m)
	if err != nil {
		return err
	}
	lib, err := bindings.Open(path)
	if err != nil {
		return err
	}
	defer lib.Close()

	symbols := expectedSymbols(m, *builtin)
	missing := 0
	for _, s := range symbols {
		if !lib.Has(s.Name) {
			fmt.Fprintf(out, "missing %s (%s)\n", s.Name, s.TypeName)
			missing++
		}
	}
	fmt.Fprintf(out, "%s: %d/%d trampolines present\n", lib.Path(), len(symbols)-missing, len(symbols))
	if missing > 0 {
		return fmt.Errorf("%w: %d", errMissing, missing)
	}
	return nil
}

func resolveLibrary(m *config.Manifest) (string, error) {
	switch {
	case m.Library != "":
		return m.Library, nil
	case len(m.SearchPaths) > 0:
		return bindings.FindIn(m.SearchPaths, bindings.DefaultLibraryName, []int{1})
	default:
		return bindings.FindLibrary(bindings.DefaultLibraryName, []int{1})
	}
}
