// mapconv converts protocol mapping files between layouts.
//
// Usage:
//
//	go run ./cmd/mapconv <command> -in path [-out path] [-value-first] [-list path]
//
// Commands: map, yaml, check
package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/l1jgo/banker/internal/data"
	"github.com/l1jgo/banker/internal/protocol"
	"gopkg.in/yaml.v3"
)

type entryYAML struct {
	Name string `yaml:"name"`
	Code uint16 `yaml:"code"`
}

type mapYAML struct {
	Protocols []entryYAML `yaml:"protocols"`
}

func printUsage() {
	fmt.Println("Usage: mapconv <command> -in path [-out path] [-value-first] [-list path]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  map    Rewrite a mapping file as NAME CODE lines")
	fmt.Println("  yaml   Convert a mapping file to YAML")
	fmt.Println("  check  Report required names missing from a mapping file")
}

func readMap(path string, valueFirst bool) (*protocol.Map, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	defer f.Close()
	return protocol.ParseMap(f, !valueFirst)
}

func toYAML(m *protocol.Map) ([]byte, error) {
	doc := mapYAML{Protocols: make([]entryYAML, 0, m.Len())}
	for _, n := range m.Names() {
		code, _ := m.Get(n)
		doc.Protocols = append(doc.Protocols, entryYAML{Name: n, Code: code})
	}
	return yaml.Marshal(doc)
}

// check writes the required names absent from m and reports whether all are present.
func check(m *protocol.Map, reqs *data.ProtocolTable, w io.Writer) bool {
	missing := m.Missing(reqs.Names())
	for _, n := range missing {
		fmt.Fprintf(w, "missing: %s\n", n)
	}
	return len(missing) == 0
}

func writeOut(path string, out []byte) error {
	if path == "" {
		_, err := os.Stdout.Write(out)
		return err
	}
	return os.WriteFile(path, out, 0o644)
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	cmd := os.Args[1]
	if cmd == "-h" || cmd == "--help" || cmd == "help" {
		printUsage()
		return
	}

	fs := flag.NewFlagSet(cmd, flag.ExitOnError)
	in := fs.String("in", "", "source mapping file")
	out := fs.String("out", "", "output file (default stdout)")
	valueFirst := fs.Bool("value-first", false, "source lines are CODE NAME")
	list := fs.String("list", "data/yaml/protocol_list.yaml", "required protocol list (check)")
	_ = fs.Parse(os.Args[2:])

	if *in == "" {
		fmt.Fprintln(os.Stderr, "ERROR: -in is required")
		os.Exit(1)
	}
	m, skipped, err := readMap(*in, *valueFirst)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
		os.Exit(1)
	}
	if skipped > 0 {
		fmt.Fprintf(os.Stderr, "skipped %d malformed lines\n", skipped)
	}

	switch cmd {
	case "map":
		err = writeOut(*out, m.Encode())
	case "yaml":
		var raw []byte
		if raw, err = toYAML(m); err == nil {
			err = writeOut(*out, raw)
		}
	case "check":
		var reqs *data.ProtocolTable
		if reqs, err = data.LoadProtocolTable(*list); err == nil && !check(m, reqs, os.Stdout) {
			os.Exit(2)
		}
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", cmd)
		printUsage()
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
		os.Exit(1)
	}
	fmt.Fprintf(os.Stderr, "Done! (%d names)\n", m.Len())
}
