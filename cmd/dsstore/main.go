package main

import (
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/chzyer/readline"

	"github.com/DSStoreKit/dsstore/pkg/codec"
	"github.com/DSStoreKit/dsstore/pkg/common/log"
	"github.com/DSStoreKit/dsstore/pkg/store"
)

// Command completer for readline
var completer = readline.NewPrefixCompleter(
	readline.PcItem(".help"),
	readline.PcItem(".open"),
	readline.PcItem(".save"),
	readline.PcItem(".exit"),
	readline.PcItem("LIST"),
	readline.PcItem("GET"),
	readline.PcItem("SET"),
	readline.PcItem("RM"),
)

const helpText = `
dsstore - A .DS_Store container inspector and editor.

Usage:
  dsstore dump PATH                          - Print every record
  dsstore get PATH FILENAME CODE             - Print one record
  dsstore set PATH FILENAME CODE TYPE VALUE  - Write one record
  dsstore rm PATH FILENAME [CODE]            - Delete record(s)
  dsstore -i [PATH]                          - Interactive mode

Options:
  -i            - Run an interactive shell
  -v            - Verbose diagnostics on stderr

Value types:
  long, shor    - 32-bit integer
  comp          - 64-bit integer
  bool          - true or false
  type          - 4-character tag
  ustr          - text
  dutc          - RFC 3339 timestamp, or "now"
  blob          - hex-encoded bytes

Commands (interactive mode only):
  .help                        - Show this help message
  .open PATH                   - Open a container at PATH (created on save if missing)
  .save                        - Write pending changes
  .exit                        - Exit the program

  LIST [FILENAME]              - List records, optionally for one file
  GET FILENAME CODE            - Print a record's value
  SET FILENAME CODE TYPE VALUE - Store a record
  RM FILENAME [CODE]           - Delete one record, or every record of a file
`

func main() {
	flag.Usage = func() {
		fmt.Fprint(flag.CommandLine.Output(), helpText)
	}
	interactive := flag.Bool("i", false, "Run an interactive shell")
	verbose := flag.Bool("v", false, "Verbose diagnostics on stderr")
	flag.Parse()

	var opts []store.Option
	if *verbose {
		opts = append(opts, store.WithLogger(log.NewStandardLogger(
			log.WithLevel(log.LevelDebug),
			log.WithOutput(os.Stderr),
		)))
	}

	args := flag.Args()
	if *interactive {
		path := ""
		if len(args) > 0 {
			path = args[0]
		}
		runInteractive(path, opts)
		return
	}

	if len(args) < 1 {
		flag.Usage()
		os.Exit(2)
	}
	if err := runCommand(args[0], args[1:], opts); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

func runCommand(cmd string, args []string, opts []store.Option) error {
	switch cmd {
	case "dump":
		if len(args) != 1 {
			return fmt.Errorf("usage: dsstore dump PATH")
		}
		s, err := store.Open(args[0], opts...)
		if err != nil {
			return err
		}
		dump(os.Stdout, s, "")
		return nil

	case "get":
		if len(args) != 3 {
			return fmt.Errorf("usage: dsstore get PATH FILENAME CODE")
		}
		s, err := store.Open(args[0], opts...)
		if err != nil {
			return err
		}
		v, ok := s.Get(args[1], args[2])
		if !ok {
			return fmt.Errorf("no record %s/%s", args[1], args[2])
		}
		fmt.Println(formatValue(v))
		return nil

	case "set":
		if len(args) < 5 {
			return fmt.Errorf("usage: dsstore set PATH FILENAME CODE TYPE VALUE")
		}
		s, err := openOrCreate(args[0], opts)
		if err != nil {
			return err
		}
		v, err := parseValue(args[3], strings.Join(args[4:], " "))
		if err != nil {
			return err
		}
		if err := s.Set(args[1], args[2], v); err != nil {
			return err
		}
		return s.Save()

	case "rm":
		if len(args) != 2 && len(args) != 3 {
			return fmt.Errorf("usage: dsstore rm PATH FILENAME [CODE]")
		}
		s, err := store.Open(args[0], opts...)
		if err != nil {
			return err
		}
		if len(args) == 3 {
			if !s.Remove(args[1], args[2]) {
				return fmt.Errorf("no record %s/%s", args[1], args[2])
			}
		} else if s.RemoveAll(args[1]) == 0 {
			return fmt.Errorf("no records for %s", args[1])
		}
		return s.Save()

	default:
		return fmt.Errorf("unknown command %q (try dump, get, set, rm)", cmd)
	}
}

// openOrCreate opens an existing container, or binds a fresh empty one
// to the path when no file exists yet.
func openOrCreate(path string, opts []store.Option) (*store.Store, error) {
	s, err := store.Open(path, opts...)
	if err == nil {
		return s, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return store.Create(path, opts...), nil
	}
	return nil, err
}

// dump prints records in tree order, one per line.
func dump(w io.Writer, s *store.Store, filename string) {
	names := s.Filenames()
	if filename != "" {
		names = []string{filename}
	}
	for _, name := range names {
		for _, code := range s.Codes(name) {
			v, ok := s.Get(name, code)
			if !ok {
				continue
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", name, code, v.TypeTag(), formatValue(v))
		}
	}
}

func formatValue(v codec.Value) string {
	switch v.Kind() {
	case codec.KindLong, codec.KindShor:
		n, _ := v.Int32()
		return strconv.FormatInt(int64(n), 10)
	case codec.KindComp:
		n, _ := v.Int64()
		return strconv.FormatInt(n, 10)
	case codec.KindBool:
		b, _ := v.Bool()
		return strconv.FormatBool(b)
	case codec.KindDUTC:
		t, _ := v.Time()
		return t.UTC().Format(time.RFC3339)
	case codec.KindType, codec.KindUString:
		s, _ := v.String()
		return s
	case codec.KindBlob:
		blob, _ := v.Blob()
		return hex.EncodeToString(blob)
	}
	return "?"
}

func parseValue(typeName, raw string) (codec.Value, error) {
	switch typeName {
	case codec.TagLong, codec.TagShor:
		n, err := strconv.ParseInt(raw, 10, 32)
		if err != nil {
			return codec.Value{}, fmt.Errorf("bad %s value %q: %w", typeName, raw, err)
		}
		if typeName == codec.TagShor {
			return codec.Shor(int32(n)), nil
		}
		return codec.Long(int32(n)), nil
	case codec.TagComp:
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return codec.Value{}, fmt.Errorf("bad comp value %q: %w", raw, err)
		}
		return codec.Comp(n), nil
	case codec.TagBool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return codec.Value{}, fmt.Errorf("bad bool value %q: %w", raw, err)
		}
		return codec.Bool(b), nil
	case codec.TagType:
		return codec.Type(raw)
	case codec.TagUString:
		return codec.UString(raw), nil
	case codec.TagDUTC:
		if raw == "now" {
			return codec.DUTCTime(time.Now()), nil
		}
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return codec.Value{}, fmt.Errorf("bad dutc value %q: %w", raw, err)
		}
		return codec.DUTCTime(t), nil
	case codec.TagBlob:
		data, err := hex.DecodeString(raw)
		if err != nil {
			return codec.Value{}, fmt.Errorf("bad blob value %q: %w", raw, err)
		}
		return codec.Blob(data), nil
	}
	return codec.Value{}, fmt.Errorf("unknown type %q (try long, shor, comp, bool, type, ustr, dutc, blob)", typeName)
}

// runInteractive starts the interactive shell
func runInteractive(path string, opts []store.Option) {
	fmt.Println("dsstore interactive shell")
	fmt.Println("Enter .help for usage hints.")

	var s *store.Store
	if path != "" {
		var err error
		s, err = openOrCreate(path, opts)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error opening container: %s\n", err)
			os.Exit(1)
		}
		fmt.Printf("Container opened at %s (%d records)\n", path, s.Len())
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "dsstore> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
		AutoComplete:    completer,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing readline: %s\n", err)
		os.Exit(1)
	}
	defer rl.Close()

	for {
		prompt := "dsstore> "
		if s != nil {
			if s.Dirty() {
				prompt = fmt.Sprintf("dsstore:%s*> ", s.Path())
			} else {
				prompt = fmt.Sprintf("dsstore:%s> ", s.Path())
			}
		}
		rl.SetPrompt(prompt)

		line, readErr := rl.Readline()
		if readErr != nil {
			if readErr == readline.ErrInterrupt {
				if len(line) == 0 {
					break
				}
				continue
			} else if readErr == io.EOF {
				fmt.Println("Goodbye!")
				break
			}
			fmt.Fprintf(os.Stderr, "Error reading input: %s\n", readErr)
			continue
		}
		if line == "" {
			continue
		}

		parts := strings.Fields(line)
		cmd := parts[0]

		if strings.HasPrefix(cmd, ".") {
			switch strings.ToLower(cmd) {
			case ".help":
				fmt.Print(helpText)

			case ".open":
				if len(parts) < 2 {
					fmt.Println("Error: Missing path argument")
					continue
				}
				next, err := openOrCreate(parts[1], opts)
				if err != nil {
					fmt.Fprintf(os.Stderr, "Error opening container: %s\n", err)
					continue
				}
				s = next
				fmt.Printf("Container opened at %s (%d records)\n", s.Path(), s.Len())

			case ".save":
				if s == nil {
					fmt.Println("No container open")
					continue
				}
				if err := s.Save(); err != nil {
					fmt.Fprintf(os.Stderr, "Error saving: %s\n", err)
					continue
				}
				fmt.Printf("Saved %s\n", s.Path())

			case ".exit":
				if s != nil && s.Dirty() {
					fmt.Println("Warning: unsaved changes discarded")
				}
				fmt.Println("Goodbye!")
				return

			default:
				fmt.Printf("Unknown command: %s\n", cmd)
			}
			continue
		}

		if s == nil {
			fmt.Println("No container open (use .open PATH)")
			continue
		}

		switch strings.ToUpper(cmd) {
		case "LIST":
			filename := ""
			if len(parts) > 1 {
				filename = parts[1]
			}
			dump(os.Stdout, s, filename)

		case "GET":
			if len(parts) != 3 {
				fmt.Println("Usage: GET FILENAME CODE")
				continue
			}
			v, ok := s.Get(parts[1], parts[2])
			if !ok {
				fmt.Printf("No record %s/%s\n", parts[1], parts[2])
				continue
			}
			fmt.Println(formatValue(v))

		case "SET":
			if len(parts) < 5 {
				fmt.Println("Usage: SET FILENAME CODE TYPE VALUE")
				continue
			}
			v, err := parseValue(parts[3], strings.Join(parts[4:], " "))
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %s\n", err)
				continue
			}
			if err := s.Set(parts[1], parts[2], v); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %s\n", err)
				continue
			}

		case "RM":
			switch len(parts) {
			case 2:
				if n := s.RemoveAll(parts[1]); n == 0 {
					fmt.Printf("No records for %s\n", parts[1])
				} else {
					fmt.Printf("Removed %d record(s)\n", n)
				}
			case 3:
				if !s.Remove(parts[1], parts[2]) {
					fmt.Printf("No record %s/%s\n", parts[1], parts[2])
				}
			default:
				fmt.Println("Usage: RM FILENAME [CODE]")
			}

		default:
			fmt.Printf("Unknown command: %s (try LIST, GET, SET, RM or .help)\n", cmd)
		}
	}
}
