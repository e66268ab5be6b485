package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/ergochat/readline"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/arcstep/pathdex"
	"github.com/arcstep/pathdex/kv"
	"github.com/arcstep/pathdex/utils"
)

var completer = readline.NewPrefixCompleter(
	readline.PcItem("help"),

	readline.PcItem("model"),
	readline.PcItem("index"),
	readline.PcItem("paths"),

	readline.PcItem("put"),
	readline.PcItem("get"),
	readline.PcItem("del"),
	readline.PcItem("scan"),
	readline.PcItem("range"),

	readline.PcItem("rebuild"),
	readline.PcItem("stats"),

	readline.PcItem("exit"),
	readline.PcItem("quit"),
)

func filterInput(r rune) (rune, bool) {
	switch r {
	// block CtrlZ feature
	case readline.CharCtrlZ:
		return r, false
	}
	return r, true
}

const usage = `commands:
  model <collection> <sample-json>        register a record shape
  index <collection> <path> <type>        declare an indexable path
  paths <collection>                      list registered paths
  put <collection> <key> <record-json>    write a record, indexes included
  get <collection> <key>                  read one record
  del <collection> <key>                  delete a record and its entries
  scan <collection> <path> <value-json>   exact-match index query
  range <collection> <path> <start> <end> range index query, end exclusive
  rebuild <collection>                    re-derive the index partition
  stats                                   cache counters
  exit | quit`

type repl struct {
	store *pathdex.Store
	rl    *readline.Instance
}

func (r *repl) open() (err error) {
	r.rl, err = readline.NewEx(&readline.Config{
		Prompt:          "◌ ", //"\033[31m◌\033[0m ",
		HistoryFile:     ".pathdex_cmd_log.txt",
		AutoComplete:    completer,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",

		HistorySearchFold:   true,
		FuncFilterInputRune: filterInput,
	})
	if err != nil {
		return
	}
	r.rl.CaptureExitSignal()
	return
}

func decodeJSON(s string) (any, error) {
	dec := json.NewDecoder(bytes.NewReader([]byte(s)))
	dec.UseNumber()
	var out any
	if err := dec.Decode(&out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *repl) run(cmd string, args []string) error {
	ctx := context.Background()
	switch cmd {
	case "help":
		fmt.Println(usage)

	case "model":
		if len(args) < 2 {
			return fmt.Errorf("usage: model <collection> <sample-json>")
		}
		sample, err := decodeJSON(strings.Join(args[1:], " "))
		if err != nil {
			return err
		}
		return r.store.RegisterModel(args[0], sample, nil)

	case "index":
		if len(args) != 3 {
			return fmt.Errorf("usage: index <collection> <path> <type>")
		}
		return r.store.RegisterIndexes(args[0], args[1], args[2])

	case "paths":
		if len(args) != 1 {
			return fmt.Errorf("usage: paths <collection>")
		}
		for _, info := range r.store.Types().Paths(args[0]) {
			p := info.Path
			if p == "" {
				p = "(record)"
			}
			line := fmt.Sprintf("%-40s %-12s %s", p, info.TypeName, info.Classification)
			if info.IsTagList {
				line += fmt.Sprintf(" tags<=%d", info.MaxTags)
			}
			fmt.Println(line)
		}

	case "put":
		if len(args) < 3 {
			return fmt.Errorf("usage: put <collection> <key> <record-json>")
		}
		rec, err := decodeJSON(strings.Join(args[2:], " "))
		if err != nil {
			return err
		}
		return r.store.UpdateWithIndexes(ctx, args[0], args[1], rec)

	case "get":
		if len(args) != 2 {
			return fmt.Errorf("usage: get <collection> <key>")
		}
		rec, found, err := r.store.Get(args[0], args[1])
		if err != nil {
			return err
		}
		if !found {
			fmt.Println("(not found)")
			return nil
		}
		out, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		fmt.Println(string(out))

	case "del":
		if len(args) != 2 {
			return fmt.Errorf("usage: del <collection> <key>")
		}
		return r.store.DeleteWithIndexes(ctx, args[0], args[1])

	case "scan":
		if len(args) < 3 {
			return fmt.Errorf("usage: scan <collection> <path> <value-json>")
		}
		val, err := decodeJSON(strings.Join(args[2:], " "))
		if err != nil {
			return err
		}
		return r.printMatches(ctx, args[0], args[1], pathdex.Query{Value: val})

	case "range":
		if len(args) != 4 {
			return fmt.Errorf("usage: range <collection> <path> <start> <end>")
		}
		start, err := decodeJSON(args[2])
		if err != nil {
			return err
		}
		end, err := decodeJSON(args[3])
		if err != nil {
			return err
		}
		return r.printMatches(ctx, args[0], args[1], pathdex.Query{Start: start, End: end})

	case "rebuild":
		if len(args) != 1 {
			return fmt.Errorf("usage: rebuild <collection>")
		}
		return r.store.RebuildIndexes(ctx, args[0], 0)

	case "stats":
		s := r.store.CacheStats()
		fmt.Printf("cache %d/%d hits=%d misses=%d hit_rate=%.2f\n",
			s.Size, s.Capacity, s.Hits, s.Misses, s.HitRate)

	default:
		return fmt.Errorf("command unknown: %s", cmd)
	}
	return nil
}

func (r *repl) printMatches(ctx context.Context, collection, path string, q pathdex.Query) error {
	items, err := r.store.ItemsWithIndexes(ctx, collection, path, q)
	if err != nil {
		return err
	}
	n := 0
	for pk, rec := range items {
		out, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		fmt.Printf("%s\t%s\n", pk, out)
		n++
	}
	fmt.Printf("(%d matched)\n", n)
	return nil
}

func main() {
	dbPath := flag.String("db", "", "data directory; empty runs in memory")
	flag.Parse()

	var db kv.Store
	var err error
	if *dbPath == "" {
		db, err = kv.OpenMem()
	} else {
		db, err = kv.Open(*dbPath)
	}
	if err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(-1)
	}

	if err = pathdex.RegisterMetrics(prometheus.DefaultRegisterer, db); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(-1)
	}

	store, err := pathdex.New(db, &pathdex.Options{
		CacheSize: 1024,
		Logger:    utils.NewDefaultLogger(slog.LevelWarn),
	})
	if err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(-1)
	}

	r := repl{store: store}
	if err = r.open(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(-1)
	}
	defer r.rl.Close()

	for {
		line, err := r.rl.Readline()
		if err == readline.ErrInterrupt {
			if len(line) == 0 {
				break
			}
			continue
		} else if err == io.EOF {
			break
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		cmd, args := fields[0], fields[1:]
		if cmd == "exit" || cmd == "quit" {
			break
		}
		if err = r.run(cmd, args); err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "Error executing %s: %s\n", cmd, err.Error())
		}
	}
	if err = store.Close(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(-1)
	}
}
