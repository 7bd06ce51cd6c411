// Command moodb is a small operator tool for inspecting and editing moodb
// tables. Records are handled as raw JSON documents, so it works against any
// table regardless of the record type the owning application uses.
package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"github.com/moodb/moodb"
	"github.com/spf13/cobra"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "moodb: %v\n", err)
		os.Exit(1)
	}
}

// document is a schemaless JSON record.
type document map[string]any

// Clone deep-copies the document so table internals are never aliased.
func (d document) Clone() document {
	return deepCopy(d).(document)
}

func deepCopy(v any) any {
	switch t := v.(type) {
	case document:
		c := make(document, len(t))
		for k, e := range t {
			c[k] = deepCopy(e)
		}
		return c
	case map[string]any:
		c := make(map[string]any, len(t))
		for k, e := range t {
			c[k] = deepCopy(e)
		}
		return c
	case []any:
		c := make([]any, len(t))
		for i, e := range t {
			c[i] = deepCopy(e)
		}
		return c
	default:
		return v
	}
}

var (
	flagDir      string
	flagTable    string
	flagCodec    string
	flagConfig   string
	flagLogLevel string
)

var rootCmd = &cobra.Command{
	Use:           "moodb",
	Short:         "Inspect and edit moodb tables",
	SilenceUsage:  true,
	SilenceErrors: true,
	Long: `Inspect and edit moodb tables.

Each table is a single file under the storage root, holding string keys and
JSON values. Every mutation rewrites the file atomically, so it is safe to
interrupt this tool at any point.

Examples:
  moodb -t bank_accounts insert "John Doe" '{"balance": 100, "age": 20}'
  moodb -t bank_accounts get "John Doe"
  moodb -t bank_accounts keys
  moodb -t bank_accounts dump`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return setupLogging()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagDir, "dir", "", "Storage root directory (default \"moodb\")")
	rootCmd.PersistentFlags().StringVarP(&flagTable, "table", "t", "", "Table name")
	rootCmd.PersistentFlags().StringVar(&flagCodec, "codec", "", "Table codec: json or msgpack (default \"json\")")
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "Path to a YAML config file")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "warn", "Log level (debug, info, warn, error)")
	_ = rootCmd.MarkPersistentFlagRequired("table")

	rootCmd.AddCommand(getCmd, insertCmd, updateCmd, deleteCmd, keysCmd, dumpCmd, resetCmd, dropCmd)
}

func setupLogging() error {
	level := slog.LevelWarn
	switch flagLogLevel {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("unknown log level: %q", flagLogLevel)
	}
	logger := slog.New(tint.NewHandler(colorable.NewColorable(os.Stderr), &tint.Options{
		Level:      level,
		TimeFormat: "15:04:05.000",
		NoColor:    !isatty.IsTerminal(os.Stderr.Fd()),
	}))
	slog.SetDefault(logger)
	return nil
}

// buildOptions merges the config file (if any) with command-line flags;
// flags win.
func buildOptions() (*moodb.Options, error) {
	opts := &moodb.Options{}
	if flagConfig != "" {
		loaded, err := moodb.LoadOptions(flagConfig)
		if err != nil {
			return nil, err
		}
		opts = loaded
	}
	if flagDir != "" {
		opts.Dir = flagDir
	}
	if flagCodec != "" {
		codec, err := moodb.CodecByName(flagCodec)
		if err != nil {
			return nil, err
		}
		opts.Codec = codec
	}
	return opts, nil
}

func openTable() (*moodb.Table[document], error) {
	opts, err := buildOptions()
	if err != nil {
		return nil, err
	}
	client, err := moodb.New[document](flagTable, opts)
	if err != nil {
		return nil, err
	}
	return client.Table()
}

func printJSON(v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

var getCmd = &cobra.Command{
	Use:   "get KEY",
	Short: "Print the record stored under KEY",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		table, err := openTable()
		if err != nil {
			return err
		}
		doc, ok := table.Get(args[0])
		if !ok {
			return fmt.Errorf("no record with key %q", args[0])
		}
		return printJSON(doc)
	},
}

var insertCmd = &cobra.Command{
	Use:   "insert KEY JSON",
	Short: "Insert a new record",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		table, err := openTable()
		if err != nil {
			return err
		}
		var doc document
		if err := json.Unmarshal([]byte(args[1]), &doc); err != nil {
			return fmt.Errorf("invalid JSON value: %w", err)
		}
		return table.Insert(args[0], doc)
	},
}

var updateCmd = &cobra.Command{
	Use:   "update KEY JSON",
	Short: "Replace an existing record",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		table, err := openTable()
		if err != nil {
			return err
		}
		var doc document
		if err := json.Unmarshal([]byte(args[1]), &doc); err != nil {
			return fmt.Errorf("invalid JSON value: %w", err)
		}
		return table.Update(args[0], doc)
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete KEY",
	Short: "Delete the record stored under KEY",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		table, err := openTable()
		if err != nil {
			return err
		}
		return table.Delete(args[0])
	},
}

var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "List all keys in sorted order",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		table, err := openTable()
		if err != nil {
			return err
		}
		for key := range table.Keys() {
			fmt.Println(key)
		}
		return nil
	},
}

var dumpCmd = &cobra.Command{
	Use:   "dump",
	Short: "Print every record in insertion order",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		table, err := openTable()
		if err != nil {
			return err
		}
		for key, doc := range table.All() {
			line, err := json.Marshal(map[string]any{"key": key, "value": doc})
			if err != nil {
				return err
			}
			fmt.Println(string(line))
		}
		return nil
	},
}

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Remove every record but keep the table file",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		table, err := openTable()
		if err != nil {
			return err
		}
		return table.Reset()
	},
}

var dropCmd = &cobra.Command{
	Use:   "drop",
	Short: "Delete the table file",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		opts, err := buildOptions()
		if err != nil {
			return err
		}
		client, err := moodb.New[document](flagTable, opts)
		if err != nil {
			return err
		}
		return client.Drop()
	},
}
