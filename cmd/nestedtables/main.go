package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/tordrt/nestedtables"
	"github.com/tordrt/nestedtables/internal/schema"
)

var (
	inputFormat  string
	mappingFile  string
	outputFile   string
	outputDir    string
	tables       string
	exclude      string
	format       string
	link         string
	listOfList   string
	strictTables bool
	allowUpdate  bool
	transparent  bool
	verbose      bool
)

var rootCmd = &cobra.Command{
	Use:   "nestedtables [file]",
	Short: "Decompose nested documents into relational tables",
	Long: `nestedtables reads a JSON, YAML or XML document and decomposes it into flat tables linked by
primary and foreign keys: nested objects become one-to-one relations, lists of objects one-to-many
relations and lists of scalars many-to-many join tables. Reads stdin when no file is given.`,
	Args:         cobra.MaximumNArgs(1),
	SilenceUsage: true,
	RunE:         run,
}

func init() {
	rootCmd.Flags().StringVar(&inputFormat, "input-format", "", "Input format: json, yaml or xml (default: from file extension)")
	rootCmd.Flags().StringVarP(&mappingFile, "mapping", "m", "", "Mapping file (.yaml, .yml or .toml) registering tables and policies")
	rootCmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output file (default: stdout)")
	rootCmd.Flags().StringVarP(&outputDir, "output-dir", "d", "", "Output directory for multi-file output")
	rootCmd.Flags().StringVarP(&tables, "tables", "t", "", "Specific tables (comma-separated, optional)")
	rootCmd.Flags().StringVar(&exclude, "exclude", "", "Tables to leave out (comma-separated, optional)")
	rootCmd.Flags().StringVarP(&format, "format", "f", "text", "Output format: text, markdown, csv, json, msgpack or xlsx")
	rootCmd.Flags().StringVar(&link, "link", "", "One-to-one link policy: down, up or both (default: down)")
	rootCmd.Flags().StringVar(&listOfList, "list-of-list", "", "Nested list policy: batch or strict (default: batch)")
	rootCmd.Flags().BoolVar(&strictTables, "strict-tables", false, "Fail on paths without a registered table instead of creating one")
	rootCmd.Flags().BoolVar(&allowUpdate, "allow-update", false, "Let a later write replace a column value")
	rootCmd.Flags().BoolVar(&transparent, "transparent", false, "Walk through objects without a table")
	rootCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Log every created table and row")
}

func run(cmd *cobra.Command, args []string) error {
	log := newLogger(cmd.ErrOrStderr(), verbose)

	// Validate flag combinations
	if outputDir != "" && outputFile != "" {
		return fmt.Errorf("cannot use both --output-dir and --output flags")
	}
	if len(args) == 0 && inputFormat == "" {
		return fmt.Errorf("--input-format is required when reading stdin")
	}

	opts, err := buildOptions(log)
	if err != nil {
		return err
	}

	var decomposed *schema.Schema
	if len(args) == 1 {
		decomposed, err = nestedtables.DecomposeFile(args[0], opts)
	} else {
		decomposed, err = nestedtables.DecomposeReader(cmd.InOrStdin(), opts)
	}
	if err != nil {
		return err
	}

	// Multi-file output
	if outputDir != "" {
		err := nestedtables.FormatSchema(decomposed, &nestedtables.OutputOptions{OutputDir: outputDir, Format: format})
		if err != nil {
			return fmt.Errorf("failed to format output: %w", err)
		}
		printSummary(cmd.ErrOrStderr(), decomposed)
		return nil
	}

	// Single-file output
	var writer = cmd.OutOrStdout()
	if outputFile != "" {
		f, err := os.Create(outputFile)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer func() {
			if err := f.Close(); err != nil {
				log.Warnf("failed to close output file: %v", err)
			}
		}()
		writer = f
	}

	if err := nestedtables.FormatSchema(decomposed, &nestedtables.OutputOptions{Writer: writer, Format: format}); err != nil {
		return fmt.Errorf("failed to format output: %w", err)
	}

	printSummary(cmd.ErrOrStderr(), decomposed)
	return nil
}

// buildOptions starts from the mapping file, if any, and applies the flags
func buildOptions(log *logrus.Logger) (*nestedtables.Options, error) {
	opts := &nestedtables.Options{}
	if mappingFile != "" {
		var err error
		opts, err = nestedtables.LoadOptions(mappingFile)
		if err != nil {
			return nil, err
		}
	}

	opts.Tables = parseTableList(tables)
	opts.ExcludeTables = parseTableList(exclude)
	opts.InputFormat = inputFormat
	opts.Link = link
	opts.ListOfList = listOfList
	opts.StrictTables = strictTables
	opts.AllowValueUpdate = allowUpdate
	opts.Transparent = transparent
	opts.Logger = log
	return opts, nil
}

func parseTableList(s string) []string {
	if s == "" {
		return nil
	}
	tableList := strings.Split(s, ",")
	for i, t := range tableList {
		tableList[i] = strings.TrimSpace(t)
	}
	return tableList
}

func newLogger(w io.Writer, verbose bool) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(w)
	log.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
	log.SetLevel(logrus.WarnLevel)
	if verbose {
		log.SetLevel(logrus.DebugLevel)
	}
	return log
}

func printSummary(w io.Writer, s *schema.Schema) {
	_, _ = fmt.Fprintf(w, "decomposed %s tables, %s rows\n",
		humanize.Comma(int64(len(s.Tables))),
		humanize.Comma(int64(s.RowCount())))
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
