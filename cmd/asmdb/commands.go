package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/sheltermanager/asmdb"
	"github.com/sheltermanager/asmdb/wordprocessor"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

var (
	queryLimit    int
	queryDistinct string
	queryCacheAge time.Duration
	execDBUpdate  bool

	renderTags  string
	renderPlain bool
	renderImage string
	outPath     string

	generateKind     string
	generateID       int64
	generateTemplate int64
	generateUser     string
)

var queryCmd = &cobra.Command{
	Use:   "query [sql]",
	Short: "Run a query and print the rows as YAML",
	Args:  cobra.ExactArgs(1),
	RunE:  runQuery,
}

var execCmd = &cobra.Command{
	Use:   "exec [sql]",
	Short: "Run statements separated by semicolons",
	Args:  cobra.ExactArgs(1),
	RunE:  runExec,
}

var nextIDCmd = &cobra.Command{
	Use:   "nextid [table]",
	Short: "Print the next ID of a table",
	Args:  cobra.ExactArgs(1),
	RunE:  runNextID,
}

var explainCmd = &cobra.Command{
	Use:   "explain [sql]",
	Short: "Print the query plan of a statement",
	Args:  cobra.ExactArgs(1),
	RunE:  runExplain,
}

var renderCmd = &cobra.Command{
	Use:   "render [template]",
	Short: "Fill an HTML or ODT template with tags from a YAML file",
	Long: `Fills the template file with the tags of a YAML file, for example:

  ANIMALNAME: Bob
  SHELTERCODE: C2024001

Without --plain the template must be .html or .odt and tags are written as
&lt;&lt;TAG&gt;&gt;. With --plain any text file is accepted with <<TAG>>.`,
	Args: cobra.ExactArgs(1),
	RunE: runRender,
}

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate a document for a record from a stored template",
	RunE:  runGenerate,
}

func runQuery(cmd *cobra.Command, args []string) error {
	dbo, closeDB, err := openDatabase()
	if err != nil {
		return err
	}
	defer closeDB()
	opts := asmdb.QueryOptions{Limit: queryLimit, DistinctOn: queryDistinct}
	var rows []*asmdb.Row
	if queryCacheAge > 0 {
		rows, err = dbo.QueryCache(args[0], nil, queryCacheAge, opts)
	} else {
		rows, err = dbo.QueryWithOptions(args[0], nil, opts)
	}
	if err != nil {
		return err
	}
	out := make([]map[string]interface{}, len(rows))
	for i, r := range rows {
		out[i] = r.Map()
	}
	enc := yaml.NewEncoder(cmd.OutOrStdout())
	defer enc.Close()
	return enc.Encode(out)
}

func runExec(cmd *cobra.Command, args []string) error {
	dbo, closeDB, err := openDatabase()
	if err != nil {
		return err
	}
	defer closeDB()
	var total int64
	for _, sql := range asmdb.SplitQueries(args[0]) {
		var n int64
		if execDBUpdate {
			n, err = dbo.ExecuteDBUpdate(sql)
		} else {
			n, err = dbo.Execute(sql)
		}
		if err != nil {
			return err
		}
		total += n
	}
	logger.Info("executed", zap.Int64("rows_affected", total))
	fmt.Fprintln(cmd.OutOrStdout(), total)
	return nil
}

func runNextID(cmd *cobra.Command, args []string) error {
	dbo, closeDB, err := openDatabase()
	if err != nil {
		return err
	}
	defer closeDB()
	id, err := dbo.GetID(args[0])
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), id)
	return nil
}

func runExplain(cmd *cobra.Command, args []string) error {
	dbo, closeDB, err := openDatabase()
	if err != nil {
		return err
	}
	defer closeDB()
	plan, err := dbo.QueryExplain(args[0])
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), plan)
	return nil
}

func runRender(cmd *cobra.Command, args []string) error {
	content, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}
	tags := wordprocessor.Tags{}
	if renderTags != "" {
		data, err := os.ReadFile(renderTags)
		if err != nil {
			return err
		}
		if err := yaml.Unmarshal(data, &tags); err != nil {
			return fmt.Errorf("failed to parse tags: %w", err)
		}
	}
	var out []byte
	if renderPlain {
		out = []byte(wordprocessor.SubstituteTagsPlain(string(content), tags))
	} else {
		var image []byte
		if renderImage != "" {
			if image, err = os.ReadFile(renderImage); err != nil {
				return err
			}
		}
		tpl := wordprocessor.Template{Name: filepath.Base(args[0]), Content: content}
		if out, err = wordprocessor.SubstituteTemplate(tpl, tags, image); err != nil {
			return err
		}
	}
	return writeOutput(cmd.OutOrStdout(), out)
}

func runGenerate(cmd *cobra.Command, args []string) error {
	dbo, closeDB, err := openDatabase()
	if err != nil {
		return err
	}
	defer closeDB()
	ctx := context.Background()
	store, err := wordprocessor.NewTemplateStore(ctx, dbo, dbo.Config().Templates)
	if err != nil {
		return err
	}
	g := wordprocessor.NewGenerator(dbo, store)
	out, err := g.Generate(ctx, wordprocessor.Kind(generateKind), generateTemplate, generateID, generateUser)
	if err != nil {
		return err
	}
	logger.Info("document generated",
		zap.String("kind", generateKind),
		zap.Int64("id", generateID),
		zap.Int("bytes", len(out)))
	return writeOutput(cmd.OutOrStdout(), out)
}

func writeOutput(stdout io.Writer, data []byte) error {
	if outPath == "" {
		_, err := stdout.Write(data)
		return err
	}
	return os.WriteFile(outPath, data, 0644)
}
