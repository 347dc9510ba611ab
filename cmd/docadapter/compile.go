package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/dolmen-go/contextio"
	"github.com/spf13/cobra"
	"github.com/vinicius-lino-figueiredo/docadapter/adapter/codec"
	"github.com/vinicius-lino-figueiredo/docadapter/adapter/document"
	"github.com/vinicius-lino-figueiredo/docadapter/adapter/query"
	"github.com/vinicius-lino-figueiredo/docadapter/adapter/schema"
	"github.com/vinicius-lino-figueiredo/docadapter/adapter/update"
	"github.com/vinicius-lino-figueiredo/docadapter/domain"
	"go.mongodb.org/mongo-driver/bson"
	"gopkg.in/yaml.v3"
)

func (c *cli) whereCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "where [predicate]",
		Short: "Compile an application predicate into a native filter",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, in, err := c.compileInput(cmd, args)
			if err != nil {
				return err
			}
			count, _ := cmd.Flags().GetBool("count")
			compiler := query.NewCompiler(query.WithLogger(c.logger))
			filter, err := compiler.Where(s.ClassName, in, &s, count)
			if err != nil {
				return err
			}
			return printDoc(cmd.OutOrStdout(), filter)
		},
	}
	addSchemaFlag(cmd)
	cmd.Flags().Bool("count", false, "compile geo operators the way counts run them")
	return cmd
}

func (c *cli) updateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "update [update]",
		Short: "Compile an application update into a native update document",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, in, err := c.compileInput(cmd, args)
			if err != nil {
				return err
			}
			upd, err := update.NewCompiler().Update(s.ClassName, in, &s)
			if err != nil {
				return err
			}
			return printDoc(cmd.OutOrStdout(), upd)
		},
	}
	addSchemaFlag(cmd)
	return cmd
}

func (c *cli) objectCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "object [object]",
		Short: "Build the stored document of a new application object",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, in, err := c.compileInput(cmd, args)
			if err != nil {
				return err
			}
			doc, err := document.NewBuilder(document.WithLogger(c.logger)).ForCreate(s.ClassName, in, &s)
			if err != nil {
				return err
			}
			return printDoc(cmd.OutOrStdout(), doc)
		},
	}
	addSchemaFlag(cmd)
	return cmd
}

func (c *cli) schemaCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Build the stored schema document of a class",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := c.schema(cmd)
			if err != nil {
				return err
			}
			doc, err := schema.Document(s.ClassName, s.Fields, s.CLP, s.Indexes)
			if err != nil {
				return err
			}
			return printDoc(cmd.OutOrStdout(), doc)
		},
	}
	addSchemaFlag(cmd)
	return cmd
}

func addSchemaFlag(cmd *cobra.Command) {
	cmd.Flags().StringP(keySchema, "s", "", "YAML or JSON class schema file (or DOCADAPTER_SCHEMA)")
}

func (c *cli) schema(cmd *cobra.Command) (domain.Schema, error) {
	path, _ := cmd.Flags().GetString(keySchema)
	if path == "" {
		path = c.v.GetString(keySchema)
	}
	if path == "" {
		return domain.Schema{}, domain.Invalid("no schema file given")
	}
	c.logger.Debug("loading schema", "path", path)
	return loadSchema(path)
}

// compileInput loads the schema and reads the application document given as
// argument or, when there is none, from the standard input.
func (c *cli) compileInput(cmd *cobra.Command, args []string) (domain.Schema, map[string]any, error) {
	s, err := c.schema(cmd)
	if err != nil {
		return domain.Schema{}, nil, err
	}
	var r io.Reader
	if len(args) > 0 {
		r = strings.NewReader(args[0])
	} else {
		r = cmd.InOrStdin()
	}
	in, err := readInput(cmd.Context(), r)
	if err != nil {
		return domain.Schema{}, nil, err
	}
	return s, in, nil
}

// readInput decodes one JSON or YAML object in REST form.
func readInput(ctx context.Context, r io.Reader) (map[string]any, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	b, err := io.ReadAll(contextio.NewReader(ctx, r))
	if err != nil {
		return nil, err
	}
	var raw map[string]any
	if err := yaml.Unmarshal(b, &raw); err != nil {
		return nil, fmt.Errorf("invalid input: %w", err)
	}
	if raw == nil {
		raw = map[string]any{}
	}
	v, err := codec.FromJSON(raw)
	if err != nil {
		return nil, err
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, domain.Invalid("input must be an object, got %T", v)
	}
	return m, nil
}

func printDoc(w io.Writer, doc any) error {
	b, err := bson.MarshalExtJSONIndent(doc, false, false, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(b))
	return err
}
