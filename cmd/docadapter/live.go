package main

import (
	"fmt"
	"slices"
	"strings"

	"github.com/spf13/cobra"
	"github.com/vinicius-lino-figueiredo/docadapter/domain"
)

func (c *cli) pingCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "ping",
		Short: "Connect to the store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withAdapter(cmd, func(a domain.StorageAdapter) error {
				if err := a.Connect(cmd.Context()); err != nil {
					return err
				}
				_, err := fmt.Fprintln(cmd.OutOrStdout(), "ok")
				return err
			})
		},
	}
}

func (c *cli) classesCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "classes",
		Short: "List the classes stored in the schema collection",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			verbose, _ := cmd.Flags().GetBool("fields")
			return c.withAdapter(cmd, func(a domain.StorageAdapter) error {
				classes, err := a.GetAllClasses(cmd.Context())
				if err != nil {
					return err
				}
				slices.SortFunc(classes, func(x, y domain.Schema) int {
					return strings.Compare(x.ClassName, y.ClassName)
				})
				w := cmd.OutOrStdout()
				for _, s := range classes {
					if !verbose {
						fmt.Fprintln(w, s.ClassName)
						continue
					}
					names := make([]string, 0, len(s.Fields))
					for name := range s.Fields {
						names = append(names, name)
					}
					slices.Sort(names)
					fmt.Fprintln(w, s.ClassName)
					for _, name := range names {
						f := s.Fields[name]
						if f.TargetClass != "" {
							fmt.Fprintf(w, "  %s\t%s<%s>\n", name, f.Type, f.TargetClass)
							continue
						}
						fmt.Fprintf(w, "  %s\t%s\n", name, f.Type)
					}
				}
				return nil
			})
		},
	}
	cmd.Flags().Bool("fields", false, "print the fields of each class")
	return cmd
}

// withAdapter opens the store, runs fn and shuts the store down.
func (c *cli) withAdapter(cmd *cobra.Command, fn func(domain.StorageAdapter) error) error {
	a, err := c.newAdapter()
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Shutdown(cmd.Context()); err != nil {
			c.logger.Warn("shutdown failed", "error", err)
		}
	}()
	return fn(a)
}
