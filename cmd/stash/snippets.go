package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/acksell/stash/entity"
	"github.com/acksell/stash/examples/snippets"
	"github.com/acksell/stash/recent"
)

const recentSnippetsKey = "recent-snippets"

func (a *app) snippets(ctx context.Context) (*entity.Manager[snippets.Snippet], error) {
	store, err := a.openStore(ctx)
	if err != nil {
		return nil, err
	}
	return snippets.Open(ctx, store, entity.Options[snippets.Snippet]{Logger: a.log})
}

func (a *app) recentSnippets(ctx context.Context) (*recent.List, error) {
	store, err := a.openStore(ctx)
	if err != nil {
		return nil, err
	}
	return recent.New(store, recentSnippetsKey, recent.Options{Logger: a.log}), nil
}

func (a *app) listCmd() *cobra.Command {
	var (
		query string
		sort  string
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List snippets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := a.snippets(cmd.Context())
			if err != nil {
				return err
			}
			list, err := m.List(cmd.Context())
			if err != nil {
				return err
			}
			list = snippets.Search(list, query)

			switch sort {
			case "", "none":
			case "name":
				entity.SortBy(list, func(e entity.Entity[snippets.Snippet]) string {
					return strings.ToLower(e.Fields.Name)
				}, false)
			case "updated":
				entity.SortBy(list, entity.ByUpdatedAt[snippets.Snippet], true)
			default:
				return fmt.Errorf("unknown sort %q (want name or updated)", sort)
			}

			tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tTAGS\tUPDATED")
			for _, e := range list {
				updated := "-"
				if !e.UpdatedAt.IsZero() {
					updated = e.UpdatedAt.Format(entity.TimeFormat)
				}
				name := e.Fields.Name
				if e.IsBuiltIn {
					name += " (built-in)"
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", e.ID, name, strings.Join(e.Fields.Tags, ","), updated)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVarP(&query, "query", "q", "", "only show snippets matching this text")
	cmd.Flags().StringVar(&sort, "sort", "", "sort by name or updated")
	return cmd
}

func (a *app) getCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Print one snippet as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			m, err := a.snippets(ctx)
			if err != nil {
				return err
			}
			e, ok, err := m.GetByID(ctx, args[0])
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("snippet %q not found", args[0])
			}

			if r, err := a.recentSnippets(ctx); err == nil {
				if err := r.Touch(ctx, e.ID); err != nil {
					a.log.Warn("failed to record recent snippet", zap.Error(err))
				}
			}
			return a.printJSON(e)
		},
	}
}

func (a *app) addCmd() *cobra.Command {
	var tags []string
	cmd := &cobra.Command{
		Use:   "add <name> <value>",
		Short: "Add a snippet",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := a.snippets(cmd.Context())
			if err != nil {
				return err
			}
			e, err := m.Add(cmd.Context(), snippets.New(args[0], args[1], tags))
			if err != nil {
				return err
			}
			fmt.Fprintln(a.out, e.ID)
			return nil
		},
	}
	cmd.Flags().StringSliceVarP(&tags, "tag", "t", nil, "tag to attach (repeatable)")
	return cmd
}

func (a *app) updateCmd() *cobra.Command {
	var (
		name, value string
		tags        []string
	)
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Change the name, value or tags of a snippet",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var patch snippets.SnippetPatch
			if cmd.Flags().Changed("name") {
				patch.Name = &name
			}
			if cmd.Flags().Changed("value") {
				patch.Value = &value
			}
			if cmd.Flags().Changed("tag") {
				patch.Tags = &tags
			}

			m, err := a.snippets(cmd.Context())
			if err != nil {
				return err
			}
			e, err := m.Update(cmd.Context(), args[0], patch)
			if err != nil {
				return err
			}
			return a.printJSON(e)
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "new name")
	cmd.Flags().StringVar(&value, "value", "", "new value")
	cmd.Flags().StringSliceVarP(&tags, "tag", "t", nil, "replace the tags (repeatable)")
	return cmd
}

func (a *app) deleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "delete <id>",
		Aliases: []string{"rm"},
		Short:   "Delete a snippet (built-ins are kept)",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			m, err := a.snippets(ctx)
			if err != nil {
				return err
			}
			if err := m.Delete(ctx, args[0]); err != nil {
				return err
			}
			r, err := a.recentSnippets(ctx)
			if err != nil {
				return err
			}
			return r.Remove(ctx, args[0])
		},
	}
}

func (a *app) resetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Remove all user snippets and restore the built-ins",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			m, err := a.snippets(ctx)
			if err != nil {
				return err
			}
			if err := m.Reset(ctx); err != nil {
				return err
			}
			r, err := a.recentSnippets(ctx)
			if err != nil {
				return err
			}
			if err := r.Clear(ctx); err != nil {
				return err
			}
			// Reseed right away so the next list shows stamped built-ins.
			_, err = a.snippets(ctx)
			return err
		},
	}
}

func (a *app) recentCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "recent [snippets|fetches]",
		Short:     "Show recently used snippets or fetched URLs",
		Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"snippets", "fetches"},
		RunE: func(cmd *cobra.Command, args []string) error {
			key := recentSnippetsKey
			if len(args) == 1 && args[0] == "fetches" {
				key = recentFetchesKey
			}
			store, err := a.openStore(cmd.Context())
			if err != nil {
				return err
			}
			ids, err := recent.New(store, key, recent.Options{Logger: a.log}).Items(cmd.Context())
			if err != nil {
				return err
			}
			for _, id := range ids {
				fmt.Fprintln(a.out, id)
			}
			return nil
		},
	}
}

func (a *app) printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(a.out, string(data))
	return err
}
