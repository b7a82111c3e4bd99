package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/acksell/stash/kv"
)

func (a *app) kvCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "kv",
		Short: "Read and write raw keys",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "get <key>",
			Short: "Print the value stored under key",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				store, err := a.openStore(cmd.Context())
				if err != nil {
					return err
				}
				v, ok, err := store.GetItem(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if !ok {
					return fmt.Errorf("key %q not found", args[0])
				}
				fmt.Fprintln(a.out, v)
				return nil
			},
		},
		&cobra.Command{
			Use:   "set <key> <value>",
			Short: "Store value under key",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				store, err := a.openStore(cmd.Context())
				if err != nil {
					return err
				}
				return store.SetItem(cmd.Context(), args[0], args[1])
			},
		},
		&cobra.Command{
			Use:   "rm <key>",
			Short: "Remove key",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				store, err := a.openStore(cmd.Context())
				if err != nil {
					return err
				}
				return store.RemoveItem(cmd.Context(), args[0])
			},
		},
		&cobra.Command{
			Use:   "keys [prefix]",
			Short: "List keys, optionally by prefix",
			Args:  cobra.MaximumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				store, err := a.openStore(cmd.Context())
				if err != nil {
					return err
				}
				lister, ok := store.(kv.Lister)
				if !ok {
					return fmt.Errorf("backend %s cannot list keys", a.cfg.Backend)
				}
				var prefix string
				if len(args) == 1 {
					prefix = args[0]
				}
				keys, err := lister.Keys(cmd.Context(), prefix)
				if err != nil {
					return err
				}
				for _, k := range keys {
					fmt.Fprintln(a.out, k)
				}
				return nil
			},
		},
	)
	return cmd
}
