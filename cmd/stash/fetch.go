package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/acksell/stash/fetchcache"
	"github.com/acksell/stash/httpjson"
	"github.com/acksell/stash/recent"
)

const recentFetchesKey = "recent-fetches"

func (a *app) fetchCmd() *cobra.Command {
	var (
		key        string
		token      string
		maxAge     time.Duration
		cachedOnly bool
	)
	cmd := &cobra.Command{
		Use:   "fetch <url>",
		Short: "Fetch a JSON document, falling back to the last cached copy",
		Long: `Fetch a JSON document and cache it locally. When the request fails the
last successful response is printed instead.

  stash fetch https://api.github.com/repos/golang/go
  stash fetch --cached https://api.github.com/repos/golang/go`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			url := args[0]
			if key == "" {
				key = "fetch:" + url
			}
			if !cmd.Flags().Changed("max-age") {
				maxAge = a.cfg.Fetch.MaxAge
			}
			if token == "" {
				token = a.cfg.Fetch.Token
			}

			store, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			cache := fetchcache.New[json.RawMessage](store, fetchcache.Options{
				MaxAge: maxAge,
				Logger: a.log,
			})

			var doc json.RawMessage
			if cachedOnly {
				var ok bool
				doc, ok = cache.Get(ctx, key)
				if !ok {
					return fmt.Errorf("no cached response for %s", url)
				}
			} else {
				client := httpjson.New(httpjson.Options{
					Token:   token,
					Timeout: a.cfg.Fetch.Timeout,
					Logger:  a.log,
				})
				doc, err = cache.FetchAndCache(ctx, key, httpjson.GetFunc[json.RawMessage](client, url))
				if err != nil {
					return err
				}
				if err := recent.New(store, recentFetchesKey, recent.Options{Logger: a.log}).Touch(ctx, url); err != nil {
					a.log.Warn("failed to record recent fetch", zap.Error(err))
				}
			}

			if len(bytes.TrimSpace(doc)) == 0 {
				return fmt.Errorf("empty response for %s", url)
			}
			var out bytes.Buffer
			if err := json.Indent(&out, doc, "", "  "); err != nil {
				return fmt.Errorf("format response: %w", err)
			}
			fmt.Fprintln(a.out, out.String())
			return nil
		},
	}
	cmd.Flags().StringVar(&key, "key", "", "cache key (defaults to fetch:<url>)")
	cmd.Flags().StringVar(&token, "token", "", "bearer token (defaults to fetch.token)")
	cmd.Flags().DurationVar(&maxAge, "max-age", 0, "treat cached copies older than this as missing")
	cmd.Flags().BoolVar(&cachedOnly, "cached", false, "print the cached copy without fetching")
	return cmd
}
