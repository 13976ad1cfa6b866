package cli

import (
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Tankobot/pyble/blockstore"
	"github.com/Tankobot/pyble/story"
	"github.com/Tankobot/pyble/tunnel"
)

// NewServeCommand runs a TCP ingest endpoint in front of the store. Each
// connection streams fixed width node records and receives one response line
// per record: the slot and sid on success, an error otherwise.
func NewServeCommand(opts *RootOptions) *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "accept node records over TCP and append them to the store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := DefaultServeConfig()
			if configPath != "" {
				var err error
				if cfg, err = LoadServeConfig(configPath); err != nil {
					return err
				}
			}
			if cfg.Store == "" {
				cfg.Store = opts.StorePath
			}

			s, err := blockstore.Open(opts.log, cfg.Store)
			if err != nil {
				return err
			}
			defer s.Close()

			reg := story.NewRegistry()
			ln := tunnel.NewListener(opts.log, cfg.Port)
			if err := ln.Start(ingestHandler(opts, s, reg)); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "listening on %s, store %s\n", ln.Addr(), cfg.Store)

			stop := make(chan os.Signal, 1)
			signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
			<-stop
			return ln.Stop()
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to a yaml serve configuration")
	return cmd
}

// ingestHandler reads records off one connection until EOF. Records are
// verified before they touch the store, a bad record ends the connection.
func ingestHandler(opts *RootOptions, s *blockstore.Store, reg *story.Registry) tunnel.Handler {
	return func(conn net.Conn) {
		defer conn.Close()

		buf := make([]byte, story.NodeBytes)
		for {
			if _, err := io.ReadFull(conn, buf); err != nil {
				if !errors.Is(err, io.EOF) {
					opts.log.Infof("ingest read: %v", err)
				}
				return
			}
			n, err := story.UnmarshalNode(reg, buf)
			if err != nil {
				fmt.Fprintf(conn, "error: %v\n", err)
				return
			}
			i, err := s.Append(n)
			if err != nil {
				fmt.Fprintf(conn, "error: %v\n", err)
				return
			}
			fmt.Fprintf(conn, "%d %s\n", i, n.SID())
		}
	}
}
