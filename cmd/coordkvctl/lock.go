package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"coordkv"
)

func lockCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lock",
		Short: "acquire or release a majority lock on a path",
	}

	var extend bool
	acquire := &cobra.Command{
		Use:   "acquire <path>",
		Short: "acquire a majority lock",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			nodes, size, err := buildNodes()
			if err != nil {
				return err
			}
			l, err := coordkv.NewLock(nodes, size, coordkv.WithTimeout(timeout), coordkv.WithLogger(logger))
			if err != nil {
				return err
			}
			mode := coordkv.NoExtend()
			if extend {
				mode = coordkv.ExtendWithCallback(func(key string) {
					fmt.Fprintf(cmd.ErrOrStderr(), "lock: lost lease on %s\n", key)
				})
			}
			expireAt, ok := l.Lock(cmd.Context(), args[0], mode)
			if !ok {
				return fmt.Errorf("could not acquire a majority lock on %s", args[0])
			}
			printResultf("locked %s until unix %d", args[0], expireAt)
			return nil
		},
	}
	acquire.Flags().BoolVar(&extend, "extend", false, "arm a background extender for the lease; it stops when the command exits, right after acquiring")

	unlock := &cobra.Command{
		Use:   "unlock <path>",
		Short: "release a majority lock",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			nodes, size, err := buildNodes()
			if err != nil {
				return err
			}
			l, err := coordkv.NewLock(nodes, size, coordkv.WithTimeout(timeout), coordkv.WithLogger(logger))
			if err != nil {
				return err
			}
			frac := l.Unlock(cmd.Context(), args[0])
			printResultf("unlocked %s on %.0f%% of the ensemble", args[0], frac*100)
			return nil
		},
	}

	cmd.AddCommand(acquire, unlock)
	return cmd
}
