package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"coordkv"
)

const defaultQueuePath = "coordkv:queue"

func queueCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "queue",
		Short: "put, get, consume, or size a locking priority queue",
	}

	var priority int
	put := &cobra.Command{
		Use:   "put <item>",
		Short: "add an item to the queue",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			q, err := buildQueue()
			if err != nil {
				return err
			}
			frac := q.Put(cmd.Context(), []byte(args[0]), priority)
			printResultf("put acknowledged by %.0f%% of the ensemble", frac*100)
			return nil
		},
	}
	put.Flags().IntVar(&priority, "priority", 100, "lower values are dequeued first")

	var noExtend, checkAll bool
	get := &cobra.Command{
		Use:   "get",
		Short: "dequeue and lock the lowest-priority item",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			q, err := buildQueue()
			if err != nil {
				return err
			}
			mode := coordkv.Extend()
			if noExtend {
				mode = coordkv.NoExtend()
			}
			payload, handle, ok := q.Get(cmd.Context(), mode, checkAll)
			if !ok {
				return fmt.Errorf("no item available (retryable)")
			}
			printResultf("handle=%s payload=%q", handle, payload)
			return nil
		},
	}
	get.Flags().BoolVar(&noExtend, "no-extend", false, "do not keep the lease alive in the background")
	get.Flags().BoolVar(&checkAll, "check-all", false, "sample every node instead of one at random")

	consume := &cobra.Command{
		Use:   "consume <handle>",
		Short: "mark an item permanently completed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			q, err := buildQueue()
			if err != nil {
				return err
			}
			pct, err := q.Consume(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			printResultf("consumed, acknowledged by %.0f%% of the ensemble", pct)
			return nil
		},
	}

	var wantQueued, wantTaken bool
	size := &cobra.Command{
		Use:   "size",
		Short: "report queue size",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			q, err := buildQueue()
			if err != nil {
				return err
			}
			n, err := q.Size(cmd.Context(), wantQueued, wantTaken)
			if err != nil {
				return err
			}
			printResultf("%d", n)
			return nil
		},
	}
	size.Flags().BoolVar(&wantQueued, "queued", false, "count unclaimed items")
	size.Flags().BoolVar(&wantTaken, "taken", false, "count locked items")

	cmd.AddCommand(put, get, consume, size)
	return cmd
}

func buildQueue() (*coordkv.Queue, error) {
	nodes, size, err := buildNodes()
	if err != nil {
		return nil, err
	}
	return coordkv.NewQueue(defaultQueuePath, nodes, size, coordkv.WithTimeout(timeout), coordkv.WithLogger(logger))
}
