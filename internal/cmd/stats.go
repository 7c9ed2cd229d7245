package cmd

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/rzbill/quill/internal/queue"
)

type statsView struct {
	Name          string         `json:"name"`
	Policy        string         `json:"policy"`
	Ready         int            `json:"ready"`
	Delayed       int            `json:"delayed,omitempty"`
	InFlight      int            `json:"inFlight"`
	DeadLettered  int            `json:"deadLettered,omitempty"`
	TotalSent     uint64         `json:"totalSent"`
	TotalReceived uint64         `json:"totalReceived"`
	Groups        map[string]int `json:"groups,omitempty"`
	Levels        map[int]int    `json:"levels,omitempty"`
	NextVisibleAt string         `json:"nextVisibleAt,omitempty"`
}

func statsOf(attrs queue.QueueAttributes) statsView {
	v := statsView{
		Name:          attrs.Name,
		Policy:        string(attrs.Policy),
		Ready:         attrs.Ready,
		Delayed:       attrs.Delayed,
		InFlight:      attrs.InFlight,
		DeadLettered:  attrs.DeadLettered,
		TotalSent:     attrs.TotalSent,
		TotalReceived: attrs.TotalReceived,
		Groups:        attrs.Groups,
		Levels:        attrs.Levels,
	}
	if attrs.NextVisibleAtMs != 0 {
		v.NextVisibleAt = time.UnixMilli(attrs.NextVisibleAtMs).UTC().Format(time.RFC3339)
	}
	return v
}

func newStatsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats [queue]",
		Short: "Show queue statistics",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := openRuntime(cmd)
			if err != nil {
				return err
			}
			defer rt.Close()

			names := rt.Queues()
			if len(args) == 1 {
				names = args[:1]
			}
			views := make([]statsView, 0, len(names))
			for _, name := range names {
				q, err := rt.Queue(name)
				if err != nil {
					return err
				}
				views = append(views, statsOf(q.Attributes(0)))
			}
			if len(args) == 1 {
				return printJSON(views[0])
			}
			return printJSON(views)
		},
	}

	deadCmd := &cobra.Command{
		Use:   "dead <queue>",
		Short: "List dead-lettered messages",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := openRuntime(cmd)
			if err != nil {
				return err
			}
			defer rt.Close()

			q, err := rt.Queue(args[0])
			if err != nil {
				return err
			}
			dead := q.DeadLetters()
			views := make([]messageView, len(dead))
			for i, m := range dead {
				views[i] = viewOf(m)
			}
			return printJSON(views)
		},
	}
	cmd.AddCommand(deadCmd)
	return cmd
}

func newQueuesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "queues",
		Short: "List declared queues",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := openRuntime(cmd)
			if err != nil {
				return err
			}
			defer rt.Close()
			return printJSON(rt.Queues())
		},
	}
}
