package cmd

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/rzbill/quill/internal/queue"
)

// messageView is the JSON shape the CLI prints for a message.
type messageView struct {
	ID            string `json:"id"`
	Body          string `json:"body"`
	Group         string `json:"group,omitempty"`
	Priority      int    `json:"priority,omitempty"`
	DelaySeconds  int    `json:"delaySeconds,omitempty"`
	ReceivedCount int    `json:"receivedCount"`
	SentAt        string `json:"sentAt"`
	LeaseExpires  string `json:"leaseExpires,omitempty"`
}

func viewOf(m queue.Message) messageView {
	v := messageView{
		ID:            m.ID,
		Body:          string(m.Body),
		Group:         m.Attributes.MessageGroupID,
		Priority:      m.Attributes.Priority,
		DelaySeconds:  m.Attributes.DelaySeconds,
		ReceivedCount: m.Metadata.ReceivedCount,
		SentAt:        time.UnixMilli(m.Metadata.SentAtMs).UTC().Format(time.RFC3339),
	}
	if m.Metadata.ProcessingExpiresAtMs != 0 {
		v.LeaseExpires = time.UnixMilli(m.Metadata.ProcessingExpiresAtMs).UTC().Format(time.RFC3339)
	}
	return v
}

func newSendCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "send <queue>",
		Short: "Send a message",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			body, _ := cmd.Flags().GetString("body")
			bodyFile, _ := cmd.Flags().GetString("body-file")
			if bodyFile != "" {
				data, err := os.ReadFile(bodyFile)
				if err != nil {
					return err
				}
				body = string(data)
			}

			opts := queue.SendOptions{}
			opts.MessageGroupID, _ = cmd.Flags().GetString("group")
			opts.MessageDeduplicationID, _ = cmd.Flags().GetString("dedup-id")
			if cmd.Flags().Changed("priority") {
				p, _ := cmd.Flags().GetInt("priority")
				opts.Priority = queue.Int(p)
			}
			if cmd.Flags().Changed("delay") {
				d, _ := cmd.Flags().GetInt("delay")
				opts.DelaySeconds = queue.Int(d)
			}

			rt, err := openRuntime(cmd)
			if err != nil {
				return err
			}
			defer rt.Close()

			q, err := rt.Queue(args[0])
			if err != nil {
				return err
			}
			msgID, err := q.SendMessage(cmd.Context(), []byte(body), opts, 0)
			if err != nil {
				return err
			}
			return printJSON(map[string]string{"id": msgID})
		},
	}
	cmd.Flags().StringP("body", "m", "", "Message body")
	cmd.Flags().String("body-file", "", "Read the body from a file")
	cmd.Flags().String("group", "", "Message group id (FIFO)")
	cmd.Flags().String("dedup-id", "", "Deduplication id (FIFO)")
	cmd.Flags().Int("priority", 0, "Priority level (priority queues)")
	cmd.Flags().Int("delay", 0, "Delay in seconds (delayed queues)")
	return cmd
}

func newReceiveCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "receive <queue>",
		Short: "Lease messages",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := queue.ReceiveOptions{}
			opts.MaxMessages, _ = cmd.Flags().GetInt("max")
			opts.MessageGroupID, _ = cmd.Flags().GetString("group")
			opts.MinPriority, _ = cmd.Flags().GetInt("min-priority")
			opts.MaxPriority, _ = cmd.Flags().GetInt("max-priority")
			opts.Filter, _ = cmd.Flags().GetString("filter")
			if ms, _ := cmd.Flags().GetInt("visibility-ms"); ms > 0 {
				opts.VisibilityTimeout = time.Duration(ms) * time.Millisecond
			}
			ack, _ := cmd.Flags().GetBool("ack")

			rt, err := openRuntime(cmd)
			if err != nil {
				return err
			}
			defer rt.Close()

			q, err := rt.Queue(args[0])
			if err != nil {
				return err
			}
			msgs, err := q.ReceiveMessages(cmd.Context(), opts, 0)
			if err != nil {
				return err
			}
			if ack {
				for _, m := range msgs {
					if _, err := q.AcknowledgeMessage(cmd.Context(), m.ID); err != nil {
						return err
					}
				}
			}
			views := make([]messageView, len(msgs))
			for i, m := range msgs {
				views[i] = viewOf(m)
			}
			return printJSON(views)
		},
	}
	cmd.Flags().IntP("max", "n", 1, "Maximum messages to lease")
	cmd.Flags().String("group", "", "Restrict to one message group (FIFO)")
	cmd.Flags().Int("min-priority", 0, "Minimum priority, inclusive")
	cmd.Flags().Int("max-priority", 0, "Maximum priority, inclusive")
	cmd.Flags().String("filter", "", "CEL filter expression")
	cmd.Flags().Int("visibility-ms", 0, "Visibility timeout override in ms")
	cmd.Flags().Bool("ack", false, "Acknowledge each message after printing")
	return cmd
}

func newAckCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "ack <queue> <id>...",
		Short: "Acknowledge messages",
		Args:  cobra.MinimumNArgs(2),
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
			results := make(map[string]bool, len(args)-1)
			for _, msgID := range args[1:] {
				ok, err := q.AcknowledgeMessage(cmd.Context(), msgID)
				if err != nil {
					return err
				}
				results[msgID] = ok
			}
			return printJSON(results)
		},
	}
}

func newDelayCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delay <queue> <id> <seconds>",
		Short: "Reschedule a delayed message",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			seconds, err := strconv.Atoi(args[2])
			if err != nil {
				return fmt.Errorf("invalid seconds %q", args[2])
			}
			rt, err := openRuntime(cmd)
			if err != nil {
				return err
			}
			defer rt.Close()

			q, err := rt.Queue(args[0])
			if err != nil {
				return err
			}
			if err := q.ChangeMessageDelay(cmd.Context(), args[1], seconds, 0); err != nil {
				return err
			}
			return printJSON(map[string]string{"id": args[1], "status": "rescheduled"})
		},
	}
}
