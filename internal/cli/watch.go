package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/Jinnapat/jod-rod-matching-service/internal/config"
	"github.com/Jinnapat/jod-rod-matching-service/internal/queue"
)

func newWatchCmd(cfgPath *string) *cobra.Command {
	var key string
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Print notifications published on a channel key (a user id or parking lot id)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*cfgPath)
			if err != nil {
				return err
			}
			err = watch(cmd.Context(), cfg.Broker, key, cmd.OutOrStdout())
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}
	cmd.Flags().StringVarP(&key, "key", "k", "", "channel key to consume")
	_ = cmd.MarkFlagRequired("key")
	return cmd
}

func watch(ctx context.Context, b config.BrokerConfig, key string, out io.Writer) error {
	show := func(ev queue.ReservationEvent) error {
		_, err := fmt.Fprintln(out, queue.FormatEvent(ev))
		return err
	}
	if b.Kind == config.BrokerNATS {
		return queue.WatchNATS(ctx, b.NATSURL, key, show)
	}
	return queue.WatchAMQP(ctx, b.AMQPURL, key, show)
}
