package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"slot-settlement/config"
	"slot-settlement/internal/notify"
	"slot-settlement/internal/services"
	"slot-settlement/internal/status"

	"github.com/pocketbase/pocketbase/core"
	"github.com/spf13/cobra"
)

func newDrainRefundsCmd(engine *services.Engine) *cobra.Command {
	var slotID string
	var limit int

	cmd := &cobra.Command{
		Use:   "drain-refunds",
		Short: "Pay queued outbid refunds of an auction slot, oldest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			paid, total, err := engine.DrainRefunds(cmd.Context(), slotID, limit)
			if err != nil {
				return err
			}
			cmd.Printf("paid %d refunds totalling %d\n", paid, total)
			return nil
		},
	}
	cmd.Flags().StringVar(&slotID, "slot", "", "slot id")
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum refunds to pay, 0 for all")
	_ = cmd.MarkFlagRequired("slot")
	return cmd
}

func newReleaseHoldsCmd(app core.App, engine *services.Engine) *cobra.Command {
	var slots []string

	cmd := &cobra.Command{
		Use:   "release-holds",
		Short: "Release dispute holds whose window has passed",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(slots) == 0 {
				ids, err := projectedSlotIDs(app)
				if err != nil {
					return err
				}
				slots = ids
			}
			released, err := releaseHolds(cmd.Context(), engine, slots)
			if err != nil {
				return err
			}
			cmd.Printf("released %d holds across %d slots\n", released, len(slots))
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&slots, "slot", nil, "slot ids, all projected slots when omitted")
	return cmd
}

func projectedSlotIDs(app core.App) ([]string, error) {
	var ids []string
	err := app.DB().
		Select("slot_id").
		From(notify.SlotProjections).
		OrderBy("start_ts ASC").
		Column(&ids)
	if err != nil {
		return nil, fmt.Errorf("list projected slots: %w", err)
	}
	return ids, nil
}

func releaseHolds(ctx context.Context, engine *services.Engine, slots []string) (int, error) {
	total := 0
	for _, id := range slots {
		n, err := engine.ReleaseDueHolds(ctx, id)
		total += n
		if errors.Is(err, status.ErrFrozen) {
			slog.Info("skipping frozen slot", "slot_id", id)
			continue
		}
		if err != nil {
			return total, fmt.Errorf("release holds for %s: %w", id, err)
		}
	}
	return total, nil
}

func releaseHoldsLoop(ctx context.Context, app core.App, engine *services.Engine, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			ids, err := projectedSlotIDs(app)
			if err != nil {
				slog.Error("hold release scan failed", "error", err)
				continue
			}
			if _, err := releaseHolds(ctx, engine, ids); err != nil {
				slog.Error("hold release failed", "error", err)
			}
		}
	}
}

// applyBootstrap initialises the platform and registers its mints when the
// ledger has no platform yet. A ledger that is already initialised is left
// untouched.
func applyBootstrap(ctx context.Context, engine *services.Engine, path string) error {
	_, err := engine.GetPlatform(ctx)
	if err == nil {
		return nil
	}
	if !errors.Is(err, status.ErrPlatformNotInitialized) {
		return err
	}

	b, err := config.LoadBootstrap(path)
	if err != nil {
		return err
	}
	p, err := b.Platform()
	if err != nil {
		return err
	}
	mints, err := b.RegisteredMints()
	if err != nil {
		return err
	}

	if _, err := engine.InitPlatform(ctx, p.Admin, p); err != nil {
		return fmt.Errorf("bootstrap platform: %w", err)
	}
	for _, m := range mints {
		if _, err := engine.RegisterMint(ctx, p.Admin, m); err != nil {
			return fmt.Errorf("bootstrap mint %s: %w", m.Symbol, err)
		}
	}
	slog.Info("platform bootstrapped", "admin", p.Admin.String(), "mints", len(mints))
	return nil
}
