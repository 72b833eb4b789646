package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/cortexai/ingest/internal/models"
	"github.com/cortexai/ingest/internal/retry"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

// Provisioner ensures target datasets exist before loading. Safe to
// invoke concurrently for the same dataset: a create conflict counts as
// success, and in-process duplicates collapse via singleflight.
type Provisioner struct {
	store  Store
	policy retry.Policy
	group  singleflight.Group
}

func NewProvisioner(store Store, policy retry.Policy) *Provisioner {
	return &Provisioner{store: store, policy: policy}
}

// EnsureDataset checks for the dataset and creates it if absent, then
// polls until the backing store reports it visible. Exhausting the poll
// is fatal for the invocation.
func (p *Provisioner) EnsureDataset(ctx context.Context, datasetID string) error {
	_, err, _ := p.group.Do(datasetID, func() (any, error) {
		return nil, p.ensure(ctx, datasetID)
	})
	return err
}

func (p *Provisioner) ensure(ctx context.Context, datasetID string) error {
	exists, err := p.store.DatasetExists(ctx, datasetID)
	if err != nil {
		return fmt.Errorf("check dataset %q: %w", datasetID, err)
	}
	if exists {
		log.Info().Str("dataset", datasetID).Msg("dataset exists")
		return nil
	}

	log.Info().Str("dataset", datasetID).Msg("creating dataset")
	if err := p.store.CreateDataset(ctx, datasetID); err != nil {
		if errors.Is(err, ErrConflict) {
			log.Warn().Str("dataset", datasetID).Msg("dataset was already created by another invocation")
			return nil
		}
		return fmt.Errorf("create dataset %q: %w", datasetID, err)
	}

	// Eventual-consistency lag: the create can succeed before the
	// dataset is visible to subsequent reads.
	err = p.policy.Do(ctx, "dataset visibility", func(ctx context.Context) (bool, error) {
		exists, err := p.store.DatasetExists(ctx, datasetID)
		if err != nil {
			return false, err
		}
		return exists, nil
	})
	if errors.Is(err, retry.ErrExhausted) {
		return models.Errorf(models.KindProvisioningTimeout, "provisioner",
			"dataset %q not visible after %d attempts", datasetID, p.policy.MaxAttempts)
	}
	if err != nil {
		return fmt.Errorf("verify dataset %q: %w", datasetID, err)
	}

	log.Info().Str("dataset", datasetID).Msg("verified dataset exists")
	return nil
}
