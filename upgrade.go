package e2ee

import (
	"context"
	"fmt"
	"log/slog"
)

// UpgradeOptions controls UpgradeAll
type UpgradeOptions struct {
	// Method is the target method. Zero means the configured master key method.
	Method Method

	// DryRun reports what would be upgraded without decrypting anything
	DryRun bool
}

// UpgradeResult describes one record handled by UpgradeAll
type UpgradeResult struct {
	Previous MasterKeyRecord
	Upgraded MasterKeyRecord
}

// UpgradeAll re-wraps every record that needs it under the target method.
// Records are processed concurrently, bounded by Config.Parallel. All
// records must share password. When a Store is configured the upgraded
// records are saved to it, and keys that were loaded are reloaded so the
// cache stays fresh.
//
// The first failure stops the remaining upgrades and is returned; nothing
// is saved in that case.
func (s *Service) UpgradeAll(ctx context.Context, records []MasterKeyRecord, password string, opts UpgradeOptions) ([]UpgradeResult, error) {
	selected := s.codec.SelectForUpgrade(records)
	if len(selected) == 0 {
		return nil, nil
	}

	if opts.DryRun {
		results := make([]UpgradeResult, len(selected))
		for i, r := range selected {
			results[i] = UpgradeResult{Previous: r}
			s.logger.Info("would upgrade master key",
				slog.String("master_key_id", r.ID),
				slog.String("method", r.EncryptionMethod.String()))
		}
		return results, nil
	}

	var keyOpts []KeyOption
	if opts.Method != 0 {
		keyOpts = append(keyOpts, WithKeyMethod(opts.Method))
	}

	results := make([]UpgradeResult, len(selected))
	err := s.config.Parallel.forEach(ctx, len(selected), func(ctx context.Context, i int) error {
		upgraded, err := s.UpgradeMasterKey(selected[i], password, keyOpts...)
		if err != nil {
			return err
		}
		results[i] = UpgradeResult{Previous: selected[i], Upgraded: upgraded}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to upgrade master keys: %w", err)
	}

	for _, res := range results {
		if s.config.Store != nil {
			if err := s.config.Store.SaveMasterKey(res.Upgraded); err != nil {
				return results, fmt.Errorf("failed to save master key %s: %w", res.Upgraded.ID, err)
			}
		}
		if s.cache.IsLoaded(res.Previous) {
			active, _ := s.cache.ActiveMasterKeyID()
			if err := s.cache.Load(res.Upgraded, password, active == res.Upgraded.ID); err != nil {
				return results, NewEncryptionError(opLoad, res.Upgraded.ID, err)
			}
		}
	}

	s.logger.Info("upgraded master keys", slog.Int("count", len(results)))
	return results, nil
}
