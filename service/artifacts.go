package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/vocdoni/vocdoni-z-shielded/circuits"
	"github.com/vocdoni/vocdoni-z-shielded/circuits/logic"
	"github.com/vocdoni/vocdoni-z-shielded/log"
)

// MembershipKeys returns the Groth16 keys of the membership logic for
// partial transactions of the given number of compliance units. Keys are
// generated on first use and kept in the artifact cache, indexed by a small
// JSON file, so every later call returns the same keys.
func MembershipKeys(ctx context.Context, units int) (*circuits.ProvingKey, *circuits.VerifyingKey, error) {
	index := filepath.Join(circuits.BaseDir, fmt.Sprintf("membership-%d.json", units))
	data, err := os.ReadFile(index)
	switch {
	case err == nil:
		ka := &circuits.KeyArtifacts{}
		if err := json.Unmarshal(data, ka); err != nil {
			return nil, nil, fmt.Errorf("decode key index %s: %w", index, err)
		}
		return circuits.LoadKeys(ctx, ka)
	case !errors.Is(err, os.ErrNotExist):
		return nil, nil, err
	}

	log.Infow("generating membership logic keys", "units", units)
	pk, vk, err := logic.SetupMembership(units)
	if err != nil {
		return nil, nil, err
	}
	ka, err := circuits.StoreKeys(pk, vk)
	if err != nil {
		return nil, nil, err
	}
	if data, err = json.Marshal(ka); err != nil {
		return nil, nil, err
	}
	if err := os.WriteFile(index, data, 0o644); err != nil {
		return nil, nil, fmt.Errorf("write key index: %w", err)
	}
	return pk, vk, nil
}
