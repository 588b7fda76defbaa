package handlers

import (
	"fmt"

	"github.com/chainkit/btcanchoring/internal/anchoring"
	"github.com/chainkit/btcanchoring/internal/config"
	"github.com/chainkit/btcanchoring/internal/schema"
)

// VerifyConfig validates a proposed committee configuration before it may
// be applied (spec §4.8 "Configure interface: verify_config"). Called by
// the supervisor-only configure path prior to ApplyConfig.
func VerifyConfig(proposed *anchoring.Config) error {
	return proposed.Validate()
}

// ApplyConfig installs a verified config update (spec §4.8 "apply_config"):
// if the proposed committee's P2WSH address matches the active one it is
// installed directly; otherwise it becomes the pending following_config,
// with promotion deferred to the proposal builder's step 4. Only one
// committee transition may be pending at a time (spec §9 "Committee
// transition").
func ApplyConfig(w *schema.Writer, proposed *anchoring.Config) error {
	if err := proposed.Validate(); err != nil {
		return err
	}

	actualCfg, err := w.ActualConfig()
	if err != nil {
		return err
	}
	if actualCfg == nil {
		return w.SetActualConfig(proposed)
	}

	actualAddr, err := actualCfg.AnchoringAddress()
	if err != nil {
		return err
	}
	proposedAddr, err := proposed.AnchoringAddress()
	if err != nil {
		return err
	}

	if actualAddr.String() == proposedAddr.String() {
		return w.SetActualConfig(proposed)
	}

	following, err := w.FollowingConfig()
	if err != nil {
		return err
	}
	if following != nil {
		followingAddr, err := following.AnchoringAddress()
		if err != nil {
			return err
		}
		if followingAddr.String() != proposedAddr.String() {
			return fmt.Errorf("%w: following_config is already set to a different committee", config.ErrTransitionPending)
		}
		return nil // idempotent resubmission of the same pending transition
	}

	return w.SetFollowingConfig(proposed)
}
