package handlers

import (
	"fmt"

	"github.com/chainkit/btcanchoring/internal/anchoring"
	"github.com/chainkit/btcanchoring/internal/btc"
	"github.com/chainkit/btcanchoring/internal/codec"
	"github.com/chainkit/btcanchoring/internal/config"
	"github.com/chainkit/btcanchoring/internal/hostkey"
	"github.com/chainkit/btcanchoring/internal/schema"
)

// AddFunds executes an AddFunds message (spec §4.5): nominates tx as the
// new funding UTXO, once it pays the active committee's P2WSH address and
// no funding UTXO is currently pending.
func AddFunds(w *schema.Writer, sender hostkey.PublicKey, body codec.AddFundsBody) error {
	actualCfg, err := w.ActualConfig()
	if err != nil {
		return err
	}
	if actualCfg == nil {
		return config.ErrNotInitialized
	}

	if _, _, found := anchoring.FindBitcoinKey(actualCfg.AnchoringKeys, sender); !found {
		return fmt.Errorf("%w: %s is not a current committee member", config.ErrUnauthorizedCaller, sender)
	}

	msgTx, err := codec.DecodeTransaction(body.TransactionBytes)
	if err != nil {
		return fmt.Errorf("%w: add_funds transaction: %s", config.ErrMalformedArguments, err)
	}

	existing, err := w.UnspentFundingTransaction()
	if err != nil {
		return err
	}
	if existing != nil {
		return config.ErrFundingAlreadySet
	}

	redeem, err := actualCfg.RedeemScript()
	if err != nil {
		return err
	}
	net, err := actualCfg.NetParams()
	if err != nil {
		return err
	}
	script, err := btc.AnchoringOutputScript(redeem, net)
	if err != nil {
		return err
	}
	if _, _, found := btc.FindFundingOutput(msgTx, script); !found {
		return config.ErrFundingOutputMissing
	}

	tx := btc.NewTransaction(msgTx)
	spent, err := w.IsFundingTransactionSpent(tx.ID())
	if err != nil {
		return err
	}
	if spent {
		return config.ErrFundingAlreadySpent
	}

	return w.SetUnspentFundingTransaction(tx)
}
