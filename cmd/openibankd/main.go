// Command openibankd runs one commitment-gated settlement cycle end to end
// (mint, budget, permit, agent-driven payment, escrow create/dispute/
// resolve) and persists the run's receipts and WorldLine slice under the
// configured data root.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"openibank/agent"
	"openibank/config"
	"openibank/core/types"
	"openibank/crypto"
	"openibank/escrow"
	"openibank/gate"
	"openibank/guard"
	"openibank/issuer"
	"openibank/ledger"
	"openibank/observability/logging"
	"openibank/observability/metrics"
	"openibank/persist"
	"openibank/wallet"
	"openibank/worldline"
)

func main() {
	configFile := flag.String("config", "./openibank.toml", "path to the configuration file")
	runID := flag.String("run-id", "", "run id to record the cycle under (defaults to a generated one)")
	flag.Parse()

	env := strings.TrimSpace(os.Getenv("OPENIBANK_ENV"))
	logger := logging.Setup("openibankd", env)

	cfg, err := config.Load(*configFile)
	if err != nil {
		logger.Error("failed to load configuration", "err", err)
		os.Exit(1)
	}

	reg := metrics.Get()

	run := strings.TrimSpace(*runID)
	if run == "" {
		run = types.NewUUIDID("run")
	}

	issuerID := types.ResonatorId(cfg.IssuerResonatorID)
	arbiterID := types.ResonatorId(cfg.ArbiterResonatorID)
	buyerID := types.ResonatorId("res_buyer_demo")
	sellerID := types.ResonatorId("res_seller_demo")
	asset := types.AssetId("IUSD").Normalize()

	issuerVault, err := crypto.NewVault(issuerID)
	if err != nil {
		logger.Error("failed to derive issuer vault", "err", err)
		os.Exit(1)
	}
	logger.Info("resolved issuer display address", logging.WorldLineFields(run, "", "bootstrap")...)
	issuerAddr := crypto.AddressFromVault(issuerVault, crypto.ReservePrefix)
	buyerVault, err := crypto.NewVault(buyerID)
	if err != nil {
		logger.Error("failed to derive buyer vault", "err", err)
		os.Exit(1)
	}
	buyerAddr := crypto.AddressFromVault(buyerVault, crypto.ResonatorPrefix)

	wl := worldline.New(nil)
	g := gate.New(wl, gate.DefaultStages(0.5), 5*time.Second, 24*time.Hour)
	l := ledger.New()

	iss := issuer.New(issuer.Config{
		IssuerID:   issuerID,
		AssetID:    asset,
		Symbol:     "IUSD",
		Decimals:   2,
		ReserveCap: types.NewAmount(cfg.ReserveCapUnits),
		Policy: issuer.Policy{
			MintingEnabled: true,
			BurningEnabled: true,
			MaxSingleMint:  types.NewAmount(cfg.MaxSingleMintUnits),
			MaxSingleBurn:  types.NewAmount(cfg.MaxSingleBurnUnits),
		},
	}, issuerVault, l, g)

	mintAmount := types.NewAmount(50_000)
	mintReceipt, _, err := iss.Mint(run, issuer.MintIntent{To: buyerID, Amount: mintAmount, Reason: "demo seed capital"})
	if err != nil {
		logger.Error("mint failed", "err", err)
		os.Exit(1)
	}
	reg.LedgerEntries.WithLabelValues("credit", "mint").Inc()
	reg.IssuerSupply.Set(float64(iss.TotalSupply().Units()))

	w := wallet.New(buyerID, l, g)
	budgetID := w.CreateBudget(types.NewAmount(20_000), wallet.OneOfCounterparties(sellerID))
	permit, err := w.IssuePermit(budgetID, types.NewAmount(5_000), asset, wallet.SpecificCounterparty(sellerID), "demo procurement", time.Hour)
	if err != nil {
		logger.Error("permit issuance failed", "err", err)
		os.Exit(1)
	}

	paymentProposal, err := json.Marshal(guard.PaymentProposal{
		Target:   string(sellerID),
		Amount:   3_000,
		Asset:    string(asset),
		Purpose:  "invoice settlement",
		Category: "procurement",
	})
	if err != nil {
		logger.Error("failed to encode payment proposal", "err", err)
		os.Exit(1)
	}
	invoiceProposal, err := json.Marshal(guard.InvoiceProposal{
		Buyer:       string(buyerID),
		Amount:      3_000,
		Asset:       string(asset),
		Description: "consulting services, July",
	})
	if err != nil {
		logger.Error("failed to encode invoice proposal", "err", err)
		os.Exit(1)
	}
	buyerBrain := &agent.DeterministicBrain{PaymentProposal: paymentProposal}
	sellerBrain := &agent.DeterministicBrain{InvoiceProposal: invoiceProposal}

	guardCfg := guard.DefaultConfig(types.NewAmount(10_000))

	buyer := agent.NewBuyer(buyerID, l, w, buyerBrain, guardCfg)
	seller := agent.NewSeller(sellerID, l, sellerBrain, guardCfg)

	escrowMgr := escrow.New(l, g, arbiterID)

	ctx := context.Background()
	if _, err := seller.Invoice(ctx); err != nil {
		logger.Error("invoice validation failed", "err", err)
		os.Exit(1)
	}

	_, _, payProof, err := buyer.Pay(ctx, run, budgetID, permit.PermitID)
	if err != nil {
		logger.Error("payment failed", "err", err)
		os.Exit(1)
	}
	reg.GateDecisions.WithLabelValues("payment", "approved").Inc()

	esc, _, err := escrowMgr.Create(run, buyerID, sellerID, asset, types.NewAmount(1_000), "")
	if err != nil {
		logger.Error("escrow creation failed", "err", err)
		os.Exit(1)
	}
	if _, err := escrowMgr.Dispute(esc.ID, buyerID); err != nil {
		logger.Error("escrow dispute failed", "err", err)
		os.Exit(1)
	}

	releaseProposal, err := json.Marshal(guard.ArbiterDecisionProposal{
		EscrowID:  esc.ID,
		Decision:  guard.DecisionRelease,
		Reasoning: "delivery confirmed by both parties",
	})
	if err != nil {
		logger.Error("failed to encode arbiter decision proposal", "err", err)
		os.Exit(1)
	}
	arbiterBrain := &agent.DeterministicBrain{ArbiterDecisionProposal: releaseProposal}
	arbiter := agent.NewArbiter(arbiterID, l, escrowMgr, arbiterBrain, guardCfg)

	resolved, resolveProof, err := arbiter.Resolve(ctx, run, esc)
	if err != nil {
		logger.Error("escrow resolution failed", "err", err)
		os.Exit(1)
	}
	reg.GateDecisions.WithLabelValues("escrow.release", "approved").Inc()

	writer := persist.New(cfg.DataDir)
	if err := writer.WriteMetadata(persist.Metadata{RunID: run, Mode: "demo", WorldLineID: run, Version: "v1"}); err != nil {
		logger.Error("failed to persist metadata", "err", err)
		os.Exit(1)
	}
	if err := writer.WriteReceipts(run, []persist.ReceiptRef{
		{ID: mintReceipt.ReceiptID, Value: mintReceipt},
	}); err != nil {
		logger.Error("failed to persist receipts", "err", err)
		os.Exit(1)
	}
	events := wl.ExportSlice(run, "", "")
	if err := writer.WriteWorldLineSlice(run, events); err != nil {
		logger.Error("failed to persist worldline slice", "err", err)
		os.Exit(1)
	}

	logger.Info("settlement cycle complete",
		slog.String("run_id", run),
		slog.String("issuer_address", issuerAddr.String()),
		slog.String("buyer_address", buyerAddr.String()),
		slog.String("payment_commitment", payProof.CommitmentID),
		slog.String("escrow_id", resolved.ID),
		slog.String("escrow_state", string(resolved.State)),
		slog.String("escrow_resolution_commitment", resolveProof.CommitmentID),
		slog.Uint64("buyer_balance", buyer.Balance(asset).Units()),
	)

	fmt.Printf("run %s complete: %d worldline events written to %s\n", run, len(events), cfg.DataDir)
}
