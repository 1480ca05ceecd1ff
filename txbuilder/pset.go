package txbuilder

import (
	"encoding/hex"
	"fmt"

	elementsaddress "github.com/vulpemventures/go-elements/address"
	"github.com/vulpemventures/go-elements/psetv2"
)

// outputPlan is the builder's intermediate representation of one PSET
// output, ordered per spec.md §4.6: "recipient outputs in insertion order,
// then issuance-created outputs, then change outputs (non-policy first,
// then L-BTC), then fee output last".
type outputPlan struct {
	asset          [32]byte
	satoshi        uint64
	script         []byte // nil for the fee output and burn outputs
	blindingPubKey []byte // nil for an explicit (unblinded) output
	isFee          bool
	contractJSON   []byte // set only on the freshly issued asset output
}

// Finish assembles the PSET against w, spec.md §4.6. It runs the two-pass
// fee algorithm (size with placeholder amounts, then rebuild with the real
// fee and change) and returns a fully blinded, unsigned, unfinalized PSET
// ready for an external signer.
func (b *Builder) Finish(w WalletView) (*psetv2.Pset, error) {
	if b.err != nil {
		return nil, b.err
	}
	if len(b.recipients) == 0 && b.issuanceKind == issuanceNone {
		return nil, fmt.Errorf("txbuilder: no recipients or issuance requested")
	}
	for _, r := range b.recipients {
		if r.Satoshi == 0 {
			return nil, fmt.Errorf("txbuilder: recipient amount must be non-zero")
		}
	}
	if b.issuanceKind == issuanceIssue {
		if b.issuance.SatoshiAsset > MaxIssuanceSatoshi {
			return nil, &ErrIssuanceAmountGreaterThanBtcMax{Satoshi: b.issuance.SatoshiAsset}
		}
		if b.issuance.SatoshiToken > MaxIssuanceSatoshi {
			return nil, &ErrIssuanceAmountGreaterThanBtcMax{Satoshi: b.issuance.SatoshiToken}
		}
	}
	if b.issuanceKind == issuanceReissue && b.reissuance.SatoshiAsset > MaxIssuanceSatoshi {
		return nil, &ErrIssuanceAmountGreaterThanBtcMax{Satoshi: b.reissuance.SatoshiAsset}
	}

	policyAsset := w.PolicyAsset()

	allUtxos, err := w.Utxos()
	if err != nil {
		return nil, err
	}

	nonPolicyNeeds := map[[32]byte]uint64{}
	for _, r := range b.recipients {
		if r.Asset != policyAsset {
			nonPolicyNeeds[r.Asset] += r.Satoshi
		}
	}

	manualMode := len(b.manualUtxos) > 0
	if manualMode && (len(nonPolicyNeeds) > 0 || b.issuanceKind != issuanceNone) {
		return nil, fmt.Errorf("txbuilder: manual UTXO selection is only allowed when no non-policy assets are involved")
	}

	var selected []UTXO
	nonPolicyChange := map[[32]byte]uint64{}

	if manualMode {
		selected = append(selected, b.manualUtxos...)
	} else {
		for asset, amt := range nonPolicyNeeds {
			got, total, err := selectGreedy(allUtxos, asset, amt)
			if err != nil {
				return nil, err
			}
			selected = append(selected, got...)
			if total > amt {
				nonPolicyChange[asset] = total - amt
			}
		}
	}

	var reissuanceEntropy [32]byte
	var reissuanceTokenUtxo *UTXO
	if b.issuanceKind == issuanceReissue {
		entropy, ok := w.IssuanceEntropy(b.reissuance.Asset)
		if !ok {
			return nil, fmt.Errorf("txbuilder: no issuance found for asset %x", b.reissuance.Asset)
		}
		reissuanceEntropy = entropy
		tokenAsset := tokenTagFromEntropy(entropy)
		tokenUtxos, _, err := selectGreedy(allUtxos, tokenAsset, 1)
		if err != nil {
			return nil, fmt.Errorf("txbuilder: no reissuance token UTXO held for asset %x: %w", b.reissuance.Asset, err)
		}
		reissuanceTokenUtxo = &tokenUtxos[0]
		selected = append(selected, *reissuanceTokenUtxo)
	}

	if !manualMode {
		selected = append(selected, filterAsset(allUtxos, policyAsset)...)
	}
	selected = dedupe(selected)

	if len(selected) > 256 {
		return nil, &ErrTooManyInputs{Count: len(selected)}
	}

	inPolicyTotal := sumAsset(selected, policyAsset)
	outPolicyRequested := uint64(0)
	for _, r := range b.recipients {
		if r.Asset == policyAsset {
			outPolicyRequested += r.Satoshi
		}
	}

	changeIdx := w.NextChangeIndex()
	nextChangeIdx := changeIdx

	allocChangeScript := func() ([]byte, []byte, uint32, error) {
		idx := nextChangeIdx
		script, pub, err := w.DeriveChangeScript(idx)
		if err != nil {
			return nil, nil, 0, err
		}
		nextChangeIdx++
		return script, pub, idx, nil
	}

	buildOutputs := func(policyFee, policyChange uint64) ([]outputPlan, error) {
		var plans []outputPlan
		for _, r := range b.recipients {
			if r.IsBurn() {
				plans = append(plans, outputPlan{asset: r.Asset, satoshi: r.Satoshi})
				continue
			}
			script, err := elementsaddress.ToOutputScript(r.Address)
			if err != nil {
				return nil, fmt.Errorf("txbuilder: recipient address: %w", err)
			}
			var blindingPub []byte
			if isConfidentialAddress(r.Address) {
				blindingPub, err = elementsaddress.ToBlindingKey(r.Address)
				if err != nil {
					return nil, fmt.Errorf("txbuilder: recipient blinding key: %w", err)
				}
			}
			plans = append(plans, outputPlan{asset: r.Asset, satoshi: r.Satoshi, script: script, blindingPubKey: blindingPub})
		}

		if b.issuanceKind == issuanceIssue {
			assetScript, assetPub, contractJSON, err := b.issuanceOutputTarget(true)
			if err != nil {
				return nil, err
			}
			plans = append(plans, outputPlan{asset: [32]byte{}, satoshi: b.issuance.SatoshiAsset, script: assetScript, blindingPubKey: assetPub, contractJSON: contractJSON})
			if b.issuance.SatoshiToken > 0 {
				tokenScript, tokenPub, _, err := b.issuanceOutputTarget(false)
				if err != nil {
					return nil, err
				}
				plans = append(plans, outputPlan{asset: [32]byte{}, satoshi: b.issuance.SatoshiToken, script: tokenScript, blindingPubKey: tokenPub})
			}
		}

		if b.issuanceKind == issuanceReissue {
			script, pub, err := reissuanceOutputTarget(b.reissuance)
			if err != nil {
				return nil, err
			}
			plans = append(plans, outputPlan{asset: b.reissuance.Asset, satoshi: b.reissuance.SatoshiAsset, script: script, blindingPubKey: pub})
			// Preserve the token: an equal-value change output back to us,
			// spec.md §4.6 "preserve the token by adding an equal-value
			// internal change".
			tokenAsset := tokenTagFromEntropy(reissuanceEntropy)
			tokScript, tokPub, _, err := allocChangeScript()
			if err != nil {
				return nil, err
			}
			plans = append(plans, outputPlan{asset: tokenAsset, satoshi: reissuanceTokenUtxo.Secrets.Value, script: tokScript, blindingPubKey: tokPub})
		}

		for asset, amt := range nonPolicyChange {
			if amt == 0 {
				continue
			}
			script, pub, _, err := allocChangeScript()
			if err != nil {
				return nil, err
			}
			plans = append(plans, outputPlan{asset: asset, satoshi: amt, script: script, blindingPubKey: pub})
		}

		if policyChange > 0 {
			script, pub, _, err := allocChangeScript()
			if err != nil {
				return nil, err
			}
			plans = append(plans, outputPlan{asset: policyAsset, satoshi: policyChange, script: script, blindingPubKey: pub})
		}

		plans = append(plans, outputPlan{asset: policyAsset, satoshi: policyFee, isFee: true})
		return plans, nil
	}

	// Pass 1: placeholder fee + policy change sized against a 1000 sat fee.
	if inPolicyTotal < outPolicyRequested+placeholderFeeSatoshi {
		return nil, &ErrInsufficientFunds{Asset: policyAsset, MissingSat: outPolicyRequested + placeholderFeeSatoshi - inPolicyTotal}
	}
	placeholderChange := inPolicyTotal - outPolicyRequested - placeholderFeeSatoshi

	sizingChangeIdx := nextChangeIdx
	sizingPlans, err := buildOutputs(placeholderFeeSatoshi, placeholderChange)
	if err != nil {
		return nil, err
	}
	sizingPset, err := assemblePset(w, selected, sizingPlans, b, reissuanceEntropy, reissuanceTokenUtxo)
	if err != nil {
		return nil, err
	}
	tx, err := psetv2.Extract(sizingPset)
	if err != nil {
		return nil, fmt.Errorf("txbuilder: extract sizing tx: %w", err)
	}
	weight := uint64(tx.VirtualSize()) * 4
	weight += estimatedWitnessWeight(selected)
	vsize := chainfeeVSizeFromWeight(weight)
	fee := b.feeRate.FeeForVSize(vsize)

	if inPolicyTotal < outPolicyRequested+fee {
		return nil, &ErrInsufficientFunds{Asset: policyAsset, MissingSat: outPolicyRequested + fee - inPolicyTotal}
	}
	finalChange := inPolicyTotal - outPolicyRequested - fee

	// Pass 2: rebuild with the real fee/change and reblind with fresh
	// randomness, spec.md §4.6 step 4-5. Change derivation restarts from
	// the same cursor so the two passes agree on which indices are used;
	// the cursor is bumped for real only after this final pass succeeds.
	nextChangeIdx = sizingChangeIdx
	finalPlans, err := buildOutputs(fee, finalChange)
	if err != nil {
		return nil, err
	}
	finalPset, err := assemblePset(w, selected, finalPlans, b, reissuanceEntropy, reissuanceTokenUtxo)
	if err != nil {
		return nil, err
	}

	w.BumpChangeCursor(nextChangeIdx)

	log.Debugf("built pset: %d inputs, %d outputs, fee=%d sat", len(selected), len(finalPlans), fee)
	return finalPset, nil
}

// issuanceOutputTarget resolves the destination script/blinding pubkey for
// the issuance (asset=true) or token (asset=false) output. The caller must
// set AddressAsset/AddressToken explicitly; an empty address is an error.
func (b *Builder) issuanceOutputTarget(asset bool) (script, blindingPub, contractJSON []byte, err error) {
	addr := b.issuance.AddressAsset
	if !asset {
		addr = b.issuance.AddressToken
	}
	if addr == "" {
		return nil, nil, nil, fmt.Errorf("txbuilder: issuance requires an explicit destination address")
	}
	script, err = elementsaddress.ToOutputScript(addr)
	if err != nil {
		return nil, nil, nil, err
	}
	if b.issuance.IsConfidential {
		blindingPub, err = elementsaddress.ToBlindingKey(addr)
		if err != nil {
			return nil, nil, nil, err
		}
	}
	if asset {
		contractJSON = b.issuance.Contract
	}
	return script, blindingPub, contractJSON, nil
}

func reissuanceOutputTarget(r ReissuanceRequest) (script, blindingPub []byte, err error) {
	addr := r.AddressAsset
	if addr == "" {
		return nil, nil, fmt.Errorf("txbuilder: reissuance requires an explicit destination address")
	}
	script, err = elementsaddress.ToOutputScript(addr)
	if err != nil {
		return nil, nil, err
	}
	if isConfidentialAddress(addr) {
		blindingPub, err = elementsaddress.ToBlindingKey(addr)
		if err != nil {
			return nil, nil, err
		}
	}
	return script, blindingPub, nil
}

func isConfidentialAddress(addr string) bool {
	confidential, err := elementsaddress.IsConfidential(addr)
	return err == nil && confidential
}

// assemblePset builds and blinds one PSET from selected inputs and plans.
func assemblePset(w WalletView, selected []UTXO, plans []outputPlan, b *Builder, reissuanceEntropy [32]byte, reissuanceTokenUtxo *UTXO) (*psetv2.Pset, error) {
	inArgs := make([]psetv2.InputArgs, len(selected))
	for i, u := range selected {
		inArgs[i] = psetv2.InputArgs{
			Txid:    hex.EncodeToString(reverseBytes(u.OutPoint.Txid[:])),
			TxIndex: u.OutPoint.Vout,
		}
	}

	outArgs := make([]psetv2.OutputArgs, len(plans))
	for i, p := range plans {
		outArgs[i] = psetv2.OutputArgs{
			Asset:          hex.EncodeToString(p.asset[:]),
			Amount:         p.satoshi,
			Script:         p.script,
			BlindingPubkey: p.blindingPubKey,
			BlinderIndex:   uint32(i),
		}
	}

	pset, err := psetv2.New(inArgs, outArgs, nil)
	if err != nil {
		return nil, fmt.Errorf("txbuilder: psetv2.New: %w", err)
	}

	updater, err := psetv2.NewUpdater(pset)
	if err != nil {
		return nil, fmt.Errorf("txbuilder: psetv2.NewUpdater: %w", err)
	}

	var inputBlindingPrivKeys [][]byte
	for i, u := range selected {
		wu, err := w.WitnessUtxo(u.OutPoint)
		if err != nil {
			return nil, fmt.Errorf("txbuilder: witness utxo for input %d: %w", i, err)
		}
		if err := updater.AddInWitnessUtxo(i, wu); err != nil {
			return nil, fmt.Errorf("txbuilder: AddInWitnessUtxo(%d): %w", i, err)
		}
		priv, err := w.BlindingPrivKeyForScript(wu.Script)
		if err != nil {
			return nil, fmt.Errorf("txbuilder: blinding key for input %d: %w", i, err)
		}
		inputBlindingPrivKeys = append(inputBlindingPrivKeys, priv)
	}

	if b.issuanceKind == issuanceIssue {
		if err := updater.AddInIssuance(0, psetv2.AddInIssuanceArgs{
			AssetAmount:     b.issuance.SatoshiAsset,
			TokenAmount:     b.issuance.SatoshiToken,
			ContractHash:    contractHash(b.issuance.Contract),
			BlindedIssuance: b.issuance.IsConfidential,
		}); err != nil {
			return nil, fmt.Errorf("txbuilder: AddInIssuance: %w", err)
		}
	}

	if b.issuanceKind == issuanceReissue {
		tokenInputIndex := reissuanceInputIndex(selected, *reissuanceTokenUtxo)
		if err := updater.AddInReissuance(tokenInputIndex, psetv2.AddInReissuanceArgs{
			Entropy:            reissuanceEntropy[:],
			AssetAmount:        b.reissuance.SatoshiAsset,
			AssetBlindingNonce: reissuanceTokenUtxo.Secrets.AssetBF[:],
		}); err != nil {
			return nil, fmt.Errorf("txbuilder: AddInReissuance: %w", err)
		}
	}

	for i, plan := range plans {
		if len(plan.contractJSON) == 0 {
			continue
		}
		assetID := assetTagFromEntropy(entropyFromIssuanceInput(selected, contractHash(plan.contractJSON)))
		key := elip100Key(assetID)
		val := elip100Value(plan.contractJSON, selected[0].OutPoint.Txid, selected[0].OutPoint.Vout)
		pset.Outputs[i].ProprietaryData = append(pset.Outputs[i].ProprietaryData, psetv2.ProprietaryData{
			Subtype: elip100Subtype,
			KeyData: key,
			Value:   val,
		})
	}

	outputBlindingPubKeys := map[int][]byte{}
	for i, p := range plans {
		if len(p.blindingPubKey) > 0 {
			outputBlindingPubKeys[i] = p.blindingPubKey
		}
	}

	blinder, err := psetv2.NewBlinder(pset, inputBlindingPrivKeys, outputBlindingPubKeys, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("txbuilder: psetv2.NewBlinder: %w", err)
	}
	if err := blinder.Blind(); err != nil {
		return nil, fmt.Errorf("txbuilder: blind: %w", err)
	}

	return pset, nil
}

func entropyFromIssuanceInput(selected []UTXO, contractHash []byte) [32]byte {
	if len(selected) == 0 {
		return [32]byte{}
	}
	return entropyFromPrevout(selected[0].OutPoint.Txid, selected[0].OutPoint.Vout, contractHash)
}

func contractHash(contractJSON []byte) []byte {
	if len(contractJSON) == 0 {
		return make([]byte, 32)
	}
	h := doubleSHA256(contractJSON)
	return h[:]
}

func reverseBytes(b []byte) []byte {
	out := make([]byte, len(b))
	for i, v := range b {
		out[len(b)-1-i] = v
	}
	return out
}

func chainfeeVSizeFromWeight(weight uint64) uint64 {
	return (weight + 3) / 4
}

// reissuanceInputIndex finds tok's position within selected.
func reissuanceInputIndex(selected []UTXO, tok UTXO) int {
	for i, u := range selected {
		if u.OutPoint == tok.OutPoint {
			return i
		}
	}
	return 0
}
