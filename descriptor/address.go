package descriptor

import (
	elementsaddress "github.com/vulpemventures/go-elements/address"
	"github.com/vulpemventures/go-elements/network"
)

// elementsNetwork maps our Network to go-elements' network.Network, the
// struct its address package needs for HRP/version-byte selection.
func elementsNetwork(n Network, params AddressParams) *network.Network {
	switch n {
	case Liquid:
		return &network.Liquid
	case LiquidTestnet:
		return &network.Testnet
	default:
		regtest := network.Regtest
		regtest.AssetID = hexString(params.PolicyAsset)
		return &regtest
	}
}

func hexString(b [32]byte) string {
	const hextable = "0123456789abcdef"
	out := make([]byte, 64)
	for i, v := range b {
		out[i*2] = hextable[v>>4]
		out[i*2+1] = hextable[v&0x0f]
	}
	return string(out)
}

// Address derives the blinded external-chain address at index, per
// spec.md §4.1.
func (d *Descriptor) Address(index uint32, net Network) (string, error) {
	return d.addressAt(External, index, net)
}

// Change derives the blinded internal-chain (change) address at index.
func (d *Descriptor) Change(index uint32, net Network) (string, error) {
	return d.addressAt(Internal, index, net)
}

func (d *Descriptor) addressAt(chain Chain, index uint32, net Network) (string, error) {
	script, err := d.ScriptPubKeyAt(chain, index)
	if err != nil {
		return "", err
	}
	blindingPub, err := d.BlindingPubKeyForScript(script)
	if err != nil {
		return "", err
	}
	params := net.Params()
	enet := elementsNetwork(net, params)

	unconfidential, err := elementsaddress.FromScript(script, enet)
	if err != nil {
		return "", err
	}
	confidential, err := elementsaddress.ToConfidential(unconfidential, blindingPub.SerializeCompressed())
	if err != nil {
		return "", err
	}
	return confidential, nil
}

// DefiniteDescriptor returns the descriptor string for a single derivation
// index on the given chain, e.g. for external-chain display/debug tooling.
// It retains the blinding-key expression so the derived address still
// carries a blinding pubkey, per spec.md §4.1.
func (d *Descriptor) DefiniteDescriptor(chain Chain, index uint32) (string, error) {
	sc, _, err := d.chainFor(chain)
	if err != nil {
		return "", err
	}
	if sc.extended == nil {
		return "", &UnsupportedDescriptorError{Reason: ErrIndexWithoutWildcard}
	}
	inner, _ := unwrap(d.raw, "ct(")
	parts := splitTopLevel(inner)
	blindingExpr := ""
	if len(parts) == 2 {
		blindingExpr = parts[0]
	}
	scriptExpr := definiteScriptExpr(d.scriptKind, sc, index)
	return "ct(" + blindingExpr + "," + scriptExpr + ")", nil
}

func definiteScriptExpr(kind ScriptKind, sc singleChain, index uint32) string {
	// kind is always ScriptWPKH: elwsh(...) is rejected at Parse.
	const fn = "elwpkh("
	keyExpr := firstPathSegment(sc.keyExpr)
	for _, p := range sc.path {
		keyExpr += "/" + pathSegmentString(p)
	}
	keyExpr += "/" + itoa(index)
	return fn + keyExpr + ")"
}

func pathSegmentString(p uint32) string {
	const hardenedStart = 0x80000000
	if p >= hardenedStart {
		return itoa(p-hardenedStart) + "'"
	}
	return itoa(p)
}

func itoa(n uint32) string {
	if n == 0 {
		return "0"
	}
	var buf [10]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[i:])
}
