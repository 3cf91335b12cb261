package types

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/progtoken-org/progtoken-go/util"
)

type (
	// AssetID identifies a native asset class: the minting policy plus the
	// asset name within that policy. The base currency has an empty policy
	// and an empty name.
	AssetID struct {
		_      struct{}      `cbor:",toarray"`
		Policy hexutil.Bytes `json:"policy"`
		Name   hexutil.Bytes `json:"name"`
	}

	AssetQuantity struct {
		_      struct{}      `cbor:",toarray"`
		Asset  AssetID       `json:"asset"`
		Amount uint64        `json:"amount,string"`
	}

	// Value is a multiset of asset quantities, kept sorted by asset ID with
	// no zero amount entries so that the CBOR encoding is canonical.
	Value []AssetQuantity
)

// BaseAsset is the asset ID of the ledger's base currency.
var BaseAsset = AssetID{}

func NewAssetID(policy, name []byte) AssetID {
	return AssetID{Policy: bytes.Clone(policy), Name: bytes.Clone(name)}
}

func (a AssetID) IsBase() bool {
	return len(a.Policy) == 0 && len(a.Name) == 0
}

func (a AssetID) Eq(other AssetID) bool {
	return bytes.Equal(a.Policy, other.Policy) && bytes.Equal(a.Name, other.Name)
}

func (a AssetID) Compare(other AssetID) int {
	if c := bytes.Compare(a.Policy, other.Policy); c != 0 {
		return c
	}
	return bytes.Compare(a.Name, other.Name)
}

func (a AssetID) String() string {
	if a.IsBase() {
		return "base"
	}
	return fmt.Sprintf("%X.%X", []byte(a.Policy), []byte(a.Name))
}

// NewValue builds a normalized value from a base currency amount and any
// number of additional asset quantities.
func NewValue(base uint64, assets ...AssetQuantity) Value {
	v := Value{}
	if base > 0 {
		v = append(v, AssetQuantity{Asset: BaseAsset, Amount: base})
	}
	for _, a := range assets {
		if a.Amount > 0 {
			v = append(v, a)
		}
	}
	sort.Slice(v, func(i, j int) bool { return v[i].Asset.Compare(v[j].Asset) < 0 })
	return v
}

func (v Value) Get(asset AssetID) uint64 {
	for _, q := range v {
		if q.Asset.Eq(asset) {
			return q.Amount
		}
	}
	return 0
}

func (v Value) Base() uint64 {
	return v.Get(BaseAsset)
}

// Add returns v plus other; fails on uint64 overflow.
func (v Value) Add(other Value) (Value, error) {
	res := v.Clone()
	for _, q := range other {
		res2, err := res.addQuantity(q)
		if err != nil {
			return nil, err
		}
		res = res2
	}
	return res, nil
}

func (v Value) addQuantity(q AssetQuantity) (Value, error) {
	if q.Amount == 0 {
		return v, nil
	}
	for i, cur := range v {
		if cur.Asset.Eq(q.Asset) {
			sum, ok := util.SafeAdd(cur.Amount, q.Amount)
			if !ok {
				return nil, fmt.Errorf("amount overflow for asset %s", q.Asset)
			}
			v[i].Amount = sum
			return v, nil
		}
	}
	v = append(v, q)
	sort.Slice(v, func(i, j int) bool { return v[i].Asset.Compare(v[j].Asset) < 0 })
	return v, nil
}

// Sub returns v minus other; fails if any component would go negative.
func (v Value) Sub(other Value) (Value, error) {
	res := v.Clone()
	for _, q := range other {
		if q.Amount == 0 {
			continue
		}
		found := false
		for i, cur := range res {
			if cur.Asset.Eq(q.Asset) {
				left, ok := util.SafeSub(cur.Amount, q.Amount)
				if !ok {
					return nil, fmt.Errorf("amount underflow for asset %s: have %d, subtracting %d", q.Asset, cur.Amount, q.Amount)
				}
				res[i].Amount = left
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("asset %s not present in value", q.Asset)
		}
	}
	return res.normalize(), nil
}

// AtLeast reports whether v covers other component-wise.
func (v Value) AtLeast(other Value) bool {
	for _, q := range other {
		if v.Get(q.Asset) < q.Amount {
			return false
		}
	}
	return true
}

func (v Value) Eq(other Value) bool {
	a, b := v.normalize(), other.normalize()
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Asset.Eq(b[i].Asset) || a[i].Amount != b[i].Amount {
			return false
		}
	}
	return true
}

func (v Value) IsZero() bool {
	for _, q := range v {
		if q.Amount != 0 {
			return false
		}
	}
	return true
}

// Policies returns the distinct non-base asset policies in v, sorted by the
// canonical byte order.
func (v Value) Policies() [][]byte {
	seen := map[string]bool{}
	var res [][]byte
	for _, q := range v {
		if len(q.Asset.Policy) == 0 || q.Amount == 0 {
			continue
		}
		k := string(q.Asset.Policy)
		if !seen[k] {
			seen[k] = true
			res = append(res, q.Asset.Policy)
		}
	}
	sort.Slice(res, func(i, j int) bool { return bytes.Compare(res[i], res[j]) < 0 })
	return res
}

func (v Value) Clone() Value {
	res := make(Value, len(v))
	for i, q := range v {
		res[i] = AssetQuantity{
			Asset:  NewAssetID(q.Asset.Policy, q.Asset.Name),
			Amount: q.Amount,
		}
	}
	return res
}

func (v Value) normalize() Value {
	res := make(Value, 0, len(v))
	for _, q := range v {
		if q.Amount > 0 {
			res = append(res, q)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].Asset.Compare(res[j].Asset) < 0 })
	return res
}
