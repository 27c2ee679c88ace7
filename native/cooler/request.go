package cooler

import (
	"math/big"

	"riskpool/core/types"
)

// Request is a transferable claim on a scheduled withdrawal. The amount and
// scale captured at schedule time fix the request's ceiling: losses between
// schedule and settlement pass through proportionally, gains beyond the
// scheduled amount stay with the general pool.
type Request struct {
	ID               uint64
	EToken           types.Address
	Owner            types.Address
	Approved         types.Address
	AmountAtSchedule *big.Int
	ScaleAtSchedule  *big.Int
	UnlockTime       int64
	Executed         bool
}

// Clone returns a deep copy of the request.
func (r *Request) Clone() *Request {
	if r == nil {
		return nil
	}
	clone := *r
	clone.AmountAtSchedule = cloneBig(r.AmountAtSchedule)
	clone.ScaleAtSchedule = cloneBig(r.ScaleAtSchedule)
	return &clone
}

func cloneBig(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}
