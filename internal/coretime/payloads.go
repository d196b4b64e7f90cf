package coretime

import (
	"fmt"
	"strings"

	"github.com/eigerco/jamcore/internal/block"
	"github.com/eigerco/jamcore/internal/safemath"
)

// Guarantee is the strict shape of a guarantee payload
type Guarantee struct {
	Slot   uint64
	Report GuaranteeReport
}

type GuaranteeReport struct {
	CoreIndex   uint16
	AuthGasUsed *uint64
	Results     []GuaranteeResult
}

type GuaranteeResult struct {
	AccumulateGas uint64 `json:"accumulate_gas"`
	ServiceID     uint64 `json:"service_id"`
}

// Consumption is the CoreTime claimed by the guarantee: the accumulate gas of
// every result plus the authorization gas, if any.
func (g Guarantee) Consumption() (uint64, error) {
	var total uint64
	for _, r := range g.Report.Results {
		sum, ok := safemath.Add(total, r.AccumulateGas)
		if !ok {
			return 0, fmt.Errorf("%w: core %d consumption overflow", ErrBalance, g.Report.CoreIndex)
		}
		total = sum
	}
	if g.Report.AuthGasUsed != nil {
		sum, ok := safemath.Add(total, *g.Report.AuthGasUsed)
		if !ok {
			return 0, fmt.Errorf("%w: core %d authorization gas overflow", ErrBalance, g.Report.CoreIndex)
		}
		total = sum
	}
	return total, nil
}

// Assurance is the strict shape of an assurance payload
type Assurance struct {
	Bitfield       string
	ValidatorIndex uint16
}

// Disputes is the strict shape of the disputes record
type Disputes struct {
	Verdicts []Verdict
}

type Verdict struct {
	Target string
	Age    uint64
	Votes  []Vote
}

type Vote struct {
	Vote      bool
	Index     uint16
	Signature string
}

type guaranteeJSON struct {
	Slot   *uint64 `json:"slot"`
	Report *struct {
		CoreIndex   *uint16           `json:"core_index"`
		AuthGasUsed *uint64           `json:"auth_gas_used"`
		Results     []GuaranteeResult `json:"results"`
	} `json:"report"`
}

type assuranceJSON struct {
	Bitfield       *string `json:"bitfield"`
	ValidatorIndex *uint16 `json:"validator_index"`
}

type disputesJSON struct {
	Verdicts []*struct {
		Target *string `json:"target"`
		Age    uint64  `json:"age"`
		Votes  []*struct {
			Vote      *bool   `json:"vote"`
			Index     *uint16 `json:"index"`
			Signature *string `json:"signature"`
		} `json:"votes"`
	} `json:"verdicts"`
}

// ParseGuarantee converts a guarantee payload into its strict shape. Unknown
// fields are ignored, missing required fields and mistyped values are
// validation errors.
func ParseGuarantee(p block.Payload) (Guarantee, error) {
	if p.IsAbsent() {
		return Guarantee{}, invalidFormat("guarantee", "null payload")
	}
	var in guaranteeJSON
	if err := p.Decode(&in); err != nil {
		return Guarantee{}, invalidFormat("guarantee", err.Error())
	}
	switch {
	case in.Slot == nil:
		return Guarantee{}, invalidFormat("guarantee", "missing field `slot`")
	case in.Report == nil:
		return Guarantee{}, invalidFormat("guarantee", "missing field `report`")
	case in.Report.CoreIndex == nil:
		return Guarantee{}, invalidFormat("guarantee", "missing field `core_index`")
	}

	return Guarantee{
		Slot: *in.Slot,
		Report: GuaranteeReport{
			CoreIndex:   *in.Report.CoreIndex,
			AuthGasUsed: in.Report.AuthGasUsed,
			Results:     in.Report.Results,
		},
	}, nil
}

// ParseAssurance converts an assurance payload into its strict shape
func ParseAssurance(p block.Payload) (Assurance, error) {
	if p.IsAbsent() {
		return Assurance{}, invalidFormat("assurance", "null payload")
	}
	var in assuranceJSON
	if err := p.Decode(&in); err != nil {
		return Assurance{}, invalidFormat("assurance", err.Error())
	}
	switch {
	case in.Bitfield == nil:
		return Assurance{}, invalidFormat("assurance", "missing field `bitfield`")
	case in.ValidatorIndex == nil:
		return Assurance{}, invalidFormat("assurance", "missing field `validator_index`")
	}
	return Assurance{Bitfield: *in.Bitfield, ValidatorIndex: *in.ValidatorIndex}, nil
}

// ParseDisputes converts the disputes record into its strict shape. An absent
// record is not an error and yields no verdicts.
func ParseDisputes(p block.Payload) (Disputes, error) {
	if p.IsAbsent() {
		return Disputes{}, nil
	}
	var in disputesJSON
	if err := p.Decode(&in); err != nil {
		return Disputes{}, invalidFormat("dispute", err.Error())
	}

	var out Disputes
	for _, v := range in.Verdicts {
		if v == nil {
			return Disputes{}, invalidFormat("dispute", "null verdict")
		}
		if v.Target == nil {
			return Disputes{}, invalidFormat("dispute", "missing field `target`")
		}
		verdict := Verdict{Target: *v.Target, Age: v.Age}
		for _, vote := range v.Votes {
			switch {
			case vote == nil:
				return Disputes{}, invalidFormat("dispute", "null vote")
			case vote.Vote == nil:
				return Disputes{}, invalidFormat("dispute", "missing field `vote`")
			case vote.Index == nil:
				return Disputes{}, invalidFormat("dispute", "missing field `index`")
			case vote.Signature == nil:
				return Disputes{}, invalidFormat("dispute", "missing field `signature`")
			}
			verdict.Votes = append(verdict.Votes, Vote{Vote: *vote.Vote, Index: *vote.Index, Signature: *vote.Signature})
		}
		out.Verdicts = append(out.Verdicts, verdict)
	}
	return out, nil
}

// hasBits reports whether the assurance carries a non blank bitfield
func (a Assurance) hasBits() bool {
	return strings.TrimSpace(a.Bitfield) != ""
}

func invalidFormat(kind, reason string) error {
	return fmt.Errorf("%w: invalid %s format: %s", ErrValidation, kind, reason)
}
