package flashloan

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/michaelpento.lv/flashplanner/apperror"
	bigmath "github.com/michaelpento.lv/flashplanner/utils/math"
)

// Approval asks the executor to grant spender an allowance of amount on token
type Approval struct {
	Token   string
	Spender string
	Amount  *big.Int
}

// Call is an external call the executor makes in order
type Call struct {
	Target string
	Value  *big.Int
	// Data is raw bytes, a 0x-prefixed hex string or any other string (taken as UTF-8)
	Data interface{}
}

// FlashParams is the complete plan decoded on-chain by the executor contract
type FlashParams struct {
	MinProfit   *big.Int
	Beneficiary string
	Approvals   []Approval
	Calls       []Call
}

// Decoded is FlashParams with every field in canonical form
type Decoded struct {
	MinProfit   *big.Int
	Beneficiary common.Address
	Approvals   []DecodedApproval
	Calls       []DecodedCall
}

type DecodedApproval struct {
	Token   common.Address
	Spender common.Address
	Amount  *big.Int
}

type DecodedCall struct {
	Target common.Address
	Value  *big.Int
	Data   []byte
}

// tuple(uint256,address,(address,address,uint256)[],(address,uint256,bytes)[])
type flashParamsTuple struct {
	MinProfit   *big.Int        `abi:"minProfit"`
	Beneficiary common.Address  `abi:"beneficiary"`
	Approvals   []approvalTuple `abi:"approvals"`
	Calls       []callTuple     `abi:"calls"`
}

type approvalTuple struct {
	Token   common.Address `abi:"token"`
	Spender common.Address `abi:"spender"`
	Amount  *big.Int       `abi:"amount"`
}

type callTuple struct {
	Target common.Address `abi:"target"`
	Value  *big.Int       `abi:"value"`
	Data   []byte         `abi:"data"`
}

var flashParamsArgs abi.Arguments

func init() {
	tupleType, err := abi.NewType("tuple", "", []abi.ArgumentMarshaling{
		{Name: "minProfit", Type: "uint256"},
		{Name: "beneficiary", Type: "address"},
		{Name: "approvals", Type: "tuple[]", Components: []abi.ArgumentMarshaling{
			{Name: "token", Type: "address"},
			{Name: "spender", Type: "address"},
			{Name: "amount", Type: "uint256"},
		}},
		{Name: "calls", Type: "tuple[]", Components: []abi.ArgumentMarshaling{
			{Name: "target", Type: "address"},
			{Name: "value", Type: "uint256"},
			{Name: "data", Type: "bytes"},
		}},
	})
	if err != nil {
		panic(fmt.Sprintf("flash params tuple type: %v", err))
	}
	flashParamsArgs = abi.Arguments{{Name: "params", Type: tupleType}}
}

// IsAddress reports whether s has the textual shape of a 20-byte address:
// "0x" prefix and exactly 42 characters of which the last 40 are hex
func IsAddress(s string) bool {
	if len(s) != 42 || !strings.HasPrefix(s, "0x") {
		return false
	}
	_, err := hex.DecodeString(s[2:])
	return err == nil
}

// ParseAddress validates s and returns the address
func ParseAddress(field, s string) (common.Address, error) {
	if !IsAddress(s) {
		return common.Address{}, apperror.New(apperror.CodeEncodingError,
			apperror.WithContext(fmt.Sprintf("%s: malformed address %q", field, s)))
	}
	return common.HexToAddress(s), nil
}

// ToBytes converts call data to raw bytes.
// nil becomes empty, a 0x/0X prefix means hex, any other string is UTF-8.
func ToBytes(data interface{}) ([]byte, error) {
	switch v := data.(type) {
	case nil:
		return []byte{}, nil
	case []byte:
		return v, nil
	case string:
		if strings.HasPrefix(v, "0x") || strings.HasPrefix(v, "0X") {
			b, err := hex.DecodeString(v[2:])
			if err != nil {
				return nil, apperror.New(apperror.CodeEncodingError,
					apperror.WithCause(err), apperror.WithContext("call data hex"))
			}
			return b, nil
		}
		return []byte(v), nil
	default:
		return nil, apperror.New(apperror.CodeEncodingError,
			apperror.WithContext(fmt.Sprintf("unsupported call data type %T", data)))
	}
}

func checkUint256(field string, v *big.Int) (*big.Int, error) {
	if v == nil {
		return new(big.Int), nil
	}
	if !bigmath.IsUint256(v) {
		return nil, apperror.New(apperror.CodeEncodingError,
			apperror.WithContext(fmt.Sprintf("%s: %s outside uint256 range", field, v.String())))
	}
	return v, nil
}

// Encode serializes params with the executor's fixed ABI tuple layout
func Encode(params FlashParams) ([]byte, error) {
	minProfit, err := checkUint256("minProfit", params.MinProfit)
	if err != nil {
		return nil, err
	}
	beneficiary, err := ParseAddress("beneficiary", params.Beneficiary)
	if err != nil {
		return nil, err
	}

	tuple := flashParamsTuple{
		MinProfit:   minProfit,
		Beneficiary: beneficiary,
		Approvals:   make([]approvalTuple, 0, len(params.Approvals)),
		Calls:       make([]callTuple, 0, len(params.Calls)),
	}

	for i, a := range params.Approvals {
		token, err := ParseAddress(fmt.Sprintf("approvals[%d].token", i), a.Token)
		if err != nil {
			return nil, err
		}
		spender, err := ParseAddress(fmt.Sprintf("approvals[%d].spender", i), a.Spender)
		if err != nil {
			return nil, err
		}
		amount, err := checkUint256(fmt.Sprintf("approvals[%d].amount", i), a.Amount)
		if err != nil {
			return nil, err
		}
		tuple.Approvals = append(tuple.Approvals, approvalTuple{Token: token, Spender: spender, Amount: amount})
	}

	for i, c := range params.Calls {
		target, err := ParseAddress(fmt.Sprintf("calls[%d].target", i), c.Target)
		if err != nil {
			return nil, err
		}
		value, err := checkUint256(fmt.Sprintf("calls[%d].value", i), c.Value)
		if err != nil {
			return nil, err
		}
		data, err := ToBytes(c.Data)
		if err != nil {
			return nil, err
		}
		tuple.Calls = append(tuple.Calls, callTuple{Target: target, Value: value, Data: data})
	}

	encoded, err := flashParamsArgs.Pack(tuple)
	if err != nil {
		return nil, apperror.New(apperror.CodeEncodingError, apperror.WithCause(err))
	}
	return encoded, nil
}

// Decode is the inverse of Encode
func Decode(data []byte) (*Decoded, error) {
	values, err := flashParamsArgs.Unpack(data)
	if err != nil {
		return nil, fmt.Errorf("failed to unpack flash params: %w", err)
	}
	if len(values) != 1 {
		return nil, fmt.Errorf("unexpected flash params value count: %d", len(values))
	}
	tuple, err := convertTuple(values[0])
	if err != nil {
		return nil, err
	}

	out := &Decoded{
		MinProfit:   tuple.MinProfit,
		Beneficiary: tuple.Beneficiary,
		Approvals:   make([]DecodedApproval, len(tuple.Approvals)),
		Calls:       make([]DecodedCall, len(tuple.Calls)),
	}
	for i, a := range tuple.Approvals {
		out.Approvals[i] = DecodedApproval(a)
	}
	for i, c := range tuple.Calls {
		out.Calls[i] = DecodedCall(c)
	}
	return out, nil
}

// convertTuple maps the anonymous struct produced by Unpack onto flashParamsTuple
func convertTuple(v interface{}) (tuple *flashParamsTuple, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("failed to convert flash params: %v", r)
		}
	}()
	return abi.ConvertType(v, new(flashParamsTuple)).(*flashParamsTuple), nil
}
