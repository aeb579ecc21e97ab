package chain

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// Helpers for picking typed values out of an unpacked call result.

func value(out []interface{}, i int) (interface{}, error) {
	if i >= len(out) {
		return nil, fmt.Errorf("%w: want output %d, got %d outputs", ErrUnexpectedType, i, len(out))
	}
	return out[i], nil
}

func AsBigInt(out []interface{}, i int) (*big.Int, error) {
	v, err := value(out, i)
	if err != nil {
		return nil, err
	}
	b, ok := v.(*big.Int)
	if !ok {
		return nil, fmt.Errorf("%w: output %d is %T, want *big.Int", ErrUnexpectedType, i, v)
	}
	return b, nil
}

func AsAddress(out []interface{}, i int) (common.Address, error) {
	v, err := value(out, i)
	if err != nil {
		return common.Address{}, err
	}
	a, ok := v.(common.Address)
	if !ok {
		return common.Address{}, fmt.Errorf("%w: output %d is %T, want address", ErrUnexpectedType, i, v)
	}
	return a, nil
}

func AsAddresses(out []interface{}, i int) ([]common.Address, error) {
	v, err := value(out, i)
	if err != nil {
		return nil, err
	}
	a, ok := v.([]common.Address)
	if !ok {
		return nil, fmt.Errorf("%w: output %d is %T, want address[]", ErrUnexpectedType, i, v)
	}
	return a, nil
}

func AsString(out []interface{}, i int) (string, error) {
	v, err := value(out, i)
	if err != nil {
		return "", err
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("%w: output %d is %T, want string", ErrUnexpectedType, i, v)
	}
	return s, nil
}

func AsBool(out []interface{}, i int) (bool, error) {
	v, err := value(out, i)
	if err != nil {
		return false, err
	}
	b, ok := v.(bool)
	if !ok {
		return false, fmt.Errorf("%w: output %d is %T, want bool", ErrUnexpectedType, i, v)
	}
	return b, nil
}

func AsUint8(out []interface{}, i int) (uint8, error) {
	v, err := value(out, i)
	if err != nil {
		return 0, err
	}
	u, ok := v.(uint8)
	if !ok {
		return 0, fmt.Errorf("%w: output %d is %T, want uint8", ErrUnexpectedType, i, v)
	}
	return u, nil
}

var ErrInvalidAddress = errors.New("invalid address")

// ParseAddress accepts a 0x-prefixed hex address.
func ParseAddress(s string) (common.Address, error) {
	s = strings.TrimSpace(s)
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("%w: %q", ErrInvalidAddress, s)
	}
	return common.HexToAddress(s), nil
}
