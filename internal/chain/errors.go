package chain

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

var (
	ErrNoSigner          = errors.New("no signing wallet configured")
	ErrWrongChain        = errors.New("wallet chain does not match the connected network")
	ErrUnknownInterface  = errors.New("unknown contract interface")
	ErrUnknownMethod     = errors.New("method not declared by interface")
	ErrUnexpectedType    = errors.New("unexpected return type")
	ErrTransactionFailed = errors.New("transaction failed")
)

// TxFailedError is returned when a mined transaction has a non-success status.
type TxFailedError struct {
	Hash common.Hash
}

func (e *TxFailedError) Error() string {
	return fmt.Sprintf("transaction %s failed", e.Hash.Hex())
}

func (e *TxFailedError) Is(target error) bool { return target == ErrTransactionFailed }

// RevertError is a contract revert observed while estimating or calling.
type RevertError struct {
	Reason string
	Err    error
}

func (e *RevertError) Error() string {
	if e.Reason == "" {
		return "execution reverted"
	}
	return "execution reverted: " + e.Reason
}

func (e *RevertError) Unwrap() error { return e.Err }

// dataError matches go-ethereum rpc errors that carry revert data.
type dataError interface {
	ErrorData() interface{}
}

// asRevert converts RPC errors that describe a revert into a *RevertError and
// returns any other error unchanged.
func asRevert(err error) error {
	if err == nil {
		return nil
	}
	var de dataError
	if errors.As(err, &de) {
		if s, ok := de.ErrorData().(string); ok {
			if data, decErr := hexutil.Decode(s); decErr == nil {
				reason, _ := abi.UnpackRevert(data)
				return &RevertError{Reason: reason, Err: err}
			}
		}
	}
	if strings.Contains(err.Error(), "execution reverted") {
		reason := strings.TrimSpace(strings.TrimPrefix(err.Error(), "execution reverted"))
		return &RevertError{Reason: strings.TrimPrefix(reason, ": "), Err: err}
	}
	return err
}
