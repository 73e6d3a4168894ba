package ledger

import (
	"errors"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
)

// Revert reasons of the registry contract the client reacts to.
const (
	reasonAlreadyExists = "Image with this hash already exists"
)

var notFoundReasons = []string{"image not found", "does not exist"}

// RevertReason returns the revert reason carried by err. Structured revert
// data attached to JSON-RPC errors is decoded first. Nodes that only report
// the reason in the error message are handled by matching the message.
func RevertReason(err error) (string, bool) {
	if err == nil {
		return "", false
	}

	var revertErr RevertError
	if errors.As(err, &revertErr) {
		return revertErr.Reason, true
	}

	var dataErr rpc.DataError
	if errors.As(err, &dataErr) {
		if reason, ok := decodeRevertData(dataErr.ErrorData()); ok {
			return reason, true
		}
	}

	const marker = "execution reverted: "
	msg := err.Error()
	if i := strings.Index(msg, marker); i >= 0 {
		return msg[i+len(marker):], true
	}
	return "", false
}

func decodeRevertData(data interface{}) (string, bool) {
	encoded, ok := data.(string)
	if !ok {
		return "", false
	}
	raw, err := hexutil.Decode(encoded)
	if err != nil {
		return "", false
	}
	reason, err := abi.UnpackRevert(raw)
	if err != nil {
		return "", false
	}
	return reason, true
}

// isAlreadyExists returns true if err says the ledger already holds the
// record being stored.
func isAlreadyExists(err error) bool {
	if err == nil {
		return false
	}
	if reason, ok := RevertReason(err); ok && strings.Contains(reason, reasonAlreadyExists) {
		return true
	}
	return strings.Contains(err.Error(), reasonAlreadyExists)
}

// isNotFound returns true if err says the ledger holds no record for the
// queried fingerprint.
func isNotFound(err error) bool {
	if err == nil {
		return false
	}
	text := err.Error()
	if reason, ok := RevertReason(err); ok {
		text = reason
	}
	text = strings.ToLower(text)
	for _, r := range notFoundReasons {
		if strings.Contains(text, r) {
			return true
		}
	}
	return false
}
