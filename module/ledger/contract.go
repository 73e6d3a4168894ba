package ledger

import (
	_ "embed"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	gethCommon "github.com/ethereum/go-ethereum/common"
)

// Contract operations. The names are part of the deployed contract
// interface and must not change.
const (
	methodStore         = "storeImageFeatures"
	methodUpdate        = "updateImageFeatures"
	methodDelete        = "deleteImageFeatures"
	methodGet           = "getImageFeatures"
	methodExists        = "imageExists"
	methodCount         = "getImageCount"
	methodListPaginated = "getImageHashesPaginated"
	methodVerify        = "verifyImage"
	methodIsAuthorized  = "isAuthorized"
	methodIsPaused      = "isPaused"
	methodPause         = "pauseContract"
	methodUnpause       = "unpauseContract"
	methodAddAuthorized = "addAuthorizedUser"
	methodRevoke        = "removeAuthorizedUser"
	methodTransferOwner = "transferOwnership"
)

//go:embed provenance_registry.abi.json
var registryABI string

// ParseRegistryABI returns the ABI of the provenance registry contract.
func ParseRegistryABI() (abi.ABI, error) {
	return abi.JSON(strings.NewReader(registryABI))
}

// Contract binds the provenance registry ABI to a deployed address.
type Contract struct {
	abi     abi.ABI
	address gethCommon.Address
}

func NewContract(address string) (*Contract, error) {
	if !gethCommon.IsHexAddress(address) {
		return nil, fmt.Errorf("invalid contract address: %q", address)
	}
	parsed, err := ParseRegistryABI()
	if err != nil {
		return nil, fmt.Errorf("could not parse contract abi: %w", err)
	}
	return &Contract{abi: parsed, address: gethCommon.HexToAddress(address)}, nil
}

func (c *Contract) Address() gethCommon.Address {
	return c.address
}

func (c *Contract) pack(method string, args ...interface{}) ([]byte, error) {
	data, err := c.abi.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("could not encode %s call: %w", method, err)
	}
	return data, nil
}

func (c *Contract) unpack(method string, output []byte) ([]interface{}, error) {
	values, err := c.abi.Unpack(method, output)
	if err != nil {
		return nil, fmt.Errorf("could not decode %s result: %w", method, err)
	}
	if want := len(c.abi.Methods[method].Outputs); len(values) != want {
		return nil, fmt.Errorf("%s returned %d values, expected %d", method, len(values), want)
	}
	return values, nil
}
