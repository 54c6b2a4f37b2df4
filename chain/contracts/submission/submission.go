// Package submission is a hand-authored abigen-style binding for the
// Submission contract's four voting functions. Each takes no ABI-typed
// arguments -- submitters append the raw per-protocol payload after the
// 4-byte selector themselves (see client/payload).
package submission

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

const submissionABI = `[
	{"inputs": [], "name": "submit1", "outputs": [{"name": "", "type": "bool"}], "stateMutability": "nonpayable", "type": "function"},
	{"inputs": [], "name": "submit2", "outputs": [{"name": "", "type": "bool"}], "stateMutability": "nonpayable", "type": "function"},
	{"inputs": [], "name": "submit3", "outputs": [{"name": "", "type": "bool"}], "stateMutability": "nonpayable", "type": "function"},
	{"inputs": [], "name": "submitSignatures", "outputs": [{"name": "", "type": "bool"}], "stateMutability": "nonpayable", "type": "function"}
]`

var parsedABI abi.ABI

func init() {
	var err error
	parsedABI, err = abi.JSON(strings.NewReader(submissionABI))
	if err != nil {
		panic(err)
	}
	ABI = parsedABI
}

var ABI = parsedABI

// Selectors holds the 4-byte function selectors the ingestion loop
// dispatches transaction calldata on.
type Selectors struct {
	Submit1          []byte
	Submit2          []byte
	Submit3          []byte
	SubmitSignatures []byte
}

func NewSelectors() Selectors {
	return Selectors{
		Submit1:          parsedABI.Methods["submit1"].ID,
		Submit2:          parsedABI.Methods["submit2"].ID,
		Submit3:          parsedABI.Methods["submit3"].ID,
		SubmitSignatures: parsedABI.Methods["submitSignatures"].ID,
	}
}
