// Package contractclass adapts a Starknet contract-class JSON document
// into a sierra.Program, per spec.md §4.1. Decoding the hex-encoded
// sierra_program field into Sierra text is delegated to a trusted,
// external Sierra-decoding routine (modeled here as the Decoder
// interface) rather than implemented from scratch: that routine's
// internals are outside this toolkit's scope, the same way the teacher
// treats its Go module loader's package-download step as an opaque
// collaborator.
package contractclass

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/FuzzingLabs/sierra-analyzer/internal/sierra"
	"github.com/FuzzingLabs/sierra-analyzer/internal/sierraerr"
)

// ContractClass is the subset of the Starknet contract-class JSON schema
// this toolkit reads (spec.md §6 "Input formats").
type ContractClass struct {
	SierraProgram        []string                  `json:"sierra_program"`
	ContractClassVersion string                    `json:"contract_class_version"`
	ABI                  json.RawMessage           `json:"abi"`
	EntryPointsByType    map[string][]EntryPoint   `json:"entry_points_by_type"`
}

// EntryPoint is one entry in entry_points_by_type: a selector plus the
// index of the function it dispatches to.
type EntryPoint struct {
	Selector      string `json:"selector"`
	FunctionIdx   int    `json:"function_idx"`
}

// ABIEntry is the handful of fields this toolkit reads from an ABI
// element; other fields (inputs/outputs/state_mutability, etc.) are
// preserved only insofar as they round-trip through json.RawMessage
// elsewhere, since renaming is the only ABI-driven behaviour spec.md asks
// for (§4.1 "ABI binding").
type ABIEntry struct {
	Type string `json:"type"`
	Name string `json:"name"`
}

// Decoder turns the raw felt-encoded sierra_program array into Sierra
// text. The real implementation (Cairo's own Sierra-to-text printer) is
// out of scope (spec.md Non-goals: "concrete Sierra execution, Sierra
// re-type-checking"); callers supply one, and tests use a stub.
type Decoder interface {
	Decode(feltsHex []string) (string, error)
}

// Parse decodes a contract-class JSON document into a sierra.Program,
// renaming functions per their ABI selector (spec.md §4.1 "ABI
// binding").
func Parse(raw []byte, dec Decoder) (*sierra.Program, error) {
	var cc ContractClass
	if err := json.Unmarshal(raw, &cc); err != nil {
		return nil, &sierraerr.ParseError{Kind: sierraerr.MalformedHeader, At: "contract-class root", Msg: err.Error()}
	}
	if len(cc.SierraProgram) == 0 {
		return nil, &sierraerr.ParseError{Kind: sierraerr.MalformedHeader, At: "sierra_program", Msg: "missing or empty sierra_program"}
	}

	src, err := dec.Decode(cc.SierraProgram)
	if err != nil {
		return nil, &sierraerr.IOError{Op: "decode sierra_program", Err: err}
	}

	prog, err := sierra.Parse(src)
	if err != nil {
		return nil, err
	}

	names, err := abiEntryNames(cc.ABI)
	if err != nil {
		return nil, err
	}
	bindSelectors(prog, cc.EntryPointsByType, names)

	return prog, nil
}

// abiEntryNames extracts the names of the ABI's "function", "l1_handler"
// and "constructor" entries, in document order. bindSelectors indexes
// this list by each entry point's function_idx and gives the name to the
// decoded function whose name contains that entry point's selector.
func abiEntryNames(raw json.RawMessage) ([]string, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var entries []ABIEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, &sierraerr.ParseError{Kind: sierraerr.MalformedHeader, At: "abi", Msg: err.Error()}
	}
	var names []string
	for _, e := range entries {
		if e.Type == "function" || e.Type == "l1_handler" || e.Type == "constructor" {
			names = append(names, e.Name)
		}
	}
	return names, nil
}

// bindSelectors renames each function whose mangled identifier embeds an
// entry point's selector to that entry point's ABI name, per spec.md
// §4.1: "an entrypoint named foo with selector s causes the function
// whose mangled identifier embeds s to be renamed to foo."
func bindSelectors(prog *sierra.Program, byType map[string][]EntryPoint, names []string) {
	for _, eps := range byType {
		for _, ep := range eps {
			if ep.FunctionIdx < 0 || ep.FunctionIdx >= len(names) {
				continue
			}
			name := names[ep.FunctionIdx]
			for _, fn := range prog.Functions {
				if strings.Contains(fn.Name, ep.Selector) {
					fn.Name = name
				}
			}
		}
	}
}

// Fetcher retrieves a contract class by address from a Starknet network
// (spec.md §6 "--remote ADDR", "--network {mainnet,sepolia}"). Modeled as
// an interface only; no concrete implementation ships, matching spec.md's
// Non-goals ("network fetch of remote contract classes"). A real
// implementation would call a STARKNET_RPC_URL-style JSON-RPC endpoint.
type Fetcher interface {
	Fetch(network, address string) ([]byte, error)
}

// Network is one of the values --network accepts.
type Network string

const (
	Mainnet Network = "mainnet"
	Sepolia Network = "sepolia"
)

// ParseNetwork validates a --network flag value.
func ParseNetwork(s string) (Network, error) {
	switch Network(s) {
	case Mainnet, Sepolia:
		return Network(s), nil
	default:
		return "", fmt.Errorf("invalid network %q (want mainnet or sepolia)", s)
	}
}
