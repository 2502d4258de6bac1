package contractclass

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// stubDecoder ignores the hex felts and returns a fixed Sierra program,
// standing in for the real Sierra-to-text printer this package treats as
// an external collaborator.
type stubDecoder struct{ src string }

func (d stubDecoder) Decode(_ []string) (string, error) { return d.src, nil }

const sampleSierra = `type felt252 = felt252;
libfunc store_temp<felt252> = store_temp<felt252>;
store_temp<felt252>([0]) -> ([0]);
return([0]);

pkg::Contract::__wrapper_1234abcd@0([0]: felt252) -> (felt252);
`

func TestParseRenamesFunctionBySelector(t *testing.T) {
	raw := []byte(`{
		"sierra_program": ["0x1", "0x2"],
		"contract_class_version": "0.1.0",
		"abi": [{"type": "function", "name": "transfer"}],
		"entry_points_by_type": {
			"EXTERNAL": [{"selector": "1234abcd", "function_idx": 0}]
		}
	}`)

	prog, err := Parse(raw, stubDecoder{src: sampleSierra})
	require.NoError(t, err)
	require.Len(t, prog.Functions, 1)
	require.Equal(t, "transfer", prog.Functions[0].Name)
}

func TestParseRejectsMissingSierraProgram(t *testing.T) {
	_, err := Parse([]byte(`{"abi": []}`), stubDecoder{})
	require.Error(t, err)
}

func TestParseNetworkValidatesChoices(t *testing.T) {
	_, err := ParseNetwork("mainnet")
	require.NoError(t, err)
	_, err = ParseNetwork("testnet")
	require.Error(t, err)
}
