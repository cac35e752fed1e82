package main

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFunds(t *testing.T) {
	addr := common.HexToAddress("0x00000000000000000000000000000000000000aa")
	balances, err := parseFunds([]string{addr.Hex() + "=1000"})
	require.NoError(t, err)
	require.Len(t, balances, 1)
	assert.Equal(t, addr, balances[0].Address)
	assert.Equal(t, uint64(1000), balances[0].Amount.Uint64())

	for _, bad := range []string{"1000", "0x12=5", addr.Hex() + "=-1", addr.Hex() + "=ten"} {
		_, err = parseFunds([]string{bad})
		assert.Error(t, err, bad)
	}
}

func TestIndexArg(t *testing.T) {
	dat, err := indexArg("258")
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 0, 0, 0, 0, 0, 1, 2}, dat)

	_, err = indexArg("x")
	assert.Error(t, err)
}

func TestPollArg(t *testing.T) {
	id, err := pollArg("3")
	require.NoError(t, err)
	assert.Equal(t, uint64(3), id)

	_, err = pollArg("0")
	assert.Error(t, err)
	id, err = idArg("0")
	require.NoError(t, err)
	assert.Zero(t, id)
}

func TestVersionWithCommit(t *testing.T) {
	assert.Equal(t, Version, VersionWithCommit("abc"))
	assert.Equal(t, Version+"-0123abcd", VersionWithCommit("0123abcdef"))
}
