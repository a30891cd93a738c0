package domain

import (
	"encoding/hex"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/stretchr/testify/require"
)

func TestOracleCountsForConsensus(t *testing.T) {
	require.True(t, Oracle{Active: true}.CountsForConsensus())
	require.False(t, Oracle{Active: false}.CountsForConsensus())
	require.False(t, Oracle{Active: true, Emergency: true}.CountsForConsensus())
}

func TestOraclePubKey(t *testing.T) {
	privKey, err := btcec.NewPrivateKey()
	require.NoError(t, err)

	oracle := Oracle{ID: hex.EncodeToString(schnorr.SerializePubKey(privKey.PubKey()))}
	pubKey, err := oracle.PubKey()
	require.NoError(t, err)
	require.Equal(t, schnorr.SerializePubKey(privKey.PubKey()), schnorr.SerializePubKey(pubKey))

	_, err = Oracle{ID: "not-hex"}.PubKey()
	require.Error(t, err)
}
