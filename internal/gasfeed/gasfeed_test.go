package gasfeed

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ldmdldm/pylot-project/internal/oracle"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeClient struct {
	baseFee   *big.Int
	headerErr error
	tip       *big.Int
	tipErr    error
	legacy    *big.Int
	legacyErr error
}

func (f *fakeClient) HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error) {
	if f.headerErr != nil {
		return nil, f.headerErr
	}
	return &types.Header{BaseFee: f.baseFee}, nil
}

func (f *fakeClient) SuggestGasTipCap(ctx context.Context) (*big.Int, error) {
	if f.tipErr != nil {
		return nil, f.tipErr
	}
	return f.tip, nil
}

func (f *fakeClient) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	if f.legacyErr != nil {
		return nil, f.legacyErr
	}
	return f.legacy, nil
}

func TestEffectiveGasPrice_BaseFeePlusTip(t *testing.T) {
	c := &fakeClient{baseFee: big.NewInt(20_000_000_000), tip: big.NewInt(2_000_000_000)}
	wei, err := effectiveGasPrice(context.Background(), c)
	require.NoError(t, err)
	assert.Equal(t, "22000000000", wei.String())
}

func TestEffectiveGasPrice_TipErrorFallsBackToOneGwei(t *testing.T) {
	c := &fakeClient{baseFee: big.NewInt(20_000_000_000), tipErr: errors.New("unsupported")}
	wei, err := effectiveGasPrice(context.Background(), c)
	require.NoError(t, err)
	assert.Equal(t, "21000000000", wei.String())
}

func TestEffectiveGasPrice_LegacyChains(t *testing.T) {
	// No base fee in the header.
	c := &fakeClient{legacy: big.NewInt(30_000_000_000)}
	wei, err := effectiveGasPrice(context.Background(), c)
	require.NoError(t, err)
	assert.Equal(t, "30000000000", wei.String())

	// Header read failed outright.
	c = &fakeClient{headerErr: errors.New("rpc down"), legacy: big.NewInt(31_000_000_000)}
	wei, err = effectiveGasPrice(context.Background(), c)
	require.NoError(t, err)
	assert.Equal(t, "31000000000", wei.String())

	c = &fakeClient{headerErr: errors.New("rpc down"), legacyErr: errors.New("also down")}
	_, err = effectiveGasPrice(context.Background(), c)
	assert.Error(t, err)
}

func TestRefresh_UpdatesOracle(t *testing.T) {
	o := oracle.New(zap.NewNop())
	p := New(o, time.Minute, zap.NewNop())
	p.Watch(1, &fakeClient{baseFee: big.NewInt(20_000_000_000), tip: big.NewInt(2_000_000_000)})
	p.Watch(42161, &fakeClient{headerErr: errors.New("rpc down"), legacyErr: errors.New("also down")})

	p.refresh(context.Background())

	wei, ok := o.GasPrice(1)
	require.True(t, ok)
	assert.Equal(t, "22000000000", wei.String())

	_, ok = o.GasPrice(42161)
	assert.False(t, ok, "failed polls leave the oracle untouched")
}

func TestRun_NoClients(t *testing.T) {
	p := New(oracle.New(zap.NewNop()), time.Minute, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("run did not stop on cancel")
	}
}
