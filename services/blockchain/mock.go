package blockchain

import (
	"context"

	"github.com/halocoin/halominer/model"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/mock"
)

// Mock implements the blockchain.ClientI interface for testing purposes
type Mock struct {
	mock.Mock
}

// Health mocks the Health method
func (m *Mock) Health(ctx context.Context, checkLiveness bool) (int, string, error) {
	args := m.Called(ctx, checkLiveness)

	if args.Error(2) != nil {
		return 0, "", args.Error(2)
	}

	return args.Int(0), args.String(1), args.Error(2)
}

// GetChainState mocks the GetChainState method
func (m *Mock) GetChainState(ctx context.Context) (ChainState, error) {
	args := m.Called(ctx)

	if args.Error(1) != nil {
		return ChainStateStopped, args.Error(1)
	}

	return args.Get(0).(ChainState), args.Error(1)
}

// GetBestHeight mocks the GetBestHeight method
func (m *Mock) GetBestHeight(ctx context.Context) (int64, error) {
	args := m.Called(ctx)

	if args.Error(1) != nil {
		return -1, args.Error(1)
	}

	return args.Get(0).(int64), args.Error(1)
}

// GetBlockByHeight mocks the GetBlockByHeight method
func (m *Mock) GetBlockByHeight(ctx context.Context, height uint32) (*model.Block, error) {
	args := m.Called(ctx, height)

	if args.Error(1) != nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*model.Block), args.Error(1)
}

// GetPendingTransactions mocks the GetPendingTransactions method
func (m *Mock) GetPendingTransactions(ctx context.Context) ([]*model.Transaction, error) {
	args := m.Called(ctx)

	if args.Error(1) != nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*model.Transaction), args.Error(1)
}

// Target mocks the Target method
func (m *Mock) Target(height uint32) *uint256.Int {
	args := m.Called(height)

	return args.Get(0).(*uint256.Int)
}

// SubmitMinedBlock mocks the SubmitMinedBlock method
func (m *Mock) SubmitMinedBlock(ctx context.Context, block *model.Block) error {
	args := m.Called(ctx, block)

	return args.Error(0)
}
