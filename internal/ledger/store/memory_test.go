package store_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tally/internal/ledger/models"
	"tally/internal/ledger/service"
	"tally/internal/ledger/store"
	"tally/pkg/platform/sentinel"
)

func newTestDebtor(t *testing.T) *models.Debtor {
	t.Helper()
	addr, err := models.NewAddress("1 Main St", "Springfield", "IL", "62704")
	require.NoError(t, err)
	debtor, err := models.NewDebtor("owner-1", "Ada Lovelace", "+1 555 010 7788", "ada@example.com", addr, time.Now().UTC())
	require.NoError(t, err)
	return debtor
}

func TestTxWritesInvisibleUntilCommit(t *testing.T) {
	mem := store.NewMemory()
	tx := store.NewMemoryTx(mem)
	debtor := newTestDebtor(t)

	err := tx.RunInTx(context.Background(), func(st service.Store) error {
		if err := st.InsertDebtor(context.Background(), debtor); err != nil {
			return err
		}
		_, err := mem.FindDebtor(context.Background(), debtor.ID, "owner-1")
		assert.ErrorIs(t, err, sentinel.ErrNotFound, "uncommitted writes must stay off the live store")
		return nil
	})
	require.NoError(t, err)

	got, err := mem.FindDebtor(context.Background(), debtor.ID, "owner-1")
	require.NoError(t, err)
	assert.Equal(t, "Ada Lovelace", got.FullName)
}

func TestTxFailureLeavesStoreUntouched(t *testing.T) {
	mem := store.NewMemory()
	tx := store.NewMemoryTx(mem)
	debtor := newTestDebtor(t)

	err := tx.RunInTx(context.Background(), func(st service.Store) error {
		require.NoError(t, st.InsertDebtor(context.Background(), debtor))
		return errors.New("abort")
	})
	require.Error(t, err)

	_, err = mem.FindDebtor(context.Background(), debtor.ID, "owner-1")
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
}
