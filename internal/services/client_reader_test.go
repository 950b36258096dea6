package services

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/crmwarm/internal/database/testutil"
	"github.com/charlesng35/crmwarm/internal/models"
)

func seedClients() []models.Client {
	return []models.Client{
		{ID: 3, Name: testutil.Ptr("Gamma"), Status: testutil.Ptr("active")},
		{ID: 1, Name: testutil.Ptr("Alpha")},
		{ID: 2, Email: testutil.Ptr("beta@example.com"), NextFollowUpAt: testutil.Ptr(int64(1700000000))},
	}
}

func TestClientReaderFetchAllOrdered(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithClients(seedClients()...))
	reader, err := NewClientReader(db)
	require.NoError(t, err)

	clients, err := reader.Fetch(context.Background(), ClientFilter{})
	require.NoError(t, err)
	require.Len(t, clients, 3)

	ids := []int64{clients[0].ID, clients[1].ID, clients[2].ID}
	require.Equal(t, []int64{1, 2, 3}, ids)

	require.Nil(t, clients[0].Status)
	require.Equal(t, int64(1700000000), *clients[1].NextFollowUpAt)
	require.Equal(t, "active", *clients[2].Status)
}

func TestClientReaderFetchSingle(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithClients(seedClients()...))
	reader, err := NewClientReader(db)
	require.NoError(t, err)

	clients, err := reader.Fetch(context.Background(), ClientFilter{ID: testutil.Ptr(int64(2))})
	require.NoError(t, err)
	require.Len(t, clients, 1)
	require.Equal(t, int64(2), clients[0].ID)

	clients, err = reader.Fetch(context.Background(), ClientFilter{ID: testutil.Ptr(int64(999))})
	require.NoError(t, err)
	require.Empty(t, clients)
}

func TestClientReaderEmptyTable(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	reader, err := NewClientReader(db)
	require.NoError(t, err)

	clients, err := reader.Fetch(context.Background(), ClientFilter{})
	require.NoError(t, err)
	require.Empty(t, clients)
}

func TestClientReaderMissingTable(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	reader, err := NewClientReader(db)
	require.NoError(t, err)

	_, err = reader.Fetch(context.Background(), ClientFilter{})
	require.Error(t, err)
	require.False(t, IsUnavailable(err))
}

func TestNewClientReaderRequiresDB(t *testing.T) {
	_, err := NewClientReader(nil)
	require.Error(t, err)
}

func TestIsUnavailable(t *testing.T) {
	require.False(t, IsUnavailable(nil))
	require.False(t, IsUnavailable(errors.New("syntax error")))
	require.True(t, IsUnavailable(fmt.Errorf("wrapped: %w", driver.ErrBadConn)))
	require.True(t, IsUnavailable(&net.OpError{Op: "dial", Net: "tcp", Err: errors.New("refused")}))
	require.True(t, IsUnavailable(fmt.Errorf("x: %w", ErrSourceUnavailable)))
}
