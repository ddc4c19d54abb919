package database

import (
	"os"
	"testing"
	"time"

	"github.com/lmig/csserver/pkg/logger"
	"github.com/stretchr/testify/require"
)

// testDB opens a Repository against CALLSTREAMSERVER_TEST_PG_CONN_INFO, or
// skips the test when that variable isn't set. These tests exercise real
// Postgres behavior (upsert conflicts, AutoMigrate) that a mock can't.
func testDB(t *testing.T) *DB {
	t.Helper()
	connInfo := os.Getenv("CALLSTREAMSERVER_TEST_PG_CONN_INFO")
	if connInfo == "" {
		t.Skip("CALLSTREAMSERVER_TEST_PG_CONN_INFO not set, skipping Postgres-backed test")
	}
	log := logger.New(logger.Config{Level: "error"})
	db, err := NewDB(Config{ConnInfo: connInfo}, log)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestNewDB_RequiresConnInfo(t *testing.T) {
	log := logger.New(logger.Config{Level: "error"})
	_, err := NewDB(Config{}, log)
	require.Error(t, err)
}

func TestRepository_UpsertKeepAlive(t *testing.T) {
	db := testDB(t)
	repo := NewRepository(db.GetDB())

	ka := &KeepAlive{LogServerNo: 7, LastHeartbeat: time.Now(), Timeout: 30, SwVer: 1}
	require.NoError(t, repo.UpsertKeepAlive(ka))

	ka2 := &KeepAlive{LogServerNo: 7, LastHeartbeat: time.Now(), Timeout: 60, SwVer: 2}
	require.NoError(t, repo.UpsertKeepAlive(ka2))

	var got KeepAlive
	require.NoError(t, db.GetDB().Where("log_server_no = ?", 7).First(&got).Error)
	require.Equal(t, uint32(60), got.Timeout)
}

func TestRepository_IndiCallLifecycle(t *testing.T) {
	db := testDB(t)
	repo := NewRepository(db.GetDB())

	call := &IndiCall{
		CallID:        100,
		CallBegin:     time.Now(),
		SimplexDuplex: 1,
	}
	require.NoError(t, repo.CreateIndiCall(call))
	require.NotZero(t, call.DbID)

	require.NoError(t, repo.InsertIndiCallStatusChange(&IndiCallStatusChange{CallID: 100, SeqNo: 1, ReceivedAt: time.Now(), ActionID: 1}))
	require.NoError(t, repo.InsertIndiCallPtt(&IndiCallPtt{CallID: 100, SeqNo: 2, ReceivedAt: time.Now(), TalkingParty: 1}))

	require.NoError(t, repo.CloseIndiCall(call.DbID, time.Now(), 3, 1))

	got, err := repo.GetIndiCallByDbID(call.DbID)
	require.NoError(t, err)
	require.Equal(t, uint8(1), got.DisconnectCause)
}

func TestRepository_VoiceIndiCall(t *testing.T) {
	db := testDB(t)
	repo := NewRepository(db.GetDB())

	call := &IndiCall{CallID: 101, CallBegin: time.Now(), SimplexDuplex: 1}
	require.NoError(t, repo.CreateIndiCall(call))

	data := make([]byte, 46+480)
	v := &VoiceIndiCall{
		DbID:         call.DbID,
		CallBegin:    call.CallBegin,
		CallEnd:      time.Now(),
		VoiceDataLen: int64(len(data)),
		VoiceData:    data,
		Duration:     Interval(60 * time.Millisecond),
	}
	require.NoError(t, repo.CreateVoiceIndiCall(v))

	got, err := repo.GetVoiceIndiCall(call.DbID)
	require.NoError(t, err)
	require.Equal(t, int64(len(data)), got.VoiceDataLen)
}
