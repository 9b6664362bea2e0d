package sqlstore

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/mcoot/towers-go/internal/model"
)

// dryRunDB builds statements without a server
func dryRunDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(postgres.New(postgres.Config{DSN: "host=localhost user=towers dbname=towers sslmode=disable"}), &gorm.Config{
		DryRun:               true,
		DisableAutomaticPing: true,
	})
	require.NoError(t, err)
	return db
}

func TestUpsertSeatStatement(t *testing.T) {
	db := dryRunDB(t)

	sql := db.ToSQL(func(tx *gorm.DB) *gorm.DB {
		return upsertSeat(tx, &SeatRow{TableID: "eiffel-1", SeatNumber: 3, PlayerID: "alice"})
	})

	assert.Contains(t, sql, `INSERT INTO "seat_rows"`)
	assert.Contains(t, sql, `ON CONFLICT ("table_id","seat_number") DO UPDATE SET`)
	assert.Contains(t, sql, `"player_id"="excluded"."player_id"`)
}

func TestStatsRowCopiesWindow(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	stats := model.NewPlayerStats("alice", now)
	stats.RecordWin(now)

	row := statsRow(stats)
	stats.RecentWins[0] = now.Add(time.Hour)

	back := row.toModel()
	require.Len(t, back.RecentWins, 1)
	assert.True(t, back.RecentWins[0].Equal(now))
	assert.Equal(t, model.DefaultRating, back.Rating)
	assert.Equal(t, 1, back.Streak)
}

// StoreSuite runs against a real postgres when TOWERS_TEST_POSTGRES_DSN is set
type StoreSuite struct {
	suite.Suite
	store *Store
	ctx   context.Context
}

func TestStoreSuite(t *testing.T) {
	if os.Getenv("TOWERS_TEST_POSTGRES_DSN") == "" {
		t.Skip("TOWERS_TEST_POSTGRES_DSN not set")
	}
	suite.Run(t, new(StoreSuite))
}

func (s *StoreSuite) SetupTest() {
	db, err := Open(os.Getenv("TOWERS_TEST_POSTGRES_DSN"))
	s.Require().NoError(err)
	for _, m := range []any{&PlayerRow{}, &RegisteredPlayerRow{}, &StatsRow{}, &TableRow{}, &SeatRow{}, &ChatRow{}} {
		s.Require().NoError(db.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(m).Error)
	}
	s.store = New(db)
	s.ctx = context.Background()
}

func (s *StoreSuite) TearDownTest() {
	_ = s.store.Close()
}

func (s *StoreSuite) TestPlayerRoundTrip() {
	player := &model.Player{ID: "player-1", DisplayName: "Alice", IsGuest: true, CreatedAt: time.Now().UTC()}
	s.Require().NoError(s.store.SavePlayer(s.ctx, player))

	got, err := s.store.GetPlayer(s.ctx, "player-1")
	s.Require().NoError(err)
	s.Equal("Alice", got.DisplayName)
	s.True(got.IsGuest)

	_, err = s.store.GetPlayer(s.ctx, "missing")
	s.ErrorIs(err, model.ErrPlayerNotFound)
}

func (s *StoreSuite) TestLoadOrCreateStats() {
	now := time.Now().UTC().Truncate(time.Millisecond)

	created, err := s.store.LoadOrCreateStats(s.ctx, "player-1", now)
	s.Require().NoError(err)
	s.Equal(model.DefaultRating, created.Rating)

	created.RecordWin(now)
	created.Rating = 1208
	s.Require().NoError(s.store.SaveStats(s.ctx, created))

	loaded, err := s.store.LoadOrCreateStats(s.ctx, "player-1", now.Add(time.Minute))
	s.Require().NoError(err)
	s.Equal(1208, loaded.Rating)
	s.Require().Len(loaded.RecentWins, 1)
}

func (s *StoreSuite) TestSeatsUpsertByTableAndNumber() {
	s.Require().NoError(s.store.UpsertSeat(s.ctx, &model.SeatAssignment{TableID: "eiffel-1", SeatNumber: 3, PlayerID: "alice"}))
	s.Require().NoError(s.store.UpsertSeat(s.ctx, &model.SeatAssignment{TableID: "eiffel-1", SeatNumber: 3, PlayerID: "bob"}))

	seats, err := s.store.GetSeats(s.ctx, "eiffel-1")
	s.Require().NoError(err)
	s.Require().Len(seats, 1)
	s.Equal(model.PlayerID("bob"), seats[0].PlayerID)
}

func (s *StoreSuite) TestTablesAndChat() {
	s.Require().NoError(s.store.SaveTable(s.ctx, &model.TableInfo{ID: "eiffel-2", RoomID: "eiffel", Number: 2, Type: model.TablePublic}))
	s.Require().NoError(s.store.SaveTable(s.ctx, &model.TableInfo{ID: "eiffel-1", RoomID: "eiffel", Number: 1, Type: model.TablePublic}))
	base := time.Now().UTC().Truncate(time.Millisecond)
	for i, id := range []string{"m1", "m2", "m3"} {
		s.Require().NoError(s.store.AppendChatMessage(s.ctx, &model.ChatRecord{
			ID: id, Scope: model.ChatScopeTable, ScopeID: "eiffel-1", Kind: "CHAT",
			Vars: map[string]string{"i": id}, CreatedAt: base.Add(time.Duration(i) * time.Second),
		}))
	}

	tables, err := s.store.ListTables(s.ctx, "eiffel")
	s.Require().NoError(err)
	s.Require().Len(tables, 2)
	s.Equal(1, tables[0].Number)

	msgs, err := s.store.ListChatMessages(s.ctx, model.ChatScopeTable, "eiffel-1", 2)
	s.Require().NoError(err)
	s.Require().Len(msgs, 2)
	s.Equal("m2", msgs[0].ID)
	s.Equal("m3", msgs[1].Vars["i"])

	s.Require().NoError(s.store.DeleteTable(s.ctx, "eiffel-1"))
	_, err = s.store.GetTable(s.ctx, "eiffel-1")
	s.ErrorIs(err, model.ErrTableNotFound)
	msgs, err = s.store.ListChatMessages(s.ctx, model.ChatScopeTable, "eiffel-1", 0)
	s.Require().NoError(err)
	s.Empty(msgs)
}
