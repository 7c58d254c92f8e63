package main

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"content-proxy/api/internal/config"
)

func TestBuildAppWithoutDatabase(t *testing.T) {
	c := &config.Config{ContactRateLimit: 3, ContactRateWindow: time.Minute, OpenAIAPIKey: "sk", SegmindAPIKey: "sg"}
	a, err := buildApp(context.Background(), c, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer a.Close()

	assert.Nil(t, a.db)
	assert.Len(t, a.handle.Functions(), 12)
	assert.Nil(t, a.handle.Users)
	assert.Nil(t, a.handle.Video)

	require.Len(t, a.handle.TextChain, 1)
	assert.Equal(t, "openai", a.handle.TextChain[0].Name())
	require.Len(t, a.handle.ImageChain, 2)
	assert.Equal(t, "segmind", a.handle.ImageChain[0].Name())
	assert.Equal(t, "pollinations", a.handle.ImageChain[1].Name())
}

func TestBuildAppBadRedisURL(t *testing.T) {
	c := &config.Config{ContactRateLimit: 3, ContactRateWindow: time.Minute, RedisURL: "://nope"}
	_, err := buildApp(context.Background(), c, zaptest.NewLogger(t))
	require.Error(t, err)
}

func TestSweepExpired(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	mock.ExpectExec("update subscriptions").WillReturnResult(sqlmock.NewResult(0, 2))

	n, err := sweepExpired(context.Background(), db, zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCommandsRegistered(t *testing.T) {
	var names []string
	for _, c := range rootCmd.Commands() {
		names = append(names, c.Name())
	}
	assert.Subset(t, names, []string{"serve", "lambda", "migrate", "sweep"})
}
