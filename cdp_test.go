package main

import (
	"context"
	"testing"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/stretchr/testify/assert"
)

func TestWaitNetworkIdle_MatchingLoader(t *testing.T) {
	events := make(chan cdp.LoaderID, idleEventBuffer)
	go func() {
		events <- "iframe-loader"
		events <- "main-loader"
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	assert.NoError(t, waitNetworkIdle(ctx, events, "main-loader"))
}

func TestWaitNetworkIdle_EventBeforeWait(t *testing.T) {
	events := make(chan cdp.LoaderID, idleEventBuffer)
	events <- "main-loader"

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, waitNetworkIdle(ctx, events, "main-loader"), "导航返回前到达的事件也算数")
}

func TestWaitNetworkIdle_Timeout(t *testing.T) {
	events := make(chan cdp.LoaderID, idleEventBuffer)
	events <- "previous-page"

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := waitNetworkIdle(ctx, events, "main-loader")
	assert.ErrorIs(t, err, context.DeadlineExceeded, "其他 loader 的空闲事件不结束等待")
}

func TestWaitNetworkIdle_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, waitNetworkIdle(ctx, make(chan cdp.LoaderID), "main-loader"), context.Canceled)
}
