package events

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToFrame_StageStarted(t *testing.T) {
	e := NewStageStarted("analyze", 0, 3)
	f := ToFrame(e)
	assert.Equal(t, "stage_started", f.EventType)
	assert.Equal(t, "analyze", f.Data["stage_name"])
	assert.Equal(t, 0, f.Data["index"])
	assert.Greater(t, f.Timestamp, 0.0)
}

func TestIsTerminal(t *testing.T) {
	assert.True(t, IsTerminal(NewComplete(nil, "done")))
	assert.True(t, IsTerminal(NewError("boom", "analyze", false)))
	assert.False(t, IsTerminal(NewStageStarted("analyze", 0, 1)))
}

func TestBus_PublishSubscribe(t *testing.T) {
	b := NewBus()
	ch, unsub := Subscribe[StageStarted](b, 1)
	defer unsub()

	err := b.Publish(context.Background(), NewStageStarted("generate", 1, 3))
	require.NoError(t, err)

	select {
	case e := <-ch:
		assert.Equal(t, "generate", e.StageName)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestBus_ClosePreventsFurtherPublish(t *testing.T) {
	b := NewBus()
	ch, _ := Subscribe[Complete](b, 1)
	b.Close()

	err := b.Publish(context.Background(), NewComplete(nil, "done"))
	assert.Error(t, err)

	_, ok := <-ch
	assert.False(t, ok)
}
