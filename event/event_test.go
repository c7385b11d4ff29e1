package event

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewInitializesNilDataToEmptyMap(t *testing.T) {
	e := New(Thought, "s1", nil)
	require.NotNil(t, e.Data)
	require.Empty(t, e.Data)
	require.False(t, e.Timestamp.IsZero())
}

func TestCollectorAppendsEventsInOrder(t *testing.T) {
	c := &Collector{}
	require.NoError(t, c.Send(New(Thought, "s1", nil)))
	require.NoError(t, c.Send(New(Complete, "s1", nil)))

	require.Len(t, c.Events, 2)
	require.Equal(t, Thought, c.Events[0].Type)
	require.Equal(t, Complete, c.Events[1].Type)
}

func TestMultiSinkFansOutToAllSinks(t *testing.T) {
	a, b := &Collector{}, &Collector{}
	ms := MultiSink(a, b)

	require.NoError(t, ms.Send(New(Thought, "s1", nil)))
	require.Len(t, a.Events, 1)
	require.Len(t, b.Events, 1)
}

func TestMultiSinkSkipsNilSinksAndContinuesPastErrors(t *testing.T) {
	failing := SinkFunc(func(Event) error { return errors.New("boom") })
	ok := &Collector{}
	ms := MultiSink(nil, failing, ok)

	err := ms.Send(New(Thought, "s1", nil))
	require.Error(t, err)
	require.Len(t, ok.Events, 1)
}
