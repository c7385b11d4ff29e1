package llmcap

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestEffortForTemperatureBoundaries(t *testing.T) {
	cases := []struct {
		temp   float64
		effort Effort
	}{
		{0.0, EffortLow},
		{0.29, EffortLow},
		{0.3, EffortMedium},
		{0.5, EffortMedium},
		{0.7, EffortMedium},
		{0.71, EffortHigh},
		{1.0, EffortHigh},
	}
	for _, c := range cases {
		require.Equal(t, c.effort, EffortForTemperature(c.temp), "temperature %v", c.temp)
	}
}

type fakeProvider struct {
	calls   int
	results []Result
	errs    []error
}

func (f *fakeProvider) Complete(_ context.Context, model string, req Request) (Result, error) {
	i := f.calls
	f.calls++
	var err error
	if i < len(f.errs) {
		err = f.errs[i]
	}
	var res Result
	if i < len(f.results) {
		res = f.results[i]
	}
	return res, err
}

func TestCompleteResolvesAliasAndDerivesEffort(t *testing.T) {
	fp := &fakeProvider{results: []Result{{Content: "hi"}}}
	cap := New(fp, AliasTable{AliasMain: "model-x"}, WithRetryPolicy(RetryPolicy{MaxAttempts: 1}))

	res, err := cap.Complete(context.Background(), Request{ModelAlias: AliasMain, Temperature: 0.9})
	require.NoError(t, err)
	require.Equal(t, "hi", res.Content)
	require.Equal(t, 1, fp.calls)
}

func TestCompleteReturnsErrUnknownAlias(t *testing.T) {
	fp := &fakeProvider{}
	cap := New(fp, AliasTable{})

	_, err := cap.Complete(context.Background(), Request{ModelAlias: AliasMain})
	require.ErrorIs(t, err, ErrUnknownAlias)
	require.Equal(t, 0, fp.calls)
}

func TestCompleteRetriesRetryableErrors(t *testing.T) {
	fp := &fakeProvider{
		errs:    []error{&RetryableError{Err: errors.New("rate limited")}, nil},
		results: []Result{{}, {Content: "ok"}},
	}
	cap := New(fp, AliasTable{AliasMain: "model-x"}, WithRetryPolicy(RetryPolicy{
		MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond,
	}))

	res, err := cap.Complete(context.Background(), Request{ModelAlias: AliasMain})
	require.NoError(t, err)
	require.Equal(t, "ok", res.Content)
	require.Equal(t, 2, fp.calls)
}

func TestCompleteDoesNotRetryNonRetryableErrors(t *testing.T) {
	fp := &fakeProvider{errs: []error{errors.New("permanent failure")}}
	cap := New(fp, AliasTable{AliasMain: "model-x"}, WithRetryPolicy(RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond}))

	_, err := cap.Complete(context.Background(), Request{ModelAlias: AliasMain})
	require.Error(t, err)
	require.Equal(t, 1, fp.calls)
}

func TestCompleteGivesUpAfterMaxAttempts(t *testing.T) {
	fp := &fakeProvider{errs: []error{
		&RetryableError{Err: errors.New("1")},
		&RetryableError{Err: errors.New("2")},
		&RetryableError{Err: errors.New("3")},
	}}
	cap := New(fp, AliasTable{AliasMain: "model-x"}, WithRetryPolicy(RetryPolicy{
		MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond,
	}))

	_, err := cap.Complete(context.Background(), Request{ModelAlias: AliasMain})
	require.Error(t, err)
	require.Equal(t, 3, fp.calls)
}
