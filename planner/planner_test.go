package planner

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rudi77/taskreactor/llmcap"
	"github.com/rudi77/taskreactor/plan"
)

type fakeProvider struct {
	result llmcap.Result
	err    error
}

func (f *fakeProvider) Complete(_ context.Context, _ string, _ llmcap.Request) (llmcap.Result, error) {
	return f.result, f.err
}

func TestBuildPlanAssignsImplicitPositionsAndDefaults(t *testing.T) {
	doc := planDocument{
		Items: []planItem{
			{Description: "first"},
			{Description: "second", Dependencies: []int{1}},
		},
		OpenQuestions: []string{"what about X?"},
		Notes:         "n",
	}

	p, err := buildPlan("do the thing", doc)
	require.NoError(t, err)
	require.Equal(t, "do the thing", p.Mission)
	require.Len(t, p.Steps, 2)
	require.Equal(t, 1, p.Steps[0].Position)
	require.Equal(t, 2, p.Steps[1].Position)
	require.Equal(t, plan.StatusPending, p.Steps[0].Status)
	require.Equal(t, []string{"what about X?"}, p.OpenQuestions)
}

func TestBuildPlanHonorsExplicitPositionAndStatus(t *testing.T) {
	doc := planDocument{
		Items: []planItem{
			{Position: 5, Description: "explicit", Status: string(plan.StatusSkipped)},
		},
	}

	p, err := buildPlan("m", doc)
	require.NoError(t, err)
	require.Equal(t, 5, p.Steps[0].Position)
	require.Equal(t, plan.StatusSkipped, p.Steps[0].Status)
}

func TestPlanParsesLLMResponseIntoPlan(t *testing.T) {
	fp := &fakeProvider{result: llmcap.Result{Content: `{"items":[{"position":1,"description":"step"}],"notes":"ok"}`}}
	cap := llmcap.New(fp, llmcap.AliasTable{llmcap.AliasFast: "model-x"})
	pl := New(cap)

	p, err := pl.Plan(context.Background(), "mission", nil, nil)
	require.NoError(t, err)
	require.Equal(t, "mission", p.Mission)
	require.Len(t, p.Steps, 1)
	require.Equal(t, "ok", p.Notes)
}

func TestPlanReturnsErrorOnInvalidJSON(t *testing.T) {
	fp := &fakeProvider{result: llmcap.Result{Content: "not json"}}
	cap := llmcap.New(fp, llmcap.AliasTable{llmcap.AliasFast: "model-x"})
	pl := New(cap)

	_, err := pl.Plan(context.Background(), "mission", nil, nil)
	require.Error(t, err)
}

func TestPlanPropagatesCompletionError(t *testing.T) {
	fp := &fakeProvider{err: require.AnError}
	cap := llmcap.New(fp, llmcap.AliasTable{llmcap.AliasFast: "model-x"})
	pl := New(cap)

	_, err := pl.Plan(context.Background(), "mission", nil, nil)
	require.Error(t, err)
}
