package paramstore

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/aws/aws-sdk-go-v2/service/ssm/types"
	"github.com/stretchr/testify/require"
)

type fakeSSM struct {
	out    *ssm.GetParameterOutput
	err    error
	lastIn *ssm.GetParameterInput
}

func (f *fakeSSM) GetParameter(_ context.Context, in *ssm.GetParameterInput, _ ...func(*ssm.Options)) (*ssm.GetParameterOutput, error) {
	f.lastIn = in
	return f.out, f.err
}

func valueOutput(v string) *ssm.GetParameterOutput {
	return &ssm.GetParameterOutput{Parameter: &types.Parameter{Name: aws.String("p"), Value: aws.String(v)}}
}

func mustNew(t *testing.T, api ssmAPI) *Client {
	t.Helper()
	c, err := New(api)
	require.NoError(t, err)
	return c
}

func TestNew_NilAPI(t *testing.T) {
	_, err := New(nil)
	require.Error(t, err)
}

func TestGetParameter_RequestsDecryption(t *testing.T) {
	api := &fakeSSM{out: valueOutput("secret")}
	v, err := mustNew(t, api).GetParameter(context.Background(), " /team-chat/key ")
	require.NoError(t, err)
	require.Equal(t, "secret", v)
	require.Equal(t, "/team-chat/key", aws.ToString(api.lastIn.Name))
	require.True(t, aws.ToBool(api.lastIn.WithDecryption))
}

func TestGetParameter_Errors(t *testing.T) {
	_, err := (&Client{}).GetParameter(context.Background(), "p")
	require.ErrorContains(t, err, "not initialized")

	_, err = mustNew(t, &fakeSSM{}).GetParameter(context.Background(), "  ")
	require.ErrorContains(t, err, "required")

	_, err = mustNew(t, &fakeSSM{err: errors.New("boom")}).GetParameter(context.Background(), "p")
	require.ErrorContains(t, err, "boom")

	_, err = mustNew(t, &fakeSSM{out: &ssm.GetParameterOutput{Parameter: &types.Parameter{}}}).GetParameter(context.Background(), "p")
	require.ErrorContains(t, err, "missing value")
}

func TestGetToken(t *testing.T) {
	v, err := mustNew(t, &fakeSSM{out: valueOutput(`{"token":"azure-key"}`)}).GetToken(context.Background(), "p")
	require.NoError(t, err)
	require.Equal(t, "azure-key", v)

	_, err = mustNew(t, &fakeSSM{out: valueOutput(`{"other":"x"}`)}).GetToken(context.Background(), "p")
	require.ErrorContains(t, err, "empty")

	_, err = mustNew(t, &fakeSSM{out: valueOutput(`{"broken`)}).GetToken(context.Background(), "p")
	require.ErrorContains(t, err, "unmarshal")
}
