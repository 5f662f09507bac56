package conform

import (
	"context"
	"testing"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

const own = "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"

func TestRunBuiltin(t *testing.T) {
	report, err := RunBuiltin(context.Background())
	require.NoError(t, err)

	assert.True(t, report.Pass)
	assert.NotEmpty(t, report.RunID)
	require.Len(t, report.Results, 7)
	for _, r := range report.Results {
		assert.True(t, r.Pass, "%s: %s %s", r.Vector, r.Failure, r.Detail)
	}

	byName := map[string]*Result{}
	for _, r := range report.Results {
		byName[r.Vector] = r
	}
	assert.True(t, byName["delegate-present"].Allowed)
	assert.Equal(t, int8(-110), byName["delegate-absent"].Code)
	assert.Equal(t, "SELF_DESTRUCTION_VERIFICATION_FAILURE", byName["self-destruct-fires"].Reason)
	assert.Equal(t, "FORBID_TRADE_VERIFICATION_FAILURE", byName["trade-to-stranger"].Reason)
	assert.Nil(t, byName["short-policy"].Checks)
}

func TestRunFS_Failures(t *testing.T) {
	fsys := fstest.MapFS{
		"bad_yaml.yaml": {Data: []byte("name: [unterminated")},
		"bad_expr.yaml": {Data: []byte(`
name: bad-expr
tx:
  version: "1.0.0"
  own_identity: "` + own + `"
  policy: "0x00` + own[2:] + `"
  consumed:
    - {lock: "` + own + `"}
expect: code + 1
`)},
		"wrong.yaml": {Data: []byte(`
name: wrong
tx:
  version: "1.0.0"
  own_identity: "` + own + `"
  policy: "0x00` + own[2:] + `"
  consumed:
    - {lock: "` + own + `"}
expect: '!allowed'
`)},
		"bad_tx.yaml": {Data: []byte(`
name: bad-tx
tx:
  version: "2.0.0"
  own_identity: "` + own + `"
  policy: "0x00"
  consumed: []
expect: allowed
`)},
		"ignored.txt": {Data: []byte("not a vector")},
	}

	e, err := NewEngine()
	require.NoError(t, err)
	report, err := e.RunFS(context.Background(), fsys)
	require.NoError(t, err)

	assert.False(t, report.Pass)
	require.Len(t, report.Results, 4)

	got := map[string]string{}
	for _, r := range report.Results {
		assert.False(t, r.Pass, r.Vector)
		got[r.File] = r.Failure
	}
	assert.Equal(t, ReasonExpectationInvalid, got["bad_expr.yaml"])
	assert.Equal(t, ReasonVectorInvalid, got["bad_tx.yaml"])
	assert.Equal(t, ReasonVectorInvalid, got["bad_yaml.yaml"])
	assert.Equal(t, ReasonExpectationFailed, got["wrong.yaml"])
}

func TestRunFS_Empty(t *testing.T) {
	e, err := NewEngine()
	require.NoError(t, err)
	_, err = e.RunFS(context.Background(), fstest.MapFS{})
	assert.Error(t, err)
}

func TestRunFS_Clock(t *testing.T) {
	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	ticks := 0
	e, err := NewEngine()
	require.NoError(t, err)
	e.WithClock(func() time.Time {
		ticks++
		return base.Add(time.Duration(ticks-1) * time.Second)
	})

	report, err := e.RunFS(context.Background(), fstest.MapFS{
		"ok.yaml": {Data: []byte(`
name: ok
tx:
  version: "1.0.0"
  own_identity: "` + own + `"
  policy: "0x00` + own[2:] + `"
  consumed:
    - {lock: "` + own + `"}
expect: allowed
`)},
	})
	require.NoError(t, err)
	assert.True(t, report.Pass)
	assert.Equal(t, base, report.Timestamp)
	assert.Equal(t, time.Second, report.Duration)
}

func TestRunFS_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	e, err := NewEngine()
	require.NoError(t, err)
	_, err = e.RunFS(ctx, fstest.MapFS{"a.yaml": {Data: []byte("name: a")}})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRunVector_NoExpectation(t *testing.T) {
	e, err := NewEngine()
	require.NoError(t, err)
	res := e.RunVector(Vector{Name: "empty", Tx: yaml.Node{}}, nil)
	assert.False(t, res.Pass)
	assert.Equal(t, ReasonVectorInvalid, res.Failure)
}

func TestExpectations(t *testing.T) {
	x, err := NewExpectations()
	require.NoError(t, err)

	_, err = x.Compile("reason")
	assert.Error(t, err, "non-boolean expression")
	_, err = x.Compile("allowed &&")
	assert.Error(t, err)

	ok, err := x.Evaluate(`code == -111 && checks["ownership"] && !checks["forbid_trade"]`, Outcome{
		Code:   -111,
		Reason: "FORBID_TRADE_VERIFICATION_FAILURE",
		Checks: map[string]bool{"ownership": true, "forbid_trade": false},
	})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = x.Evaluate(`size(checks) == 0 && !allowed`, Outcome{Code: -3})
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestAllReasonCodes(t *testing.T) {
	codes := AllReasonCodes()
	assert.Len(t, codes, 3)
	seen := map[string]bool{}
	for _, c := range codes {
		assert.False(t, seen[c], c)
		seen[c] = true
	}
}

func TestRunVector_MissingTx(t *testing.T) {
	e, err := NewEngine()
	require.NoError(t, err)
	res := e.RunVector(Vector{Name: "no-tx", Expect: "allowed"}, nil)
	assert.False(t, res.Pass)
	assert.Equal(t, ReasonVectorInvalid, res.Failure)
	assert.Contains(t, res.Detail, "mapping")
}
