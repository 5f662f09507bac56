package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mindburn-Labs/shadowlock/pkg/receipts"
)

const (
	ownHex   = "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
	refHex   = "0x0101010101010101010101010101010101010101010101010101010101010101"
	typeHex  = "0x1010101010101010101010101010101010101010101010101010101010101010"
	otherHex = "0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"
	seedHex  = "0x0707070707070707070707070707070707070707070707070707070707070707"
)

func setupEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("RECEIPT_STORE", "sqlite")
	t.Setenv("SQLITE_PATH", filepath.Join(dir, "db", "receipts.db"))
	t.Setenv("ARTIFACT_STORAGE_TYPE", "fs")
	t.Setenv("DATA_DIR", dir)
	t.Setenv("OTEL_ENABLED", "false")
	t.Setenv("SIGNING_KEY_SEED", seedHex)
	t.Setenv("SIGNER_ID", "test-signer")
	t.Setenv("LOG_LEVEL", "ERROR")
	return dir
}

func writeTx(t *testing.T, dir, name, produced string) string {
	t.Helper()
	doc := `version: "1.0.0"
own_identity: "` + ownHex + `"
policy_fields:
  forbid_trade: true
  reference: "` + refHex + `"
consumed:
  - {lock: "` + ownHex + `", type: "` + typeHex + `"}
  - {lock: "` + refHex + `"}
produced:
  - {lock: "` + produced + `", type: "` + typeHex + `"}
`
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(doc), 0600))
	return path
}

func run(args ...string) (int, string, string) {
	var stdout, stderr bytes.Buffer
	code := Run(append([]string{"shadowlock"}, args...), &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestRun_Dispatch(t *testing.T) {
	code, out, _ := run("version")
	assert.Equal(t, 0, code)
	assert.Contains(t, out, "shadowlock "+version)

	code, out, _ = run("help")
	assert.Equal(t, 0, code)
	assert.Contains(t, out, "verify")

	code, _, errOut := run("bogus")
	assert.Equal(t, 2, code)
	assert.Contains(t, errOut, "Unknown command: bogus")

	code, _, _ = run()
	assert.Equal(t, 2, code)
}

func TestVerify_Allow(t *testing.T) {
	dir := setupEnv(t)
	tx := writeTx(t, dir, "allow.yaml", refHex)
	cborPath := filepath.Join(dir, "receipt.cbor")

	code, out, errOut := run("verify", "--tx", tx, "--json", "--attest", "--cbor-out", cborPath)
	require.Equal(t, 0, code, errOut)

	var got verifyOutput
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	require.NotNil(t, got.Receipt)
	assert.True(t, got.Receipt.Allowed)
	assert.Equal(t, "AUTHORIZED", got.Receipt.Reason)
	assert.Equal(t, "test-signer", got.Receipt.SignerID)
	assert.Len(t, got.Receipt.Checks, 3)
	assert.NotEmpty(t, got.Attestation)

	ok, err := receipts.Verify(got.PublicKey, got.Receipt)
	require.NoError(t, err)
	assert.True(t, ok)

	data, err := os.ReadFile(cborPath)
	require.NoError(t, err)
	decoded, err := receipts.DecodeCBOR(data)
	require.NoError(t, err)
	assert.Equal(t, got.Receipt.ReceiptID, decoded.ReceiptID)

	entries, err := os.ReadDir(filepath.Join(dir, "fixtures"))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestVerify_Deny(t *testing.T) {
	dir := setupEnv(t)
	tx := writeTx(t, dir, "deny.yaml", otherHex)

	code, out, _ := run("verify", "--tx", tx)
	assert.Equal(t, 1, code)
	assert.Contains(t, out, "DENY (FORBID_TRADE_VERIFICATION_FAILURE, code -111)")
	assert.Contains(t, out, "FAIL")
}

func TestVerify_Structural(t *testing.T) {
	dir := setupEnv(t)
	tx := filepath.Join(dir, "short.yaml")
	require.NoError(t, os.WriteFile(tx, []byte(`version: "1.0.0"
own_identity: "`+ownHex+`"
policy: "0x02"
consumed:
  - {lock: "`+ownHex+`"}
`), 0600))

	code, out, _ := run("verify", "--tx", tx, "--json")
	assert.Equal(t, 2, code)

	var got verifyOutput
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.False(t, got.Receipt.Allowed)
	assert.Equal(t, int8(-3), got.Receipt.Code)
	assert.NotEmpty(t, got.Error)
}

func TestVerify_BadInput(t *testing.T) {
	dir := setupEnv(t)

	code, _, errOut := run("verify")
	assert.Equal(t, 2, code)
	assert.Contains(t, errOut, "--tx is required")

	code, _, _ = run("verify", "--tx", filepath.Join(dir, "missing.yaml"))
	assert.Equal(t, 2, code)

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("version: 1\n"), 0600))
	code, _, _ = run("verify", "--tx", bad)
	assert.Equal(t, 2, code)
}

func TestReceipts_ListAfterVerify(t *testing.T) {
	dir := setupEnv(t)

	code, out, _ := run("receipts")
	require.Equal(t, 0, code)
	assert.Contains(t, out, "No receipts.")

	code, _, _ = run("verify", "--tx", writeTx(t, dir, "a.yaml", refHex))
	require.Equal(t, 0, code)
	code, _, _ = run("verify", "--tx", writeTx(t, dir, "b.yaml", otherHex))
	require.Equal(t, 1, code)

	code, out, _ = run("receipts", "--json")
	require.Equal(t, 0, code)
	var list []*receipts.Receipt
	require.NoError(t, json.Unmarshal([]byte(out), &list))
	assert.Len(t, list, 2)

	code, out, _ = run("receipts", "--limit", "1")
	require.Equal(t, 0, code)
	assert.Equal(t, 1, strings.Count(strings.TrimSpace(out), "\n")+1)
}

func TestDecode(t *testing.T) {
	code, out, _ := run("decode", "--policy", "0x0e"+strings.Repeat("01", 32)+strings.Repeat("02", 32), "--json")
	require.Equal(t, 0, code)
	var got map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	flags := got["flags"].(map[string]any)
	assert.Equal(t, true, flags["forbid_trade"])
	assert.Equal(t, true, flags["self_destruct"])
	assert.Equal(t, true, flags["restrict_delegate_data"])
	assert.Equal(t, false, flags["delegate_by_type"])
	assert.NotNil(t, got["data_hash"])

	code, out, _ = run("decode", "--policy", "01"+strings.Repeat("ff", 32))
	require.Equal(t, 0, code)
	assert.Contains(t, out, "Delegate:  type")

	code, _, errOut := run("decode", "--policy", "0x08"+strings.Repeat("01", 32))
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "LENGTH_NOT_ENOUGH")

	code, _, _ = run("decode", "--policy", "zz")
	assert.Equal(t, 2, code)
}

func TestConform(t *testing.T) {
	code, out, _ := run("conform")
	assert.Equal(t, 0, code, out)
	assert.Contains(t, out, "Result: PASS")

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "wrong.yaml"), []byte(`
name: wrong
tx:
  version: "1.0.0"
  own_identity: "`+ownHex+`"
  policy: "0x00`+ownHex[2:]+`"
  consumed:
    - {lock: "`+ownHex+`"}
expect: '!allowed'
`), 0600))
	code, out, _ = run("conform", "--dir", dir, "--json")
	assert.Equal(t, 1, code)
	assert.Contains(t, out, "EXPECTATION_FAILED")

	code, _, _ = run("conform", "--dir", t.TempDir())
	assert.Equal(t, 2, code)
}
